package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/nexmart/nexmart-api/internal/config"
	"github.com/nexmart/nexmart-api/internal/domain/escrow"
	"github.com/nexmart/nexmart-api/internal/domain/order"
	"github.com/nexmart/nexmart-api/internal/domain/payment"
	"github.com/nexmart/nexmart-api/internal/domain/wallet"
	"github.com/nexmart/nexmart-api/internal/middleware"
	"github.com/nexmart/nexmart-api/internal/pkg/courier"
	"github.com/nexmart/nexmart-api/internal/pkg/database"
	"github.com/nexmart/nexmart-api/internal/pkg/jwt"
	"github.com/nexmart/nexmart-api/internal/pkg/logger"
	"github.com/nexmart/nexmart-api/internal/pkg/response"
	"github.com/nexmart/nexmart-api/internal/pkg/vnpay"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting NexMart settlement API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	gateway := vnpay.NewClient(vnpay.Config{
		TmnCode:    cfg.VNPayTmnCode,
		HashSecret: cfg.VNPayHashSecret,
		BaseURL:    cfg.VNPayBaseURL,
		ReturnURL:  cfg.VNPayReturnURL,
	})
	courierClient := courier.NewClient(courier.Config{
		BaseURL: cfg.CourierBaseURL,
		Token:   cfg.CourierToken,
		Timeout: time.Duration(cfg.CourierTimeoutSeconds) * time.Second,
	})

	// ---------- Repositories ----------
	walletRepo := wallet.NewRepository(db)
	escrowRepo := escrow.NewRepository(db)
	orderRepo := order.NewRepository(db)
	paymentRepo := payment.NewRepository(db)

	// ---------- Services ----------
	walletService := wallet.NewService(walletRepo, redis)
	escrowService := escrow.NewService(escrowRepo, walletRepo, walletService, orderRepo)
	orderService := order.NewService(orderRepo, courierClient, escrowService)
	paymentService := payment.NewService(paymentRepo, orderService, escrowService, walletRepo, walletService, gateway, cfg.VNPayHashSecret)

	// ---------- Handlers ----------
	walletHandler := wallet.NewHandler(walletService)
	escrowHandler := escrow.NewHandler(escrowService)
	orderHandler := order.NewHandler(orderService)
	paymentHandler := payment.NewHandler(paymentService)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Background workers ----------
	sweeper := order.NewWorker(orderService, cfg.SweepInterval, cfg.AutoConfirmAfter)
	sweeper.Start()
	defer sweeper.Stop()

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/wallet", walletHandler.Routes(authMiddleware))
		r.Mount("/escrows", escrowHandler.Routes(authMiddleware))
		r.Mount("/orders", orderHandler.Routes(authMiddleware))
		r.Mount("/payments", paymentHandler.Routes(authMiddleware))
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Mount("/vnpay", paymentHandler.WebhookRoutes())
		r.Mount("/courier", orderHandler.WebhookRoutes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
