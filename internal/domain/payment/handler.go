package payment

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nexmart/nexmart-api/internal/domain/order"
	"github.com/nexmart/nexmart-api/internal/middleware"
	"github.com/nexmart/nexmart-api/internal/pkg/response"
	"github.com/nexmart/nexmart-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createPaymentRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	orderID, _ := uuid.Parse(req.OrderID)

	result, err := h.svc.CreatePayment(r.Context(), middleware.GetUserID(r.Context()), orderID, clientIP(r))
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "order not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "not your order")
	case errors.Is(err, ErrAlreadyPaid):
		response.Conflict(w, "order already paid")
	case errors.Is(err, ErrOrderNotPayable):
		response.Conflict(w, "order is not awaiting payment")
	case err != nil:
		log.Error().Err(err).Str("order_id", orderID.String()).Msg("create payment failed")
		response.InternalError(w)
	default:
		response.Created(w, result)
	}
}

func (h *Handler) GetByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}
	actor := order.Actor{UserID: middleware.GetUserID(r.Context()), Role: middleware.GetRole(r.Context())}

	p, err := h.svc.GetByOrder(r.Context(), actor, orderID)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "payment not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "not your order")
	case err != nil:
		log.Error().Err(err).Str("order_id", orderID.String()).Msg("get payment failed")
		response.InternalError(w)
	default:
		response.OK(w, p)
	}
}

// IPN is the gateway callback. The gateway treats any non-200 as delivery
// failure and retries, so the outcome travels in the body's RspCode.
func (h *Handler) IPN(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil && len(r.Form) > 0 {
			params = r.Form
		}
	}
	resp := h.svc.ProcessIPN(r.Context(), params)

	// The gateway expects the bare RspCode object, not the API envelope.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) Routes(auth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth)
	r.Post("/", h.Create)
	r.Get("/order/{orderID}", h.GetByOrder)
	return r
}

func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/ipn", h.IPN)
	r.Post("/ipn", h.IPN)
	return r
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
