package order

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nexmart/nexmart-api/internal/middleware"
	"github.com/nexmart/nexmart-api/internal/pkg/courier"
	"github.com/nexmart/nexmart-api/internal/pkg/response"
	"github.com/nexmart/nexmart-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}
	actor := Actor{UserID: middleware.GetUserID(r.Context()), Role: middleware.GetRole(r.Context())}

	o, err := h.svc.Get(r.Context(), actor, orderID)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "order not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "not your order")
	case err != nil:
		log.Error().Err(err).Str("order_id", orderID.String()).Msg("get order failed")
		response.InternalError(w)
	default:
		response.OK(w, o)
	}
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	actor := Actor{UserID: middleware.GetUserID(r.Context()), Role: middleware.GetRole(r.Context())}
	o, err := h.svc.UpdateStatus(r.Context(), actor, orderID, Status(req.Status))
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "order not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "not your order")
	case errors.Is(err, ErrInvalidTransition):
		response.Conflict(w, "status transition not allowed")
	case err != nil:
		log.Error().Err(err).Str("order_id", orderID.String()).Msg("update order status failed")
		response.InternalError(w)
	default:
		response.OK(w, o)
	}
}

func (h *Handler) ConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	err = h.svc.ConfirmReceipt(r.Context(), middleware.GetUserID(r.Context()), orderID)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "order not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "not your order")
	case errors.Is(err, ErrNotDelivered):
		response.Conflict(w, "order has not been delivered yet")
	case errors.Is(err, ErrAlreadyReceived):
		response.Conflict(w, "receipt already confirmed")
	case err != nil:
		log.Error().Err(err).Str("order_id", orderID.String()).Msg("confirm receipt failed")
		response.InternalError(w)
	default:
		response.OK(w, map[string]string{"status": "confirmed"})
	}
}

func (h *Handler) RetryShipment(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	actor := Actor{UserID: middleware.GetUserID(r.Context()), Role: middleware.GetRole(r.Context())}
	o, err := h.svc.RetryShipment(r.Context(), actor, orderID)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "order not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "not your order")
	case errors.Is(err, ErrInvalidTransition):
		response.Conflict(w, "order is not in a shippable status")
	case err != nil:
		log.Error().Err(err).Str("order_id", orderID.String()).Msg("retry shipment failed")
		response.InternalError(w)
	default:
		response.OK(w, o)
	}
}

// CourierWebhook ingests delivery notifications. The courier retries on
// non-200, so the response is always success; failures are logged.
func (h *Handler) CourierWebhook(w http.ResponseWriter, r *http.Request) {
	payload := courier.ParseDeliveryWebhook(r.Body)
	if !payload.IsDelivered() {
		log.Info().
			Str("tracking_code", payload.TrackingCode).
			Str("status", payload.Status).
			Msg("courier webhook ignored, not a delivery event")
		response.OK(w, map[string]string{"status": "ok"})
		return
	}
	if err := h.svc.ApplyCourierDelivered(r.Context(), payload); err != nil {
		log.Error().Err(err).
			Str("tracking_code", payload.TrackingCode).
			Str("order_no", payload.OrderNo).
			Msg("courier webhook processing failed")
	}
	response.OK(w, map[string]string{"status": "ok"})
}

func (h *Handler) Routes(auth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth)
	r.Get("/{orderID}", h.Get)
	r.Post("/{orderID}/status", h.UpdateStatus)
	r.Post("/{orderID}/confirm-receipt", h.ConfirmReceipt)
	r.Post("/{orderID}/shipment/retry", h.RetryShipment)
	return r
}

func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/delivery", h.CourierWebhook)
	return r
}
