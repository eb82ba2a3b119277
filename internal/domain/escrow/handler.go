package escrow

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nexmart/nexmart-api/internal/middleware"
	"github.com/nexmart/nexmart-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Release pays out the escrow for a delivered order. Operator only; the
// system triggers the same operation from delivery confirmation.
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	if err := h.svc.Release(r.Context(), orderID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "escrow not found")
		case errors.Is(err, ErrNotHeld):
			response.Conflict(w, "escrow is not in held status")
		case errors.Is(err, ErrOrderNotDelivered):
			response.Conflict(w, "order is not delivered yet")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]string{"status": string(StatusReleased)})
}

// Get returns the escrow record for an order. Operator only.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	esc, err := h.svc.repo.GetByOrderID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "escrow not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, esc)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireOperator())
	r.Get("/{orderID}", h.Get)
	r.Post("/{orderID}/release", h.Release)
	return r
}
