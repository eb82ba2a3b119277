package order

import "errors"

var (
	ErrNotFound          = errors.New("order not found")
	ErrForbidden         = errors.New("order does not belong to actor")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInsufficientStock = errors.New("insufficient product stock")
	ErrNotDelivered      = errors.New("order has not been delivered")
	ErrAlreadyReceived   = errors.New("receipt already confirmed")
)
