package escrow

import "errors"

var (
	ErrNotFound          = errors.New("escrow not found")
	ErrNotHeld           = errors.New("escrow is not in held status")
	ErrOrderNotDelivered = errors.New("order is not delivered")
	ErrInvalidCommission = errors.New("commission exceeds escrow amount")
)
