package payment

import "errors"

var (
	ErrNotFound        = errors.New("payment not found")
	ErrForbidden       = errors.New("payment does not belong to actor")
	ErrOrderNotPayable = errors.New("order is not awaiting payment")
	ErrAlreadyPaid     = errors.New("order already paid")
)
