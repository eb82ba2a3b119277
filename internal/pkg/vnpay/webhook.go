package vnpay

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Gateway response code reported in vnp_ResponseCode.
const ResponseCodeSuccess = "00"

// RspCode values the engine answers an IPN call with. Always delivered with
// HTTP 200; the gateway retries on anything else.
const (
	RspCodeSuccess          = "00"
	RspCodeOrderNotFound    = "01"
	RspCodeAlreadyConfirmed = "02"
	RspCodeAmountMismatch   = "04"
	RspCodeInvalidChecksum  = "97"
	RspCodeUnknownError     = "99"
)

// IPNPayload represents the server-to-server payment confirmation.
// The gateway sends a flat key/value set as query parameters.
type IPNPayload struct {
	TxnRef        string          // Our transaction reference
	Amount        decimal.Decimal // Parsed from x100 minor units
	ResponseCode  string          // "00" means paid
	TransactionNo string          // Gateway's own transaction number
	BankCode      string
	SecureHash    string
	Raw           map[string]string // Full parameter set as received
}

// IPNResponse is the body the IPN endpoint always answers with.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// ParseIPN extracts the known fields from the raw parameter set. Unknown
// parameters are kept in Raw (they are part of the signature base).
func ParseIPN(formValues map[string][]string) (*IPNPayload, error) {
	raw := make(map[string]string, len(formValues))
	for key, values := range formValues {
		if len(values) == 0 {
			continue
		}
		raw[key] = values[0]
	}

	txnRef := raw["vnp_TxnRef"]
	if txnRef == "" {
		return nil, fmt.Errorf("vnp_TxnRef is required")
	}
	if raw["vnp_SecureHash"] == "" {
		return nil, fmt.Errorf("vnp_SecureHash is required")
	}
	amountRaw := raw["vnp_Amount"]
	if amountRaw == "" {
		return nil, fmt.Errorf("vnp_Amount is required")
	}
	amount, err := FromMinorUnits(amountRaw)
	if err != nil {
		return nil, err
	}

	return &IPNPayload{
		TxnRef:        txnRef,
		Amount:        amount,
		ResponseCode:  raw["vnp_ResponseCode"],
		TransactionNo: raw["vnp_TransactionNo"],
		BankCode:      raw["vnp_BankCode"],
		SecureHash:    raw["vnp_SecureHash"],
		Raw:           raw,
	}, nil
}
