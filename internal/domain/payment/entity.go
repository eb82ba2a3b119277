package payment

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusInit      Status = "INIT"
	StatusPending   Status = "PENDING"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Payment is the single capture attempt record for an order. TxnRef is the
// reference sent to the gateway and echoed back in the callback.
type Payment struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	OrderID       uuid.UUID       `db:"order_id" json:"order_id"`
	Method        string          `db:"method" json:"method"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	TxnRef        string          `db:"txn_ref" json:"txn_ref"`
	ProviderTxnNo sql.NullString  `db:"provider_txn_no" json:"provider_txn_no,omitempty"`
	ResponseCode  sql.NullString  `db:"response_code" json:"response_code,omitempty"`
	Status        Status          `db:"status" json:"status"`
	PaidAt        sql.NullTime    `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// DedupeKey is the ledger dedupe key for the buyer credit leg of a capture.
func (p *Payment) DedupeKey() string {
	return "payment:" + p.TxnRef
}
