package escrow

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusHeld     Status = "HELD"
	StatusReleased Status = "RELEASED"
	StatusRefunded Status = "REFUNDED"
	StatusDisputed Status = "DISPUTED"
	StatusCanceled Status = "CANCELED"
)

// Escrow tracks the funds held for one order. While HELD, the escrow wallet's
// locked balance covers Amount; RELEASED is terminal and idempotent.
type Escrow struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	OrderID        uuid.UUID       `db:"order_id" json:"order_id"`
	BuyerWalletID  int64           `db:"buyer_wallet_id" json:"buyer_wallet_id"`
	SellerWalletID int64           `db:"seller_wallet_id" json:"seller_wallet_id"`
	EscrowWalletID int64           `db:"escrow_wallet_id" json:"escrow_wallet_id"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Commission     decimal.Decimal `db:"commission" json:"commission"`
	Status         Status          `db:"status" json:"status"`
	ReleasedAt     sql.NullTime    `db:"released_at" json:"released_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// HoldDedupeKey is the idempotency key for funding the escrow of an order.
func HoldDedupeKey(orderID uuid.UUID) string {
	return "escrow:hold:" + orderID.String()
}

// ReleaseDedupeKey guards the seller payout leg of a release.
func ReleaseDedupeKey(orderID uuid.UUID) string {
	return "escrow:release:" + orderID.String()
}

// CommissionDedupeKey guards the commission leg of a release.
func CommissionDedupeKey(orderID uuid.UUID) string {
	return "escrow:commission:" + orderID.String()
}
