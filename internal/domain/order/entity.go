package order

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusConfirmed      Status = "CONFIRMED"
	StatusProcessing     Status = "PROCESSING"
	StatusShipping       Status = "SHIPPING"
	StatusDelivered      Status = "DELIVERED"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
	StatusRefunded       Status = "REFUNDED"
)

// transitions is the full lifecycle graph. CANCELLED is reachable only before
// the order ships; COMPLETED only through escrow release.
var transitions = map[Status][]Status{
	StatusPendingPayment: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusProcessing, StatusShipping, StatusCancelled},
	StatusProcessing:     {StatusShipping},
	StatusShipping:       {StatusDelivered},
	StatusDelivered:      {StatusCompleted},
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// sellerUpdatable lists the targets a seller may request through
// UpdateStatus. Payment capture owns CONFIRMED, the delivery triggers own
// DELIVERED, escrow release owns COMPLETED.
var sellerUpdatable = map[Status]bool{
	StatusProcessing: true,
	StatusShipping:   true,
	StatusCancelled:  true,
}

// operatorUpdatable additionally lets an operator force DELIVERED when a
// courier never reports back.
var operatorUpdatable = map[Status]bool{
	StatusProcessing: true,
	StatusShipping:   true,
	StatusCancelled:  true,
	StatusDelivered:  true,
}

// Order is the aggregate the settlement objects hang off.
type Order struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	OrderNo         string          `db:"order_no" json:"order_no"`
	BuyerID         uuid.UUID       `db:"buyer_id" json:"buyer_id"`
	SellerID        uuid.UUID       `db:"seller_id" json:"seller_id"`
	Status          Status          `db:"status" json:"status"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	ShippingFee     decimal.Decimal `db:"shipping_fee" json:"shipping_fee"`
	Commission      decimal.Decimal `db:"commission" json:"commission"`
	Total           decimal.Decimal `db:"total" json:"total"`
	StockDeducted   bool            `db:"stock_deducted" json:"stock_deducted"`
	ReceivedByBuyer bool            `db:"received_by_buyer" json:"received_by_buyer"`
	DeliveredAt     sql.NullTime    `db:"delivered_at" json:"delivered_at,omitempty"`
	TrackingCode    sql.NullString  `db:"tracking_code" json:"tracking_code,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Item is one order line; quantities drive stock commit and restore.
type Item struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	OrderID   uuid.UUID       `db:"order_id" json:"order_id"`
	ProductID uuid.UUID       `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}
