package wallet

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletType distinguishes user wallets from platform singletons.
type WalletType string

const (
	WalletTypeUser   WalletType = "user"
	WalletTypeEscrow WalletType = "escrow"
)

type TransactionType string

const (
	TransactionTypePaymentIn  TransactionType = "payment_in"
	TransactionTypeHold       TransactionType = "hold"
	TransactionTypeRelease    TransactionType = "release"
	TransactionTypeCommission TransactionType = "commission"
	TransactionTypeRefund     TransactionType = "refund"
)

type TransactionStatus string

const TransactionStatusSuccess TransactionStatus = "success"

// Wallet is a monetary account split into available and locked balances.
// total = available + locked only ever changes through a Transaction.
type Wallet struct {
	ID        int64           `db:"id" json:"id"`
	UserID    uuid.NullUUID   `db:"user_id" json:"user_id,omitempty"`
	Type      WalletType      `db:"type" json:"type"`
	Currency  string          `db:"currency" json:"currency"`
	Available decimal.Decimal `db:"available" json:"available"`
	Locked    decimal.Decimal `db:"locked" json:"locked"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

func (w *Wallet) Total() decimal.Decimal {
	return w.Available.Add(w.Locked)
}

// Reference points a transaction at the business object that caused it.
type Reference struct {
	Type string // payment, escrow, order
	ID   string
}

// Transaction is an immutable ledger entry. DedupeKey is unique per logical
// event; at most one row exists per key.
type Transaction struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	FromWalletID  sql.NullInt64     `db:"from_wallet_id" json:"from_wallet_id,omitempty"`
	ToWalletID    sql.NullInt64     `db:"to_wallet_id" json:"to_wallet_id,omitempty"`
	Amount        decimal.Decimal   `db:"amount" json:"amount"`
	Type          TransactionType   `db:"type" json:"type"`
	Status        TransactionStatus `db:"status" json:"status"`
	ReferenceType string            `db:"reference_type" json:"reference_type"`
	ReferenceID   string            `db:"reference_id" json:"reference_id"`
	DedupeKey     string            `db:"dedupe_key" json:"dedupe_key"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}
