package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// CreateIfAbsent inserts the payment attempt for an order. The unique order_id
// constraint makes the second concurrent create a no-op; callers re-read.
func (r *Repository) CreateIfAbsent(ctx context.Context, p *Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (id, order_id, method, amount, txn_ref, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (order_id) DO NOTHING`,
		p.ID, p.OrderID, p.Method, p.Amount, p.TxnRef, p.Status)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *Repository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, `SELECT * FROM payments WHERE order_id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment by order: %w", err)
	}
	return &p, nil
}

func (r *Repository) GetByTxnRefForUpdate(ctx context.Context, tx *sqlx.Tx, txnRef string) (*Payment, error) {
	var p Payment
	err := tx.GetContext(ctx, &p, `SELECT * FROM payments WHERE txn_ref = $1 FOR UPDATE`, txnRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock payment: %w", err)
	}
	return &p, nil
}

// UpdateAmount re-quotes a not-yet-captured payment at the order's current
// total.
func (r *Repository) UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payments SET amount = $1, updated_at = NOW() WHERE id = $2 AND status <> $3`,
		amount, id, StatusSuccess)
	if err != nil {
		return fmt.Errorf("update payment amount: %w", err)
	}
	return nil
}

func (r *Repository) MarkPending(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		StatusPending, id, StatusInit)
	if err != nil {
		return fmt.Errorf("mark payment pending: %w", err)
	}
	return nil
}

func (r *Repository) MarkSuccess(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, providerTxnNo, responseCode string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE payments
		 SET status = $1, provider_txn_no = $2, response_code = $3, paid_at = NOW(), updated_at = NOW()
		 WHERE id = $4`,
		StatusSuccess, providerTxnNo, responseCode, id)
	if err != nil {
		return fmt.Errorf("mark payment success: %w", err)
	}
	return nil
}

func (r *Repository) MarkFailed(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, responseCode string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = $1, response_code = $2, updated_at = NOW() WHERE id = $3`,
		StatusFailed, responseCode, id)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	return nil
}
