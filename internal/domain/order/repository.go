package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
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

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := r.db.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (r *Repository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Order, error) {
	var o Order
	err := tx.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return &o, nil
}

func (r *Repository) GetByOrderNo(ctx context.Context, orderNo string) (*Order, error) {
	var o Order
	err := r.db.GetContext(ctx, &o, `SELECT * FROM orders WHERE order_no = $1`, orderNo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order by number: %w", err)
	}
	return &o, nil
}

func (r *Repository) GetByTrackingCode(ctx context.Context, code string) (*Order, error) {
	var o Order
	err := r.db.GetContext(ctx, &o, `SELECT * FROM orders WHERE tracking_code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order by tracking code: %w", err)
	}
	return &o, nil
}

// ListItems reads the order lines through q so callers can run it inside or
// outside a transaction.
func (r *Repository) ListItems(ctx context.Context, q sqlx.QueryerContext, orderID uuid.UUID) ([]Item, error) {
	var items []Item
	err := sqlx.SelectContext(ctx, q, &items,
		`SELECT * FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return items, nil
}

// StatusForUpdate locks the order row and returns its status. It backs the
// escrow release precondition check.
func (r *Repository) StatusForUpdate(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) (string, error) {
	var status string
	err := tx.GetContext(ctx, &status, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock order status: %w", err)
	}
	return status, nil
}

// MarkCompleted moves a delivered order to COMPLETED. Escrow release calls it
// in the same transaction as the ledger writes.
func (r *Repository) MarkCompleted(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		StatusCompleted, orderID, StatusDelivered)
	if err != nil {
		return fmt.Errorf("complete order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete order: %w", err)
	}
	if rows == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID, status Status) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, status, orderID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

func (r *Repository) SetTrackingCode(ctx context.Context, orderID uuid.UUID, code string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders SET tracking_code = $1, updated_at = NOW() WHERE id = $2`, code, orderID)
	if err != nil {
		return fmt.Errorf("set tracking code: %w", err)
	}
	return nil
}

func (r *Repository) SetDelivered(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, delivered_at = $2, updated_at = NOW() WHERE id = $3`,
		StatusDelivered, at, orderID)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

func (r *Repository) MarkReceived(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET received_by_buyer = TRUE, updated_at = NOW() WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("mark received: %w", err)
	}
	return nil
}

func (r *Repository) SetStockDeducted(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID, deducted bool) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET stock_deducted = $1, updated_at = NOW() WHERE id = $2`, deducted, orderID)
	if err != nil {
		return fmt.Errorf("set stock deducted: %w", err)
	}
	return nil
}

// DeductStock commits stock for every order line. The guard in the WHERE
// clause keeps stock from going negative under concurrent captures.
func (r *Repository) DeductStock(ctx context.Context, tx *sqlx.Tx, items []Item) error {
	for _, it := range items {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1`,
			it.Quantity, it.ProductID)
		if err != nil {
			return fmt.Errorf("deduct stock: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deduct stock: %w", err)
		}
		if rows == 0 {
			return ErrInsufficientStock
		}
	}
	return nil
}

func (r *Repository) RestoreStock(ctx context.Context, tx *sqlx.Tx, items []Item) error {
	for _, it := range items {
		_, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2`,
			it.Quantity, it.ProductID)
		if err != nil {
			return fmt.Errorf("restore stock: %w", err)
		}
	}
	return nil
}

// ListAutoConfirmCandidates returns delivered orders whose receipt was never
// confirmed and whose delivery is older than cutoff.
func (r *Repository) ListAutoConfirmCandidates(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM orders
		 WHERE status = $1 AND received_by_buyer = FALSE AND delivered_at < $2
		 ORDER BY delivered_at
		 LIMIT $3`,
		StatusDelivered, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list auto-confirm candidates: %w", err)
	}
	return ids, nil
}
