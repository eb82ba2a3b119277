package escrow

import (
	"context"
	"database/sql"
	"errors"

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

// CreateIfAbsent inserts the escrow row for an order. A second capture for
// the same order leaves the existing row untouched.
func (r *Repository) CreateIfAbsent(ctx context.Context, tx *sqlx.Tx, e *Escrow) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO escrows (id, order_id, buyer_wallet_id, seller_wallet_id, escrow_wallet_id, amount, commission, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (order_id) DO NOTHING
	`, e.ID, e.OrderID, e.BuyerWalletID, e.SellerWalletID, e.EscrowWalletID, e.Amount, e.Commission, string(e.Status))
	return err
}

// GetByOrderID returns the escrow for an order without locking it.
func (r *Repository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Escrow, error) {
	var e Escrow
	err := r.db.GetContext(ctx, &e, `
		SELECT id, order_id, buyer_wallet_id, seller_wallet_id, escrow_wallet_id,
		       amount, commission, status, released_at, created_at
		FROM escrows WHERE order_id = $1
	`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByOrderIDForUpdate locks the escrow row to serialize concurrent
// release attempts for the same order.
func (r *Repository) GetByOrderIDForUpdate(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) (*Escrow, error) {
	var e Escrow
	err := tx.GetContext(ctx, &e, `
		SELECT id, order_id, buyer_wallet_id, seller_wallet_id, escrow_wallet_id,
		       amount, commission, status, released_at, created_at
		FROM escrows WHERE order_id = $1 FOR UPDATE
	`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) MarkReleased(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE escrows SET status = 'RELEASED', released_at = now() WHERE id = $1 AND status = 'HELD'
	`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotHeld
	}
	return nil
}
