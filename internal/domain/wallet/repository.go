package wallet

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
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

// EnsureUserWallet lazily creates the user's wallet and returns its id.
// Works on both the pool and an open transaction.
func (r *Repository) EnsureUserWallet(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID) (int64, error) {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO wallets (user_id, type, currency, available, locked)
		VALUES ($1, 'user', 'VND', 0, 0)
		ON CONFLICT (user_id) WHERE type = 'user' DO NOTHING
	`, userID); err != nil {
		return 0, err
	}

	var id int64
	err := sqlx.GetContext(ctx, q, &id, `SELECT id FROM wallets WHERE user_id = $1 AND type = 'user'`, userID)
	return id, err
}

// EnsureEscrowWallet lazily creates the singleton platform escrow wallet.
func (r *Repository) EnsureEscrowWallet(ctx context.Context, q sqlx.ExtContext) (int64, error) {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO wallets (user_id, type, currency, available, locked)
		VALUES (NULL, 'escrow', 'VND', 0, 0)
		ON CONFLICT (type) WHERE type = 'escrow' DO NOTHING
	`); err != nil {
		return 0, err
	}

	var id int64
	err := sqlx.GetContext(ctx, q, &id, `SELECT id FROM wallets WHERE type = 'escrow'`)
	return id, err
}

// GetByUserID returns the user's wallet, creating it if absent.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	if _, err := r.EnsureUserWallet(ctx, r.db, userID); err != nil {
		return nil, err
	}

	var w Wallet
	err := r.db.GetContext(ctx, &w, `
		SELECT id, user_id, type, currency, available, locked, updated_at
		FROM wallets WHERE user_id = $1 AND type = 'user'
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetByID returns a wallet by id without locking it.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w, `
		SELECT id, user_id, type, currency, available, locked, updated_at
		FROM wallets WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// DedupeKeyExists reports whether a transaction with the key was already
// written. Callers use it for crash recovery probes inside their own tx.
func (r *Repository) DedupeKeyExists(ctx context.Context, tx *sqlx.Tx, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyDedupeKey
	}
	var one int
	err := tx.GetContext(ctx, &one, `SELECT 1 FROM wallet_transactions WHERE dedupe_key = $1 LIMIT 1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// lockWallets acquires FOR UPDATE locks in ascending wallet id order so that
// overlapping units of work (hold vs release) never deadlock.
func (r *Repository) lockWallets(ctx context.Context, tx *sqlx.Tx, ids ...int64) (map[int64]*Wallet, error) {
	sorted := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make(map[int64]*Wallet, len(sorted))
	for _, id := range sorted {
		var w Wallet
		err := tx.GetContext(ctx, &w, `
			SELECT id, user_id, type, currency, available, locked, updated_at
			FROM wallets WHERE id = $1 FOR UPDATE
		`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		if err != nil {
			return nil, err
		}
		out[id] = &w
	}
	return out, nil
}

func (r *Repository) updateBalances(ctx context.Context, tx *sqlx.Tx, w *Wallet) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets SET available = $1, locked = $2, updated_at = now() WHERE id = $3
	`, w.Available, w.Locked, w.ID)
	return err
}

// errDuplicateDedupeKey is internal; primitives translate it into a no-op.
var errDuplicateDedupeKey = errors.New("duplicate dedupe key")

func (r *Repository) insertTransaction(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions
			(id, from_wallet_id, to_wallet_id, amount, type, status, reference_type, reference_id, dedupe_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.FromWalletID, t.ToWalletID, t.Amount, string(t.Type), string(t.Status),
		t.ReferenceType, t.ReferenceID, t.DedupeKey)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return errDuplicateDedupeKey
		}
		return err
	}
	return nil
}

// Credit increases the wallet's available balance. A replay with an existing
// dedupe key succeeds without mutating anything.
func (r *Repository) Credit(ctx context.Context, tx *sqlx.Tx, walletID int64, amount decimal.Decimal, key string, txType TransactionType, ref Reference) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if key == "" {
		return ErrEmptyDedupeKey
	}

	wallets, err := r.lockWallets(ctx, tx, walletID)
	if err != nil {
		return err
	}

	exists, err := r.DedupeKeyExists(ctx, tx, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	w := wallets[walletID]
	w.Available = w.Available.Add(amount)
	if err := r.updateBalances(ctx, tx, w); err != nil {
		return err
	}

	err = r.insertTransaction(ctx, tx, &Transaction{
		ID:            uuid.New(),
		ToWalletID:    sql.NullInt64{Int64: walletID, Valid: true},
		Amount:        amount,
		Type:          txType,
		Status:        TransactionStatusSuccess,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
		DedupeKey:     key,
	})
	if errors.Is(err, errDuplicateDedupeKey) {
		// Lost a race on the unique index; the effect is already applied,
		// and this tx's balance write will be rolled back by the caller.
		return errDuplicateDedupeKey
	}
	return err
}

// MoveAvailableToLocked moves amount from one wallet's available balance into
// another wallet's locked balance, writing one HOLD transaction.
func (r *Repository) MoveAvailableToLocked(ctx context.Context, tx *sqlx.Tx, fromID, toID int64, amount decimal.Decimal, key string, ref Reference) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if key == "" {
		return ErrEmptyDedupeKey
	}

	wallets, err := r.lockWallets(ctx, tx, fromID, toID)
	if err != nil {
		return err
	}

	exists, err := r.DedupeKeyExists(ctx, tx, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	from, to := wallets[fromID], wallets[toID]
	if from.Available.LessThan(amount) {
		return ErrInsufficientFunds
	}
	from.Available = from.Available.Sub(amount)
	to.Locked = to.Locked.Add(amount)

	if err := r.updateBalances(ctx, tx, from); err != nil {
		return err
	}
	if err := r.updateBalances(ctx, tx, to); err != nil {
		return err
	}

	return r.insertTransaction(ctx, tx, &Transaction{
		ID:            uuid.New(),
		FromWalletID:  sql.NullInt64{Int64: fromID, Valid: true},
		ToWalletID:    sql.NullInt64{Int64: toID, Valid: true},
		Amount:        amount,
		Type:          TransactionTypeHold,
		Status:        TransactionStatusSuccess,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
		DedupeKey:     key,
	})
}

// ReleaseLocked removes gross from the source wallet's locked balance and
// credits net to the destination wallet's available balance. The difference
// (the commission) stays with the source wallet's owner and is credited by a
// separate, separately-keyed Credit leg.
func (r *Repository) ReleaseLocked(ctx context.Context, tx *sqlx.Tx, fromID, toID int64, gross, net decimal.Decimal, key string, ref Reference) error {
	if gross.LessThanOrEqual(decimal.Zero) || net.LessThan(decimal.Zero) || net.GreaterThan(gross) {
		return ErrInvalidAmount
	}
	if key == "" {
		return ErrEmptyDedupeKey
	}

	wallets, err := r.lockWallets(ctx, tx, fromID, toID)
	if err != nil {
		return err
	}

	exists, err := r.DedupeKeyExists(ctx, tx, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	from, to := wallets[fromID], wallets[toID]
	if from.Locked.LessThan(gross) {
		return ErrInsufficientFunds
	}
	from.Locked = from.Locked.Sub(gross)
	to.Available = to.Available.Add(net)

	if err := r.updateBalances(ctx, tx, from); err != nil {
		return err
	}
	if err := r.updateBalances(ctx, tx, to); err != nil {
		return err
	}

	return r.insertTransaction(ctx, tx, &Transaction{
		ID:            uuid.New(),
		FromWalletID:  sql.NullInt64{Int64: fromID, Valid: true},
		ToWalletID:    sql.NullInt64{Int64: toID, Valid: true},
		Amount:        net,
		Type:          TransactionTypeRelease,
		Status:        TransactionStatusSuccess,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
		DedupeKey:     key,
	})
}
