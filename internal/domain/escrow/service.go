package escrow

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nexmart/nexmart-api/internal/domain/wallet"
)

// deliveredStatus is the order status that gates a release.
const deliveredStatus = "DELIVERED"

// OrderStore is the slice of the order repository the release flow needs.
// Defined here so the order package can depend on escrow-free interfaces.
type OrderStore interface {
	StatusForUpdate(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) (string, error)
	MarkCompleted(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) error
}

type Service struct {
	repo      *Repository
	wallets   *wallet.Repository
	walletSvc *wallet.Service
	orders    OrderStore
}

func NewService(repo *Repository, wallets *wallet.Repository, walletSvc *wallet.Service, orders OrderStore) *Service {
	return &Service{repo: repo, wallets: wallets, walletSvc: walletSvc, orders: orders}
}

// HoldParams carries everything needed to fund an order's escrow.
type HoldParams struct {
	OrderID    uuid.UUID
	BuyerID    uuid.UUID
	SellerID   uuid.UUID
	Amount     decimal.Decimal
	Commission decimal.Decimal
}

// Hold creates the escrow row if absent and moves the payment amount from the
// buyer's available balance into the escrow wallet's locked balance. It runs
// inside the payment-capture transaction; the caller owns commit/rollback.
func (s *Service) Hold(ctx context.Context, tx *sqlx.Tx, p HoldParams) error {
	if p.Commission.IsNegative() || p.Commission.GreaterThan(p.Amount) {
		return ErrInvalidCommission
	}

	buyerWalletID, err := s.wallets.EnsureUserWallet(ctx, tx, p.BuyerID)
	if err != nil {
		return err
	}
	sellerWalletID, err := s.wallets.EnsureUserWallet(ctx, tx, p.SellerID)
	if err != nil {
		return err
	}
	escrowWalletID, err := s.wallets.EnsureEscrowWallet(ctx, tx)
	if err != nil {
		return err
	}

	if err := s.repo.CreateIfAbsent(ctx, tx, &Escrow{
		OrderID:        p.OrderID,
		BuyerWalletID:  buyerWalletID,
		SellerWalletID: sellerWalletID,
		EscrowWalletID: escrowWalletID,
		Amount:         p.Amount,
		Commission:     p.Commission,
		Status:         StatusHeld,
	}); err != nil {
		return err
	}

	ref := wallet.Reference{Type: "escrow", ID: p.OrderID.String()}
	return s.wallets.MoveAvailableToLocked(ctx, tx, buyerWalletID, escrowWalletID, p.Amount, HoldDedupeKey(p.OrderID), ref)
}

// Release pays the seller out of escrow, minus the commission frozen on the
// order, and advances the order to COMPLETED. Only legal when the order is
// DELIVERED. Safe to invoke any number of times.
func (s *Service) Release(ctx context.Context, orderID uuid.UUID) error {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	esc, err := s.repo.GetByOrderIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if esc.Status == StatusReleased {
		return nil
	}
	if esc.Status != StatusHeld {
		return ErrNotHeld
	}

	status, err := s.orders.StatusForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if status != deliveredStatus {
		return ErrOrderNotDelivered
	}

	sellerNet := esc.Amount.Sub(esc.Commission)
	if sellerNet.IsNegative() {
		return ErrInvalidCommission
	}

	ref := wallet.Reference{Type: "escrow", ID: orderID.String()}

	// Crash recovery: if a prior run wrote the release transaction but died
	// before marking the row terminal, skip the fund movement.
	released, err := s.wallets.DedupeKeyExists(ctx, tx, ReleaseDedupeKey(orderID))
	if err != nil {
		return err
	}
	if !released {
		if err := s.wallets.ReleaseLocked(ctx, tx, esc.EscrowWalletID, esc.SellerWalletID, esc.Amount, sellerNet, ReleaseDedupeKey(orderID), ref); err != nil {
			return err
		}
		if esc.Commission.IsPositive() {
			if err := s.wallets.Credit(ctx, tx, esc.EscrowWalletID, esc.Commission, CommissionDedupeKey(orderID), wallet.TransactionTypeCommission, ref); err != nil {
				return err
			}
		}
	}

	if err := s.repo.MarkReleased(ctx, tx, esc.ID); err != nil {
		return err
	}
	if err := s.orders.MarkCompleted(ctx, tx, orderID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.invalidateOwner(ctx, esc.SellerWalletID)

	log.Info().
		Str("order_id", orderID.String()).
		Str("amount", esc.Amount.String()).
		Str("commission", esc.Commission.String()).
		Str("seller_net", sellerNet.String()).
		Msg("escrow released")
	return nil
}

func (s *Service) invalidateOwner(ctx context.Context, walletID int64) {
	w, err := s.wallets.GetByID(ctx, walletID)
	if err != nil || !w.UserID.Valid {
		return
	}
	s.walletSvc.InvalidateBalance(ctx, w.UserID.UUID)
}
