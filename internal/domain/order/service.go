package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/nexmart/nexmart-api/internal/middleware"
	"github.com/nexmart/nexmart-api/internal/pkg/courier"
)

// Releaser settles the escrow of a delivered order. Implemented by the escrow
// service; defined here so order does not import escrow.
type Releaser interface {
	Release(ctx context.Context, orderID uuid.UUID) error
}

// CourierClient is the slice of the courier API the lifecycle uses.
type CourierClient interface {
	CreateShipment(ctx context.Context, req courier.CreateShipmentRequest) (*courier.CreateShipmentResponse, error)
	CancelShipment(ctx context.Context, trackingCode string) error
}

// Actor identifies who is asking for a status change.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

type Service struct {
	repo     *Repository
	courier  CourierClient
	releaser Releaser
}

func NewService(repo *Repository, courierClient CourierClient, releaser Releaser) *Service {
	return &Service{repo: repo, courier: courierClient, releaser: releaser}
}

func (s *Service) Repo() *Repository {
	return s.repo
}

func (s *Service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != middleware.RoleOperator && o.BuyerID != actor.UserID && o.SellerID != actor.UserID {
		return nil, ErrForbidden
	}
	return o, nil
}

// UpdateStatus applies a seller- or operator-requested transition. Stock is
// restored inside the same transaction when the order is cancelled.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, next Status) (*Order, error) {
	allowed := sellerUpdatable
	if actor.Role == middleware.RoleOperator {
		allowed = operatorUpdatable
	}
	if !allowed[next] {
		return nil, ErrInvalidTransition
	}

	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	o, err := s.repo.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != middleware.RoleOperator && o.SellerID != actor.UserID {
		return nil, ErrForbidden
	}
	if !CanTransition(o.Status, next) {
		return nil, ErrInvalidTransition
	}

	if next == StatusCancelled && o.StockDeducted {
		items, err := s.repo.ListItems(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if err := s.repo.RestoreStock(ctx, tx, items); err != nil {
			return nil, err
		}
		if err := s.repo.SetStockDeducted(ctx, tx, orderID, false); err != nil {
			return nil, err
		}
	}
	if next == StatusDelivered {
		if err := s.repo.SetDelivered(ctx, tx, orderID, time.Now()); err != nil {
			return nil, err
		}
	} else if err := s.repo.UpdateStatus(ctx, tx, orderID, next); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status update: %w", err)
	}

	log.Info().
		Str("order_id", orderID.String()).
		Str("from", string(o.Status)).
		Str("to", string(next)).
		Str("actor", actor.UserID.String()).
		Msg("order status updated")

	switch next {
	case StatusProcessing, StatusShipping:
		if err := s.EnsureShipment(ctx, orderID); err != nil {
			log.Warn().Err(err).Str("order_id", orderID.String()).Msg("shipment creation failed, retry later")
		}
	case StatusCancelled:
		if o.TrackingCode.Valid {
			if err := s.courier.CancelShipment(ctx, o.TrackingCode.String); err != nil {
				log.Warn().Err(err).Str("order_id", orderID.String()).Msg("courier cancel failed")
			}
		}
	}

	return s.repo.GetByID(ctx, orderID)
}

// ConfirmPaid moves a paid order to CONFIRMED and commits its stock. It runs
// inside the payment capture transaction; duplicate captures are a no-op.
func (s *Service) ConfirmPaid(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusConfirmed {
		return o, nil
	}
	if o.Status != StatusPendingPayment {
		return nil, ErrInvalidTransition
	}
	if !o.StockDeducted {
		items, err := s.repo.ListItems(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if err := s.repo.DeductStock(ctx, tx, items); err != nil {
			return nil, err
		}
		if err := s.repo.SetStockDeducted(ctx, tx, orderID, true); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateStatus(ctx, tx, orderID, StatusConfirmed); err != nil {
		return nil, err
	}
	o.Status = StatusConfirmed
	o.StockDeducted = true
	return o, nil
}

// CancelFailedPayment cancels an order after a failed or aborted payment,
// reversing any stock commit. Runs inside the caller's transaction.
func (s *Service) CancelFailedPayment(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) error {
	o, err := s.repo.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if o.Status == StatusCancelled {
		return nil
	}
	if o.Status != StatusPendingPayment && o.Status != StatusConfirmed {
		return ErrInvalidTransition
	}
	if o.StockDeducted {
		items, err := s.repo.ListItems(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := s.repo.RestoreStock(ctx, tx, items); err != nil {
			return err
		}
		if err := s.repo.SetStockDeducted(ctx, tx, orderID, false); err != nil {
			return err
		}
	}
	return s.repo.UpdateStatus(ctx, tx, orderID, StatusCancelled)
}

// EnsureShipment registers the order with the courier if no tracking code has
// been assigned yet. Called outside database transactions.
func (s *Service) EnsureShipment(ctx context.Context, orderID uuid.UUID) error {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.TrackingCode.Valid {
		return nil
	}
	switch o.Status {
	case StatusConfirmed, StatusProcessing, StatusShipping:
	default:
		return ErrInvalidTransition
	}

	resp, err := s.courier.CreateShipment(ctx, courier.CreateShipmentRequest{
		OrderNo: o.OrderNo,
		Note:    fmt.Sprintf("marketplace order %s", o.OrderNo),
	})
	if err != nil {
		return fmt.Errorf("create shipment: %w", err)
	}
	if err := s.repo.SetTrackingCode(ctx, orderID, resp.TrackingCode); err != nil {
		return err
	}
	log.Info().
		Str("order_id", orderID.String()).
		Str("tracking_code", resp.TrackingCode).
		Msg("shipment created")
	return nil
}

// RetryShipment lets the seller re-run shipment registration after a courier
// outage.
func (s *Service) RetryShipment(ctx context.Context, actor Actor, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != middleware.RoleOperator && o.SellerID != actor.UserID {
		return nil, ErrForbidden
	}
	if err := s.EnsureShipment(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, orderID)
}

// ConfirmReceipt records the buyer's confirmation and triggers escrow
// settlement. The confirmation commits even when settlement fails; the
// operator release endpoint is the recovery path.
func (s *Service) ConfirmReceipt(ctx context.Context, buyerID uuid.UUID, orderID uuid.UUID) error {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	o, err := s.repo.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if o.BuyerID != buyerID {
		return ErrForbidden
	}
	if o.Status != StatusDelivered {
		return ErrNotDelivered
	}
	if o.ReceivedByBuyer {
		return ErrAlreadyReceived
	}
	if err := s.repo.MarkReceived(ctx, tx, orderID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit receipt: %w", err)
	}

	log.Info().Str("order_id", orderID.String()).Msg("receipt confirmed by buyer")

	if err := s.releaser.Release(ctx, orderID); err != nil {
		log.Error().Err(err).Str("order_id", orderID.String()).Msg("escrow release after receipt failed")
	}
	return nil
}

// ApplyCourierDelivered processes a courier delivery notification. Unknown
// references and out-of-phase orders are logged and dropped.
func (s *Service) ApplyCourierDelivered(ctx context.Context, payload courier.DeliveryWebhook) error {
	var o *Order
	if payload.TrackingCode != "" {
		found, err := s.repo.GetByTrackingCode(ctx, payload.TrackingCode)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		o = found
	}
	if o == nil && payload.OrderNo != "" {
		found, err := s.repo.GetByOrderNo(ctx, payload.OrderNo)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		o = found
	}
	if o == nil {
		log.Warn().
			Str("tracking_code", payload.TrackingCode).
			Str("order_no", payload.OrderNo).
			Msg("courier webhook for unknown order")
		return nil
	}

	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	locked, err := s.repo.GetByIDForUpdate(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	if locked.Status != StatusShipping {
		log.Info().
			Str("order_id", o.ID.String()).
			Str("status", string(locked.Status)).
			Msg("courier delivered webhook ignored, order not in shipping")
		return nil
	}
	if err := s.repo.SetDelivered(ctx, tx, o.ID, time.Now()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delivery: %w", err)
	}

	log.Info().Str("order_id", o.ID.String()).Msg("order delivered via courier webhook")
	return nil
}

// AutoConfirmOverdue confirms receipt on behalf of unresponsive buyers for
// every DELIVERED order whose delivery is older than cutoff, settling each
// escrow. Per-order failures are logged and do not stop the batch.
func (s *Service) AutoConfirmOverdue(ctx context.Context, cutoff time.Time, limit int) error {
	ids, err := s.repo.ListAutoConfirmCandidates(ctx, cutoff, limit)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	log.Info().Int("count", len(ids)).Msg("auto-confirming overdue deliveries")
	for _, id := range ids {
		if err := s.autoConfirm(ctx, id, cutoff); err != nil {
			log.Error().Err(err).Str("order_id", id.String()).Msg("auto-confirm failed")
		}
	}
	return nil
}

// autoConfirm confirms receipt on behalf of an unresponsive buyer and settles
// the escrow. Used by the sweep worker.
func (s *Service) autoConfirm(ctx context.Context, orderID uuid.UUID, cutoff time.Time) error {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	o, err := s.repo.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if o.Status != StatusDelivered || o.ReceivedByBuyer {
		return nil
	}
	if !o.DeliveredAt.Valid || o.DeliveredAt.Time.After(cutoff) {
		return nil
	}
	if err := s.repo.MarkReceived(ctx, tx, orderID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit auto-confirm: %w", err)
	}

	log.Info().Str("order_id", orderID.String()).Msg("receipt auto-confirmed after grace period")

	if err := s.releaser.Release(ctx, orderID); err != nil {
		return fmt.Errorf("release after auto-confirm: %w", err)
	}
	return nil
}
