package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/nexmart/nexmart-api/internal/domain/escrow"
	"github.com/nexmart/nexmart-api/internal/domain/order"
	"github.com/nexmart/nexmart-api/internal/domain/wallet"
	"github.com/nexmart/nexmart-api/internal/middleware"
	"github.com/nexmart/nexmart-api/internal/pkg/vnpay"
)

const methodVNPay = "vnpay"

type Service struct {
	repo       *Repository
	orders     *order.Service
	escrow     *escrow.Service
	wallets    *wallet.Repository
	walletSvc  *wallet.Service
	gateway    *vnpay.Client
	hashSecret string
}

func NewService(
	repo *Repository,
	orders *order.Service,
	escrowSvc *escrow.Service,
	wallets *wallet.Repository,
	walletSvc *wallet.Service,
	gateway *vnpay.Client,
	hashSecret string,
) *Service {
	return &Service{
		repo:       repo,
		orders:     orders,
		escrow:     escrowSvc,
		wallets:    wallets,
		walletSvc:  walletSvc,
		gateway:    gateway,
		hashSecret: hashSecret,
	}
}

// CreatePaymentResult carries the payment record plus the gateway redirect URL.
type CreatePaymentResult struct {
	Payment    *Payment `json:"payment"`
	PaymentURL string   `json:"payment_url"`
}

// CreatePayment initiates (or re-initiates) payment for an order. One payment
// row exists per order; repeated calls return the same TxnRef with a fresh
// redirect URL.
func (s *Service) CreatePayment(ctx context.Context, buyerID, orderID uuid.UUID, clientIP string) (*CreatePaymentResult, error) {
	o, err := s.orders.Repo().GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if o.BuyerID != buyerID {
		return nil, ErrForbidden
	}
	if o.Status != order.StatusPendingPayment {
		if o.Status == order.StatusConfirmed {
			return nil, ErrAlreadyPaid
		}
		return nil, ErrOrderNotPayable
	}

	p, err := s.repo.GetByOrderID(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		p = &Payment{
			ID:      uuid.New(),
			OrderID: orderID,
			Method:  methodVNPay,
			Amount:  o.Total,
			TxnRef:  strings.ReplaceAll(uuid.New().String(), "-", ""),
			Status:  StatusInit,
		}
		if err := s.repo.CreateIfAbsent(ctx, p); err != nil {
			return nil, err
		}
		// Lost the insert race or inserted: either way re-read the winner.
		p, err = s.repo.GetByOrderID(ctx, orderID)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if p.Status == StatusSuccess {
		return nil, ErrAlreadyPaid
	}

	// Always quote the order's current total, even on a reused payment row.
	if !p.Amount.Equal(o.Total) {
		if err := s.repo.UpdateAmount(ctx, p.ID, o.Total); err != nil {
			return nil, err
		}
		p.Amount = o.Total
	}

	paymentURL, err := s.gateway.BuildPaymentURL(vnpay.PaymentRequest{
		TxnRef:    p.TxnRef,
		Amount:    p.Amount,
		OrderInfo: fmt.Sprintf("Payment for order %s", o.OrderNo),
		IPAddr:    clientIP,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("build payment url: %w", err)
	}

	if p.Status == StatusInit {
		if err := s.repo.MarkPending(ctx, p.ID); err != nil {
			return nil, err
		}
		p.Status = StatusPending
	}

	log.Info().
		Str("order_id", orderID.String()).
		Str("txn_ref", p.TxnRef).
		Str("amount", p.Amount.String()).
		Msg("payment initiated")

	return &CreatePaymentResult{Payment: p, PaymentURL: paymentURL}, nil
}

// GetByOrder returns the payment for an order, visible to the order's buyer,
// seller and operators.
func (s *Service) GetByOrder(ctx context.Context, actor order.Actor, orderID uuid.UUID) (*Payment, error) {
	o, err := s.orders.Repo().GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if actor.Role != middleware.RoleOperator && o.BuyerID != actor.UserID && o.SellerID != actor.UserID {
		return nil, ErrForbidden
	}
	return s.repo.GetByOrderID(ctx, orderID)
}

// ProcessIPN handles the gateway's server-to-server result callback. It never
// returns an error; every outcome maps to a response code the gateway
// understands, always delivered over HTTP 200.
func (s *Service) ProcessIPN(ctx context.Context, formValues map[string][]string) vnpay.IPNResponse {
	payload, err := vnpay.ParseIPN(formValues)
	if err != nil {
		log.Warn().Err(err).Msg("unparseable ipn callback")
		return vnpay.IPNResponse{RspCode: vnpay.RspCodeUnknownError, Message: "Invalid request"}
	}
	if !vnpay.VerifySecureHash(payload.Raw, s.hashSecret) {
		log.Warn().Str("txn_ref", payload.TxnRef).Msg("ipn checksum verification failed")
		return vnpay.IPNResponse{RspCode: vnpay.RspCodeInvalidChecksum, Message: "Invalid signature"}
	}

	resp, err := s.applyIPN(ctx, payload)
	if err != nil {
		log.Error().Err(err).Str("txn_ref", payload.TxnRef).Msg("ipn processing failed")
		return vnpay.IPNResponse{RspCode: vnpay.RspCodeUnknownError, Message: "Unknown error"}
	}
	return resp
}

func (s *Service) applyIPN(ctx context.Context, payload *vnpay.IPNPayload) (vnpay.IPNResponse, error) {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return vnpay.IPNResponse{}, err
	}
	defer tx.Rollback()

	p, err := s.repo.GetByTxnRefForUpdate(ctx, tx, payload.TxnRef)
	if errors.Is(err, ErrNotFound) {
		return vnpay.IPNResponse{RspCode: vnpay.RspCodeOrderNotFound, Message: "Order not found"}, nil
	}
	if err != nil {
		return vnpay.IPNResponse{}, err
	}
	if p.Status == StatusSuccess {
		return vnpay.IPNResponse{RspCode: vnpay.RspCodeAlreadyConfirmed, Message: "Order already confirmed"}, nil
	}
	if !payload.Amount.Equal(p.Amount) {
		log.Warn().
			Str("txn_ref", p.TxnRef).
			Str("expected", p.Amount.String()).
			Str("received", payload.Amount.String()).
			Msg("ipn amount mismatch")
		return vnpay.IPNResponse{RspCode: vnpay.RspCodeAmountMismatch, Message: "Invalid amount"}, nil
	}

	if payload.ResponseCode != vnpay.ResponseCodeSuccess {
		return s.applyFailure(ctx, tx, p, payload)
	}
	return s.applySuccess(ctx, tx, p, payload)
}

// applySuccess captures the payment: confirm the order with its stock commit,
// credit the buyer wallet, and place the escrow hold, all in one transaction.
func (s *Service) applySuccess(ctx context.Context, tx *sqlx.Tx, p *Payment, payload *vnpay.IPNPayload) (vnpay.IPNResponse, error) {
	o, err := s.orders.ConfirmPaid(ctx, tx, p.OrderID)
	if err != nil {
		return vnpay.IPNResponse{}, fmt.Errorf("confirm order: %w", err)
	}

	buyerWalletID, err := s.wallets.EnsureUserWallet(ctx, tx, o.BuyerID)
	if err != nil {
		return vnpay.IPNResponse{}, err
	}
	ref := wallet.Reference{Type: "payment", ID: p.ID.String()}
	if err := s.wallets.Credit(ctx, tx, buyerWalletID, p.Amount, p.DedupeKey(), wallet.TransactionTypePaymentIn, ref); err != nil {
		return vnpay.IPNResponse{}, fmt.Errorf("credit buyer wallet: %w", err)
	}

	if err := s.escrow.Hold(ctx, tx, escrow.HoldParams{
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		SellerID:   o.SellerID,
		Amount:     p.Amount,
		Commission: o.Commission,
	}); err != nil {
		return vnpay.IPNResponse{}, fmt.Errorf("place escrow hold: %w", err)
	}

	if err := s.repo.MarkSuccess(ctx, tx, p.ID, payload.TransactionNo, payload.ResponseCode); err != nil {
		return vnpay.IPNResponse{}, err
	}
	if err := tx.Commit(); err != nil {
		return vnpay.IPNResponse{}, fmt.Errorf("commit capture: %w", err)
	}

	log.Info().
		Str("order_id", o.ID.String()).
		Str("txn_ref", p.TxnRef).
		Str("amount", p.Amount.String()).
		Msg("payment captured, escrow held")

	s.walletSvc.InvalidateBalance(ctx, o.BuyerID)
	if err := s.orders.EnsureShipment(ctx, o.ID); err != nil {
		log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("shipment creation after capture failed, retry later")
	}
	return vnpay.IPNResponse{RspCode: vnpay.RspCodeSuccess, Message: "Confirm success"}, nil
}

// applyFailure records a declined or aborted payment and cancels the order,
// reversing any stock that was committed.
func (s *Service) applyFailure(ctx context.Context, tx *sqlx.Tx, p *Payment, payload *vnpay.IPNPayload) (vnpay.IPNResponse, error) {
	if err := s.orders.CancelFailedPayment(ctx, tx, p.OrderID); err != nil {
		return vnpay.IPNResponse{}, fmt.Errorf("cancel order: %w", err)
	}
	if err := s.repo.MarkFailed(ctx, tx, p.ID, payload.ResponseCode); err != nil {
		return vnpay.IPNResponse{}, err
	}
	if err := tx.Commit(); err != nil {
		return vnpay.IPNResponse{}, fmt.Errorf("commit failure: %w", err)
	}

	log.Info().
		Str("order_id", p.OrderID.String()).
		Str("txn_ref", p.TxnRef).
		Str("response_code", payload.ResponseCode).
		Msg("payment failed, order cancelled")
	return vnpay.IPNResponse{RspCode: vnpay.RspCodeSuccess, Message: "Confirm success"}, nil
}
