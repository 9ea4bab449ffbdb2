/**
 * @description
 * This file implements the custody payment handler: the reconciliation core
 * behind the custody provider's webhook. Each observed on-chain event is
 * classified and turned into the matching platform notification:
 *
 *   - failed events mark the custody record failed and error the transaction;
 *   - incoming payments on an open custody record settle it and report the
 *     received funds;
 *   - incoming payments on an already-settled record are re-sent funds and are
 *     reported as a refund instead of a second receipt;
 *   - incoming payments with no custody record are matched to an open receive
 *     transaction by memo; funds for a receive arrive unannounced, so the
 *     custody record is created at observation time;
 *   - outgoing payments are observations of our own payouts and are ignored —
 *     completion of a payout is driven by the business server, not the webhook.
 *
 * The handler re-enters the platform through its own RPC surface, so every
 * status change still flows through the action state machine.
 */

package custody

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumenbridge/platform-service/internal/domain"
	"github.com/lumenbridge/platform-service/internal/metrics"
	"github.com/lumenbridge/platform-service/internal/store"
)

// Webhook classification outcomes recorded on the custody metrics counter.
const (
	outcomePayment     = "payment"
	outcomeRefund      = "refund_resent"
	outcomeFailed      = "failed"
	outcomeUnmatched   = "unmatched"
	outcomeOutgoing    = "ignored_outgoing"
	outcomeAssetErrors = "asset_mismatch"
)

// PlatformNotifier is the subset of the platform RPC surface the handler
// re-enters after classifying a payment.
type PlatformNotifier interface {
	NotifyOnchainFundsReceived(ctx context.Context, transactionID, stellarTransactionID, amount, asset, message string) error
	NotifyRefundSent(ctx context.Context, transactionID, refundID, amount, amountFee, asset, message string) error
	NotifyTransactionError(ctx context.Context, transactionID, message string) error
}

// Messages are the operator-configured texts attached to custody-driven
// notifications.
type Messages struct {
	PaymentReceived string
	PaymentFailed   string
}

// Handler classifies custody payment events and drives their side effects.
type Handler struct {
	repo     store.Repository
	platform PlatformNotifier
	metrics  *metrics.Metrics
	messages Messages
}

// NewHandler creates a custody payment handler.
func NewHandler(repo store.Repository, platform PlatformNotifier, m *metrics.Metrics, messages Messages) *Handler {
	return &Handler{repo: repo, platform: platform, metrics: m, messages: messages}
}

// HandleEvent processes one webhook observation. A returned error means the
// event was matched but its side effects did not complete, and the provider
// should redeliver; unmatched events are acknowledged and dropped.
func (h *Handler) HandleEvent(ctx context.Context, p domain.CustodyPayment) error {
	if !p.Success {
		return h.handleFailure(ctx, p)
	}
	if p.Direction == domain.CustodyPaymentOutgoing {
		log.Printf("level=debug component=custody_handler msg=\"outgoing payment observed; payout completion is business-server driven\" event_id=%s tx_hash=%s", p.EventID, p.TransactionHash)
		h.metrics.CountCustodyWebhook(outcomeOutgoing)
		return nil
	}
	return h.handleIncoming(ctx, p)
}

func (h *Handler) handleIncoming(ctx context.Context, p domain.CustodyPayment) error {
	ct, err := h.findCustodyTransaction(ctx, p)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return h.handleUnmatchedIncoming(ctx, p)
		}
		return fmt.Errorf("resolving custody record for event %s: %w", p.EventID, err)
	}

	if p.Asset != "" && ct.Asset != "" && p.Asset != ct.Asset {
		log.Printf("level=warn component=custody_handler msg=\"payment asset does not match custody record\" event_id=%s got=%s want=%s", p.EventID, p.Asset, ct.Asset)
		h.metrics.CountCustodyWebhook(outcomeAssetErrors)
		if err := h.repo.UpdateCustodyTransactionStatus(ctx, ct.ID, domain.CustodyStatusFailed); err != nil {
			return fmt.Errorf("marking custody record %s failed: %w", ct.ID, err)
		}
		return h.platform.NotifyTransactionError(ctx, ct.TransactionID,
			fmt.Sprintf("Payment asset[%s] does not match the expected asset[%s]", p.Asset, ct.Asset))
	}

	if h.isRefundResend(ct, p) {
		log.Printf("level=info component=custody_handler msg=\"payment on settled record classified as refund re-send\" event_id=%s transaction_id=%s", p.EventID, ct.TransactionID)
		refund := h.refundRecord(ct, p)
		if err := h.repo.CreateCustodyTransaction(ctx, refund); err != nil {
			return fmt.Errorf("persisting refund custody record for transaction %s: %w", ct.TransactionID, err)
		}
		if err := h.platform.NotifyRefundSent(ctx, ct.TransactionID, p.TransactionHash, p.Amount, ct.AmountFee, p.Asset, h.messages.PaymentReceived); err != nil {
			return fmt.Errorf("reporting refund for transaction %s: %w", ct.TransactionID, err)
		}
		h.metrics.CountCustodyWebhook(outcomeRefund)
		return nil
	}

	if err := h.repo.RecordCustodyPayment(ctx, ct.ID, p.TransactionHash, p.Amount, domain.CustodyStatusCompleted); err != nil {
		return fmt.Errorf("settling custody record %s: %w", ct.ID, err)
	}
	if err := h.platform.NotifyOnchainFundsReceived(ctx, ct.TransactionID, p.TransactionHash, p.Amount, p.Asset, h.messages.PaymentReceived); err != nil {
		return fmt.Errorf("reporting received funds for transaction %s: %w", ct.TransactionID, err)
	}

	h.metrics.CountCustodyWebhook(outcomePayment)
	h.metrics.AddPaymentReceived(p.Asset, p.Amount)
	return nil
}

// handleUnmatchedIncoming handles a payment with no prior custody record.
// Direct receive transactions take funds without a request_onchain_funds step,
// so the payment is matched to its transaction by memo and settled here;
// anything else is acknowledged and dropped.
func (h *Handler) handleUnmatchedIncoming(ctx context.Context, p domain.CustodyPayment) error {
	if p.Memo != "" {
		txn, err := h.repo.FindSep31TransactionByMemo(ctx, p.Memo, p.ToAccount)
		if err == nil {
			return h.settleDirectReceive(ctx, txn, p)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("resolving receive transaction for event %s: %w", p.EventID, err)
		}
	}
	log.Printf("level=warn component=custody_handler msg=\"no custody record matches incoming payment\" event_id=%s tx_hash=%s memo=%q", p.EventID, p.TransactionHash, p.Memo)
	h.metrics.CountCustodyWebhook(outcomeUnmatched)
	return nil
}

func (h *Handler) settleDirectReceive(ctx context.Context, txn *domain.Transaction, p domain.CustodyPayment) error {
	now := time.Now().UTC()
	ct := &domain.CustodyTransaction{
		ID:              uuid.NewString(),
		TransactionID:   txn.ID,
		Protocol:        txn.Protocol,
		Kind:            txn.Kind,
		Status:          domain.CustodyStatusCompleted,
		Amount:          p.Amount,
		AmountFee:       txn.AmountFee.Amount,
		Asset:           p.Asset,
		TransactionHash: p.TransactionHash,
		Memo:            p.Memo,
		MemoType:        txn.MemoType,
		FromAccount:     txn.SourceAccount,
		ToAccount:       p.ToAccount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.repo.CreateCustodyTransaction(ctx, ct); err != nil {
		return fmt.Errorf("persisting custody record for transaction %s: %w", txn.ID, err)
	}
	if err := h.platform.NotifyOnchainFundsReceived(ctx, txn.ID, p.TransactionHash, p.Amount, p.Asset, h.messages.PaymentReceived); err != nil {
		return fmt.Errorf("reporting received funds for transaction %s: %w", txn.ID, err)
	}

	h.metrics.CountCustodyWebhook(outcomePayment)
	h.metrics.AddPaymentReceived(p.Asset, p.Amount)
	return nil
}

// refundRecord builds the custody record persisted for a refund payout: the
// re-sent funds leave through the custody account, so the observation is kept
// alongside the original receipt.
func (h *Handler) refundRecord(ct *domain.CustodyTransaction, p domain.CustodyPayment) *domain.CustodyTransaction {
	now := time.Now().UTC()
	return &domain.CustodyTransaction{
		ID:              uuid.NewString(),
		TransactionID:   ct.TransactionID,
		Protocol:        ct.Protocol,
		Kind:            ct.Kind,
		Status:          domain.CustodyStatusCompleted,
		Amount:          p.Amount,
		AmountFee:       ct.AmountFee,
		Asset:           p.Asset,
		TransactionHash: p.TransactionHash,
		Memo:            p.Memo,
		MemoType:        ct.MemoType,
		FromAccount:     p.ToAccount,
		ToAccount:       ct.FromAccount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (h *Handler) handleFailure(ctx context.Context, p domain.CustodyPayment) error {
	ct, err := h.findCustodyTransaction(ctx, p)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("level=warn component=custody_handler msg=\"no custody record matches failed payment\" event_id=%s tx_hash=%s", p.EventID, p.TransactionHash)
			h.metrics.CountCustodyWebhook(outcomeUnmatched)
			return nil
		}
		return fmt.Errorf("resolving custody record for event %s: %w", p.EventID, err)
	}

	if err := h.repo.UpdateCustodyTransactionStatus(ctx, ct.ID, domain.CustodyStatusFailed); err != nil {
		return fmt.Errorf("marking custody record %s failed: %w", ct.ID, err)
	}
	message := h.messages.PaymentFailed
	if p.Message != "" {
		message = p.Message
	}
	if err := h.platform.NotifyTransactionError(ctx, ct.TransactionID, message); err != nil {
		return fmt.Errorf("reporting failed payment for transaction %s: %w", ct.TransactionID, err)
	}

	h.metrics.CountCustodyWebhook(outcomeFailed)
	return nil
}

// findCustodyTransaction resolves the custody record for an event, first by
// the ledger transaction hash, then by the (memo, destination) pair for
// payments observed before the hash was recorded.
func (h *Handler) findCustodyTransaction(ctx context.Context, p domain.CustodyPayment) (*domain.CustodyTransaction, error) {
	if p.TransactionHash != "" {
		ct, err := h.repo.FindCustodyTransactionByHash(ctx, p.TransactionHash)
		if err == nil {
			return ct, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if p.Memo == "" {
		return nil, store.ErrNotFound
	}
	return h.repo.FindCustodyTransactionByMemo(ctx, p.Memo, p.ToAccount)
}

// isRefundResend reports whether an incoming payment lands on a custody record
// that already settled: the sender pushed funds again after completion, and the
// anchor returns them instead of double-crediting.
func (h *Handler) isRefundResend(ct *domain.CustodyTransaction, p domain.CustodyPayment) bool {
	if ct.Status != domain.CustodyStatusCompleted {
		return false
	}
	paid, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return false
	}
	recorded, err := decimal.NewFromString(ct.Amount)
	if err != nil {
		return false
	}
	return paid.LessThanOrEqual(recorded)
}
