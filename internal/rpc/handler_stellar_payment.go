/**
 * @description
 * Handler for do_stellar_payment: the business server asks the anchor to pay
 * out a deposit on-chain through the custody account. When the destination
 * already trusts the asset, a custody transaction record is created for the
 * webhook to reconcile against and the transaction moves to pending_stellar.
 * When the trustline is missing the deposit is parked in pending_trust with a
 * bookkeeping row, to be retried once the user establishes trust.
 */

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenbridge/platform-service/internal/domain"
)

type doStellarPaymentHandler struct {
	core
}

func newDoStellarPaymentHandler(deps Deps) *doStellarPaymentHandler {
	return &doStellarPaymentHandler{core{deps: deps}}
}

func (h *doStellarPaymentHandler) Method() string { return MethodDoStellarPayment }

func (h *doStellarPaymentHandler) Handle(ctx context.Context, raw json.RawMessage) (*domain.Transaction, error) {
	var p DoStellarPaymentParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}

	spec := transitionSpec{
		protocols: []domain.Protocol{domain.ProtocolSep24},
		supports: func(txn *domain.Transaction) bool {
			return txn.Kind == domain.KindDeposit && txn.Status == domain.StatusPendingAnchor
		},
		transition: func(ctx context.Context, txn *domain.Transaction) error {
			if txn.TransferReceivedAt == nil {
				return NewInvalidRequest(fmt.Sprintf(
					"The transaction with id[%s] cannot be paid out before off-chain funds are received", txn.ID))
			}

			trusts, err := h.deps.Ledger.HasTrustline(ctx, txn.DestinationAccount, txn.AmountOut.Asset)
			if err != nil {
				return NewInternalError(fmt.Sprintf(
					"Failed to check trustline for account[%s]", txn.DestinationAccount), err)
			}

			if !trusts {
				if err := h.deps.Repo.SavePendingTrust(ctx, txn.ID, txn.DestinationAccount, txn.AmountOut.Asset); err != nil {
					return NewInternalError(fmt.Sprintf(
						"Failed to record pending trust for transaction with id[%s]", txn.ID), err)
				}
				txn.Status = domain.StatusPendingTrust
				return nil
			}

			now := time.Now().UTC()
			ct := &domain.CustodyTransaction{
				ID:            uuid.NewString(),
				TransactionID: txn.ID,
				Protocol:      txn.Protocol,
				Kind:          txn.Kind,
				Status:        domain.CustodyStatusCreated,
				Amount:        txn.AmountOut.Amount,
				AmountFee:     txn.AmountFee.Amount,
				Asset:         txn.AmountOut.Asset,
				Memo:          txn.Memo,
				MemoType:      txn.MemoType,
				ToAccount:     txn.DestinationAccount,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := h.deps.Repo.CreateCustodyTransaction(ctx, ct); err != nil {
				return NewInternalError(fmt.Sprintf(
					"Failed to create custody transaction for transaction with id[%s]", txn.ID), err)
			}

			txn.Status = domain.StatusPendingStellar
			return nil
		},
	}
	return h.execute(ctx, h.Method(), p.BaseParams, spec)
}
