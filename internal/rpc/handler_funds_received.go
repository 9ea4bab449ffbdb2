/**
 * @description
 * Handlers for the two funds-received notifications. notify_onchain_funds_received
 * records that the user's Stellar payment landed: it resolves the ledger
 * transaction from Horizon, attaches the canonical payment record, and stamps
 * transfer_received_at from the ledger's own timestamp. notify_offchain_funds_received
 * records an off-chain settlement (bank rail, card) against a deposit. Both
 * accept the all/none/only-amount_in reconciliation overrides.
 */

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumenbridge/platform-service/internal/domain"
)

type notifyOnchainFundsReceivedHandler struct {
	core
}

func newNotifyOnchainFundsReceivedHandler(deps Deps) *notifyOnchainFundsReceivedHandler {
	return &notifyOnchainFundsReceivedHandler{core{deps: deps}}
}

func (h *notifyOnchainFundsReceivedHandler) Method() string { return MethodNotifyOnchainFundsReceived }

func (h *notifyOnchainFundsReceivedHandler) Handle(ctx context.Context, raw json.RawMessage) (*domain.Transaction, error) {
	var p NotifyOnchainFundsReceivedParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.StellarTransactionID == "" {
		return nil, NewInvalidParams("stellar_transaction_id is required")
	}

	spec := transitionSpec{
		protocols: []domain.Protocol{domain.ProtocolSep24, domain.ProtocolSep31},
		supports: func(txn *domain.Transaction) bool {
			switch txn.Protocol {
			case domain.ProtocolSep24:
				return txn.Kind == domain.KindWithdrawal && txn.Status == domain.StatusPendingUserTransferStart
			case domain.ProtocolSep31:
				return txn.Kind == domain.KindReceive && txn.Status == domain.StatusPendingSender
			}
			return false
		},
		transition: func(ctx context.Context, txn *domain.Transaction) error {
			if err := validateAmounts(p.AmountsParams); err != nil {
				return err
			}
			ledgerTxn, err := h.deps.Ledger.GetTransaction(ctx, p.StellarTransactionID)
			if err != nil {
				return NewInternalError(fmt.Sprintf("Failed to retrieve Stellar transaction by ID[%s]", p.StellarTransactionID), err)
			}

			applyAmounts(txn, p.AmountsParams)
			txn.StellarTransactionID = ledgerTxn.ID
			txn.AttachStellarTransaction(*ledgerTxn)
			if ledgerTxn.CreatedAt != nil {
				at := *ledgerTxn.CreatedAt
				txn.TransferReceivedAt = &at
			}

			if txn.Protocol == domain.ProtocolSep31 {
				txn.Status = domain.StatusPendingReceiver
			} else {
				txn.Status = domain.StatusPendingAnchor
			}
			return nil
		},
	}
	return h.execute(ctx, h.Method(), p.BaseParams, spec)
}

type notifyOffchainFundsReceivedHandler struct {
	core
}

func newNotifyOffchainFundsReceivedHandler(deps Deps) *notifyOffchainFundsReceivedHandler {
	return &notifyOffchainFundsReceivedHandler{core{deps: deps}}
}

func (h *notifyOffchainFundsReceivedHandler) Method() string {
	return MethodNotifyOffchainFundsReceived
}

func (h *notifyOffchainFundsReceivedHandler) Handle(ctx context.Context, raw json.RawMessage) (*domain.Transaction, error) {
	var p NotifyOffchainFundsReceivedParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	spec := transitionSpec{
		protocols: []domain.Protocol{domain.ProtocolSep24},
		supports: func(txn *domain.Transaction) bool {
			return txn.Kind == domain.KindDeposit &&
				statusIn(txn.Status, domain.StatusPendingUserTransferStart, domain.StatusPendingExternal)
		},
		transition: func(ctx context.Context, txn *domain.Transaction) error {
			if err := validateAmounts(p.AmountsParams); err != nil {
				return err
			}
			var receivedAt *time.Time
			if p.FundsReceivedAt != "" {
				at, err := time.Parse(time.RFC3339, p.FundsReceivedAt)
				if err != nil {
					return NewInvalidParams("funds_received_at is not a valid RFC-3339 timestamp")
				}
				utc := at.UTC()
				receivedAt = &utc
			}
			applyAmounts(txn, p.AmountsParams)
			if p.ExternalTransactionID != "" {
				txn.ExternalTransactionID = p.ExternalTransactionID
			}
			if receivedAt != nil {
				txn.TransferReceivedAt = receivedAt
			} else {
				now := time.Now().UTC()
				txn.TransferReceivedAt = &now
			}
			txn.Status = domain.StatusPendingAnchor
			return nil
		},
	}
	return h.execute(ctx, h.Method(), p.BaseParams, spec)
}
