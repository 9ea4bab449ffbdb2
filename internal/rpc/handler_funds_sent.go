/**
 * @description
 * Handlers for the two funds-sent notifications, both of which complete a
 * transaction. notify_onchain_funds_sent reports the custody payout landed on
 * the ledger: the ledger transaction is resolved from Horizon and attached so
 * the completed record carries its canonical payment history.
 * notify_offchain_funds_sent reports the off-chain leg settled, optionally with
 * the external rail's reference and settlement time.
 */

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumenbridge/platform-service/internal/domain"
)

type notifyOnchainFundsSentHandler struct {
	core
}

func newNotifyOnchainFundsSentHandler(deps Deps) *notifyOnchainFundsSentHandler {
	return &notifyOnchainFundsSentHandler{core{deps: deps}}
}

func (h *notifyOnchainFundsSentHandler) Method() string { return MethodNotifyOnchainFundsSent }

func (h *notifyOnchainFundsSentHandler) Handle(ctx context.Context, raw json.RawMessage) (*domain.Transaction, error) {
	var p NotifyOnchainFundsSentParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.StellarTransactionID == "" {
		return nil, NewInvalidParams("stellar_transaction_id is required")
	}

	spec := transitionSpec{
		protocols: []domain.Protocol{domain.ProtocolSep24},
		supports: func(txn *domain.Transaction) bool {
			return txn.Kind == domain.KindDeposit &&
				statusIn(txn.Status, domain.StatusPendingStellar, domain.StatusPendingAnchor)
		},
		transition: func(ctx context.Context, txn *domain.Transaction) error {
			ledgerTxn, err := h.deps.Ledger.GetTransaction(ctx, p.StellarTransactionID)
			if err != nil {
				return NewInternalError(fmt.Sprintf("Failed to retrieve Stellar transaction by ID[%s]", p.StellarTransactionID), err)
			}
			txn.StellarTransactionID = ledgerTxn.ID
			txn.AttachStellarTransaction(*ledgerTxn)
			txn.Status = domain.StatusCompleted
			return nil
		},
	}
	return h.execute(ctx, h.Method(), p.BaseParams, spec)
}

type notifyOffchainFundsSentHandler struct {
	core
}

func newNotifyOffchainFundsSentHandler(deps Deps) *notifyOffchainFundsSentHandler {
	return &notifyOffchainFundsSentHandler{core{deps: deps}}
}

func (h *notifyOffchainFundsSentHandler) Method() string { return MethodNotifyOffchainFundsSent }

func (h *notifyOffchainFundsSentHandler) Handle(ctx context.Context, raw json.RawMessage) (*domain.Transaction, error) {
	var p NotifyOffchainFundsSentParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}

	var sentAt *time.Time
	if p.FundsSentAt != "" {
		at, err := time.Parse(time.RFC3339, p.FundsSentAt)
		if err != nil {
			return nil, NewInvalidParams("funds_sent_at is not a valid RFC-3339 timestamp")
		}
		utc := at.UTC()
		sentAt = &utc
	}

	spec := transitionSpec{
		protocols: []domain.Protocol{domain.ProtocolSep24, domain.ProtocolSep31},
		supports: func(txn *domain.Transaction) bool {
			switch txn.Protocol {
			case domain.ProtocolSep24:
				return txn.Kind == domain.KindWithdrawal &&
					statusIn(txn.Status, domain.StatusPendingAnchor, domain.StatusPendingExternal)
			case domain.ProtocolSep31:
				return txn.Kind == domain.KindReceive && txn.Status == domain.StatusPendingReceiver
			}
			return false
		},
		transition: func(ctx context.Context, txn *domain.Transaction) error {
			if p.ExternalTransactionID != "" {
				txn.ExternalTransactionID = p.ExternalTransactionID
			}
			if sentAt != nil {
				txn.CompletedAt = sentAt
			}
			txn.Status = domain.StatusCompleted
			return nil
		},
	}
	return h.execute(ctx, h.Method(), p.BaseParams, spec)
}
