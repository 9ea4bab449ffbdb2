/**
 * @description
 * Handlers for the two request-funds actions. Both move an interactive-flow
 * transaction into pending_user_transfer_start, signalling that the anchor is
 * ready for the user to deliver funds. request_offchain_funds applies to
 * deposits (the user pays off-chain); request_onchain_funds applies to
 * withdrawals and additionally pins the Stellar account and memo the user must
 * pay into, registering a custody record so the incoming payment can be
 * matched when it lands.
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

type requestOffchainFundsHandler struct {
	core
}

func newRequestOffchainFundsHandler(deps Deps) *requestOffchainFundsHandler {
	return &requestOffchainFundsHandler{core{deps: deps}}
}

func (h *requestOffchainFundsHandler) Method() string { return MethodRequestOffchainFunds }

func (h *requestOffchainFundsHandler) Handle(ctx context.Context, raw json.RawMessage) (*domain.Transaction, error) {
	var p RequestOffchainFundsParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}

	spec := transitionSpec{
		protocols: []domain.Protocol{domain.ProtocolSep24},
		supports: func(txn *domain.Transaction) bool {
			return txn.Kind == domain.KindDeposit &&
				statusIn(txn.Status, domain.StatusIncomplete, domain.StatusPendingAnchor)
		},
		transition: func(ctx context.Context, txn *domain.Transaction) error {
			if err := validateAmounts(p.AmountsParams); err != nil {
				return err
			}
			applyAmounts(txn, p.AmountsParams)
			txn.Status = domain.StatusPendingUserTransferStart
			return nil
		},
	}
	return h.execute(ctx, h.Method(), p.BaseParams, spec)
}

type requestOnchainFundsHandler struct {
	core
}

func newRequestOnchainFundsHandler(deps Deps) *requestOnchainFundsHandler {
	return &requestOnchainFundsHandler{core{deps: deps}}
}

func (h *requestOnchainFundsHandler) Method() string { return MethodRequestOnchainFunds }

func (h *requestOnchainFundsHandler) Handle(ctx context.Context, raw json.RawMessage) (*domain.Transaction, error) {
	var p RequestOnchainFundsParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}

	spec := transitionSpec{
		protocols: []domain.Protocol{domain.ProtocolSep24},
		supports: func(txn *domain.Transaction) bool {
			return txn.Kind == domain.KindWithdrawal &&
				statusIn(txn.Status, domain.StatusIncomplete, domain.StatusPendingAnchor)
		},
		transition: func(ctx context.Context, txn *domain.Transaction) error {
			if err := validateAmounts(p.AmountsParams); err != nil {
				return err
			}
			applyAmounts(txn, p.AmountsParams)
			if p.DestinationAccount != "" {
				txn.DestinationAccount = p.DestinationAccount
			}
			if p.Memo != "" {
				txn.Memo = p.Memo
				txn.MemoType = p.MemoType
				if txn.MemoType == "" {
					txn.MemoType = "text"
				}
			}
			txn.Status = domain.StatusPendingUserTransferStart

			// Register the expected inbound payment so the custody webhook
			// can match it by hash or memo when it lands.
			now := time.Now().UTC()
			ct := &domain.CustodyTransaction{
				ID:            uuid.NewString(),
				TransactionID: txn.ID,
				Protocol:      txn.Protocol,
				Kind:          txn.Kind,
				Status:        domain.CustodyStatusCreated,
				Amount:        txn.AmountIn.Amount,
				AmountFee:     txn.AmountFee.Amount,
				Asset:         txn.AmountIn.Asset,
				Memo:          txn.Memo,
				MemoType:      txn.MemoType,
				ToAccount:     txn.DestinationAccount,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := h.deps.Repo.CreateCustodyTransaction(ctx, ct); err != nil {
				return NewInternalError(fmt.Sprintf("Failed to create custody transaction for transaction with id[%s]", txn.ID), err)
			}
			return nil
		},
	}
	return h.execute(ctx, h.Method(), p.BaseParams, spec)
}
