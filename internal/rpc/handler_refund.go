/**
 * @description
 * Handler for notify_refund_sent: the anchor reports that it returned received
 * funds to the sender. Refunds aggregate: each report adds its amount plus fee
 * to the running refunded total, measured against amount_in. A total equal to
 * amount_in finishes the transaction as refunded; a smaller total returns it to
 * pending_anchor to await further action; a larger total is rejected before any
 * state changes.
 */

package rpc

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/lumenbridge/platform-service/internal/domain"
)

type notifyRefundSentHandler struct {
	core
}

func newNotifyRefundSentHandler(deps Deps) *notifyRefundSentHandler {
	return &notifyRefundSentHandler{core{deps: deps}}
}

func (h *notifyRefundSentHandler) Method() string { return MethodNotifyRefundSent }

func (h *notifyRefundSentHandler) Handle(ctx context.Context, raw json.RawMessage) (*domain.Transaction, error) {
	var p NotifyRefundSentParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Refund == nil || p.Refund.Amount == nil {
		return nil, NewInvalidParams("refund.amount is required")
	}
	if err := validatePositive(p.Refund.Amount, "refund.amount"); err != nil {
		return nil, err
	}
	if err := validateNonNegative(p.Refund.AmountFee, "refund.amount_fee"); err != nil {
		return nil, err
	}

	spec := transitionSpec{
		protocols: []domain.Protocol{domain.ProtocolSep24, domain.ProtocolSep31},
		supports: func(txn *domain.Transaction) bool {
			switch txn.Protocol {
			case domain.ProtocolSep24:
				return txn.Kind == domain.KindWithdrawal &&
					statusIn(txn.Status, domain.StatusPendingAnchor, domain.StatusPendingStellar)
			case domain.ProtocolSep31:
				return txn.Kind == domain.KindReceive && txn.Status == domain.StatusPendingReceiver
			}
			return false
		},
		transition: func(ctx context.Context, txn *domain.Transaction) error {
			if p.Refund.Amount.Asset != "" && p.Refund.Amount.Asset != txn.AmountIn.Asset {
				return NewInvalidParams("refund.amount.asset does not match the transaction amount_in asset")
			}

			amountIn, err := decimal.NewFromString(txn.AmountIn.Amount)
			if err != nil {
				return NewInvalidRequest("Transaction amount_in is not set")
			}

			refund, _ := decimal.NewFromString(p.Refund.Amount.Amount)
			if p.Refund.AmountFee != nil {
				fee, _ := decimal.NewFromString(p.Refund.AmountFee.Amount)
				refund = refund.Add(fee)
			}

			total := refund
			if txn.RefundedAmount.Amount != "" {
				prior, err := decimal.NewFromString(txn.RefundedAmount.Amount)
				if err == nil {
					total = total.Add(prior)
				}
			}

			if total.GreaterThan(amountIn) {
				return NewInvalidParams("Refund amount exceeds amount_in")
			}

			txn.RefundedAmount = domain.Amount{Amount: total.String(), Asset: txn.AmountIn.Asset}
			if total.Equal(amountIn) {
				txn.Status = domain.StatusRefunded
			} else {
				txn.Status = domain.StatusPendingAnchor
			}
			return nil
		},
	}
	return h.execute(ctx, h.Method(), p.BaseParams, spec)
}
