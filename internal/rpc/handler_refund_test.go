package rpc

import (
	"context"
	"testing"

	"github.com/lumenbridge/platform-service/internal/domain"
)

func refundableWithdrawal(id string) *domain.Transaction {
	txn := sep24Withdrawal(id, domain.StatusPendingAnchor)
	txn.AmountIn = domain.Amount{Amount: "100", Asset: "stellar:USDC:GA"}
	return txn
}

func TestNotifyRefundSent_FullRefundFinishesTransaction(t *testing.T) {
	txn := refundableWithdrawal("tx-1")
	repo := &repoStub{sep24: map[string]*domain.Transaction{"tx-1": txn}}
	deps, _ := newTestDeps(repo, nil)
	h := newNotifyRefundSentHandler(deps)

	got, err := h.Handle(context.Background(), mustParams(t, NotifyRefundSentParams{
		BaseParams: BaseParams{TransactionID: "tx-1"},
		Refund: &RefundRequest{
			ID:        "refund-1",
			Amount:    &AmountRequest{Amount: "95", Asset: "stellar:USDC:GA"},
			AmountFee: &AmountRequest{Amount: "5", Asset: "stellar:USDC:GA"},
		},
	}))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got.Status != domain.StatusRefunded {
		t.Fatalf("expected refunded, got %q", got.Status)
	}
	if got.RefundedAmount.Amount != "100" {
		t.Fatalf("expected refunded total 100, got %q", got.RefundedAmount.Amount)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at stamped on the refunded terminal state")
	}
}

func TestNotifyRefundSent_PartialRefundReturnsToPendingAnchor(t *testing.T) {
	txn := refundableWithdrawal("tx-1")
	repo := &repoStub{sep24: map[string]*domain.Transaction{"tx-1": txn}}
	deps, _ := newTestDeps(repo, nil)
	h := newNotifyRefundSentHandler(deps)

	got, err := h.Handle(context.Background(), mustParams(t, NotifyRefundSentParams{
		BaseParams: BaseParams{TransactionID: "tx-1"},
		Refund: &RefundRequest{
			ID:     "refund-1",
			Amount: &AmountRequest{Amount: "40", Asset: "stellar:USDC:GA"},
		},
	}))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got.Status != domain.StatusPendingAnchor {
		t.Fatalf("expected pending_anchor, got %q", got.Status)
	}
	if got.RefundedAmount.Amount != "40" {
		t.Fatalf("expected refunded total 40, got %q", got.RefundedAmount.Amount)
	}
}

func TestNotifyRefundSent_AggregatesAcrossReports(t *testing.T) {
	txn := refundableWithdrawal("tx-1")
	txn.RefundedAmount = domain.Amount{Amount: "40", Asset: "stellar:USDC:GA"}
	repo := &repoStub{sep24: map[string]*domain.Transaction{"tx-1": txn}}
	deps, _ := newTestDeps(repo, nil)
	h := newNotifyRefundSentHandler(deps)

	got, err := h.Handle(context.Background(), mustParams(t, NotifyRefundSentParams{
		BaseParams: BaseParams{TransactionID: "tx-1"},
		Refund: &RefundRequest{
			ID:     "refund-2",
			Amount: &AmountRequest{Amount: "60", Asset: "stellar:USDC:GA"},
		},
	}))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got.Status != domain.StatusRefunded {
		t.Fatalf("expected refunded after cumulative total reaches amount_in, got %q", got.Status)
	}
	if got.RefundedAmount.Amount != "100" {
		t.Fatalf("expected refunded total 100, got %q", got.RefundedAmount.Amount)
	}
}

func TestNotifyRefundSent_RejectsExcessRefund(t *testing.T) {
	txn := refundableWithdrawal("tx-1")
	txn.RefundedAmount = domain.Amount{Amount: "80", Asset: "stellar:USDC:GA"}
	repo := &repoStub{sep24: map[string]*domain.Transaction{"tx-1": txn}}
	deps, _ := newTestDeps(repo, nil)
	h := newNotifyRefundSentHandler(deps)

	_, err := h.Handle(context.Background(), mustParams(t, NotifyRefundSentParams{
		BaseParams: BaseParams{TransactionID: "tx-1"},
		Refund: &RefundRequest{
			ID:     "refund-2",
			Amount: &AmountRequest{Amount: "30", Asset: "stellar:USDC:GA"},
		},
	}))
	requireErrorMessage(t, err, "Refund amount exceeds amount_in")
	if repo.savedSep24 != nil {
		t.Fatal("did not expect a commit for a rejected refund")
	}
	if txn.RefundedAmount.Amount != "80" {
		t.Fatalf("expected refunded total untouched, got %q", txn.RefundedAmount.Amount)
	}
}

func TestNotifyRefundSent_RejectsAssetMismatch(t *testing.T) {
	txn := refundableWithdrawal("tx-1")
	repo := &repoStub{sep24: map[string]*domain.Transaction{"tx-1": txn}}
	deps, _ := newTestDeps(repo, nil)
	h := newNotifyRefundSentHandler(deps)

	_, err := h.Handle(context.Background(), mustParams(t, NotifyRefundSentParams{
		BaseParams: BaseParams{TransactionID: "tx-1"},
		Refund: &RefundRequest{
			ID:     "refund-1",
			Amount: &AmountRequest{Amount: "10", Asset: "stellar:XLM"},
		},
	}))
	requireErrorMessage(t, err, "refund.amount.asset does not match the transaction amount_in asset")
}

func TestNotifyRefundSent_RequiresRefund(t *testing.T) {
	deps, _ := newTestDeps(&repoStub{}, nil)
	h := newNotifyRefundSentHandler(deps)

	_, err := h.Handle(context.Background(), mustParams(t, NotifyRefundSentParams{
		BaseParams: BaseParams{TransactionID: "tx-1"},
	}))
	requireErrorMessage(t, err, "refund.amount is required")
}

func TestNotifyRefundSent_RefundsSep31Receive(t *testing.T) {
	txn := sep31Receive("tx-31", domain.StatusPendingReceiver)
	txn.AmountIn = domain.Amount{Amount: "50", Asset: "stellar:USDC:GA"}
	repo := &repoStub{sep31: map[string]*domain.Transaction{"tx-31": txn}}
	deps, _ := newTestDeps(repo, nil)
	h := newNotifyRefundSentHandler(deps)

	got, err := h.Handle(context.Background(), mustParams(t, NotifyRefundSentParams{
		BaseParams: BaseParams{TransactionID: "tx-31"},
		Refund: &RefundRequest{
			ID:     "refund-1",
			Amount: &AmountRequest{Amount: "50", Asset: "stellar:USDC:GA"},
		},
	}))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got.Status != domain.StatusRefunded {
		t.Fatalf("expected refunded, got %q", got.Status)
	}
}
