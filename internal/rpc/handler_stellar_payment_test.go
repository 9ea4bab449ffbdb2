package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/lumenbridge/platform-service/internal/domain"
)

func paidDeposit(id string) *domain.Transaction {
	txn := sep24Deposit(id, domain.StatusPendingAnchor)
	receivedAt := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	txn.TransferReceivedAt = &receivedAt
	txn.AmountOut = domain.Amount{Amount: "95", Asset: "stellar:USDC:GA"}
	txn.AmountFee = domain.Amount{Amount: "5", Asset: "iso4217:USD"}
	txn.DestinationAccount = "GDEST"
	txn.Memo = "12345"
	txn.MemoType = "id"
	return txn
}

func TestDoStellarPayment_CreatesCustodyRecordWhenTrustlineExists(t *testing.T) {
	txn := paidDeposit("tx-1")
	repo := &repoStub{sep24: map[string]*domain.Transaction{"tx-1": txn}}
	deps, _ := newTestDeps(repo, &ledgerStub{trusts: true})
	h := newDoStellarPaymentHandler(deps)

	got, err := h.Handle(context.Background(), mustParams(t, DoStellarPaymentParams{
		BaseParams: BaseParams{TransactionID: "tx-1"},
	}))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got.Status != domain.StatusPendingStellar {
		t.Fatalf("expected pending_stellar, got %q", got.Status)
	}
	ct := repo.custodyCreated
	if ct == nil {
		t.Fatal("expected a custody transaction record")
	}
	if ct.TransactionID != "tx-1" || ct.Status != domain.CustodyStatusCreated {
		t.Fatalf("unexpected custody record %+v", ct)
	}
	if ct.Amount != "95" || ct.Asset != "stellar:USDC:GA" || ct.ToAccount != "GDEST" {
		t.Fatalf("expected custody record built from the payout leg, got %+v", ct)
	}
	if ct.Memo != "12345" || ct.MemoType != "id" {
		t.Fatalf("expected memo carried onto the custody record, got %+v", ct)
	}
	if repo.pendingTrustSaved {
		t.Fatal("did not expect a pending trust row when the trustline exists")
	}
}

func TestDoStellarPayment_ParksDepositWhenTrustlineMissing(t *testing.T) {
	txn := paidDeposit("tx-1")
	repo := &repoStub{sep24: map[string]*domain.Transaction{"tx-1": txn}}
	deps, _ := newTestDeps(repo, &ledgerStub{trusts: false})
	h := newDoStellarPaymentHandler(deps)

	got, err := h.Handle(context.Background(), mustParams(t, DoStellarPaymentParams{
		BaseParams: BaseParams{TransactionID: "tx-1"},
	}))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got.Status != domain.StatusPendingTrust {
		t.Fatalf("expected pending_trust, got %q", got.Status)
	}
	if !repo.pendingTrustSaved || repo.pendingTrustTxnID != "tx-1" {
		t.Fatal("expected a pending trust bookkeeping row")
	}
	if repo.custodyCreated != nil {
		t.Fatal("did not expect a custody record before trust is established")
	}
}

func TestDoStellarPayment_RejectsPayoutBeforeFundsReceived(t *testing.T) {
	txn := sep24Deposit("tx-1", domain.StatusPendingAnchor)
	repo := &repoStub{sep24: map[string]*domain.Transaction{"tx-1": txn}}
	deps, _ := newTestDeps(repo, &ledgerStub{trusts: true})
	h := newDoStellarPaymentHandler(deps)

	_, err := h.Handle(context.Background(), mustParams(t, DoStellarPaymentParams{
		BaseParams: BaseParams{TransactionID: "tx-1"},
	}))
	requireErrorMessage(t, err, "The transaction with id[tx-1] cannot be paid out before off-chain funds are received")
	if repo.savedSep24 != nil {
		t.Fatal("did not expect a commit")
	}
}

func TestDoStellarPayment_RejectsWithdrawal(t *testing.T) {
	txn := sep24Withdrawal("tx-2", domain.StatusPendingAnchor)
	repo := &repoStub{sep24: map[string]*domain.Transaction{"tx-2": txn}}
	deps, _ := newTestDeps(repo, &ledgerStub{trusts: true})
	h := newDoStellarPaymentHandler(deps)

	_, err := h.Handle(context.Background(), mustParams(t, DoStellarPaymentParams{
		BaseParams: BaseParams{TransactionID: "tx-2"},
	}))
	requireErrorMessage(t, err,
		"Action[do_stellar_payment] is not supported for status[pending_anchor], kind[withdrawal] and protocol[24]")
}
