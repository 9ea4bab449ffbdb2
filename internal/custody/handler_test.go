package custody

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumenbridge/platform-service/internal/domain"
	"github.com/lumenbridge/platform-service/internal/metrics"
	"github.com/lumenbridge/platform-service/internal/store"
)

type recordedPayment struct {
	id     string
	hash   string
	amount string
	status string
}

type custodyRepoStub struct {
	store.Repository

	byHash     map[string]*domain.CustodyTransaction
	byMemo     map[string]*domain.CustodyTransaction
	sep31Memos map[string]*domain.Transaction

	payments      []recordedPayment
	created       []*domain.CustodyTransaction
	statusUpdates map[string]string
	updateErr     error
}

func (s *custodyRepoStub) FindCustodyTransactionByHash(ctx context.Context, hash string) (*domain.CustodyTransaction, error) {
	if ct, ok := s.byHash[hash]; ok {
		return ct, nil
	}
	return nil, store.ErrNotFound
}

func (s *custodyRepoStub) FindCustodyTransactionByMemo(ctx context.Context, memo, toAccount string) (*domain.CustodyTransaction, error) {
	if ct, ok := s.byMemo[memo]; ok {
		return ct, nil
	}
	return nil, store.ErrNotFound
}

func (s *custodyRepoStub) FindSep31TransactionByMemo(ctx context.Context, memo, toAccount string) (*domain.Transaction, error) {
	if txn, ok := s.sep31Memos[memo]; ok {
		return txn, nil
	}
	return nil, store.ErrNotFound
}

func (s *custodyRepoStub) CreateCustodyTransaction(ctx context.Context, ct *domain.CustodyTransaction) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.created = append(s.created, ct)
	return nil
}

func (s *custodyRepoStub) RecordCustodyPayment(ctx context.Context, id, transactionHash, amount, status string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.payments = append(s.payments, recordedPayment{id: id, hash: transactionHash, amount: amount, status: status})
	return nil
}

func (s *custodyRepoStub) UpdateCustodyTransactionStatus(ctx context.Context, id, status string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if s.statusUpdates == nil {
		s.statusUpdates = map[string]string{}
	}
	s.statusUpdates[id] = status
	return nil
}

type platformStub struct {
	receivedTxnID   string
	receivedHash    string
	receivedAmount  string
	receivedAsset   string
	receivedMessage string

	refundTxnID  string
	refundID     string
	refundAmount string
	refundFee    string

	errorTxnID   string
	errorMessage string

	notifyErr error
}

func (s *platformStub) NotifyOnchainFundsReceived(ctx context.Context, transactionID, stellarTransactionID, amount, asset, message string) error {
	s.receivedTxnID = transactionID
	s.receivedHash = stellarTransactionID
	s.receivedAmount = amount
	s.receivedAsset = asset
	s.receivedMessage = message
	return s.notifyErr
}

func (s *platformStub) NotifyRefundSent(ctx context.Context, transactionID, refundID, amount, amountFee, asset, message string) error {
	s.refundTxnID = transactionID
	s.refundID = refundID
	s.refundAmount = amount
	s.refundFee = amountFee
	return s.notifyErr
}

func (s *platformStub) NotifyTransactionError(ctx context.Context, transactionID, message string) error {
	s.errorTxnID = transactionID
	s.errorMessage = message
	return s.notifyErr
}

func testMessages() Messages {
	return Messages{PaymentReceived: "payment received", PaymentFailed: "payment failed"}
}

func custodyRecord(status string) *domain.CustodyTransaction {
	return &domain.CustodyTransaction{
		ID:            "ct-1",
		TransactionID: "tx-1",
		Protocol:      domain.ProtocolSep31,
		Kind:          domain.KindReceive,
		Status:        status,
		Amount:        "100",
		AmountFee:     "2",
		Asset:         "stellar:USDC:GA",
		Memo:          "39623",
		ToAccount:     "GCUSTODY",
		CreatedAt:     time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func incomingPayment(hash string) domain.CustodyPayment {
	return domain.CustodyPayment{
		EventID:         "evt-1",
		TransactionHash: hash,
		Direction:       domain.CustodyPaymentIncoming,
		Amount:          "100",
		Asset:           "stellar:USDC:GA",
		Memo:            "39623",
		ToAccount:       "GCUSTODY",
		Success:         true,
		ObservedAt:      time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC),
	}
}

func TestHandleEvent_IncomingPaymentSettlesCustodyRecord(t *testing.T) {
	repo := &custodyRepoStub{byHash: map[string]*domain.CustodyTransaction{"hash-1": custodyRecord(domain.CustodyStatusSubmitted)}}
	platform := &platformStub{}
	h := NewHandler(repo, platform, metrics.New(), testMessages())

	if err := h.HandleEvent(context.Background(), incomingPayment("hash-1")); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(repo.payments) != 1 {
		t.Fatalf("expected one recorded payment, got %d", len(repo.payments))
	}
	got := repo.payments[0]
	if got.id != "ct-1" || got.hash != "hash-1" || got.amount != "100" || got.status != domain.CustodyStatusCompleted {
		t.Fatalf("expected settled custody record with hash and amount, got %+v", got)
	}
	if platform.receivedTxnID != "tx-1" || platform.receivedHash != "hash-1" {
		t.Fatalf("expected received-funds notification, got %+v", platform)
	}
	if platform.receivedAmount != "100" || platform.receivedAsset != "stellar:USDC:GA" {
		t.Fatalf("expected the observed amount forwarded, got %q %q", platform.receivedAmount, platform.receivedAsset)
	}
	if platform.receivedMessage != "payment received" {
		t.Fatalf("expected configured message, got %q", platform.receivedMessage)
	}
}

func TestHandleEvent_MatchesByMemoWhenHashUnknown(t *testing.T) {
	repo := &custodyRepoStub{byMemo: map[string]*domain.CustodyTransaction{"39623": custodyRecord(domain.CustodyStatusCreated)}}
	platform := &platformStub{}
	h := NewHandler(repo, platform, metrics.New(), testMessages())

	if err := h.HandleEvent(context.Background(), incomingPayment("hash-unseen")); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if platform.receivedTxnID != "tx-1" {
		t.Fatal("expected memo match to settle the record")
	}
	if len(repo.payments) != 1 || repo.payments[0].hash != "hash-unseen" {
		t.Fatal("expected the observed hash recorded on the custody record")
	}
}

func TestHandleEvent_WithdrawalPaymentMatchesRequestedRecord(t *testing.T) {
	record := custodyRecord(domain.CustodyStatusCreated)
	record.Protocol = domain.ProtocolSep24
	record.Kind = domain.KindWithdrawal
	repo := &custodyRepoStub{byMemo: map[string]*domain.CustodyTransaction{"39623": record}}
	platform := &platformStub{}
	h := NewHandler(repo, platform, metrics.New(), testMessages())

	if err := h.HandleEvent(context.Background(), incomingPayment("hash-w1")); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if platform.receivedTxnID != "tx-1" || platform.receivedHash != "hash-w1" {
		t.Fatalf("expected the withdrawal payment reported as received funds, got %+v", platform)
	}
	if len(repo.payments) != 1 || repo.payments[0].status != domain.CustodyStatusCompleted {
		t.Fatal("expected the pending custody record settled")
	}
}

func TestHandleEvent_DirectReceivePaymentCreatesCustodyRecord(t *testing.T) {
	txn := &domain.Transaction{
		ID:        "tx-9",
		Protocol:  domain.ProtocolSep31,
		Kind:      domain.KindReceive,
		Status:    domain.StatusPendingSender,
		AmountFee: domain.Amount{Amount: "2", Asset: "stellar:USDC:GA"},
		Memo:      "71011",
		MemoType:  "id",
	}
	repo := &custodyRepoStub{sep31Memos: map[string]*domain.Transaction{"71011": txn}}
	platform := &platformStub{}
	h := NewHandler(repo, platform, metrics.New(), testMessages())

	payment := incomingPayment("hash-7")
	payment.Memo = "71011"
	if err := h.HandleEvent(context.Background(), payment); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected a custody record created for the receive, got %d", len(repo.created))
	}
	ct := repo.created[0]
	if ct.TransactionID != "tx-9" || ct.TransactionHash != "hash-7" || ct.Amount != "100" {
		t.Fatalf("expected the record to carry the payment details, got %+v", ct)
	}
	if ct.Status != domain.CustodyStatusCompleted || ct.Memo != "71011" {
		t.Fatalf("expected a settled record keyed by memo, got %+v", ct)
	}
	if platform.receivedTxnID != "tx-9" || platform.receivedAmount != "100" {
		t.Fatalf("expected received-funds notification for the receive, got %+v", platform)
	}
}

func TestHandleEvent_ResendOnSettledRecordBecomesRefund(t *testing.T) {
	repo := &custodyRepoStub{byHash: map[string]*domain.CustodyTransaction{"hash-2": custodyRecord(domain.CustodyStatusCompleted)}}
	platform := &platformStub{}
	h := NewHandler(repo, platform, metrics.New(), testMessages())

	payment := incomingPayment("hash-2")
	payment.Amount = "60"
	if err := h.HandleEvent(context.Background(), payment); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if platform.refundTxnID != "tx-1" || platform.refundID != "hash-2" || platform.refundAmount != "60" {
		t.Fatalf("expected refund notification, got %+v", platform)
	}
	if platform.refundFee != "2" {
		t.Fatalf("expected the recorded fee forwarded with the refund, got %q", platform.refundFee)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected the refund observation persisted, got %d records", len(repo.created))
	}
	refund := repo.created[0]
	if refund.TransactionID != "tx-1" || refund.Amount != "60" || refund.TransactionHash != "hash-2" {
		t.Fatalf("expected refund custody record with payment details, got %+v", refund)
	}
	if platform.receivedTxnID != "" {
		t.Fatal("did not expect a second received-funds notification")
	}
	if len(repo.payments) != 0 {
		t.Fatal("did not expect the settled custody record to change")
	}
}

func TestHandleEvent_LargerPaymentOnSettledRecordIsNewReceipt(t *testing.T) {
	repo := &custodyRepoStub{byHash: map[string]*domain.CustodyTransaction{"hash-2": custodyRecord(domain.CustodyStatusCompleted)}}
	platform := &platformStub{}
	h := NewHandler(repo, platform, metrics.New(), testMessages())

	payment := incomingPayment("hash-2")
	payment.Amount = "250"
	if err := h.HandleEvent(context.Background(), payment); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if platform.receivedTxnID != "tx-1" {
		t.Fatal("expected a payment above the recorded amount to be reported as received funds")
	}
	if platform.refundTxnID != "" {
		t.Fatal("did not expect a refund notification")
	}
}

func TestHandleEvent_FailedPaymentErrorsTransaction(t *testing.T) {
	repo := &custodyRepoStub{byHash: map[string]*domain.CustodyTransaction{"hash-3": custodyRecord(domain.CustodyStatusSubmitted)}}
	platform := &platformStub{}
	h := NewHandler(repo, platform, metrics.New(), testMessages())

	payment := incomingPayment("hash-3")
	payment.Success = false
	payment.Message = "tx_failed: op_no_trust"
	if err := h.HandleEvent(context.Background(), payment); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if repo.statusUpdates["ct-1"] != domain.CustodyStatusFailed {
		t.Fatalf("expected custody record failed, got %q", repo.statusUpdates["ct-1"])
	}
	if platform.errorTxnID != "tx-1" || platform.errorMessage != "tx_failed: op_no_trust" {
		t.Fatalf("expected error notification with provider message, got %+v", platform)
	}
}

func TestHandleEvent_FailedPaymentUsesConfiguredMessageWhenProviderSilent(t *testing.T) {
	repo := &custodyRepoStub{byHash: map[string]*domain.CustodyTransaction{"hash-3": custodyRecord(domain.CustodyStatusSubmitted)}}
	platform := &platformStub{}
	h := NewHandler(repo, platform, metrics.New(), testMessages())

	payment := incomingPayment("hash-3")
	payment.Success = false
	if err := h.HandleEvent(context.Background(), payment); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if platform.errorMessage != "payment failed" {
		t.Fatalf("expected configured failure message, got %q", platform.errorMessage)
	}
}

func TestHandleEvent_OutgoingPaymentIsIgnored(t *testing.T) {
	repo := &custodyRepoStub{byHash: map[string]*domain.CustodyTransaction{"hash-4": custodyRecord(domain.CustodyStatusSubmitted)}}
	platform := &platformStub{}
	h := NewHandler(repo, platform, metrics.New(), testMessages())

	payment := incomingPayment("hash-4")
	payment.Direction = domain.CustodyPaymentOutgoing
	if err := h.HandleEvent(context.Background(), payment); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if platform.receivedTxnID != "" || platform.errorTxnID != "" || platform.refundTxnID != "" {
		t.Fatal("did not expect any platform notification for an outgoing payment")
	}
	if len(repo.payments) != 0 || len(repo.statusUpdates) != 0 {
		t.Fatal("did not expect custody record changes for an outgoing payment")
	}
}

func TestHandleEvent_UnmatchedPaymentIsAcknowledged(t *testing.T) {
	repo := &custodyRepoStub{}
	platform := &platformStub{}
	h := NewHandler(repo, platform, metrics.New(), testMessages())

	payment := incomingPayment("hash-unknown")
	payment.Memo = ""
	if err := h.HandleEvent(context.Background(), payment); err != nil {
		t.Fatalf("expected unmatched payment to be acknowledged, got %v", err)
	}

	// A memo that resolves to nothing is also dropped.
	payment = incomingPayment("hash-unknown")
	if err := h.HandleEvent(context.Background(), payment); err != nil {
		t.Fatalf("expected payment with unknown memo to be acknowledged, got %v", err)
	}
	if platform.receivedTxnID != "" {
		t.Fatal("did not expect a notification for an unmatched payment")
	}
	if len(repo.created) != 0 {
		t.Fatal("did not expect a custody record for an unmatched payment")
	}
}

func TestHandleEvent_AssetMismatchFailsCustodyRecord(t *testing.T) {
	repo := &custodyRepoStub{byHash: map[string]*domain.CustodyTransaction{"hash-5": custodyRecord(domain.CustodyStatusSubmitted)}}
	platform := &platformStub{}
	h := NewHandler(repo, platform, metrics.New(), testMessages())

	payment := incomingPayment("hash-5")
	payment.Asset = "stellar:XLM"
	if err := h.HandleEvent(context.Background(), payment); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if repo.statusUpdates["ct-1"] != domain.CustodyStatusFailed {
		t.Fatal("expected custody record failed on asset mismatch")
	}
	if platform.errorTxnID != "tx-1" {
		t.Fatal("expected error notification on asset mismatch")
	}
}

func TestHandleEvent_NotificationFailureBubblesForRedelivery(t *testing.T) {
	repo := &custodyRepoStub{byHash: map[string]*domain.CustodyTransaction{"hash-6": custodyRecord(domain.CustodyStatusSubmitted)}}
	platform := &platformStub{notifyErr: errors.New("platform unreachable")}
	h := NewHandler(repo, platform, metrics.New(), testMessages())

	if err := h.HandleEvent(context.Background(), incomingPayment("hash-6")); err == nil {
		t.Fatal("expected notification failure to surface so the provider redelivers")
	}
}
