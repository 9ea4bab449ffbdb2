/**
 * @description
 * Event and wire-snapshot models. TransactionSnapshot is the canonical JSON shape
 * of a transaction as returned to RPC callers and embedded in published events;
 * AnchorEvent is the envelope handed to the event publisher after every
 * successful handler transition.
 */

package domain

import "time"

// AnchorEvent types. Transactions are created by the SEP endpoints upstream of
// this service, so every event published here is a status change.
const (
	EventTypeTransactionStatusChanged = "transaction_status_changed"
)

// TransactionSnapshot is the wire-level view of a transaction taken immediately
// after a handler's write. Field names are stable; do not rename.
type TransactionSnapshot struct {
	ID                    string               `json:"id"`
	Sep                   Protocol             `json:"sep"`
	Kind                  Kind                 `json:"kind"`
	Status                Status               `json:"status"`
	AmountExpected        *Amount              `json:"amount_expected,omitempty"`
	AmountIn              *Amount              `json:"amount_in,omitempty"`
	AmountOut             *Amount              `json:"amount_out,omitempty"`
	AmountFee             *Amount              `json:"amount_fee,omitempty"`
	StartedAt             time.Time            `json:"started_at"`
	UpdatedAt             *time.Time           `json:"updated_at,omitempty"`
	TransferReceivedAt    *time.Time           `json:"transfer_received_at,omitempty"`
	CompletedAt           *time.Time           `json:"completed_at,omitempty"`
	Message               string               `json:"message,omitempty"`
	StellarTransactions   []StellarTransaction `json:"stellar_transactions,omitempty"`
	ExternalTransactionID string               `json:"external_transaction_id,omitempty"`
	SourceAccount         string               `json:"source_account,omitempty"`
	DestinationAccount    string               `json:"destination_account,omitempty"`
	Memo                  string               `json:"memo,omitempty"`
	MemoType              string               `json:"memo_type,omitempty"`
}

// AnchorEvent is published to downstream consumers after every successful
// transition. A fresh id is generated per publish; the event is never retained
// by the core after hand-off.
type AnchorEvent struct {
	ID          string              `json:"id"`
	Type        string              `json:"type"`
	Sep         Protocol            `json:"sep"`
	Transaction TransactionSnapshot `json:"transaction"`
}

// snapshotAmount renders an amount pair for the wire: present whenever either
// part is known, so callers still see the asset when the amount itself has not
// been determined yet.
func snapshotAmount(a Amount) *Amount {
	if a.IsZero() {
		return nil
	}
	out := a
	return &out
}

// Snapshot builds the wire-level view of the transaction.
func (t *Transaction) Snapshot() TransactionSnapshot {
	s := TransactionSnapshot{
		ID:                    t.ID,
		Sep:                   t.Protocol,
		Kind:                  t.Kind,
		Status:                t.Status,
		AmountExpected:        snapshotAmount(t.AmountExpected),
		AmountIn:              snapshotAmount(t.AmountIn),
		AmountOut:             snapshotAmount(t.AmountOut),
		AmountFee:             snapshotAmount(t.AmountFee),
		StartedAt:             t.StartedAt,
		TransferReceivedAt:    t.TransferReceivedAt,
		CompletedAt:           t.CompletedAt,
		Message:               t.Message,
		StellarTransactions:   t.StellarTransactions,
		ExternalTransactionID: t.ExternalTransactionID,
		SourceAccount:         t.SourceAccount,
		DestinationAccount:    t.DestinationAccount,
		Memo:                  t.Memo,
		MemoType:              t.MemoType,
	}
	if !t.UpdatedAt.IsZero() {
		at := t.UpdatedAt
		s.UpdatedAt = &at
	}
	return s
}
