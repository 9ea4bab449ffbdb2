/**
 * @description
 * This file defines the core domain models for the platform-service. These structs
 * represent the anchor transaction records persisted per protocol, the monetary
 * value objects attached to them, and the canonical Stellar payment records built
 * from ledger operations.
 *
 * @notes
 * - Amounts are kept as decimal strings end to end. All arithmetic and sign checks
 *   go through shopspring/decimal; floats are never used for money.
 * - A transaction's Protocol and Kind are fixed at creation. Status only moves
 *   through an RPC action handler.
 */

package domain

import (
	"encoding/json"
	"time"
)

// Protocol identifies which anchor sub-protocol created a transaction.
type Protocol string

const (
	ProtocolSep24 Protocol = "24" // interactive deposit/withdrawal flow
	ProtocolSep31 Protocol = "31" // direct receive flow
)

// Kind is the direction/purpose of a transaction, fixed at creation.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindReceive    Kind = "receive"
)

// Status is an element of the protocol-specific transaction state set.
type Status string

const (
	StatusIncomplete                  Status = "incomplete"
	StatusPendingUserTransferStart    Status = "pending_user_transfer_start"
	StatusPendingUserTransferComplete Status = "pending_user_transfer_complete"
	StatusPendingSender               Status = "pending_sender"
	StatusPendingReceiver             Status = "pending_receiver"
	StatusPendingAnchor               Status = "pending_anchor"
	StatusPendingStellar              Status = "pending_stellar"
	StatusPendingTrust                Status = "pending_trust"
	StatusPendingExternal             Status = "pending_external"
	StatusCompleted                   Status = "completed"
	StatusRefunded                    Status = "refunded"
	StatusExpired                     Status = "expired"
	StatusError                       Status = "error"
)

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRefunded, StatusExpired, StatusError:
		return true
	}
	return false
}

// Amount is an (amount, asset) pair. The amount is a decimal string; the asset is
// an opaque identifier (SEP-38 stellar:* or iso4217:* form). Either part may be
// empty when only the other is known.
type Amount struct {
	Amount string `json:"amount"`
	Asset  string `json:"asset,omitempty"`
}

// MarshalJSON renders an unknown amount as an explicit null rather than an
// empty string, so callers can distinguish "asset known, amount pending" from
// a zero value.
func (a Amount) MarshalJSON() ([]byte, error) {
	type wire struct {
		Amount *string `json:"amount"`
		Asset  string  `json:"asset,omitempty"`
	}
	w := wire{Asset: a.Asset}
	if a.Amount != "" {
		w.Amount = &a.Amount
	}
	return json.Marshal(w)
}

// IsZero reports whether neither part of the pair is populated.
func (a Amount) IsZero() bool {
	return a.Amount == "" && a.Asset == ""
}

// Payment is one payment operation observed inside a ledger transaction.
type Payment struct {
	ID                 string `json:"id"`
	Amount             Amount `json:"amount"`
	PaymentType        string `json:"payment_type,omitempty"`
	SourceAccount      string `json:"source_account,omitempty"`
	DestinationAccount string `json:"destination_account,omitempty"`
}

// StellarTransaction is the canonical record of one matched ledger transaction,
// keyed by its hash, with its constituent payment operations nested underneath.
type StellarTransaction struct {
	ID        string     `json:"id"`
	Memo      string     `json:"memo,omitempty"`
	MemoType  string     `json:"memo_type,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Envelope  string     `json:"envelope,omitempty"`
	Payments  []Payment  `json:"payments,omitempty"`
}

// Transaction is the root entity: one record per anchor flow instance.
type Transaction struct {
	ID                    string
	Protocol              Protocol
	Kind                  Kind
	Status                Status
	AmountIn              Amount
	AmountOut             Amount
	AmountFee             Amount
	AmountExpected        Amount
	StellarTransactionID  string
	StellarTransactions   []StellarTransaction
	ExternalTransactionID string
	SourceAccount         string
	DestinationAccount    string
	Memo                  string
	MemoType              string
	Message               string
	RefundedAmount        Amount
	StartedAt             time.Time
	UpdatedAt             time.Time
	TransferReceivedAt    *time.Time
	CompletedAt           *time.Time
}

// Clone returns a deep copy of the transaction. Handlers transition a clone so
// that nothing observable mutates when a transition fails mid-way.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.StellarTransactions != nil {
		c.StellarTransactions = make([]StellarTransaction, len(t.StellarTransactions))
		copy(c.StellarTransactions, t.StellarTransactions)
		for i, st := range t.StellarTransactions {
			if st.Payments != nil {
				payments := make([]Payment, len(st.Payments))
				copy(payments, st.Payments)
				c.StellarTransactions[i].Payments = payments
			}
		}
	}
	if t.TransferReceivedAt != nil {
		at := *t.TransferReceivedAt
		c.TransferReceivedAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// AttachStellarTransaction appends a matched ledger transaction record. A record
// with the same ledger id replaces the existing one, keeping the operation
// re-entrant per ledger transaction hash.
func (t *Transaction) AttachStellarTransaction(st StellarTransaction) {
	for i, existing := range t.StellarTransactions {
		if existing.ID == st.ID {
			t.StellarTransactions[i] = st
			return
		}
	}
	t.StellarTransactions = append(t.StellarTransactions, st)
}
