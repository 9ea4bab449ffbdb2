/**
 * @description
 * Domain models for the custody reconciliation path: the persisted custodial
 * transaction record mirroring a submitted on-chain payment, and the transient
 * payment observation decoded from a custody provider webhook.
 */

package domain

import "time"

// Custody transaction statuses. These track the custodial record, not the anchor
// transaction status, and the two advance independently.
const (
	CustodyStatusCreated   = "created"
	CustodyStatusSubmitted = "submitted"
	CustodyStatusCompleted = "completed"
	CustodyStatusFailed    = "failed"
)

// CustodyPaymentDirection is the observed direction of an on-chain payment
// relative to the custody account.
type CustodyPaymentDirection string

const (
	CustodyPaymentIncoming CustodyPaymentDirection = "incoming"
	CustodyPaymentOutgoing CustodyPaymentDirection = "outgoing"
)

// CustodyTransaction is the persisted custodial record for one expected or
// submitted on-chain payment, keyed by the anchor transaction id it settles.
type CustodyTransaction struct {
	ID              string
	TransactionID   string // anchor transaction id
	Protocol        Protocol
	Kind            Kind
	Status          string
	Amount          string
	AmountFee       string
	Asset           string
	TransactionHash string
	Memo            string
	MemoType        string
	FromAccount     string
	ToAccount       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CustodyPayment is a transient observation decoded from a custody webhook:
// one on-chain event, never persisted on its own.
type CustodyPayment struct {
	EventID         string
	TransactionHash string
	Direction       CustodyPaymentDirection
	Amount          string
	Asset           string
	Memo            string
	ToAccount       string
	Success         bool
	Message         string
	ObservedAt      time.Time
}
