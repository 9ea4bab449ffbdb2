/**
 * @description
 * Shared transition machinery for the action handlers. Every handler runs the
 * same sequence: resolve the transaction, check the action applies to its
 * (protocol, kind, status), transition a deep copy, then commit and emit. The
 * copy guarantees that a failed transition leaves no partial mutation behind;
 * event publication and metric increments happen only after the commit and are
 * never allowed to fail the action.
 *
 * @dependencies
 * - internal/store: Transaction persistence.
 * - internal/events: Post-commit event publication.
 * - internal/metrics: Status transition counters.
 */

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lumenbridge/platform-service/internal/domain"
	"github.com/lumenbridge/platform-service/internal/events"
	"github.com/lumenbridge/platform-service/internal/metrics"
	"github.com/lumenbridge/platform-service/internal/store"
)

// LedgerReader resolves ledger transactions and trustline state from Horizon.
type LedgerReader interface {
	GetTransaction(ctx context.Context, id string) (*domain.StellarTransaction, error)
	HasTrustline(ctx context.Context, account, asset string) (bool, error)
}

// Deps carries the shared dependencies injected into every handler.
type Deps struct {
	Repo    store.Repository
	Ledger  LedgerReader
	Events  events.Publisher
	Metrics *metrics.Metrics

	locks *keyedLocks
}

// transitionSpec describes where an action applies and what it does. The
// transition func mutates the given copy, including setting its next status.
type transitionSpec struct {
	protocols  []domain.Protocol
	supports   func(txn *domain.Transaction) bool
	transition func(ctx context.Context, txn *domain.Transaction) error
}

type core struct {
	deps Deps
}

// execute runs the shared action sequence and returns the committed copy.
func (c *core) execute(ctx context.Context, method string, base BaseParams, spec transitionSpec) (*domain.Transaction, error) {
	if strings.TrimSpace(base.TransactionID) == "" {
		return nil, NewInvalidParams("transaction_id is required")
	}

	// Actions on the same transaction serialize around load-transition-commit.
	release := c.deps.locks.acquire(base.TransactionID)
	defer release()

	txn, err := c.findTransaction(ctx, base.TransactionID)
	if err != nil {
		return nil, err
	}

	if !c.protocolSupported(txn.Protocol, spec.protocols) {
		return nil, unsupportedActionError(method, txn, false)
	}
	if !spec.supports(txn) {
		return nil, unsupportedActionError(method, txn, true)
	}

	clone := txn.Clone()
	if err := spec.transition(ctx, clone); err != nil {
		return nil, err
	}
	if base.Message != "" {
		clone.Message = base.Message
	}

	now := time.Now().UTC()
	clone.UpdatedAt = now
	if (clone.Status == domain.StatusCompleted || clone.Status == domain.StatusRefunded) && clone.CompletedAt == nil {
		clone.CompletedAt = &now
	}

	if err := c.saveTransaction(ctx, clone); err != nil {
		return nil, NewInternalError(fmt.Sprintf("Failed to save transaction with id[%s]", clone.ID), err)
	}

	c.deps.Events.PublishTransactionEvent(ctx, domain.EventTypeTransactionStatusChanged, clone)
	c.deps.Metrics.CountTransaction(string(clone.Protocol), string(clone.Status))

	return clone, nil
}

// findTransaction resolves the id across the per-protocol stores.
func (c *core) findTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	txn, err := c.deps.Repo.FindSep24TransactionByID(ctx, id)
	if err == nil {
		return txn, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, NewInternalError(fmt.Sprintf("Failed to load transaction with id[%s]", id), err)
	}

	txn, err = c.deps.Repo.FindSep31TransactionByID(ctx, id)
	if err == nil {
		return txn, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, NewInternalError(fmt.Sprintf("Failed to load transaction with id[%s]", id), err)
	}

	return nil, NewInvalidRequest(fmt.Sprintf("Transaction with id[%s] is not found", id))
}

func (c *core) saveTransaction(ctx context.Context, txn *domain.Transaction) error {
	if txn.Protocol == domain.ProtocolSep31 {
		return c.deps.Repo.SaveSep31Transaction(ctx, txn)
	}
	return c.deps.Repo.SaveSep24Transaction(ctx, txn)
}

func (c *core) protocolSupported(p domain.Protocol, allowed []domain.Protocol) bool {
	for _, a := range allowed {
		if a == p {
			return true
		}
	}
	return false
}

// unsupportedActionError renders the canonical not-applicable message. The kind
// segment renders "null" when the action does not speak the transaction's
// protocol at all, or when the record carries no kind.
func unsupportedActionError(method string, txn *domain.Transaction, protocolKnown bool) *Error {
	kind := "null"
	if protocolKnown && txn.Kind != "" {
		kind = string(txn.Kind)
	}
	return NewInvalidRequest(fmt.Sprintf(
		"Action[%s] is not supported for status[%s], kind[%s] and protocol[%s]",
		method, txn.Status, kind, txn.Protocol,
	))
}

// decodeParams decodes raw action params into the handler's typed struct.
func decodeParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return NewInvalidParams("params are required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return NewInvalidParams(fmt.Sprintf("Invalid params: %v", err))
	}
	return nil
}

// statusIn reports whether the status is one of the given set.
func statusIn(s domain.Status, set ...domain.Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
