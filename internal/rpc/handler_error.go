/**
 * @description
 * Handler for notify_transaction_error: any non-terminal transaction can be
 * moved to error with a mandatory human-readable message. A deposit parked in
 * pending_trust loses its trustline bookkeeping row at the same time, so the
 * trust watcher never resurrects an errored payout.
 */

package rpc

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/lumenbridge/platform-service/internal/domain"
)

type notifyTransactionErrorHandler struct {
	core
}

func newNotifyTransactionErrorHandler(deps Deps) *notifyTransactionErrorHandler {
	return &notifyTransactionErrorHandler{core{deps: deps}}
}

func (h *notifyTransactionErrorHandler) Method() string { return MethodNotifyTransactionError }

func (h *notifyTransactionErrorHandler) Handle(ctx context.Context, raw json.RawMessage) (*domain.Transaction, error) {
	var p NotifyTransactionErrorParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Message) == "" {
		return nil, NewInvalidParams("message is required")
	}

	spec := transitionSpec{
		protocols: []domain.Protocol{domain.ProtocolSep24, domain.ProtocolSep31},
		supports: func(txn *domain.Transaction) bool {
			return !txn.Status.IsTerminal()
		},
		transition: func(ctx context.Context, txn *domain.Transaction) error {
			// Bookkeeping only; a missing row is not an error and the
			// transition proceeds either way.
			if err := h.deps.Repo.DeletePendingTrust(ctx, txn.ID); err != nil {
				log.Printf("level=warn component=rpc_dispatcher msg=\"failed to delete pending trust record\" transaction_id=%s err=%v", txn.ID, err)
			}
			txn.Status = domain.StatusError
			return nil
		},
	}
	return h.execute(ctx, h.Method(), p.BaseParams, spec)
}
