/**
 * @description
 * This file implements the RPC dispatcher: a registry of action handlers keyed
 * by the method discriminator, plus the response envelope returned per batch
 * entry. The dispatcher owns nothing of the transition logic itself; it decodes
 * the envelope, resolves the handler, and maps taxonomy errors onto wire codes.
 *
 * @dependencies
 * - encoding/json: Envelope decoding.
 * - internal/domain: Snapshot rendering of successful results.
 */

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/lumenbridge/platform-service/internal/domain"
)

// JSONRPCVersion is the protocol version stamped on every response.
const JSONRPCVersion = "2.0"

// Wire error codes, JSON-RPC conventions.
const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Handler executes one RPC action against one transaction.
type Handler interface {
	Method() string
	Handle(ctx context.Context, params json.RawMessage) (*domain.Transaction, error)
}

// ErrorObject is the per-entry error of a batch response.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is one entry of the batch response body.
type Response struct {
	JSONRPC string                      `json:"jsonrpc"`
	ID      json.RawMessage             `json:"id"`
	Result  *domain.TransactionSnapshot `json:"result,omitempty"`
	Error   *ErrorObject                `json:"error,omitempty"`
}

// Registry maps method names to their handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry wires every action handler over the shared dependencies.
func NewRegistry(deps Deps) *Registry {
	if deps.locks == nil {
		deps.locks = newKeyedLocks()
	}
	r := &Registry{handlers: make(map[string]Handler)}
	r.register(newRequestOffchainFundsHandler(deps))
	r.register(newRequestOnchainFundsHandler(deps))
	r.register(newNotifyOnchainFundsReceivedHandler(deps))
	r.register(newNotifyOffchainFundsReceivedHandler(deps))
	r.register(newDoStellarPaymentHandler(deps))
	r.register(newNotifyOnchainFundsSentHandler(deps))
	r.register(newNotifyOffchainFundsSentHandler(deps))
	r.register(newNotifyRefundSentHandler(deps))
	r.register(newNotifyTransactionErrorHandler(deps))
	return r
}

func (r *Registry) register(h Handler) {
	r.handlers[h.Method()] = h
}

// Dispatch resolves and runs the handler for one envelope. It never returns an
// error: every failure becomes a wire error object so that other entries of the
// same batch still execute.
func (r *Registry) Dispatch(ctx context.Context, env Envelope) Response {
	resp := Response{JSONRPC: JSONRPCVersion, ID: env.ID}

	handler, ok := r.handlers[env.Method]
	if !ok {
		resp.Error = &ErrorObject{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("RPC method[%s] is not supported", env.Method),
		}
		return resp
	}

	txn, err := handler.Handle(ctx, env.Params)
	if err != nil {
		kind := KindOf(err)
		if kind == KindInternalError {
			log.Printf("level=error component=rpc_dispatcher msg=\"action failed\" method=%s err=%v", env.Method, err)
		}
		resp.Error = &ErrorObject{Code: wireCode(kind), Message: err.Error()}
		return resp
	}

	snapshot := txn.Snapshot()
	resp.Result = &snapshot
	return resp
}

// DispatchBatch runs every envelope in order and returns one response per entry.
func (r *Registry) DispatchBatch(ctx context.Context, envs []Envelope) []Response {
	out := make([]Response, len(envs))
	for i, env := range envs {
		out[i] = r.Dispatch(ctx, env)
	}
	return out
}

func wireCode(kind ErrorKind) int {
	switch kind {
	case KindInvalidParams:
		return CodeInvalidParams
	case KindInternalError:
		return CodeInternalError
	default:
		// InvalidRequest, BadRequest and NotFound all surface as an invalid
		// request at the wire: the entry referenced a state or value the
		// server cannot act on.
		return CodeInvalidRequest
	}
}
