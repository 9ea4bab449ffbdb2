/**
 * @description
 * This file contains the HTTP handlers of the platform surface: the RPC
 * endpoint business servers drive the transaction lifecycle through, and the
 * read-only transaction snapshot endpoint. The RPC endpoint accepts either a
 * single request object or a JSON array; array entries execute in order and
 * fail independently, so one bad entry never blocks the rest of the batch.
 *
 * @dependencies
 * - net/http, encoding/json: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/rpc: The action dispatcher.
 */

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenbridge/platform-service/internal/rpc"
	"github.com/lumenbridge/platform-service/internal/store"
)

// PlatformHandlers holds the dependencies of the platform HTTP surface.
type PlatformHandlers struct {
	registry *rpc.Registry
	repo     store.Repository
}

// NewPlatformHandlers creates the platform HTTP handlers.
func NewPlatformHandlers(registry *rpc.Registry, repo store.Repository) *PlatformHandlers {
	return &PlatformHandlers{registry: registry, repo: repo}
}

// RPCHandler executes one RPC request or a batch of them.
func (h *PlatformHandlers) RPCHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		http.Error(w, "Empty request body", http.StatusBadRequest)
		return
	}

	if trimmed[0] == '[' {
		var envs []rpc.Envelope
		if err := json.Unmarshal(trimmed, &envs); err != nil {
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, h.registry.DispatchBatch(r.Context(), envs))
		return
	}

	var env rpc.Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.registry.Dispatch(r.Context(), env))
}

// GetTransactionHandler returns the current snapshot of one transaction.
func (h *PlatformHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	txn, err := h.repo.FindSep24TransactionByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		txn, err = h.repo.FindSep31TransactionByID(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Transaction not found", http.StatusNotFound)
			return
		}
		log.Printf("level=error component=api msg=\"failed to load transaction\" transaction_id=%s err=%v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, txn.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}
