/**
 * @description
 * This file contains the HTTP handler for processing incoming webhooks from the
 * custody provider. It is the entry point of the reconciliation path.
 *
 * Key features:
 * - Security: Validates the HMAC-SHA256 signature of incoming webhooks.
 * - Replay protection: processed event ids are recorded with a TTL and
 *   redeliveries are acknowledged without reprocessing.
 * - Classification: decoding produces a CustodyPayment observation which the
 *   custody handler classifies and acts on.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha256, encoding/hex: For webhook signature validation.
 * - internal/custody: The reconciliation core.
 */

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/lumenbridge/platform-service/internal/custody"
	"github.com/lumenbridge/platform-service/internal/domain"
)

// custodyWebhookEvent is the provider's wire shape for one payment event.
type custodyWebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		TransactionHash string    `json:"transaction_hash"`
		Direction       string    `json:"direction"`
		Amount          string    `json:"amount"`
		Asset           string    `json:"asset"`
		Memo            string    `json:"memo"`
		ToAccount       string    `json:"to_account"`
		Status          string    `json:"status"`
		Message         string    `json:"message"`
		CreatedAt       time.Time `json:"created_at"`
	} `json:"data"`
}

// WebhookHandler processes incoming webhooks from the custody provider.
type WebhookHandler struct {
	handler *custody.Handler
	deduper EventDeduper
	secret  string
}

// NewWebhookHandler creates a new handler for the webhook endpoint.
func NewWebhookHandler(handler *custody.Handler, deduper EventDeduper, secret string) *WebhookHandler {
	return &WebhookHandler{handler: handler, deduper: deduper, secret: secret}
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	if !h.isValidSignature(r.Header.Get("X-Custody-Signature"), body) {
		log.Printf("level=warn component=webhook msg=\"invalid custody webhook signature\" remote=%s", r.RemoteAddr)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event custodyWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=webhook msg=\"invalid custody webhook payload\" err=%v", err)
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if event.ID == "" {
		http.Error(w, "Event id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	seen, err := h.deduper.Seen(ctx, event.ID)
	if err != nil {
		log.Printf("level=warn component=webhook msg=\"dedup lookup failed; processing anyway\" event_id=%s err=%v", event.ID, err)
	}
	if seen {
		log.Printf("level=info component=webhook msg=\"duplicate event ignored\" event_id=%s", event.ID)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Duplicate event ignored"))
		return
	}

	payment := domain.CustodyPayment{
		EventID:         event.ID,
		TransactionHash: event.Data.TransactionHash,
		Direction:       domain.CustodyPaymentDirection(event.Data.Direction),
		Amount:          event.Data.Amount,
		Asset:           event.Data.Asset,
		Memo:            event.Data.Memo,
		ToAccount:       event.Data.ToAccount,
		Success:         event.Data.Status != "failed",
		Message:         event.Data.Message,
		ObservedAt:      event.Data.CreatedAt,
	}

	if err := h.handler.HandleEvent(ctx, payment); err != nil {
		log.Printf("level=error component=webhook msg=\"custody event processing failed\" event_id=%s err=%v", event.ID, err)
		http.Error(w, "Internal server error during event processing", http.StatusInternalServerError)
		return
	}

	// Marked only after side effects completed, so a failed delivery stays
	// eligible for redelivery.
	if err := h.deduper.MarkProcessed(ctx, event.ID); err != nil {
		log.Printf("level=warn component=webhook msg=\"failed to record processed event\" event_id=%s err=%v", event.ID, err)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Webhook received"))
}

func (h *WebhookHandler) isValidSignature(header string, body []byte) bool {
	if h.secret == "" {
		// Local development only; production always configures a secret.
		return true
	}
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
