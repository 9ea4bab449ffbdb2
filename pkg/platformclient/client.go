/**
 * @description
 * Client for re-entering the platform's own RPC surface. The custody webhook
 * path never mutates anchor transactions directly; it reports what it observed
 * through the same actions a business server would use, so every status change
 * flows through the one state machine. Requests are authenticated with a
 * short-lived HS256 bearer token minted from the shared platform secret.
 */
package platformclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Client is a client for the platform RPC surface.
type Client struct {
	baseURL    string
	authSecret string
	httpClient *http.Client
}

// NewClient creates a new platform RPC client.
func NewClient(baseURL, authSecret string) *Client {
	normalizedURL := strings.TrimSuffix(baseURL, "/")
	return &Client{
		baseURL:    normalizedURL,
		authSecret: authSecret,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type rpcRequest struct {
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	JSONRPC string      `json:"jsonrpc"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NotifyOnchainFundsReceived reports an observed incoming Stellar payment,
// carrying the amount actually paid so the platform can record it.
func (c *Client) NotifyOnchainFundsReceived(ctx context.Context, transactionID, stellarTransactionID, amount, asset, message string) error {
	params := map[string]interface{}{
		"transaction_id":         transactionID,
		"stellar_transaction_id": stellarTransactionID,
		"message":                message,
	}
	if amount != "" {
		params["amount_in"] = map[string]string{"amount": amount, "asset": asset}
	}
	return c.call(ctx, "notify_onchain_funds_received", params)
}

// NotifyRefundSent reports a refund payment back to the sender. The fee is the
// anchor's charge for the refund; the platform adds amount and fee together
// when reconciling the refunded total.
func (c *Client) NotifyRefundSent(ctx context.Context, transactionID, refundID, amount, amountFee, asset, message string) error {
	refund := map[string]interface{}{
		"id":     refundID,
		"amount": map[string]string{"amount": amount, "asset": asset},
	}
	if amountFee != "" {
		refund["amount_fee"] = map[string]string{"amount": amountFee, "asset": asset}
	}
	return c.call(ctx, "notify_refund_sent", map[string]interface{}{
		"transaction_id": transactionID,
		"message":        message,
		"refund":         refund,
	})
}

// NotifyTransactionError moves a transaction to the error status.
func (c *Client) NotifyTransactionError(ctx context.Context, transactionID, message string) error {
	return c.call(ctx, "notify_transaction_error", map[string]interface{}{
		"transaction_id": transactionID,
		"message":        message,
	})
}

func (c *Client) call(ctx context.Context, method string, params interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("platform base URL is not configured")
	}

	body, err := json.Marshal(rpcRequest{
		ID:      uuid.NewString(),
		Method:  method,
		JSONRPC: "2.0",
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions/rpc", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.mintToken()
	if err != nil {
		return fmt.Errorf("failed to sign platform token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute rpc request to platform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("platform returned error status %d for method %s", resp.StatusCode, method)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("platform rejected method %s: code=%d %s", method, decoded.Error.Code, decoded.Error.Message)
	}
	return nil
}

func (c *Client) mintToken() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "custody-server",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	})
	return token.SignedString([]byte(c.authSecret))
}
