/**
 * @description
 * Client for the Horizon ledger API. It resolves a submitted transaction and
 * its payment operations into the canonical record attached to anchor
 * transactions, and answers trustline queries for payout destinations. Only the
 * handful of fields the platform needs are decoded; everything else Horizon
 * returns is ignored.
 */
package horizonclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lumenbridge/platform-service/internal/domain"
)

// Client is a client for the Horizon API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Horizon client.
func NewClient(baseURL string) *Client {
	normalizedURL := strings.TrimSuffix(baseURL, "/")
	return &Client{
		baseURL:    normalizedURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type horizonTransaction struct {
	ID          string    `json:"id"`
	Memo        string    `json:"memo"`
	MemoType    string    `json:"memo_type"`
	CreatedAt   time.Time `json:"created_at"`
	EnvelopeXDR string    `json:"envelope_xdr"`
}

type horizonPaymentsPage struct {
	Embedded struct {
		Records []horizonPayment `json:"records"`
	} `json:"_embedded"`
}

type horizonPayment struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	AssetType   string `json:"asset_type"`
	AssetCode   string `json:"asset_code"`
	AssetIssuer string `json:"asset_issuer"`
	From        string `json:"from"`
	To          string `json:"to"`
}

type horizonAccount struct {
	Balances []struct {
		AssetType   string `json:"asset_type"`
		AssetCode   string `json:"asset_code"`
		AssetIssuer string `json:"asset_issuer"`
	} `json:"balances"`
}

// GetTransaction fetches a ledger transaction and its payment operations.
func (c *Client) GetTransaction(ctx context.Context, id string) (*domain.StellarTransaction, error) {
	var txn horizonTransaction
	if err := c.get(ctx, "/transactions/"+id, &txn); err != nil {
		return nil, err
	}

	var page horizonPaymentsPage
	if err := c.get(ctx, "/transactions/"+id+"/payments?limit=200", &page); err != nil {
		return nil, err
	}

	createdAt := txn.CreatedAt.UTC()
	out := &domain.StellarTransaction{
		ID:        txn.ID,
		Memo:      txn.Memo,
		MemoType:  txn.MemoType,
		CreatedAt: &createdAt,
		Envelope:  txn.EnvelopeXDR,
	}
	for _, p := range page.Embedded.Records {
		out.Payments = append(out.Payments, domain.Payment{
			ID:                 p.ID,
			PaymentType:        p.Type,
			SourceAccount:      p.From,
			DestinationAccount: p.To,
			Amount: domain.Amount{
				Amount: p.Amount,
				Asset:  canonicalAsset(p.AssetType, p.AssetCode, p.AssetIssuer),
			},
		})
	}
	return out, nil
}

// HasTrustline reports whether the account holds a trustline for the asset,
// given in its stellar:CODE:ISSUER form. Every account trusts the native asset.
func (c *Client) HasTrustline(ctx context.Context, account, asset string) (bool, error) {
	if asset == "stellar:native" {
		return true, nil
	}

	var acct horizonAccount
	if err := c.get(ctx, "/accounts/"+account, &acct); err != nil {
		return false, err
	}
	for _, b := range acct.Balances {
		if canonicalAsset(b.AssetType, b.AssetCode, b.AssetIssuer) == asset {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request to horizon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("horizon returned error status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode horizon response: %w", err)
	}
	return nil
}

func canonicalAsset(assetType, code, issuer string) string {
	if assetType == "native" {
		return "stellar:native"
	}
	return "stellar:" + code + ":" + issuer
}
