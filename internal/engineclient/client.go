// Package engineclient talks JSON over HTTP to a wallet engine daemon.
package engineclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/cashbridge/pkg/payments"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxErrorBodyBytes     = 2048
)

// Client implements payments.Engine against an engine daemon base URL.
// Safe for concurrent use.
type Client struct {
	client  *http.Client
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(engineClient *Client) {
		engineClient.client = client
	}
}

// New returns a Client for the engine daemon at baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: engine base URL is required", payments.ErrInvalidConfig)
	}
	engineClient := &Client{
		client:  &http.Client{Timeout: defaultRequestTimeout},
		baseURL: trimmed,
	}
	for _, option := range options {
		if option != nil {
			option(engineClient)
		}
	}
	return engineClient, nil
}

type balancePayload struct {
	TotalSats     int64 `json:"total_sats"`
	SpendableSats int64 `json:"spendable_sats"`
}

type historyEntryPayload struct {
	ID          string `json:"id"`
	TimestampMs int64  `json:"timestamp_ms"`
	AmountSats  int64  `json:"amount_sats"`
	Memo        string `json:"memo"`
}

type mintQuotePayload struct {
	ID          string `json:"id"`
	MintURL     string `json:"mint_url"`
	AmountSats  int64  `json:"amount_sats"`
	FeeSats     int64  `json:"fee_sats"`
	TotalSats   int64  `json:"total_sats"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
	Invoice     string `json:"invoice"`
}

type meltQuotePayload struct {
	ID          string `json:"id"`
	Invoice     string `json:"invoice"`
	AmountSats  int64  `json:"amount_sats"`
	FeeSats     int64  `json:"fee_sats"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
}

// GetBalance returns the engine's wallet balance.
func (engineClient *Client) GetBalance(ctx context.Context) (payments.Balance, error) {
	var payload balancePayload
	if err := engineClient.get(ctx, "/v1/balance", &payload); err != nil {
		return payments.Balance{}, err
	}
	return payments.Balance{TotalSats: payload.TotalSats, SpendableSats: payload.SpendableSats}, nil
}

// ListHistory returns the engine's ledger entries, most recent first.
func (engineClient *Client) ListHistory(ctx context.Context, offset int, limit int) ([]payments.LedgerEntry, error) {
	var payload []historyEntryPayload
	path := fmt.Sprintf("/v1/history?offset=%d&limit=%d", offset, limit)
	if err := engineClient.get(ctx, path, &payload); err != nil {
		return nil, err
	}
	entries := make([]payments.LedgerEntry, 0, len(payload))
	for _, entry := range payload {
		entries = append(entries, payments.LedgerEntry{
			ID:          entry.ID,
			TimestampMs: entry.TimestampMs,
			AmountSats:  entry.AmountSats,
			Memo:        entry.Memo,
		})
	}
	return entries, nil
}

// RequestMintQuote asks the engine for a top-up quote.
func (engineClient *Client) RequestMintQuote(ctx context.Context, amountSats int64) (payments.MintQuote, error) {
	requestBody := map[string]int64{"amount_sats": amountSats}
	var payload mintQuotePayload
	if err := engineClient.post(ctx, "/v1/quotes/mint", requestBody, &payload); err != nil {
		return payments.MintQuote{}, err
	}
	return payments.MintQuote{
		ID:          payload.ID,
		MintURL:     payload.MintURL,
		AmountSats:  payload.AmountSats,
		FeeSats:     payload.FeeSats,
		TotalSats:   payload.TotalSats,
		ExpiresAtMs: payload.ExpiresAtMs,
		Invoice:     payload.Invoice,
	}, nil
}

// RequestMeltQuote asks the engine what paying the invoice would cost.
func (engineClient *Client) RequestMeltQuote(ctx context.Context, invoice string) (payments.MeltQuote, error) {
	requestBody := map[string]string{"invoice": invoice}
	var payload meltQuotePayload
	if err := engineClient.post(ctx, "/v1/quotes/melt", requestBody, &payload); err != nil {
		return payments.MeltQuote{}, err
	}
	return payments.MeltQuote{
		ID:          payload.ID,
		Invoice:     payload.Invoice,
		AmountSats:  payload.AmountSats,
		FeeSats:     payload.FeeSats,
		ExpiresAtMs: payload.ExpiresAtMs,
	}, nil
}

// Melt executes a previously quoted Lightning payment.
func (engineClient *Client) Melt(ctx context.Context, quote payments.MeltQuote) (bool, error) {
	requestBody := map[string]string{"quote_id": quote.ID, "invoice": quote.Invoice}
	var payload struct {
		Paid bool `json:"paid"`
	}
	if err := engineClient.post(ctx, "/v1/melt", requestBody, &payload); err != nil {
		return false, err
	}
	return payload.Paid, nil
}

// CreateSendToken withdraws the amount into a serialized ecash token.
func (engineClient *Client) CreateSendToken(ctx context.Context, amountSats int64, note string) (string, error) {
	requestBody := map[string]any{"amount_sats": amountSats, "note": note}
	var payload struct {
		Token string `json:"token"`
	}
	if err := engineClient.post(ctx, "/v1/tokens/send", requestBody, &payload); err != nil {
		return "", err
	}
	return payload.Token, nil
}

// MintPaidQuote claims the proofs for a quote whose invoice was paid.
func (engineClient *Client) MintPaidQuote(ctx context.Context, key string) error {
	requestBody := map[string]string{"quote": key}
	return engineClient.post(ctx, "/v1/mint", requestBody, nil)
}

// ImportToken redeems a received ecash token and returns the sats added.
func (engineClient *Client) ImportToken(ctx context.Context, token string) (int64, error) {
	requestBody := map[string]string{"token": token}
	var payload struct {
		AddedSats int64 `json:"added_sats"`
	}
	if err := engineClient.post(ctx, "/v1/tokens/import", requestBody, &payload); err != nil {
		return 0, err
	}
	return payload.AddedSats, nil
}

func (engineClient *Client) get(ctx context.Context, path string, out any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, engineClient.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", payments.ErrEngine, err)
	}
	request.Header.Set("Accept", "application/json")
	return engineClient.do(request, out)
}

func (engineClient *Client) post(ctx context.Context, path string, in any, out any) error {
	encoded, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %v", payments.ErrEngine, err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, engineClient.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("%w: %v", payments.ErrEngine, err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	return engineClient.do(request, out)
}

func (engineClient *Client) do(request *http.Request, out any) error {
	response, err := engineClient.client.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", payments.ErrEngine, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = http.StatusText(response.StatusCode)
		}
		return fmt.Errorf("%w: http %d: %s", payments.ErrEngine, response.StatusCode, message)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", payments.ErrEngine, err)
	}
	return nil
}
