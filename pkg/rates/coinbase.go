package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultCoinbaseBaseURL = "https://api.coinbase.com"
	defaultRequestTimeout  = 10 * time.Second
)

// CoinbaseProvider fetches BTC spot prices from the Coinbase public API.
// Safe for concurrent use.
type CoinbaseProvider struct {
	client  *http.Client
	baseURL string
}

// CoinbaseOption configures a CoinbaseProvider.
type CoinbaseOption func(*CoinbaseProvider)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) CoinbaseOption {
	return func(provider *CoinbaseProvider) {
		provider.client = client
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) CoinbaseOption {
	return func(provider *CoinbaseProvider) {
		provider.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewCoinbaseProvider wires a CoinbaseProvider.
func NewCoinbaseProvider(options ...CoinbaseOption) *CoinbaseProvider {
	provider := &CoinbaseProvider{
		client:  &http.Client{Timeout: defaultRequestTimeout},
		baseURL: defaultCoinbaseBaseURL,
	}
	for _, option := range options {
		if option != nil {
			option(provider)
		}
	}
	return provider
}

type spotPriceResponse struct {
	Data struct {
		Amount string `json:"amount"`
	} `json:"data"`
}

// BTCPriceFiat returns the spot price of one BTC in the given currency.
func (provider *CoinbaseProvider) BTCPriceFiat(ctx context.Context, currency string) (decimal.Decimal, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: empty currency code", ErrUnavailable)
	}
	url := fmt.Sprintf("%s/v2/prices/BTC-%s/spot", provider.baseURL, code)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := provider.client.Do(request)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("%w: http %d", ErrUnavailable, response.StatusCode)
	}
	var payload spotPriceResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	price, err := decimal.NewFromString(payload.Data.Amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: bad amount %q", ErrUnavailable, payload.Data.Amount)
	}
	return price, nil
}
