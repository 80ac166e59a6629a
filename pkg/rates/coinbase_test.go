package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCoinbaseProviderFetchesSpotPrice(test *testing.T) {
	test.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/v2/prices/BTC-USD/spot" {
			test.Errorf("unexpected path %s", request.URL.Path)
			http.NotFound(writer, request)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"data":{"base":"BTC","currency":"USD","amount":"64230.55"}}`))
	}))
	defer server.Close()

	provider := NewCoinbaseProvider(WithBaseURL(server.URL))
	price, err := provider.BTCPriceFiat(context.Background(), "usd")
	if err != nil {
		test.Fatalf("btc price: %v", err)
	}
	if price.StringFixed(2) != "64230.55" {
		test.Fatalf("expected 64230.55, got %s", price.StringFixed(2))
	}
}

func TestCoinbaseProviderRejectsEmptyCurrency(test *testing.T) {
	test.Parallel()
	provider := NewCoinbaseProvider()

	_, err := provider.BTCPriceFiat(context.Background(), "  ")
	if !errors.Is(err, ErrUnavailable) {
		test.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCoinbaseProviderMapsHTTPFailure(test *testing.T) {
	test.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := NewCoinbaseProvider(WithBaseURL(server.URL))
	_, err := provider.BTCPriceFiat(context.Background(), "USD")
	if !errors.Is(err, ErrUnavailable) {
		test.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCoinbaseProviderMapsMalformedAmount(test *testing.T) {
	test.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"data":{"amount":"not-a-number"}}`))
	}))
	defer server.Close()

	provider := NewCoinbaseProvider(WithBaseURL(server.URL))
	_, err := provider.BTCPriceFiat(context.Background(), "USD")
	if !errors.Is(err, ErrUnavailable) {
		test.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
