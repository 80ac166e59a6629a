// Package rates converts sats amounts into fiat using an external spot
// price source.
package rates

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnavailable signals that no spot price could be fetched. Callers render
// a placeholder instead of failing.
var ErrUnavailable = errors.New("rate unavailable")

var satsPerBTC = decimal.NewFromInt(100_000_000)

// Provider returns the fiat price of one BTC for a currency code.
type Provider interface {
	BTCPriceFiat(ctx context.Context, currency string) (decimal.Decimal, error)
}

// SatsToFiat converts a sats amount to fiat using the provider's spot
// price, truncating the BTC intermediate at 8 decimals and rounding the
// result half-up to 2.
func SatsToFiat(ctx context.Context, provider Provider, sats int64, currency string) (decimal.Decimal, error) {
	price, err := provider.BTCPriceFiat(ctx, currency)
	if err != nil {
		return decimal.Decimal{}, err
	}
	btc := decimal.NewFromInt(sats).Div(satsPerBTC).Truncate(8)
	return btc.Mul(price).Round(2), nil
}
