package mintwatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/cashbridge/pkg/payments"
)

type watchEngine struct {
	mutex      sync.Mutex
	paidKeys   map[string]bool
	mintedKeys []string
}

func (engine *watchEngine) MintPaidQuote(_ context.Context, key string) error {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	if !engine.paidKeys[key] {
		return errors.New("quote not paid")
	}
	engine.mintedKeys = append(engine.mintedKeys, key)
	return nil
}

func (engine *watchEngine) GetBalance(context.Context) (payments.Balance, error) {
	return payments.Balance{}, nil
}

func (engine *watchEngine) ListHistory(context.Context, int, int) ([]payments.LedgerEntry, error) {
	return nil, nil
}

func (engine *watchEngine) RequestMintQuote(context.Context, int64) (payments.MintQuote, error) {
	return payments.MintQuote{}, nil
}

func (engine *watchEngine) RequestMeltQuote(context.Context, string) (payments.MeltQuote, error) {
	return payments.MeltQuote{}, nil
}

func (engine *watchEngine) Melt(context.Context, payments.MeltQuote) (bool, error) {
	return false, nil
}

func (engine *watchEngine) CreateSendToken(context.Context, int64, string) (string, error) {
	return "", nil
}

func (engine *watchEngine) ImportToken(context.Context, string) (int64, error) {
	return 0, nil
}

type watchPendingStore struct {
	mutex  sync.Mutex
	quotes []payments.PendingMintQuote
	minted []string
	errors map[string]string
}

func (store *watchPendingStore) Add(_ context.Context, quote payments.PendingMintQuote) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.quotes = append(store.quotes, quote)
	return nil
}

func (store *watchPendingStore) List(context.Context) ([]payments.PendingMintQuote, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return append([]payments.PendingMintQuote(nil), store.quotes...), nil
}

func (store *watchPendingStore) MarkMinted(_ context.Context, id string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.minted = append(store.minted, id)
	remaining := store.quotes[:0]
	for _, quote := range store.quotes {
		if quote.Key() != id {
			remaining = append(remaining, quote)
		}
	}
	store.quotes = remaining
	return nil
}

func (store *watchPendingStore) RecordError(_ context.Context, id string, message string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.errors == nil {
		store.errors = make(map[string]string)
	}
	store.errors[id] = message
	return nil
}

type watchTopUpStore struct {
	mutex  sync.Mutex
	topUps []payments.CompletedTopUp
}

func (store *watchTopUpStore) Add(_ context.Context, topUp payments.CompletedTopUp) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.topUps = append(store.topUps, topUp)
	return nil
}

func (store *watchTopUpStore) List(context.Context, int) ([]payments.CompletedTopUp, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return append([]payments.CompletedTopUp(nil), store.topUps...), nil
}

func TestCheckOncePromotesPaidQuotes(test *testing.T) {
	test.Parallel()
	engine := &watchEngine{paidKeys: map[string]bool{"paid-quote": true}}
	pending := &watchPendingStore{quotes: []payments.PendingMintQuote{
		{ID: "paid-quote", AmountSats: 100, CreatedAtMs: 10},
		{ID: "unpaid-quote", AmountSats: 50, CreatedAtMs: 20},
	}}
	topUps := &watchTopUpStore{}
	watcher, err := New(engine, pending, topUps, WithClock(func() int64 { return 5_000 }))
	if err != nil {
		test.Fatalf("new watcher: %v", err)
	}

	minted := watcher.CheckOnce(context.Background())
	if minted != 1 {
		test.Fatalf("expected 1 minted quote, got %d", minted)
	}
	if len(pending.quotes) != 1 || pending.quotes[0].ID != "unpaid-quote" {
		test.Fatalf("expected unpaid quote to remain, got %+v", pending.quotes)
	}
	if pending.errors["unpaid-quote"] == "" {
		test.Fatalf("expected error recorded for the unpaid quote")
	}
	if len(topUps.topUps) != 1 {
		test.Fatalf("expected 1 completed top-up, got %d", len(topUps.topUps))
	}
	topUp := topUps.topUps[0]
	if topUp.ID != "paid-quote" || topUp.AmountSats != 100 || topUp.TimestampMs != 5_000 {
		test.Fatalf("unexpected top-up %+v", topUp)
	}
}

func TestCheckOnceUsesInvoiceWhenQuoteIDMissing(test *testing.T) {
	test.Parallel()
	engine := &watchEngine{paidKeys: map[string]bool{"lnbc-invoice": true}}
	pending := &watchPendingStore{quotes: []payments.PendingMintQuote{
		{Invoice: "lnbc-invoice", AmountSats: 30, CreatedAtMs: 10},
	}}
	topUps := &watchTopUpStore{}
	watcher, err := New(engine, pending, topUps)
	if err != nil {
		test.Fatalf("new watcher: %v", err)
	}

	if minted := watcher.CheckOnce(context.Background()); minted != 1 {
		test.Fatalf("expected invoice-keyed quote minted, got %d", minted)
	}
}

func TestCheckOnceInvokesMintedCallback(test *testing.T) {
	test.Parallel()
	engine := &watchEngine{paidKeys: map[string]bool{"q": true}}
	pending := &watchPendingStore{quotes: []payments.PendingMintQuote{{ID: "q", AmountSats: 1, CreatedAtMs: 1}}}
	called := make(chan struct{}, 1)
	watcher, err := New(engine, pending, &watchTopUpStore{},
		WithMintedCallback(func(context.Context) { called <- struct{}{} }),
	)
	if err != nil {
		test.Fatalf("new watcher: %v", err)
	}

	watcher.CheckOnce(context.Background())
	select {
	case <-called:
	default:
		test.Fatalf("expected minted callback")
	}
}

func TestCheckOnceSkipsCallbackWhenNothingMinted(test *testing.T) {
	test.Parallel()
	engine := &watchEngine{}
	pending := &watchPendingStore{quotes: []payments.PendingMintQuote{{ID: "q", AmountSats: 1, CreatedAtMs: 1}}}
	watcher, err := New(engine, pending, &watchTopUpStore{},
		WithMintedCallback(func(context.Context) { test.Errorf("callback must not fire") }),
	)
	if err != nil {
		test.Fatalf("new watcher: %v", err)
	}

	if minted := watcher.CheckOnce(context.Background()); minted != 0 {
		test.Fatalf("expected nothing minted, got %d", minted)
	}
}

func TestStartIsIdempotentAndStopWaits(test *testing.T) {
	test.Parallel()
	engine := &watchEngine{paidKeys: map[string]bool{"q": true}}
	pending := &watchPendingStore{quotes: []payments.PendingMintQuote{{ID: "q", AmountSats: 1, CreatedAtMs: 1}}}
	watcher, err := New(engine, pending, &watchTopUpStore{}, WithInterval(5*time.Millisecond))
	if err != nil {
		test.Fatalf("new watcher: %v", err)
	}

	watcher.Start()
	watcher.Start()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pending.mutex.Lock()
		remaining := len(pending.quotes)
		pending.mutex.Unlock()
		if remaining == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	watcher.Stop()
	watcher.Stop()

	pending.mutex.Lock()
	defer pending.mutex.Unlock()
	if len(pending.quotes) != 0 {
		test.Fatalf("expected background sweep to mint the quote")
	}
}
