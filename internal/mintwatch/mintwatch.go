// Package mintwatch polls pending mint quotes and claims the ones whose
// invoices have been paid.
package mintwatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/cashbridge/pkg/payments"
	"go.uber.org/zap"
)

const defaultCheckInterval = 5 * time.Second

// Watcher drives the pending-mint sweep. Each pass lists the pending quotes
// and asks the engine to mint every one of them; quotes whose invoice is
// still unpaid fail and stay pending with the error recorded.
type Watcher struct {
	engine   payments.Engine
	pending  payments.PendingMintStore
	topUps   payments.TopUpStore
	interval time.Duration
	nowFn    func() int64
	onMinted func(ctx context.Context)
	logger   *zap.Logger

	mutex   sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval overrides the sweep interval.
func WithInterval(interval time.Duration) Option {
	return func(watcher *Watcher) {
		if interval > 0 {
			watcher.interval = interval
		}
	}
}

// WithClock overrides the millisecond clock.
func WithClock(nowFn func() int64) Option {
	return func(watcher *Watcher) {
		if nowFn != nil {
			watcher.nowFn = nowFn
		}
	}
}

// WithMintedCallback wires a callback invoked after at least one quote was
// minted in a pass.
func WithMintedCallback(callback func(ctx context.Context)) Option {
	return func(watcher *Watcher) {
		watcher.onMinted = callback
	}
}

// WithLogger wires an infra logger.
func WithLogger(logger *zap.Logger) Option {
	return func(watcher *Watcher) {
		if logger != nil {
			watcher.logger = logger
		}
	}
}

// New wires a Watcher.
func New(engine payments.Engine, pending payments.PendingMintStore, topUps payments.TopUpStore, options ...Option) (*Watcher, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: engine dependency is nil", payments.ErrInvalidConfig)
	}
	if pending == nil {
		return nil, fmt.Errorf("%w: pending mint store dependency is nil", payments.ErrInvalidConfig)
	}
	if topUps == nil {
		return nil, fmt.Errorf("%w: top-up store dependency is nil", payments.ErrInvalidConfig)
	}
	watcher := &Watcher{
		engine:   engine,
		pending:  pending,
		topUps:   topUps,
		interval: defaultCheckInterval,
		nowFn:    func() int64 { return time.Now().UnixMilli() },
		logger:   zap.NewNop(),
	}
	for _, option := range options {
		if option != nil {
			option(watcher)
		}
	}
	return watcher, nil
}

// Start launches the background sweep loop. Calling Start on a running
// watcher is a no-op.
func (watcher *Watcher) Start() {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	if watcher.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	watcher.cancel = cancel
	watcher.stopped = make(chan struct{})
	go watcher.run(ctx, watcher.stopped)
}

// Stop terminates the sweep loop and waits for the current pass to finish.
func (watcher *Watcher) Stop() {
	watcher.mutex.Lock()
	cancel := watcher.cancel
	stopped := watcher.stopped
	watcher.cancel = nil
	watcher.stopped = nil
	watcher.mutex.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

func (watcher *Watcher) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(watcher.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			watcher.CheckOnce(ctx)
		}
	}
}

// CheckOnce runs a single sweep over the pending quotes. It returns the
// number of quotes minted in this pass.
func (watcher *Watcher) CheckOnce(ctx context.Context) int {
	quotes, err := watcher.pending.List(ctx)
	if err != nil {
		watcher.logger.Warn("pending mint list failed", zap.Error(err))
		return 0
	}
	minted := 0
	for _, quote := range quotes {
		key := quote.Key()
		if key == "" {
			continue
		}
		if err := watcher.engine.MintPaidQuote(ctx, key); err != nil {
			if recordErr := watcher.pending.RecordError(ctx, key, err.Error()); recordErr != nil {
				watcher.logger.Warn("pending mint error record failed", zap.String("quote", key), zap.Error(recordErr))
			}
			continue
		}
		if err := watcher.pending.MarkMinted(ctx, key); err != nil {
			watcher.logger.Warn("pending mint removal failed", zap.String("quote", key), zap.Error(err))
		}
		topUp := payments.CompletedTopUp{
			ID:          key,
			AmountSats:  quote.AmountSats,
			TimestampMs: watcher.nowFn(),
		}
		if err := watcher.topUps.Add(ctx, topUp); err != nil {
			watcher.logger.Warn("top-up record failed", zap.String("quote", key), zap.Error(err))
		}
		watcher.logger.Info("mint quote paid", zap.String("quote", key), zap.Int64("amount_sats", quote.AmountSats))
		minted++
	}
	if minted > 0 && watcher.onMinted != nil {
		watcher.onMinted(ctx)
	}
	return minted
}
