package payments

import (
	"context"
	"fmt"
	"sort"
)

// HistorySource yields raw ledger entries, most recent first.
type HistorySource interface {
	ListHistory(ctx context.Context, offset int, limit int) ([]LedgerEntry, error)
}

// LedgerFeed merges engine history with the locally recorded stores into
// one most-recent-first sequence. Local records cover the window before the
// engine's own history catches up; an engine-sourced entry with the same
// external id supersedes the local one.
type LedgerFeed struct {
	engine   Engine
	sent     SentStore
	received ReceiveStore
	pending  PendingMintStore
	topUps   TopUpStore
}

// NewLedgerFeed wires a LedgerFeed. Stores may be nil; nil sources are
// skipped.
func NewLedgerFeed(engine Engine, sent SentStore, received ReceiveStore, pending PendingMintStore, topUps TopUpStore) (*LedgerFeed, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: engine dependency is nil", ErrInvalidConfig)
	}
	return &LedgerFeed{
		engine:   engine,
		sent:     sent,
		received: received,
		pending:  pending,
		topUps:   topUps,
	}, nil
}

// ListHistory implements HistorySource. Engine or store trouble degrades to
// fewer entries rather than an error: local records still render when the
// engine is unreachable, and vice versa.
func (feed *LedgerFeed) ListHistory(ctx context.Context, offset int, limit int) ([]LedgerEntry, error) {
	entries := make([]LedgerEntry, 0, limit)
	seen := make(map[string]struct{})

	engineEntries, err := feed.engine.ListHistory(ctx, 0, limit)
	if err == nil {
		for _, entry := range engineEntries {
			entries = append(entries, entry)
			if entry.ID != "" {
				seen[entry.ID] = struct{}{}
			}
		}
	}

	entries = append(entries, feed.pendingEntries(ctx, seen)...)
	entries = append(entries, feed.topUpEntries(ctx, seen, limit)...)
	entries = append(entries, feed.sentEntries(ctx, seen, limit)...)
	entries = append(entries, feed.receivedEntries(ctx, seen, limit)...)

	sort.SliceStable(entries, func(left, right int) bool {
		return entries[left].TimestampMs > entries[right].TimestampMs
	})
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (feed *LedgerFeed) pendingEntries(ctx context.Context, seen map[string]struct{}) []LedgerEntry {
	if feed.pending == nil {
		return nil
	}
	quotes, err := feed.pending.List(ctx)
	if err != nil {
		return nil
	}
	entries := make([]LedgerEntry, 0, len(quotes))
	for index, quote := range quotes {
		id := quote.Key()
		if id == "" {
			id = fmt.Sprintf("pending-%d-%d", quote.CreatedAtMs, index)
		}
		if _, superseded := seen[id]; superseded {
			continue
		}
		entries = append(entries, LedgerEntry{
			ID:          id,
			TimestampMs: quote.CreatedAtMs,
			AmountSats:  quote.AmountSats,
			Memo:        fmt.Sprintf("%s %d sat", MemoPrefixPendingTopUp, quote.AmountSats),
		})
	}
	return entries
}

func (feed *LedgerFeed) topUpEntries(ctx context.Context, seen map[string]struct{}, limit int) []LedgerEntry {
	if feed.topUps == nil {
		return nil
	}
	topUps, err := feed.topUps.List(ctx, limit)
	if err != nil {
		return nil
	}
	entries := make([]LedgerEntry, 0, len(topUps))
	for index, topUp := range topUps {
		id := topUp.ID
		if id == "" {
			id = fmt.Sprintf("topup-%d-%d", topUp.TimestampMs, index)
		}
		if _, superseded := seen[id]; superseded {
			continue
		}
		entries = append(entries, LedgerEntry{
			ID:          id,
			TimestampMs: topUp.TimestampMs,
			AmountSats:  topUp.AmountSats,
			Memo:        MemoPrefixCompletedTopUp,
		})
	}
	return entries
}

func (feed *LedgerFeed) sentEntries(ctx context.Context, seen map[string]struct{}, limit int) []LedgerEntry {
	if feed.sent == nil {
		return nil
	}
	records, err := feed.sent.List(ctx, limit)
	if err != nil {
		return nil
	}
	entries := make([]LedgerEntry, 0, len(records))
	for index, record := range records {
		id := record.ExternalID
		if id == "" {
			id = fmt.Sprintf("sent-%d-%d", record.CreatedAtMs, index)
		}
		if _, superseded := seen[id]; superseded {
			continue
		}
		memo := record.Memo
		if memo == "" {
			memo = MemoPrefixSentEcash
		}
		entries = append(entries, LedgerEntry{
			ID:          id,
			TimestampMs: record.CreatedAtMs,
			AmountSats:  -record.AmountSats,
			Memo:        memo,
		})
	}
	return entries
}

func (feed *LedgerFeed) receivedEntries(ctx context.Context, seen map[string]struct{}, limit int) []LedgerEntry {
	if feed.received == nil {
		return nil
	}
	records, err := feed.received.List(ctx, limit)
	if err != nil {
		return nil
	}
	entries := make([]LedgerEntry, 0, len(records))
	for index, record := range records {
		id := record.ExternalID
		if id == "" {
			id = fmt.Sprintf("received-%d-%d", record.CreatedAtMs, index)
		}
		if _, superseded := seen[id]; superseded {
			continue
		}
		memo := record.Memo
		if memo == "" {
			memo = MemoPrefixReceivedFrom
		}
		entries = append(entries, LedgerEntry{
			ID:          id,
			TimestampMs: record.CreatedAtMs,
			AmountSats:  record.AmountSats,
			Memo:        memo,
		})
	}
	return entries
}
