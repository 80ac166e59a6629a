package payments

import (
	"fmt"
	"strings"
)

// ItemKind classifies an activity item.
type ItemKind string

const (
	KindPending   ItemKind = "pending"
	KindCompleted ItemKind = "completed"
	KindSent      ItemKind = "sent"
	KindReceived  ItemKind = "received"
)

// String returns the kind label.
func (kind ItemKind) String() string {
	return string(kind)
}

// ParseItemKind validates a raw kind label.
func ParseItemKind(raw string) (ItemKind, error) {
	switch ItemKind(raw) {
	case KindPending, KindCompleted, KindSent, KindReceived:
		return ItemKind(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidItemKind, raw)
}

// ActivityItem is one typed payment-activity record derived from a ledger
// entry. AmountSats is signed: positive for funds received, negative for
// funds sent.
type ActivityItem struct {
	ID              string
	TimestampMs     int64
	AmountSats      int64
	Kind            ItemKind
	PeerID          string
	PeerDisplayName string
	IsWithdrawal    bool
}

// SameItem reports identity for list-diffing purposes.
func (item ActivityItem) SameItem(other ActivityItem) bool {
	return item.ID == other.ID
}

// SameContents reports content equality beyond identity.
func (item ActivityItem) SameContents(other ActivityItem) bool {
	return item.TimestampMs == other.TimestampMs &&
		item.AmountSats == other.AmountSats &&
		item.Kind == other.Kind &&
		item.IsWithdrawal == other.IsWithdrawal
}

// LedgerEntry is a raw transaction as reported by the wallet engine or by
// the local sent ledger. The memo may carry encoded peer metadata.
type LedgerEntry struct {
	ID          string
	TimestampMs int64
	AmountSats  int64
	Memo        string
}

// SentRecord is a locally recorded outgoing transfer. It is the source of
// truth for a recent send until the engine's own history catches up.
type SentRecord struct {
	ExternalID  string
	AmountSats  int64
	CreatedAtMs int64
	Memo        string
}

// Validate checks the invariants a sent record must satisfy before it is
// appended to the ledger.
func (record SentRecord) Validate() error {
	if record.AmountSats <= 0 {
		return fmt.Errorf("%w: sent amount must be a positive magnitude", ErrInvalidAmount)
	}
	if record.CreatedAtMs <= 0 {
		return fmt.Errorf("%w: created-at is required", ErrInvalidRecord)
	}
	return nil
}

// ReceivedRecord is a locally recorded incoming ecash receipt.
type ReceivedRecord struct {
	ExternalID  string
	AmountSats  int64
	CreatedAtMs int64
	Memo        string
}

// Validate checks the invariants a received record must satisfy.
func (record ReceivedRecord) Validate() error {
	if record.AmountSats <= 0 {
		return fmt.Errorf("%w: received amount must be a positive magnitude", ErrInvalidAmount)
	}
	if record.CreatedAtMs <= 0 {
		return fmt.Errorf("%w: created-at is required", ErrInvalidRecord)
	}
	return nil
}

// PendingMintQuote is a requested top-up waiting to be paid and minted.
type PendingMintQuote struct {
	ID          string
	Invoice     string
	AmountSats  int64
	ExpiresAtMs int64
	MintURL     string
	CreatedAtMs int64
	LastError   string
}

// Key returns the identifier used when minting a paid quote: the quote id
// when the mint issued one, else the invoice.
func (quote PendingMintQuote) Key() string {
	if strings.TrimSpace(quote.ID) != "" {
		return quote.ID
	}
	return quote.Invoice
}

// CompletedTopUp is a finished mint recorded in local history.
type CompletedTopUp struct {
	ID          string
	AmountSats  int64
	TimestampMs int64
}

// MintQuote describes the cost of topping up the wallet by a given amount.
// Quotes are ephemeral and live for one workflow invocation.
type MintQuote struct {
	ID          string
	MintURL     string
	AmountSats  int64
	FeeSats     int64
	TotalSats   int64
	ExpiresAtMs int64
	Invoice     string
}

// MeltQuote describes the cost of paying an external Lightning invoice out
// of wallet funds.
type MeltQuote struct {
	ID          string
	Invoice     string
	AmountSats  int64
	FeeSats     int64
	ExpiresAtMs int64
}

// IsZero reports whether the engine returned an empty quote.
func (quote MeltQuote) IsZero() bool {
	return quote == MeltQuote{}
}

// Balance is the engine-reported wallet balance.
type Balance struct {
	TotalSats     int64
	SpendableSats int64
}

// Recipient identifies the peer of a send, as resolved by the host
// messaging system.
type Recipient struct {
	ID          string
	DisplayName string
}

// LegacyItem is one entry from the secondary, engine-native activity source
// that backfills the aggregated view when few classified items exist.
type LegacyItem struct {
	ID          string
	TimestampMs int64
	AmountSats  int64
	Description string
}
