package payments

import "context"

// Engine is the wallet engine collaborator. All calls block until the
// engine responds; this core never assumes non-blocking semantics and runs
// them on background workers where needed. Engine internals (mint, melt,
// and token cryptography) are out of scope.
type Engine interface {
	GetBalance(ctx context.Context) (Balance, error)
	ListHistory(ctx context.Context, offset int, limit int) ([]LedgerEntry, error)
	RequestMintQuote(ctx context.Context, amountSats int64) (MintQuote, error)
	RequestMeltQuote(ctx context.Context, invoice string) (MeltQuote, error)
	Melt(ctx context.Context, quote MeltQuote) (bool, error)
	CreateSendToken(ctx context.Context, amountSats int64, note string) (string, error)
	MintPaidQuote(ctx context.Context, key string) error
	ImportToken(ctx context.Context, token string) (int64, error)
}

// Messenger is the messaging collaborator used to deliver a created token
// as a regular text message.
type Messenger interface {
	SendText(ctx context.Context, recipientID string, body string) error
}

// LegacySource supplies the secondary, engine-native activity entries that
// backfill the aggregated view.
type LegacySource interface {
	RecentPayments(ctx context.Context, limit int) ([]LegacyItem, error)
}
