package payments

import "context"

// SentStore is the append-only local record of outgoing transfers. Appends
// must be safe under concurrency: two workers adding distinct records must
// both survive a subsequent List.
type SentStore interface {
	Add(ctx context.Context, record SentRecord) error
	List(ctx context.Context, limit int) ([]SentRecord, error)
}

// ReceiveStore is the append-only local record of incoming ecash receipts.
type ReceiveStore interface {
	Add(ctx context.Context, record ReceivedRecord) error
	List(ctx context.Context, limit int) ([]ReceivedRecord, error)
}

// PendingMintStore tracks requested mint quotes until they are paid and
// minted. MarkMinted removes the quote; RecordError keeps it with the last
// failure message for the next watcher pass.
type PendingMintStore interface {
	Add(ctx context.Context, quote PendingMintQuote) error
	List(ctx context.Context) ([]PendingMintQuote, error)
	MarkMinted(ctx context.Context, id string) error
	RecordError(ctx context.Context, id string, message string) error
}

// TopUpStore is the local history of completed top-ups.
type TopUpStore interface {
	Add(ctx context.Context, topUp CompletedTopUp) error
	List(ctx context.Context, limit int) ([]CompletedTopUp, error)
}
