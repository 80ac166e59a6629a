package payments

import (
	"context"
	"sync"
	"testing"
)

type stubEngine struct {
	mutex sync.Mutex

	balance    Balance
	balanceErr error

	history    []LedgerEntry
	historyErr error

	mintQuote    MintQuote
	mintQuoteErr error

	meltQuote    MeltQuote
	meltQuoteErr error

	meltPaid bool
	meltErr  error

	token    string
	tokenErr error

	mintPaidErr error

	importedSats int64
	importErr    error

	mintQuoteCalls int
	historyCalls   int
	importedTokens []string
	mintedKeys     []string
}

func (engine *stubEngine) GetBalance(context.Context) (Balance, error) {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	return engine.balance, engine.balanceErr
}

func (engine *stubEngine) ListHistory(_ context.Context, _ int, _ int) ([]LedgerEntry, error) {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	engine.historyCalls++
	return engine.history, engine.historyErr
}

func (engine *stubEngine) RequestMintQuote(_ context.Context, _ int64) (MintQuote, error) {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	engine.mintQuoteCalls++
	return engine.mintQuote, engine.mintQuoteErr
}

func (engine *stubEngine) RequestMeltQuote(context.Context, string) (MeltQuote, error) {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	return engine.meltQuote, engine.meltQuoteErr
}

func (engine *stubEngine) Melt(context.Context, MeltQuote) (bool, error) {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	return engine.meltPaid, engine.meltErr
}

func (engine *stubEngine) CreateSendToken(context.Context, int64, string) (string, error) {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	return engine.token, engine.tokenErr
}

func (engine *stubEngine) MintPaidQuote(_ context.Context, key string) error {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	engine.mintedKeys = append(engine.mintedKeys, key)
	return engine.mintPaidErr
}

func (engine *stubEngine) ImportToken(_ context.Context, token string) (int64, error) {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	engine.importedTokens = append(engine.importedTokens, token)
	return engine.importedSats, engine.importErr
}

type stubSentStore struct {
	mutex   sync.Mutex
	records []SentRecord
	addErr  error
}

func (store *stubSentStore) Add(_ context.Context, record SentRecord) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.addErr != nil {
		return store.addErr
	}
	store.records = append(store.records, record)
	return nil
}

func (store *stubSentStore) List(context.Context, int) ([]SentRecord, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return append([]SentRecord(nil), store.records...), nil
}

type stubReceiveStore struct {
	mutex   sync.Mutex
	records []ReceivedRecord
	addErr  error
}

func (store *stubReceiveStore) Add(_ context.Context, record ReceivedRecord) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.addErr != nil {
		return store.addErr
	}
	store.records = append(store.records, record)
	return nil
}

func (store *stubReceiveStore) List(context.Context, int) ([]ReceivedRecord, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return append([]ReceivedRecord(nil), store.records...), nil
}

type stubPendingStore struct {
	mutex   sync.Mutex
	quotes  []PendingMintQuote
	addErr  error
	listErr error
	minted  []string
	errors  map[string]string
}

func (store *stubPendingStore) Add(_ context.Context, quote PendingMintQuote) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.addErr != nil {
		return store.addErr
	}
	store.quotes = append(store.quotes, quote)
	return nil
}

func (store *stubPendingStore) List(context.Context) ([]PendingMintQuote, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.listErr != nil {
		return nil, store.listErr
	}
	return append([]PendingMintQuote(nil), store.quotes...), nil
}

func (store *stubPendingStore) MarkMinted(_ context.Context, id string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.minted = append(store.minted, id)
	return nil
}

func (store *stubPendingStore) RecordError(_ context.Context, id string, message string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.errors == nil {
		store.errors = make(map[string]string)
	}
	store.errors[id] = message
	return nil
}

type stubTopUpStore struct {
	mutex  sync.Mutex
	topUps []CompletedTopUp
}

func (store *stubTopUpStore) Add(_ context.Context, topUp CompletedTopUp) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.topUps = append(store.topUps, topUp)
	return nil
}

func (store *stubTopUpStore) List(context.Context, int) ([]CompletedTopUp, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return append([]CompletedTopUp(nil), store.topUps...), nil
}

type stubMessenger struct {
	mutex      sync.Mutex
	recipients []string
	bodies     []string
	sendErr    error
}

func (messenger *stubMessenger) SendText(_ context.Context, recipientID string, body string) error {
	messenger.mutex.Lock()
	defer messenger.mutex.Unlock()
	if messenger.sendErr != nil {
		return messenger.sendErr
	}
	messenger.recipients = append(messenger.recipients, recipientID)
	messenger.bodies = append(messenger.bodies, body)
	return nil
}

type recordingLogger struct {
	mutex   sync.Mutex
	entries []OperationLog
}

func (logger *recordingLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	logger.entries = append(logger.entries, entry)
}

func (logger *recordingLogger) byOperation(operation string) []OperationLog {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	matches := make([]OperationLog, 0, len(logger.entries))
	for _, entry := range logger.entries {
		if entry.Operation == operation {
			matches = append(matches, entry)
		}
	}
	return matches
}

func fixedClock(valueMs int64) func() int64 {
	return func() int64 { return valueMs }
}

func mustNewWorkflow(test *testing.T, engine Engine, options ...WorkflowOption) *Workflow {
	test.Helper()
	workflow, err := NewWorkflow(engine, fixedClock(1_000), options...)
	if err != nil {
		test.Fatalf("new workflow: %v", err)
	}
	return workflow
}
