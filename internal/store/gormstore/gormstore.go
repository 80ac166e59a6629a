package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/cashbridge/pkg/payments"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	constraintPendingQuote = "uniq_pending_quote"
	pgUniqueViolationCode  = "23505"
	sqliteConstraintCode   = 19
	errorOperationStore    = "store"
	errorSubjectSent       = "sent"
	errorSubjectReceived   = "received"
	errorSubjectPending    = "pending_mint"
	errorSubjectTopUp      = "topup"
	errorCodeInsert        = "insert"
	errorCodeInvalid       = "invalid"
	errorCodeList          = "list"
	errorCodeDelete        = "delete"
	errorCodeUpdate        = "update"
)

// Store implements the payments record stores using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the backing tables.
func (store *Store) Migrate() error {
	return store.db.AutoMigrate(&SentEcash{}, &ReceivedEcash{}, &PendingMint{}, &CompletedTopUp{})
}

// AddSent appends an outgoing ecash record.
func (store *Store) AddSent(ctx context.Context, record payments.SentRecord) error {
	if err := record.Validate(); err != nil {
		return wrapStoreError(errorSubjectSent, errorCodeInvalid, err)
	}
	row := SentEcash{
		ExternalID:  optionalString(record.ExternalID),
		AmountSats:  record.AmountSats,
		CreatedAtMs: record.CreatedAtMs,
		Memo:        record.Memo,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectSent, errorCodeInsert, err)
	}
	return nil
}

// ListSent returns outgoing records, most recent first.
func (store *Store) ListSent(ctx context.Context, limit int) ([]payments.SentRecord, error) {
	var rows []SentEcash
	query := store.db.WithContext(ctx).Order("created_at_ms DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectSent, errorCodeList, err)
	}
	records := make([]payments.SentRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, payments.SentRecord{
			ExternalID:  stringOrEmpty(row.ExternalID),
			AmountSats:  row.AmountSats,
			CreatedAtMs: row.CreatedAtMs,
			Memo:        row.Memo,
		})
	}
	return records, nil
}

// AddReceived appends an incoming ecash record.
func (store *Store) AddReceived(ctx context.Context, record payments.ReceivedRecord) error {
	if err := record.Validate(); err != nil {
		return wrapStoreError(errorSubjectReceived, errorCodeInvalid, err)
	}
	row := ReceivedEcash{
		ExternalID:  optionalString(record.ExternalID),
		AmountSats:  record.AmountSats,
		CreatedAtMs: record.CreatedAtMs,
		Memo:        record.Memo,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectReceived, errorCodeInsert, err)
	}
	return nil
}

// ListReceived returns incoming records, most recent first.
func (store *Store) ListReceived(ctx context.Context, limit int) ([]payments.ReceivedRecord, error) {
	var rows []ReceivedEcash
	query := store.db.WithContext(ctx).Order("created_at_ms DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectReceived, errorCodeList, err)
	}
	records := make([]payments.ReceivedRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, payments.ReceivedRecord{
			ExternalID:  stringOrEmpty(row.ExternalID),
			AmountSats:  row.AmountSats,
			CreatedAtMs: row.CreatedAtMs,
			Memo:        row.Memo,
		})
	}
	return records, nil
}

// AddPending records a mint quote awaiting payment. Re-adding a quote with
// the same quote id is a no-op so a retried request cannot double-count.
func (store *Store) AddPending(ctx context.Context, quote payments.PendingMintQuote) error {
	row := PendingMint{
		QuoteID:     optionalString(quote.ID),
		Invoice:     optionalString(quote.Invoice),
		AmountSats:  quote.AmountSats,
		ExpiresAtMs: quote.ExpiresAtMs,
		MintURL:     quote.MintURL,
		CreatedAtMs: quote.CreatedAtMs,
		LastError:   optionalString(quote.LastError),
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isPendingQuoteConflict(err) {
		return nil
	}
	if err != nil {
		return wrapStoreError(errorSubjectPending, errorCodeInsert, err)
	}
	return nil
}

// ListPending returns all quotes still awaiting payment, oldest first.
func (store *Store) ListPending(ctx context.Context) ([]payments.PendingMintQuote, error) {
	var rows []PendingMint
	err := store.db.WithContext(ctx).Order("created_at_ms ASC").Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectPending, errorCodeList, err)
	}
	quotes := make([]payments.PendingMintQuote, 0, len(rows))
	for _, row := range rows {
		quotes = append(quotes, payments.PendingMintQuote{
			ID:          stringOrEmpty(row.QuoteID),
			Invoice:     stringOrEmpty(row.Invoice),
			AmountSats:  row.AmountSats,
			ExpiresAtMs: row.ExpiresAtMs,
			MintURL:     row.MintURL,
			CreatedAtMs: row.CreatedAtMs,
			LastError:   stringOrEmpty(row.LastError),
		})
	}
	return quotes, nil
}

// MarkMinted removes a pending quote once its top-up completed. Missing rows
// are fine: a concurrent pass may have minted it first.
func (store *Store) MarkMinted(ctx context.Context, id string) error {
	err := store.db.WithContext(ctx).
		Where("quote_id = ? OR invoice = ?", id, id).
		Delete(&PendingMint{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectPending, errorCodeDelete, err)
	}
	return nil
}

// RecordError keeps a pending quote with its most recent mint failure.
func (store *Store) RecordError(ctx context.Context, id string, message string) error {
	err := store.db.WithContext(ctx).
		Model(&PendingMint{}).
		Where("quote_id = ? OR invoice = ?", id, id).
		Update("last_error", message).Error
	if err != nil {
		return wrapStoreError(errorSubjectPending, errorCodeUpdate, err)
	}
	return nil
}

// AddTopUp records a completed top-up.
func (store *Store) AddTopUp(ctx context.Context, topUp payments.CompletedTopUp) error {
	row := CompletedTopUp{
		ExternalID:  optionalString(topUp.ID),
		AmountSats:  topUp.AmountSats,
		TimestampMs: topUp.TimestampMs,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectTopUp, errorCodeInsert, err)
	}
	return nil
}

// ListTopUps returns completed top-ups, most recent first.
func (store *Store) ListTopUps(ctx context.Context, limit int) ([]payments.CompletedTopUp, error) {
	var rows []CompletedTopUp
	query := store.db.WithContext(ctx).Order("timestamp_ms DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectTopUp, errorCodeList, err)
	}
	topUps := make([]payments.CompletedTopUp, 0, len(rows))
	for _, row := range rows {
		topUps = append(topUps, payments.CompletedTopUp{
			ID:          stringOrEmpty(row.ExternalID),
			AmountSats:  row.AmountSats,
			TimestampMs: row.TimestampMs,
		})
	}
	return topUps, nil
}

// SentRecords adapts the store to the payments.SentStore interface.
func (store *Store) SentRecords() payments.SentStore { return sentAdapter{store: store} }

// ReceivedRecords adapts the store to the payments.ReceiveStore interface.
func (store *Store) ReceivedRecords() payments.ReceiveStore { return receivedAdapter{store: store} }

// PendingMints adapts the store to the payments.PendingMintStore interface.
func (store *Store) PendingMints() payments.PendingMintStore { return pendingAdapter{store: store} }

// TopUps adapts the store to the payments.TopUpStore interface.
func (store *Store) TopUps() payments.TopUpStore { return topUpAdapter{store: store} }

type sentAdapter struct{ store *Store }

func (adapter sentAdapter) Add(ctx context.Context, record payments.SentRecord) error {
	return adapter.store.AddSent(ctx, record)
}

func (adapter sentAdapter) List(ctx context.Context, limit int) ([]payments.SentRecord, error) {
	return adapter.store.ListSent(ctx, limit)
}

type receivedAdapter struct{ store *Store }

func (adapter receivedAdapter) Add(ctx context.Context, record payments.ReceivedRecord) error {
	return adapter.store.AddReceived(ctx, record)
}

func (adapter receivedAdapter) List(ctx context.Context, limit int) ([]payments.ReceivedRecord, error) {
	return adapter.store.ListReceived(ctx, limit)
}

type pendingAdapter struct{ store *Store }

func (adapter pendingAdapter) Add(ctx context.Context, quote payments.PendingMintQuote) error {
	return adapter.store.AddPending(ctx, quote)
}

func (adapter pendingAdapter) List(ctx context.Context) ([]payments.PendingMintQuote, error) {
	return adapter.store.ListPending(ctx)
}

func (adapter pendingAdapter) MarkMinted(ctx context.Context, id string) error {
	return adapter.store.MarkMinted(ctx, id)
}

func (adapter pendingAdapter) RecordError(ctx context.Context, id string, message string) error {
	return adapter.store.RecordError(ctx, id, message)
}

type topUpAdapter struct{ store *Store }

func (adapter topUpAdapter) Add(ctx context.Context, topUp payments.CompletedTopUp) error {
	return adapter.store.AddTopUp(ctx, topUp)
}

func (adapter topUpAdapter) List(ctx context.Context, limit int) ([]payments.CompletedTopUp, error) {
	return adapter.store.ListTopUps(ctx, limit)
}

func wrapStoreError(subject string, code string, err error) error {
	return payments.WrapError(errorOperationStore, subject, code, err)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func isPendingQuoteConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintPendingQuote
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
