package gormstore

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SentEcash mirrors the sent_ecash table. One row per outgoing ecash token.
type SentEcash struct {
	RecordID    string  `gorm:"type:uuid;primaryKey"`
	ExternalID  *string `gorm:"index:idx_sent_external"`
	AmountSats  int64   `gorm:"not null"`
	CreatedAtMs int64   `gorm:"not null;index:idx_sent_created"`
	Memo        string  `gorm:"not null"`
}

func (SentEcash) TableName() string { return "sent_ecash" }

func (record *SentEcash) BeforeCreate(tx *gorm.DB) error {
	if record.RecordID == "" {
		record.RecordID = uuid.NewString()
	}
	return nil
}

// ReceivedEcash mirrors the received_ecash table. One row per imported token.
type ReceivedEcash struct {
	RecordID    string  `gorm:"type:uuid;primaryKey"`
	ExternalID  *string `gorm:"index:idx_received_external"`
	AmountSats  int64   `gorm:"not null"`
	CreatedAtMs int64   `gorm:"not null;index:idx_received_created"`
	Memo        string  `gorm:"not null"`
}

func (ReceivedEcash) TableName() string { return "received_ecash" }

func (record *ReceivedEcash) BeforeCreate(tx *gorm.DB) error {
	if record.RecordID == "" {
		record.RecordID = uuid.NewString()
	}
	return nil
}

// PendingMint mirrors the pending_mint_quotes table. Rows live until the
// watcher mints the quote and promotes it to a completed top-up.
type PendingMint struct {
	RecordID    string  `gorm:"type:uuid;primaryKey"`
	QuoteID     *string `gorm:"index:uniq_pending_quote,unique"`
	Invoice     *string `gorm:"index:idx_pending_invoice"`
	AmountSats  int64   `gorm:"not null"`
	ExpiresAtMs int64   `gorm:"not null"`
	MintURL     string  `gorm:"not null"`
	CreatedAtMs int64   `gorm:"not null;index:idx_pending_created"`
	LastError   *string
}

func (PendingMint) TableName() string { return "pending_mint_quotes" }

func (record *PendingMint) BeforeCreate(tx *gorm.DB) error {
	if record.RecordID == "" {
		record.RecordID = uuid.NewString()
	}
	return nil
}

// CompletedTopUp mirrors the completed_topups table.
type CompletedTopUp struct {
	RecordID    string  `gorm:"type:uuid;primaryKey"`
	ExternalID  *string `gorm:"index:idx_topup_external"`
	AmountSats  int64   `gorm:"not null"`
	TimestampMs int64   `gorm:"not null;index:idx_topup_timestamp"`
}

func (CompletedTopUp) TableName() string { return "completed_topups" }

func (record *CompletedTopUp) BeforeCreate(tx *gorm.DB) error {
	if record.RecordID == "" {
		record.RecordID = uuid.NewString()
	}
	return nil
}
