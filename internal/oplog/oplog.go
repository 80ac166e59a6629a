// Package oplog bridges domain operation callbacks to a zap logger.
package oplog

import (
	"context"

	"github.com/MarkoPoloResearchLab/cashbridge/pkg/payments"
	"go.uber.org/zap"
)

// ZapLogger implements payments.OperationLogger on a zap.Logger.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger returns a ZapLogger. A nil zap logger yields a no-op adapter.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger}
}

// LogOperation writes one structured line per operation. Failed operations
// log at warn.
func (adapter *ZapLogger) LogOperation(_ context.Context, entry payments.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if entry.AmountSats != 0 {
		fields = append(fields, zap.Int64("amount_sats", entry.AmountSats))
	}
	if entry.PeerID != "" {
		fields = append(fields, zap.String("peer_id", entry.PeerID))
	}
	if entry.QuoteID != "" {
		fields = append(fields, zap.String("quote_id", entry.QuoteID))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		adapter.logger.Warn("payment operation", fields...)
		return
	}
	adapter.logger.Info("payment operation", fields...)
}
