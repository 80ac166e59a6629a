package payments

import "context"

// OperationLogger records domain-level events emitted by workflow and send
// operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes one workflow or send operation.
type OperationLog struct {
	Operation  string
	AmountSats int64
	PeerID     string
	QuoteID    string
	Status     string
	Error      error
}

func logOperation(ctx context.Context, logger OperationLogger, entry OperationLog) {
	if logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	logger.LogOperation(ctx, entry)
}
