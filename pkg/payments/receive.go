package payments

import (
	"context"
	"fmt"
	"strings"
)

// ExtractToken scans a message body for an ecash token. It returns the
// first whitespace-delimited fragment that looks like one.
func ExtractToken(body string) (string, bool) {
	for _, part := range strings.Fields(body) {
		lowered := strings.ToLower(part)
		if strings.HasPrefix(lowered, "cashu:") ||
			strings.HasPrefix(part, "cashuA") ||
			strings.HasPrefix(part, "cashuB") {
			return part, true
		}
	}
	return "", false
}

// ReceiveFlow imports a token delivered over chat into the wallet and
// records the receipt locally.
type ReceiveFlow struct {
	engine   Engine
	received ReceiveStore
	nowFn    func() int64
	logger   OperationLogger
}

// ReceiveFlowOption configures a ReceiveFlow instance.
type ReceiveFlowOption func(*ReceiveFlow)

// WithReceiveFlowLogger wires a logger that receives callbacks for every
// import.
func WithReceiveFlowLogger(logger OperationLogger) ReceiveFlowOption {
	return func(flow *ReceiveFlow) {
		flow.logger = logger
	}
}

// NewReceiveFlow wires a ReceiveFlow.
func NewReceiveFlow(engine Engine, received ReceiveStore, now func() int64, options ...ReceiveFlowOption) (*ReceiveFlow, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: engine dependency is nil", ErrInvalidConfig)
	}
	if received == nil {
		return nil, fmt.Errorf("%w: receive store dependency is nil", ErrInvalidConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidConfig)
	}
	flow := &ReceiveFlow{engine: engine, received: received, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(flow)
		}
	}
	return flow, nil
}

// ImportToken redeems a token with the engine and records the receipt with
// the sender's metadata encoded into the memo. The funds are already in the
// wallet when the local append happens, so append failures are logged and
// swallowed. Returns the sats added.
func (flow *ReceiveFlow) ImportToken(ctx context.Context, sender Recipient, token string) (int64, error) {
	if strings.TrimSpace(token) == "" {
		err := fmt.Errorf("%w: empty token", ErrInvalidRecord)
		flow.logOperation(ctx, OperationLog{Operation: operationImport, Error: err})
		return 0, err
	}
	addedSats, engineErr := flow.engine.ImportToken(ctx, token)
	if engineErr != nil {
		err := WrapError(operationImport, errorSubjectEngine, "import", engineFailure(engineErr))
		flow.logOperation(ctx, OperationLog{Operation: operationImport, PeerID: sender.ID, Error: err})
		return 0, err
	}

	record := ReceivedRecord{
		AmountSats:  addedSats,
		CreatedAtMs: flow.nowFn(),
		Memo:        EncodeMemo(MemoPrefixReceivedFrom, sender.ID, sender.DisplayName),
	}
	if appendErr := flow.received.Add(ctx, record); appendErr != nil {
		flow.logOperation(ctx, OperationLog{
			Operation:  operationImport,
			AmountSats: addedSats,
			PeerID:     sender.ID,
			Status:     operationStatusOK,
			Error:      WrapError(operationImport, errorSubjectLedger, "append", fmt.Errorf("%w: %v", ErrRecoverableWrite, appendErr)),
		})
	}

	flow.logOperation(ctx, OperationLog{Operation: operationImport, AmountSats: addedSats, PeerID: sender.ID})
	return addedSats, nil
}

func (flow *ReceiveFlow) logOperation(ctx context.Context, entry OperationLog) {
	logOperation(ctx, flow.logger, entry)
}
