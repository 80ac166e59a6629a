package payments

import (
	"context"
	"fmt"
)

// SendOutcome is the terminal result of a confirmed send.
type SendOutcome struct {
	State WorkflowState
	Err   error
}

// SendFlow bridges token creation into the chat pipeline: it creates a
// token, records the outgoing transfer locally, and delivers the token as a
// text message to the recipient.
type SendFlow struct {
	workflow  *Workflow
	sent      SentStore
	messenger Messenger
	nowFn     func() int64
	logger    OperationLogger
}

// SendFlowOption configures a SendFlow instance.
type SendFlowOption func(*SendFlow)

// WithSendFlowLogger wires a logger that receives callbacks for every
// confirmed send.
func WithSendFlowLogger(logger OperationLogger) SendFlowOption {
	return func(flow *SendFlow) {
		flow.logger = logger
	}
}

// NewSendFlow wires a SendFlow.
func NewSendFlow(workflow *Workflow, sent SentStore, messenger Messenger, now func() int64, options ...SendFlowOption) (*SendFlow, error) {
	if workflow == nil {
		return nil, fmt.Errorf("%w: workflow dependency is nil", ErrInvalidConfig)
	}
	if sent == nil {
		return nil, fmt.Errorf("%w: sent store dependency is nil", ErrInvalidConfig)
	}
	if messenger == nil {
		return nil, fmt.Errorf("%w: messenger dependency is nil", ErrInvalidConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidConfig)
	}
	flow := &SendFlow{workflow: workflow, sent: sent, messenger: messenger, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(flow)
		}
	}
	return flow, nil
}

// ConfirmSend creates a token for amountSats, appends the local sent record,
// and delivers the token to the recipient as a text message. The ledger
// write and the message delivery are independent best-effort steps: a failed
// ledger append is logged and swallowed because the token already exists and
// the user-visible send must still succeed.
func (flow *SendFlow) ConfirmSend(ctx context.Context, recipient Recipient, amountSats int64, note string) error {
	if amountSats <= 0 {
		err := fmt.Errorf("%w: send amount must be positive", ErrInvalidAmount)
		flow.logOperation(ctx, OperationLog{Operation: operationConfirmSend, AmountSats: amountSats, Error: err})
		return err
	}
	if recipient.ID == "" {
		err := WrapError(operationConfirmSend, errorSubjectRecipient, "missing", ErrNoRecipient)
		flow.logOperation(ctx, OperationLog{Operation: operationConfirmSend, AmountSats: amountSats, Error: err})
		return err
	}

	token := flow.workflow.CreateSendToken(ctx, amountSats, note)
	if token == ErrorToken {
		err := WrapError(operationConfirmSend, errorSubjectToken, "create", ErrEngine)
		flow.logOperation(ctx, OperationLog{Operation: operationConfirmSend, AmountSats: amountSats, PeerID: recipient.ID, Error: err})
		return err
	}

	memo := EncodeMemo(MemoPrefixSentEcash, recipient.ID, recipient.DisplayName)
	record := SentRecord{
		AmountSats:  amountSats,
		CreatedAtMs: flow.nowFn(),
		Memo:        memo,
	}
	if appendErr := flow.sent.Add(ctx, record); appendErr != nil {
		flow.logOperation(ctx, OperationLog{
			Operation:  operationConfirmSend,
			AmountSats: amountSats,
			PeerID:     recipient.ID,
			Status:     operationStatusOK,
			Error:      WrapError(operationConfirmSend, errorSubjectLedger, "append", fmt.Errorf("%w: %v", ErrRecoverableWrite, appendErr)),
		})
	}

	if sendErr := flow.messenger.SendText(ctx, recipient.ID, token); sendErr != nil {
		err := WrapError(operationConfirmSend, errorSubjectRecipient, "deliver", sendErr)
		flow.logOperation(ctx, OperationLog{Operation: operationConfirmSend, AmountSats: amountSats, PeerID: recipient.ID, Error: err})
		return err
	}

	flow.logOperation(ctx, OperationLog{Operation: operationConfirmSend, AmountSats: amountSats, PeerID: recipient.ID})
	return nil
}

// ConfirmSendAsync runs ConfirmSend on a background worker and delivers the
// terminal outcome on the returned channel.
func (flow *SendFlow) ConfirmSendAsync(ctx context.Context, recipient Recipient, amountSats int64, note string) <-chan SendOutcome {
	results := make(chan SendOutcome, 1)
	go func() {
		err := flow.ConfirmSend(ctx, recipient, amountSats, note)
		results <- SendOutcome{State: terminalState(err), Err: err}
	}()
	return results
}

func (flow *SendFlow) logOperation(ctx context.Context, entry OperationLog) {
	logOperation(ctx, flow.logger, entry)
}
