package payments

import (
	"context"
	"fmt"
	"strings"
)

// WorkflowState is the per-request lifecycle: Idle, then Requesting while
// the engine call is in flight, then a terminal Succeeded or Failed.
type WorkflowState string

const (
	WorkflowIdle       WorkflowState = "idle"
	WorkflowRequesting WorkflowState = "requesting"
	WorkflowSucceeded  WorkflowState = "succeeded"
	WorkflowFailed     WorkflowState = "failed"
)

// MintQuoteOutcome is the terminal result of a mint quote request.
type MintQuoteOutcome struct {
	State WorkflowState
	Quote MintQuote
	Err   error
}

// MeltQuoteOutcome is the terminal result of a melt quote request.
type MeltQuoteOutcome struct {
	State WorkflowState
	Quote MeltQuote
	Err   error
}

// MeltOutcome is the terminal result of a melt confirmation. No partial
// state is exposed: the payment either went through or it did not.
type MeltOutcome struct {
	State WorkflowState
	Paid  bool
	Err   error
}

// SendTokenOutcome is the terminal result of token creation. A failed
// creation carries the ErrorToken sentinel rather than an error.
type SendTokenOutcome struct {
	State WorkflowState
	Token string
}

// Workflow orchestrates quote and send-token cycles against the wallet
// engine. Each invocation runs independently: there is no single-flight
// dedup of concurrent identical requests, no retry, and no cancellation
// once the blocking engine call has started. Callers serialize at the UI
// layer by disabling retriggering controls while Requesting.
type Workflow struct {
	engine  Engine
	pending PendingMintStore
	nowFn   func() int64
	logger  OperationLogger
}

// WorkflowOption configures a Workflow instance.
type WorkflowOption func(*Workflow)

// WithPendingMintStore records successful mint quotes so the mint watcher
// can auto-mint them once paid.
func WithPendingMintStore(store PendingMintStore) WorkflowOption {
	return func(workflow *Workflow) {
		workflow.pending = store
	}
}

// WithWorkflowLogger wires a logger that receives callbacks for every
// workflow operation.
func WithWorkflowLogger(logger OperationLogger) WorkflowOption {
	return func(workflow *Workflow) {
		workflow.logger = logger
	}
}

// NewWorkflow wires a Workflow.
func NewWorkflow(engine Engine, now func() int64, options ...WorkflowOption) (*Workflow, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: engine dependency is nil", ErrInvalidConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidConfig)
	}
	workflow := &Workflow{engine: engine, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(workflow)
		}
	}
	return workflow, nil
}

// RequestMintQuote asks the engine what it costs to top up the wallet by
// amountSats. A non-positive amount fails locally; the engine is never
// invoked. On success the quote is recorded as pending when a pending store
// is wired.
func (workflow *Workflow) RequestMintQuote(ctx context.Context, amountSats int64) (MintQuote, error) {
	if amountSats <= 0 {
		err := fmt.Errorf("%w: mint amount must be positive", ErrInvalidAmount)
		workflow.logOperation(ctx, OperationLog{Operation: operationMintQuote, AmountSats: amountSats, Error: err})
		return MintQuote{}, err
	}
	quote, engineErr := workflow.engine.RequestMintQuote(ctx, amountSats)
	if engineErr != nil {
		err := WrapError(operationMintQuote, errorSubjectEngine, "request", engineFailure(engineErr))
		workflow.logOperation(ctx, OperationLog{Operation: operationMintQuote, AmountSats: amountSats, Error: err})
		return MintQuote{}, err
	}
	workflow.recordPendingMint(ctx, quote)
	workflow.logOperation(ctx, OperationLog{Operation: operationMintQuote, AmountSats: amountSats, QuoteID: quote.ID})
	return quote, nil
}

// RequestMintQuoteAsync runs RequestMintQuote on a background worker and
// delivers the terminal outcome on the returned channel. A caller that no
// longer needs the result simply discards it when delivered.
func (workflow *Workflow) RequestMintQuoteAsync(ctx context.Context, amountSats int64) <-chan MintQuoteOutcome {
	results := make(chan MintQuoteOutcome, 1)
	go func() {
		quote, err := workflow.RequestMintQuote(ctx, amountSats)
		results <- MintQuoteOutcome{State: terminalState(err), Quote: quote, Err: err}
	}()
	return results
}

// RequestMeltQuote asks the engine what it costs to pay a Lightning invoice
// out of wallet funds. An empty invoice fails locally; an empty engine
// result maps to ErrNoQuote.
func (workflow *Workflow) RequestMeltQuote(ctx context.Context, invoice string) (MeltQuote, error) {
	if strings.TrimSpace(invoice) == "" {
		err := fmt.Errorf("%w: empty value", ErrInvalidInvoice)
		workflow.logOperation(ctx, OperationLog{Operation: operationMeltQuote, Error: err})
		return MeltQuote{}, err
	}
	quote, engineErr := workflow.engine.RequestMeltQuote(ctx, invoice)
	if engineErr != nil {
		err := WrapError(operationMeltQuote, errorSubjectEngine, "request", engineFailure(engineErr))
		workflow.logOperation(ctx, OperationLog{Operation: operationMeltQuote, Error: err})
		return MeltQuote{}, err
	}
	if quote.IsZero() {
		err := WrapError(operationMeltQuote, errorSubjectQuote, "empty", ErrNoQuote)
		workflow.logOperation(ctx, OperationLog{Operation: operationMeltQuote, Error: err})
		return MeltQuote{}, err
	}
	workflow.logOperation(ctx, OperationLog{Operation: operationMeltQuote, AmountSats: quote.AmountSats, QuoteID: quote.ID})
	return quote, nil
}

// RequestMeltQuoteAsync runs RequestMeltQuote on a background worker.
func (workflow *Workflow) RequestMeltQuoteAsync(ctx context.Context, invoice string) <-chan MeltQuoteOutcome {
	results := make(chan MeltQuoteOutcome, 1)
	go func() {
		quote, err := workflow.RequestMeltQuote(ctx, invoice)
		results <- MeltQuoteOutcome{State: terminalState(err), Quote: quote, Err: err}
	}()
	return results
}

// ConfirmMelt performs the payment a melt quote describes. It reports
// success or failure only.
func (workflow *Workflow) ConfirmMelt(ctx context.Context, quote MeltQuote) (bool, error) {
	paid, engineErr := workflow.engine.Melt(ctx, quote)
	if engineErr != nil {
		err := WrapError(operationMelt, errorSubjectEngine, "melt", engineFailure(engineErr))
		workflow.logOperation(ctx, OperationLog{Operation: operationMelt, AmountSats: quote.AmountSats, QuoteID: quote.ID, Error: err})
		return false, err
	}
	workflow.logOperation(ctx, OperationLog{Operation: operationMelt, AmountSats: quote.AmountSats, QuoteID: quote.ID})
	return paid, nil
}

// ConfirmMeltAsync runs ConfirmMelt on a background worker.
func (workflow *Workflow) ConfirmMeltAsync(ctx context.Context, quote MeltQuote) <-chan MeltOutcome {
	results := make(chan MeltOutcome, 1)
	go func() {
		paid, err := workflow.ConfirmMelt(ctx, quote)
		results <- MeltOutcome{State: terminalState(err), Paid: paid, Err: err}
	}()
	return results
}

// CreateSendToken asks the engine to carve amountSats out of the wallet as
// an opaque transferable token. On any failure it returns the ErrorToken
// sentinel instead of an error: in some flows downstream composition has
// already happened optimistically, so callers must check for the sentinel
// explicitly.
func (workflow *Workflow) CreateSendToken(ctx context.Context, amountSats int64, note string) string {
	if amountSats <= 0 {
		workflow.logOperation(ctx, OperationLog{
			Operation:  operationSendToken,
			AmountSats: amountSats,
			Error:      fmt.Errorf("%w: send amount must be positive", ErrInvalidAmount),
		})
		return ErrorToken
	}
	token, engineErr := workflow.engine.CreateSendToken(ctx, amountSats, note)
	if engineErr != nil || token == "" {
		if engineErr == nil {
			engineErr = fmt.Errorf("empty token")
		}
		workflow.logOperation(ctx, OperationLog{
			Operation:  operationSendToken,
			AmountSats: amountSats,
			Error:      WrapError(operationSendToken, errorSubjectToken, "create", engineFailure(engineErr)),
		})
		return ErrorToken
	}
	workflow.logOperation(ctx, OperationLog{Operation: operationSendToken, AmountSats: amountSats})
	return token
}

// CreateSendTokenAsync runs CreateSendToken on a background worker.
func (workflow *Workflow) CreateSendTokenAsync(ctx context.Context, amountSats int64, note string) <-chan SendTokenOutcome {
	results := make(chan SendTokenOutcome, 1)
	go func() {
		token := workflow.CreateSendToken(ctx, amountSats, note)
		state := WorkflowSucceeded
		if token == ErrorToken {
			state = WorkflowFailed
		}
		results <- SendTokenOutcome{State: state, Token: token}
	}()
	return results
}

func (workflow *Workflow) recordPendingMint(ctx context.Context, quote MintQuote) {
	if workflow.pending == nil {
		return
	}
	pendingQuote := PendingMintQuote{
		ID:          quote.ID,
		Invoice:     quote.Invoice,
		AmountSats:  quote.AmountSats,
		ExpiresAtMs: quote.ExpiresAtMs,
		MintURL:     quote.MintURL,
		CreatedAtMs: workflow.nowFn(),
	}
	if err := workflow.pending.Add(ctx, pendingQuote); err != nil {
		// The quote itself is already issued; a lost pending row only
		// delays auto-minting until the next explicit refresh.
		workflow.logOperation(ctx, OperationLog{
			Operation: operationMintQuote,
			QuoteID:   quote.ID,
			Error:     WrapError(operationMintQuote, errorSubjectLedger, "append", fmt.Errorf("%w: %v", ErrRecoverableWrite, err)),
		})
	}
}

func (workflow *Workflow) logOperation(ctx context.Context, entry OperationLog) {
	logOperation(ctx, workflow.logger, entry)
}

func terminalState(err error) WorkflowState {
	if err != nil {
		return WorkflowFailed
	}
	return WorkflowSucceeded
}
