package payments

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/MarkoPoloResearchLab/cashbridge/pkg/rates"
)

// PaymentsState gates whether activity rows are rendered at all.
type PaymentsState string

const (
	StateNotActivated PaymentsState = "not_activated"
	StateActivating   PaymentsState = "activating"
	StateActivated    PaymentsState = "activated"
	StateNotAllowed   PaymentsState = "activate_not_allowed"
)

// RowKind identifies the kind of an aggregated view row.
type RowKind string

const (
	RowHeader           RowKind = "header"
	RowActivity         RowKind = "activity"
	RowLegacyActivity   RowKind = "legacy_activity"
	RowInProgress       RowKind = "in_progress"
	RowNoRecentActivity RowKind = "no_recent_activity"
	RowStateNotice      RowKind = "state_notice"
	RowInfoCard         RowKind = "info_card"
)

// Row is one presentation row of the aggregated view. Item and Legacy are
// set only for their respective kinds.
type Row struct {
	Kind   RowKind
	Title  string
	Item   *ActivityItem
	Legacy *LegacyItem
}

// AggregatedView is the ordered, deduplicated presentation list.
type AggregatedView struct {
	Rows []Row
}

// Snapshot is the full state exposed upward: the view plus the balance and
// fiat scalars.
type Snapshot struct {
	View        AggregatedView
	SatsBalance int64
	FiatText    string
}

const (
	headerRecentActivity   = "Recent activity"
	titleNoRecentActivity  = "No recent activity"
	titleActivityLoading   = "Loading activity"
	fiatPlaceholderAmount  = "--"
	operationRefresh       = "refresh_activity"
	errorSubjectActivity   = "activity"
	errorSubjectBalance    = "balance"
)

// infoCardTitles is the fixed trailing set of informational cards, appended
// to every view regardless of state.
var infoCardTitles = []string{
	"Back up your recovery phrase",
	"Learn more about ecash payments",
}

// Aggregator merges the balance, exchange-rate, and classified-activity
// inputs into one AggregatedView. A single mailbox goroutine owns all state
// and recomputes the view on any change; fetches run on background workers
// that report back through the mailbox. Only the most recent value of each
// input is observed: stale intermediate states coalesce.
type Aggregator struct {
	engine   Engine
	history  HistorySource
	legacy   LegacySource
	rates    rates.Provider
	currency string
	logger   OperationLogger

	mailbox  chan func()
	stopped  chan struct{}
	stopOnce sync.Once
	updates  chan AggregatedView
	snapshot atomic.Pointer[Snapshot]

	// owned by the run loop
	state aggregatorState
}

type aggregatorState struct {
	paymentsState  PaymentsState
	balance        Balance
	fiatText       string
	activity       []ActivityItem
	activityLoaded bool
	legacyItems    []LegacyItem
	legacyLoaded   bool
}

// AggregatorOption configures an Aggregator instance.
type AggregatorOption func(*Aggregator)

// WithLegacySource wires the secondary engine-native activity source.
func WithLegacySource(source LegacySource) AggregatorOption {
	return func(aggregator *Aggregator) {
		aggregator.legacy = source
	}
}

// WithRatesProvider wires sats-to-fiat conversion for the fiat text scalar.
func WithRatesProvider(provider rates.Provider, currency string) AggregatorOption {
	return func(aggregator *Aggregator) {
		aggregator.rates = provider
		aggregator.currency = currency
	}
}

// WithHistorySource overrides where activity entries are fetched from. The
// default is the engine itself; pass a LedgerFeed to merge in local records.
func WithHistorySource(source HistorySource) AggregatorOption {
	return func(aggregator *Aggregator) {
		aggregator.history = source
	}
}

// WithAggregatorLogger wires a logger for degraded refreshes.
func WithAggregatorLogger(logger OperationLogger) AggregatorOption {
	return func(aggregator *Aggregator) {
		aggregator.logger = logger
	}
}

// NewAggregator wires an Aggregator. Call Start before using it.
func NewAggregator(engine Engine, options ...AggregatorOption) (*Aggregator, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: engine dependency is nil", ErrInvalidConfig)
	}
	aggregator := &Aggregator{
		engine:  engine,
		mailbox: make(chan func(), 16),
		stopped: make(chan struct{}),
		updates: make(chan AggregatedView, 1),
		state: aggregatorState{
			paymentsState: StateNotActivated,
		},
	}
	for _, option := range options {
		if option != nil {
			option(aggregator)
		}
	}
	// Without a legacy source there is nothing left to wait for.
	if aggregator.legacy == nil {
		aggregator.state.legacyLoaded = true
	}
	if aggregator.history == nil {
		aggregator.history = engine
	}
	aggregator.storeSnapshot()
	return aggregator, nil
}

// Start launches the coordination goroutine.
func (aggregator *Aggregator) Start() {
	go aggregator.run()
}

// Stop terminates the coordination goroutine. In-flight engine calls run to
// completion; their results are discarded on delivery.
func (aggregator *Aggregator) Stop() {
	aggregator.stopOnce.Do(func() { close(aggregator.stopped) })
}

// Updates delivers recomputed views. The channel holds the latest value
// only; a slow consumer observes coalesced state, never a backlog.
func (aggregator *Aggregator) Updates() <-chan AggregatedView {
	return aggregator.updates
}

// CurrentSnapshot returns the latest view, balance, and fiat text.
func (aggregator *Aggregator) CurrentSnapshot() Snapshot {
	return *aggregator.snapshot.Load()
}

// CurrentView returns the latest aggregated view.
func (aggregator *Aggregator) CurrentView() AggregatedView {
	return aggregator.snapshot.Load().View
}

// SetPaymentsState feeds the activation state input.
func (aggregator *Aggregator) SetPaymentsState(state PaymentsState) {
	aggregator.post(func() {
		aggregator.state.paymentsState = state
		aggregator.recompute()
	})
}

// SetActivity feeds the classified-activity input. The loaded flag
// distinguishes confirmed-empty from not-yet-fetched.
func (aggregator *Aggregator) SetActivity(items []ActivityItem, loaded bool) {
	aggregator.post(func() {
		aggregator.state.activity = items
		aggregator.state.activityLoaded = loaded
		aggregator.recompute()
	})
}

// SetLegacyActivity feeds the secondary activity input.
func (aggregator *Aggregator) SetLegacyActivity(items []LegacyItem, loaded bool) {
	aggregator.post(func() {
		aggregator.state.legacyItems = items
		aggregator.state.legacyLoaded = loaded
		aggregator.recompute()
	})
}

// RefreshActivity re-fetches every input on background workers. Each worker
// reports its result back into the coordination context; a failed fetch
// degrades to fewer rows, never to an error row.
func (aggregator *Aggregator) RefreshActivity(ctx context.Context) {
	go aggregator.fetchActivity(ctx)
	go aggregator.fetchBalance(ctx)
	if aggregator.legacy != nil {
		go aggregator.fetchLegacy(ctx)
	}
}

func (aggregator *Aggregator) run() {
	for {
		select {
		case fn := <-aggregator.mailbox:
			fn()
		case <-aggregator.stopped:
			return
		}
	}
}

func (aggregator *Aggregator) post(fn func()) {
	select {
	case aggregator.mailbox <- fn:
	case <-aggregator.stopped:
	}
}

func (aggregator *Aggregator) fetchActivity(ctx context.Context) {
	entries, err := aggregator.history.ListHistory(ctx, 0, historyFetchLimit)
	if err != nil {
		logOperation(ctx, aggregator.logger, OperationLog{
			Operation: operationRefresh,
			Error:     WrapError(operationRefresh, errorSubjectActivity, "list", engineFailure(err)),
		})
		aggregator.SetActivity(nil, true)
		return
	}
	aggregator.SetActivity(ClassifyEntries(entries), true)
}

func (aggregator *Aggregator) fetchBalance(ctx context.Context) {
	balance, err := aggregator.engine.GetBalance(ctx)
	if err != nil {
		logOperation(ctx, aggregator.logger, OperationLog{
			Operation: operationRefresh,
			Error:     WrapError(operationRefresh, errorSubjectBalance, "get", engineFailure(err)),
		})
		balance = Balance{}
	}
	fiatText := aggregator.fiatTextFor(ctx, balance.SpendableSats)
	aggregator.post(func() {
		aggregator.state.balance = balance
		aggregator.state.fiatText = fiatText
		aggregator.recompute()
	})
}

func (aggregator *Aggregator) fetchLegacy(ctx context.Context) {
	items, err := aggregator.legacy.RecentPayments(ctx, maxActivityRows)
	if err != nil {
		logOperation(ctx, aggregator.logger, OperationLog{
			Operation: operationRefresh,
			Error:     WrapError(operationRefresh, errorSubjectActivity, "legacy", err),
		})
		items = nil
	}
	aggregator.SetLegacyActivity(items, true)
}

func (aggregator *Aggregator) fiatTextFor(ctx context.Context, sats int64) string {
	if aggregator.rates == nil {
		return ""
	}
	amount, err := rates.SatsToFiat(ctx, aggregator.rates, sats, aggregator.currency)
	if err != nil {
		return fmt.Sprintf("~ %s %s", fiatPlaceholderAmount, aggregator.currency)
	}
	return fmt.Sprintf("~ %s %s", amount.StringFixed(2), aggregator.currency)
}

// recompute rebuilds the view from the latest inputs and publishes it. Runs
// on the coordination goroutine only.
func (aggregator *Aggregator) recompute() {
	view := buildView(aggregator.state)
	aggregator.storeSnapshotWith(view)
	aggregator.publish(view)
}

func (aggregator *Aggregator) storeSnapshot() {
	aggregator.storeSnapshotWith(buildView(aggregator.state))
}

func (aggregator *Aggregator) storeSnapshotWith(view AggregatedView) {
	aggregator.snapshot.Store(&Snapshot{
		View:        view,
		SatsBalance: aggregator.state.balance.SpendableSats,
		FiatText:    aggregator.state.fiatText,
	})
}

func (aggregator *Aggregator) publish(view AggregatedView) {
	for {
		select {
		case aggregator.updates <- view:
			return
		default:
		}
		select {
		case <-aggregator.updates:
		default:
		}
	}
}

// buildView applies the priority rule: classified activity first, legacy
// backfill second, loading/empty sentinel only when nothing filled the cap,
// info cards always last.
func buildView(state aggregatorState) AggregatedView {
	rows := make([]Row, 0, maxActivityRows+len(infoCardTitles)+2)

	if state.paymentsState != StateActivated {
		rows = append(rows, Row{Kind: RowStateNotice, Title: stateNoticeTitle(state.paymentsState)})
		return AggregatedView{Rows: appendInfoCards(rows)}
	}

	rows = append(rows, Row{Kind: RowHeader, Title: headerRecentActivity})

	added := 0
	take := min(maxClassifiedRows, len(state.activity))
	for index := 0; index < take; index++ {
		item := state.activity[index]
		rows = append(rows, Row{Kind: RowActivity, Item: &item})
		added++
	}

	if take < maxClassifiedRows {
		remaining := maxActivityRows - added
		takeLegacy := min(remaining, len(state.legacyItems))
		for index := 0; index < takeLegacy; index++ {
			legacy := state.legacyItems[index]
			rows = append(rows, Row{Kind: RowLegacyActivity, Legacy: &legacy})
			added++
		}
		if !state.activityLoaded || !state.legacyLoaded {
			rows = append(rows, Row{Kind: RowInProgress, Title: titleActivityLoading})
		} else if added == 0 {
			rows = append(rows, Row{Kind: RowNoRecentActivity, Title: titleNoRecentActivity})
		}
	}

	return AggregatedView{Rows: appendInfoCards(rows)}
}

func appendInfoCards(rows []Row) []Row {
	for _, title := range infoCardTitles {
		rows = append(rows, Row{Kind: RowInfoCard, Title: title})
	}
	return rows
}

func stateNoticeTitle(state PaymentsState) string {
	switch state {
	case StateActivating:
		return "Activating payments"
	case StateNotAllowed:
		return "Payments are not available in your region"
	default:
		return "Activate payments to get started"
	}
}
