package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"queue_go/internal/domain"
	"queue_go/internal/event"
	"queue_go/internal/infra"
	"queue_go/internal/state"
)

// OrderJournal records order lifecycle transitions for post-mortem review.
type OrderJournal interface {
	RecordOrder(instrument string, orderID int64, side string, price, qty decimal.Decimal, status string) error
}

// SnapshotBuilder projects an instrument's state into a UI snapshot.
type SnapshotBuilder interface {
	Build(instrument string, book *state.DepthBook, orders *state.ActiveOrderTracker, central *state.CentralLevelTracker) domain.InstrumentSnapshot
}

// ManagerConfig controls routing and per-instrument sizing.
type ManagerConfig struct {
	// AllowedInstruments is the trading universe. User events for anything
	// else are ignored.
	AllowedInstruments []string
	InboxSize          int
	Decision           DecisionConfig
	Central            state.CentralConfig
}

// Manager routes feed and user events to per-instrument reconcilers. A
// reconciler, with its own book, tracker and central state, is spun up when
// the first order of an instrument is confirmed and torn down when the last
// one leaves the book. Streams follow the same lifecycle.
type Manager struct {
	cfg      ManagerConfig
	executor domain.OrderExecutor
	fetcher  domain.DepthFetcher
	notifier domain.Notifier
	sink     domain.SnapshotSink
	streams  domain.StreamController
	builder  SnapshotBuilder
	journal  ActionJournal
	orderLog OrderJournal

	mu      sync.Mutex
	allowed map[string]struct{}
	active  map[string]*managedInstrument
	ctx     context.Context
	wg      sync.WaitGroup

	logger *slog.Logger
}

type managedInstrument struct {
	rec    *Reconciler
	cancel context.CancelFunc
}

// ManagerDeps bundles the external collaborators shared by all instruments.
type ManagerDeps struct {
	Executor domain.OrderExecutor
	Fetcher  domain.DepthFetcher
	Notifier domain.Notifier
	Sink     domain.SnapshotSink
	Streams  domain.StreamController
	Builder  SnapshotBuilder
	Journal  ActionJournal
	Orders   OrderJournal
}

func NewManager(cfg ManagerConfig, deps ManagerDeps) *Manager {
	allowed := make(map[string]struct{}, len(cfg.AllowedInstruments))
	for _, ins := range cfg.AllowedInstruments {
		allowed[ins] = struct{}{}
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 1024
	}
	return &Manager{
		cfg:      cfg,
		executor: deps.Executor,
		fetcher:  deps.Fetcher,
		notifier: deps.Notifier,
		sink:     deps.Sink,
		streams:  deps.Streams,
		builder:  deps.Builder,
		journal:  deps.Journal,
		orderLog: deps.Orders,
		allowed:  allowed,
		active:   make(map[string]*managedInstrument),
		logger:   slog.Default().With("module", "manager"),
	}
}

// SetStreams installs the stream controller after construction. The
// controller needs the manager as its event handler, so the two cannot be
// built in one step.
func (m *Manager) SetStreams(streams domain.StreamController) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams = streams
}

// Start binds the manager to its lifecycle context. Reconcilers spawned
// later inherit it.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()
	m.logger.Info("manager started",
		slog.Int("allowed_instruments", len(m.allowed)))
}

// Stop tears down every active instrument and waits for the reconciler
// goroutines to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	for instrument, mi := range m.active {
		mi.cancel()
		delete(m.active, instrument)
	}
	m.mu.Unlock()
	m.wg.Wait()
	m.logger.Info("manager stopped")
}

// HandleDepthDelta routes a depth delta to its reconciler. Deltas for
// instruments with no resting orders are discarded.
func (m *Manager) HandleDepthDelta(ev *event.DepthDeltaEvent) {
	if rec := m.lookup(ev.Instrument); rec != nil {
		rec.Offer(ev)
		return
	}
	event.ReleaseDepthDeltaEvent(ev)
}

// HandleTradeTick routes a public trade to its reconciler.
func (m *Manager) HandleTradeTick(ev *event.TradeTickEvent) {
	if rec := m.lookup(ev.Instrument); rec != nil {
		rec.Offer(ev)
		return
	}
	event.ReleaseTradeTickEvent(ev)
}

// HandleResync tells an instrument's reconciler to rebuild its book after a
// stream reconnect.
func (m *Manager) HandleResync(instrument string) {
	if rec := m.lookup(instrument); rec != nil {
		rec.Offer(&event.ResyncEvent{Instrument: instrument})
	}
}

// HandleUserOrder routes an execution report. A NEW limit order on an
// allowed instrument activates the instrument if it is not already live.
// Market orders pass straight through the exchange and are never tracked.
func (m *Manager) HandleUserOrder(ev *event.UserOrderEvent) {
	if err := m.routeUserOrder(ev); err != nil {
		if errors.Is(err, domain.ErrInvalidInstrument) {
			m.logger.Warn("execution report for unknown instrument",
				slog.String("instrument", ev.Instrument))
			return
		}
		m.logger.Error("instrument activation failed",
			slog.String("instrument", ev.Instrument),
			slog.Any("error", err))
	}
}

func (m *Manager) routeUserOrder(ev *event.UserOrderEvent) error {
	if _, ok := m.allowed[ev.Instrument]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInstrument, ev.Instrument)
	}
	if ev.OrderType != domain.OrderTypeLimit {
		return nil
	}
	m.journalOrder(ev)

	rec := m.lookup(ev.Instrument)
	if rec == nil {
		if ev.ExecType != domain.ExecTypeNew {
			m.logger.Warn("execution report for inactive instrument",
				slog.String("instrument", ev.Instrument),
				slog.Int64("order_id", ev.OrderID))
			return nil
		}
		var err error
		rec, err = m.activate(ev.Instrument)
		if err != nil {
			return err
		}
	}
	rec.Offer(ev)
	return nil
}

func (m *Manager) journalOrder(ev *event.UserOrderEvent) {
	if m.orderLog == nil {
		return
	}
	price, err1 := decimal.NewFromString(ev.Price)
	qty, err2 := decimal.NewFromString(ev.Qty)
	if err1 != nil || err2 != nil {
		return
	}
	status := ev.ExecType
	if ev.ExecType == domain.ExecTypeTrade {
		status = ev.FillStatus
	}
	if err := m.orderLog.RecordOrder(ev.Instrument, ev.OrderID, ev.Side, price, qty, status); err != nil {
		m.logger.Warn("order journal write failed", slog.Any("error", err))
	}
}

func (m *Manager) lookup(instrument string) *Reconciler {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mi, ok := m.active[instrument]; ok {
		return mi.rec
	}
	return nil
}

// activate builds the instrument's state triple, opens its market streams
// and starts its reconciler goroutine.
func (m *Manager) activate(instrument string) (*Reconciler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mi, ok := m.active[instrument]; ok {
		return mi.rec, nil
	}
	if m.ctx == nil {
		m.ctx = context.Background()
	}

	book := state.NewDepthBook()
	orders := state.NewActiveOrderTracker()
	central := state.NewCentralLevelTracker(m.cfg.Central)

	decider := NewDecisionEngine(m.cfg.Decision, m.executor, m.fetcher, orders, m.journal)
	alerter := NewAlerter(m.notifier, orders, central)

	var project func(string) domain.InstrumentSnapshot
	if m.builder != nil {
		project = func(ins string) domain.InstrumentSnapshot {
			return m.builder.Build(ins, book, orders, central)
		}
	}

	rec := NewReconciler(instrument, m.cfg.InboxSize, ReconcilerDeps{
		Book:    book,
		Orders:  orders,
		Central: central,
		Decider: decider,
		Alerter: alerter,
		Fetcher: m.fetcher,
		Sink:    m.sink,
		Project: project,
		OnEmpty: m.deactivate,
	})

	ctx, cancel := context.WithCancel(m.ctx)
	if m.streams != nil {
		if err := m.streams.Open(ctx, instrument); err != nil {
			cancel()
			return nil, err
		}
	}

	m.active[instrument] = &managedInstrument{rec: rec, cancel: cancel}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		rec.Run(ctx)
	}()

	infra.GlobalMetrics.IncrementStreams()
	m.logger.Info("instrument activated", slog.String("instrument", instrument))
	return rec, nil
}

// deactivate runs on the reconciler's own goroutine after its last order is
// removed: close the streams, then cancel the reconciler.
func (m *Manager) deactivate(instrument string) {
	m.mu.Lock()
	mi, ok := m.active[instrument]
	if ok {
		delete(m.active, instrument)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if m.streams != nil {
		if err := m.streams.Close(instrument); err != nil {
			m.logger.Warn("stream close failed",
				slog.String("instrument", instrument),
				slog.Any("error", err))
		}
	}
	mi.cancel()

	infra.GlobalMetrics.DecrementStreams()
	m.logger.Info("instrument deactivated", slog.String("instrument", instrument))
}

// ActiveInstruments lists currently live instruments.
func (m *Manager) ActiveInstruments() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.active))
	for ins := range m.active {
		out = append(out, ins)
	}
	return out
}
