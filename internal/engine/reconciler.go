package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"queue_go/internal/domain"
	"queue_go/internal/event"
	"queue_go/internal/infra"
	"queue_go/internal/state"
)

// Reconciler is the single writer for one instrument's state triple:
// depth book, active orders and central levels. All mutations go through
// its inbox and run on one goroutine, so delta application can never
// interleave into an inconsistent queue estimate. Order actions and alert
// delivery are dispatched onto other goroutines and re-enter only as
// events.
type Reconciler struct {
	instrument string

	inbox   chan event.Event
	book    *state.DepthBook
	orders  *state.ActiveOrderTracker
	central *state.CentralLevelTracker

	decider *DecisionEngine
	alerter *Alerter
	fetcher domain.DepthFetcher
	sink    domain.SnapshotSink
	project func(instrument string) domain.InstrumentSnapshot

	onEmpty func(instrument string)
	logger  *slog.Logger
}

// ReconcilerDeps bundles the collaborators a reconciler needs.
type ReconcilerDeps struct {
	Book    *state.DepthBook
	Orders  *state.ActiveOrderTracker
	Central *state.CentralLevelTracker
	Decider *DecisionEngine
	Alerter *Alerter
	Fetcher domain.DepthFetcher
	Sink    domain.SnapshotSink
	Project func(instrument string) domain.InstrumentSnapshot
	// OnEmpty fires after the last order of the instrument is removed, so
	// the manager can tear streams down.
	OnEmpty func(instrument string)
}

func NewReconciler(instrument string, inboxSize int, deps ReconcilerDeps) *Reconciler {
	return &Reconciler{
		instrument: instrument,
		inbox:      make(chan event.Event, inboxSize),
		book:       deps.Book,
		orders:     deps.Orders,
		central:    deps.Central,
		decider:    deps.Decider,
		alerter:    deps.Alerter,
		fetcher:    deps.Fetcher,
		sink:       deps.Sink,
		project:    deps.Project,
		onEmpty:    deps.OnEmpty,
		logger:     slog.Default().With("module", "reconciler", "instrument", instrument),
	}
}

// Offer enqueues an event without ever blocking the feed. When the inbox is
// full the event is dropped and counted; the next authoritative snapshot
// heals whatever a dropped delta would have corrupted.
func (r *Reconciler) Offer(ev event.Event) {
	select {
	case r.inbox <- ev:
	default:
		infra.GlobalMetrics.RecordDrop()
		r.logger.Warn("inbox full, dropping event")
	}
}

// Run processes the inbox until the context is canceled. Must be run in a
// single goroutine per reconciler.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("reconciler started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopping")
			return
		case ev := <-r.inbox:
			r.process(ctx, ev)
		}
	}
}

func (r *Reconciler) process(ctx context.Context, ev event.Event) {
	switch e := ev.(type) {
	case *event.DepthDeltaEvent:
		r.handleDepthDelta(e)
		event.ReleaseDepthDeltaEvent(e)
	case *event.TradeTickEvent:
		r.handleTradeTick(e)
		event.ReleaseTradeTickEvent(e)
	case *event.UserOrderEvent:
		r.handleUserOrder(ctx, e)
	case *event.ResyncEvent:
		r.handleResync(ctx)
	default:
		r.logger.Warn("unknown event type", slog.Any("type", ev.GetType()))
	}
}

func (r *Reconciler) handleDepthDelta(e *event.DepthDeltaEvent) {
	bids := r.parseUpdates(e.Bids)
	asks := r.parseUpdates(e.Asks)

	normBids, normAsks := r.book.ApplyDelta(r.instrument, bids, asks)
	r.orders.Reestimate(r.instrument, normBids, normAsks)

	changes := r.central.Recompute(r.instrument, r.book)
	r.alerter.Emit(r.instrument, changes)

	infra.GlobalMetrics.RecordEvent()
	r.decide()
	r.publish()
}

func (r *Reconciler) handleTradeTick(e *event.TradeTickEvent) {
	price, err1 := decimal.NewFromString(e.Price)
	qty, err2 := decimal.NewFromString(e.Qty)
	if err1 != nil || err2 != nil {
		r.logger.Warn("malformed trade tick",
			slog.String("price", e.Price), slog.String("qty", e.Qty))
		infra.GlobalMetrics.RecordDrop()
		return
	}

	r.orders.ApplyTradeTick(r.instrument, price, qty, e.BuyerIsMaker)

	entry := r.central.Entry(r.instrument)
	if e.BuyerIsMaker {
		if entry.CentralBuyPrice != nil && entry.CentralBuyPrice.Equal(price) {
			r.central.AddExecutedBuy(r.instrument, qty)
		}
	} else {
		if entry.CentralSellPrice != nil && entry.CentralSellPrice.Equal(price) {
			r.central.AddExecutedSell(r.instrument, qty)
		}
	}

	infra.GlobalMetrics.RecordEvent()
	r.decide()
	r.publish()
}

func (r *Reconciler) handleUserOrder(ctx context.Context, e *event.UserOrderEvent) {
	switch e.ExecType {
	case domain.ExecTypeNew:
		r.handleNewOrder(ctx, e)
	case domain.ExecTypeCanceled:
		r.removeOrder(ctx, e.OrderID)
	case domain.ExecTypeTrade:
		r.handleOwnTrade(ctx, e)
	default:
		r.logger.Warn("unknown exec type", slog.String("exec_type", e.ExecType))
	}
	r.publish()
}

func (r *Reconciler) handleNewOrder(ctx context.Context, e *event.UserOrderEvent) {
	price, err1 := decimal.NewFromString(e.Price)
	qty, err2 := decimal.NewFromString(e.Qty)
	if err1 != nil || err2 != nil {
		r.logger.Warn("malformed order confirmation", slog.Int64("order_id", e.OrderID))
		return
	}

	// A fresh authoritative snapshot beats whatever deltas accumulated: the
	// observed depth at the order's price seeds its queue estimate.
	depth, err := r.fetcher.FetchDepth(ctx, r.instrument)
	if err != nil {
		r.logger.Warn("depth snapshot fetch failed", slog.Any("error", err))
	} else {
		r.book.Reset(r.instrument, depth)
	}

	depthAtPrice, _ := r.book.Level(r.instrument, e.Side, price)
	r.orders.Create(r.instrument, e.Side, price, qty, e.OrderID, depthAtPrice)

	changes := r.central.Recompute(r.instrument, r.book)
	r.alerter.Emit(r.instrument, changes)

	r.logger.Info("order registered",
		slog.Int64("order_id", e.OrderID),
		slog.String("side", e.Side),
		slog.String("price", e.Price))
}

func (r *Reconciler) handleOwnTrade(ctx context.Context, e *event.UserOrderEvent) {
	fill, err := decimal.NewFromString(e.LastFill)
	if err != nil {
		r.logger.Warn("malformed fill quantity", slog.Int64("order_id", e.OrderID))
		return
	}
	if err := r.orders.ApplyPartialFill(e.OrderID, fill); err != nil {
		return
	}
	infra.GlobalMetrics.RecordOrderFilled()

	switch e.FillStatus {
	case domain.FillStatusFilled:
		r.removeOrder(ctx, e.OrderID)
	case domain.FillStatusPartial:
		r.logger.Info("partial fill",
			slog.Int64("order_id", e.OrderID),
			slog.String("qty", e.LastFill))
	}
}

// handleResync rebuilds the book from a full snapshot after a stream
// reconnect. Deltas lost during the outage would otherwise corrupt it
// silently.
func (r *Reconciler) handleResync(ctx context.Context) {
	depth, err := r.fetcher.FetchDepth(ctx, r.instrument)
	if err != nil {
		r.logger.Warn("resync depth fetch failed", slog.Any("error", err))
		return
	}
	r.book.Reset(r.instrument, depth)
	changes := r.central.Recompute(r.instrument, r.book)
	r.alerter.Emit(r.instrument, changes)
	r.publish()
}

func (r *Reconciler) removeOrder(ctx context.Context, orderID int64) {
	_, empty, err := r.orders.Delete(orderID)
	if err != nil {
		return
	}
	if empty {
		// Events may still be queued behind this one before the cancel
		// lands; they must observe a cleared instrument.
		r.book.Remove(r.instrument)
		r.central.Remove(r.instrument)
		r.orders.RemoveInstrument(r.instrument)
		r.logger.Info("last order gone, requesting teardown")
		if r.onEmpty != nil {
			r.onEmpty(r.instrument)
		}
		return
	}

	// Orders remain: refresh the book so their estimates rest on ground
	// truth rather than deltas that spanned the cancellation.
	depth, err := r.fetcher.FetchDepth(ctx, r.instrument)
	if err != nil {
		r.logger.Warn("depth refresh failed", slog.Any("error", err))
		return
	}
	r.book.Reset(r.instrument, depth)
	changes := r.central.Recompute(r.instrument, r.book)
	r.alerter.Emit(r.instrument, changes)
}

func (r *Reconciler) decide() {
	snap := ComputeCollision(r.book, r.instrument)
	if snap == nil {
		return
	}
	r.decider.Evaluate(r.instrument, snap)
}

func (r *Reconciler) publish() {
	if r.sink == nil || r.project == nil {
		return
	}
	if !r.book.HasInstrument(r.instrument) {
		return
	}
	snap := r.project(r.instrument)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := r.sink.Publish(ctx, r.instrument, snap); err != nil {
		r.logger.Debug("snapshot publish failed", slog.Any("error", err))
	}
}

// parseUpdates converts raw wire pairs to decimal updates, dropping
// malformed entries with a warning. The rest of the batch still applies.
func (r *Reconciler) parseUpdates(raw []event.PriceQty) []domain.PriceUpdate {
	updates := make([]domain.PriceUpdate, 0, len(raw))
	for _, pq := range raw {
		price, err1 := decimal.NewFromString(pq.Price)
		qty, err2 := decimal.NewFromString(pq.Qty)
		if err1 != nil || err2 != nil {
			r.logger.Warn("malformed depth level",
				slog.String("price", pq.Price), slog.String("qty", pq.Qty))
			infra.GlobalMetrics.RecordDrop()
			continue
		}
		updates = append(updates, domain.PriceUpdate{Price: price, Qty: qty})
	}
	return updates
}
