package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"queue_go/internal/domain"
	"queue_go/internal/infra"
	"queue_go/internal/state"
)

// ActionJournal records issued decisions for post-mortem review. Journaling
// failures are logged and ignored; they never stall a decision pass.
type ActionJournal interface {
	RecordAction(instrument string, orderID int64, action, reason string, price decimal.Decimal) error
}

const (
	ActionCancel      = "CANCEL"
	ActionReplace     = "REPLACE"
	ActionInstantSell = "INSTANT_SELL"

	reasonBidDepthFloor  = "BID_DEPTH_FLOOR"
	reasonSecondBidJump  = "SECOND_BID_PROMOTION"
	reasonOutOfRange     = "OUT_OF_RANGE"
	reasonEdgeLost       = "EDGE_LOST"
	reasonSellReposition = "SELL_REPOSITION"
)

// DecisionConfig holds the engine thresholds. None of them were ever
// finalized upstream, so all are configuration.
type DecisionConfig struct {
	// BuyDepthFloor: minimum depth at the best bid for a resting buy to be
	// considered safe there, and for a replacement to rejoin the best bid
	// instead of stepping back to the second.
	BuyDepthFloor decimal.Decimal
	// SecondBidQueueFloor / SecondBidDepthFloor: a buy order at the
	// second-best bid is promoted when its queue position and believed
	// level depth are both at least these values.
	SecondBidQueueFloor decimal.Decimal
	SecondBidDepthFloor decimal.Decimal
	// EntryBandLower / EntryBandUpper bound a sell order's drift around its
	// entry price: liquidate at entry-lower, never rest above entry+upper.
	EntryBandLower decimal.Decimal
	EntryBandUpper decimal.Decimal

	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultDecisionConfig mirrors the numbers observed in the source pattern.
func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{
		BuyDepthFloor:       decimal.NewFromInt(70_000),
		SecondBidQueueFloor: decimal.NewFromInt(50_000),
		SecondBidDepthFloor: decimal.NewFromInt(100_000),
		EntryBandLower:      decimal.NewFromInt(2),
		EntryBandUpper:      decimal.NewFromInt(1),
		RetryAttempts:       2,
		RetryDelay:          500 * time.Millisecond,
	}
}

// DecisionEngine evaluates the trader's resting orders against a collision
// snapshot and issues cancel / reposition / liquidate actions. Actions are
// fire-and-forget: they run on their own goroutines with bounded retry and
// never block or fail the reconciliation pass that triggered them.
type DecisionEngine struct {
	cfg      DecisionConfig
	executor domain.OrderExecutor
	fetcher  domain.DepthFetcher
	orders   *state.ActiveOrderTracker
	journal  ActionJournal
	logger   *slog.Logger
}

func NewDecisionEngine(cfg DecisionConfig, executor domain.OrderExecutor, fetcher domain.DepthFetcher, orders *state.ActiveOrderTracker, journal ActionJournal) *DecisionEngine {
	return &DecisionEngine{
		cfg:      cfg,
		executor: executor,
		fetcher:  fetcher,
		orders:   orders,
		journal:  journal,
		logger:   slog.Default().With("module", "decision"),
	}
}

// Evaluate runs one decision pass over every resting order of the
// instrument.
func (d *DecisionEngine) Evaluate(instrument string, snap *domain.CollisionSnapshot) {
	if snap == nil {
		return
	}
	d.evaluateBuyOrders(instrument, snap)
	d.evaluateSellOrders(instrument, snap)
}

func (d *DecisionEngine) evaluateBuyOrders(instrument string, snap *domain.CollisionSnapshot) {
	for _, order := range d.orders.Orders(instrument, domain.SideBuy) {
		if !order.IsOpen() {
			// A fill consumed the remainder; the removal event is in flight.
			continue
		}
		switch {
		case order.Price.Equal(snap.BidPrice):
			// Sitting at the best bid: safe unless the level is draining.
			if snap.DepthAtBid.LessThan(d.cfg.BuyDepthFloor) {
				d.replaceBuy(order, reasonBidDepthFloor)
			}
		case snap.SecondBidPrice != nil && order.Price.Equal(*snap.SecondBidPrice):
			// The second-best level looks about to become the new best:
			// large queue ahead and believed depth above the floor.
			if order.QueuePosition.GreaterThanOrEqual(d.cfg.SecondBidQueueFloor) &&
				order.Combined().GreaterThanOrEqual(d.cfg.SecondBidDepthFloor) {
				d.replaceBuy(order, reasonSecondBidJump)
			}
		default:
			// Neither best nor second-best: stale, reposition regardless.
			d.replaceBuy(order, reasonOutOfRange)
		}
	}
}

func (d *DecisionEngine) evaluateSellOrders(instrument string, snap *domain.CollisionSnapshot) {
	for _, order := range d.orders.Orders(instrument, domain.SideSell) {
		if !order.IsOpen() || order.EntryPrice == nil {
			continue
		}
		entry := *order.EntryPrice

		if snap.AskPrice.LessThanOrEqual(entry.Sub(d.cfg.EntryBandLower)) {
			// The ask has fallen through the band: the edge is gone, cross
			// the spread now instead of chasing it down.
			d.record(order, ActionInstantSell, reasonEdgeLost, snap.BidPrice)
			d.dispatch("instant sell", func(ctx context.Context) error {
				if err := d.executor.CancelOrder(ctx, order.Instrument, order.ID); err != nil {
					return err
				}
				return d.executor.PlaceInstantSell(ctx, order.Instrument)
			})
			continue
		}

		target := decimal.Min(snap.AskPrice, entry.Add(d.cfg.EntryBandUpper))
		if target.Equal(order.Price) {
			continue
		}

		// The replacement arrives as a distinct exchange order id, so the
		// entry price rides over in the tracker's one-shot slot.
		d.orders.SetPendingSellEntry(order.Instrument, entry)
		d.record(order, ActionReplace, reasonSellReposition, target)

		qty := order.PendingQty
		d.dispatch("sell reposition", func(ctx context.Context) error {
			if err := d.executor.CancelOrder(ctx, order.Instrument, order.ID); err != nil {
				return err
			}
			return d.executor.PlaceLimitOrder(ctx, order.Instrument, domain.SideSell, target, qty)
		})
	}
}

// replaceBuy cancels the order and re-places it at the freshest best bid,
// stepping back to the second bid when the best is thinner than the floor.
func (d *DecisionEngine) replaceBuy(order *domain.ActiveOrder, reason string) {
	d.record(order, ActionReplace, reason, order.Price)

	qty := order.PendingQty
	d.dispatch("buy reposition", func(ctx context.Context) error {
		if err := d.executor.CancelOrder(ctx, order.Instrument, order.ID); err != nil {
			return err
		}

		depth, err := d.fetcher.FetchDepth(ctx, order.Instrument)
		if err != nil {
			return err
		}
		price, ok := chooseBuyPrice(depth, d.cfg.BuyDepthFloor)
		if !ok {
			d.logger.Warn("no bid levels to reposition into", slog.String("instrument", order.Instrument))
			return nil
		}
		return d.executor.PlaceLimitOrder(ctx, order.Instrument, domain.SideBuy, price, qty)
	})
}

// chooseBuyPrice picks the best bid when its depth clears the floor, the
// second bid otherwise.
func chooseBuyPrice(depth domain.DepthData, floor decimal.Decimal) (decimal.Decimal, bool) {
	best, second, ok := topTwoBids(depth)
	if !ok {
		return decimal.Zero, false
	}
	if best.Qty.GreaterThanOrEqual(floor) || second == nil {
		return best.Price, true
	}
	return second.Price, true
}

func topTwoBids(depth domain.DepthData) (best domain.PriceUpdate, second *domain.PriceUpdate, ok bool) {
	for _, u := range depth.Bids {
		if !u.Qty.IsPositive() {
			continue
		}
		if !ok || u.Price.GreaterThan(best.Price) {
			if ok {
				b := best
				if second == nil || b.Price.GreaterThan(second.Price) {
					second = &b
				}
			}
			best = u
			ok = true
		} else if second == nil || u.Price.GreaterThan(second.Price) {
			u := u
			second = &u
		}
	}
	return best, second, ok
}

// dispatch runs an order action on its own goroutine with bounded retry.
// The engine never waits on the exchange before evaluating the next order.
func (d *DecisionEngine) dispatch(name string, fn func(ctx context.Context) error) {
	go func() {
		for attempt := 1; attempt <= d.cfg.RetryAttempts; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := fn(ctx)
			cancel()
			if err == nil {
				return
			}
			infra.GlobalMetrics.RecordError()
			var re domain.RetriableError
			if errors.As(err, &re) && !re.IsRetriable() {
				d.logger.Error("order action failed fatally",
					slog.String("action", name),
					slog.Any("error", err))
				return
			}
			d.logger.Warn("order action failed",
				slog.String("action", name),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			if attempt < d.cfg.RetryAttempts {
				time.Sleep(d.cfg.RetryDelay)
			}
		}
		d.logger.Error("order action abandoned", slog.String("action", name))
	}()
}

func (d *DecisionEngine) record(order *domain.ActiveOrder, action, reason string, price decimal.Decimal) {
	infra.GlobalMetrics.RecordDecision()
	d.logger.Info("decision",
		slog.String("instrument", order.Instrument),
		slog.Int64("order_id", order.ID),
		slog.String("action", action),
		slog.String("reason", reason),
		slog.String("price", price.String()))
	if d.journal == nil {
		return
	}
	if err := d.journal.RecordAction(order.Instrument, order.ID, action, reason, price); err != nil {
		d.logger.Warn("journal write failed", slog.Any("error", err))
	}
}
