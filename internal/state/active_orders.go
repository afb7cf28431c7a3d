package state

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"queue_go/internal/domain"
)

type sideOrders map[string][]*domain.ActiveOrder // price key -> orders sharing the level

type instrumentOrders struct {
	buy  sideOrders
	sell sideOrders
}

// ActiveOrderTracker holds the trader's own resting orders grouped by
// instrument, side and price level, and owns each order's estimated queue
// position. QueuePosition and PendingQty are mutated only through the
// operations below; neither is ever assigned a larger value after creation.
type ActiveOrderTracker struct {
	orders map[string]*instrumentOrders

	// pendingSellEntry carries the original entry price across a sell
	// cancel/replace cycle: the replacement arrives as a distinct exchange
	// order id, so the price is parked here and consumed exactly once.
	pendingSellEntry map[string]decimal.Decimal
}

func NewActiveOrderTracker() *ActiveOrderTracker {
	return &ActiveOrderTracker{
		orders:           make(map[string]*instrumentOrders),
		pendingSellEntry: make(map[string]decimal.Decimal),
	}
}

func (t *ActiveOrderTracker) ensure(instrument string) *instrumentOrders {
	io, ok := t.orders[instrument]
	if !ok {
		io = &instrumentOrders{buy: make(sideOrders), sell: make(sideOrders)}
		t.orders[instrument] = io
	}
	return io
}

func (io *instrumentOrders) side(side string) sideOrders {
	if side == domain.SideBuy {
		return io.buy
	}
	return io.sell
}

// Create registers a freshly confirmed order. The order assumes it joined
// the back of the quantity already resting at its price, so the initial
// queue position is the observed depth minus its own size, floored at zero.
func (t *ActiveOrderTracker) Create(instrument, side string, price, qty decimal.Decimal, orderID int64, depthAtPrice decimal.Decimal) *domain.ActiveOrder {
	order := &domain.ActiveOrder{
		ID:            orderID,
		Instrument:    instrument,
		Side:          side,
		Price:         price,
		PendingQty:    qty,
		FilledQty:     decimal.Zero,
		QueuePosition: decimal.Max(depthAtPrice.Sub(qty), decimal.Zero),
	}
	if side == domain.SideSell {
		if entry, ok := t.ConsumePendingSellEntry(instrument); ok {
			order.EntryPrice = &entry
		} else {
			// No replacement in flight: this sell closes a position opened
			// at its own price.
			p := price
			order.EntryPrice = &p
		}
	}
	key := domain.PriceKey(price)
	so := t.ensure(instrument).side(side)
	so[key] = append(so[key], order)
	return order
}

func reestimateSide(so sideOrders, updates []domain.PriceUpdate) {
	for _, u := range updates {
		key := domain.PriceKey(u.Price)
		for _, order := range so[key] {
			combined := order.Combined()
			if u.Qty.LessThan(combined) {
				// The level shrank below what the order believed was there.
				// Treat the vanished quantity as having been ahead of it and
				// shrink the estimate. A shrink entirely behind the order
				// cannot be told apart, which is the accepted coarseness of
				// this heuristic.
				order.QueuePosition = decimal.Max(u.Qty.Sub(order.PendingQty), decimal.Zero)
			}
		}
	}
}

// Reestimate narrows queue positions from a normalized depth delta. Reported
// depth at or above the order's combined total leaves the estimate alone.
func (t *ActiveOrderTracker) Reestimate(instrument string, bids, asks []domain.PriceUpdate) {
	io, ok := t.orders[instrument]
	if !ok {
		return
	}
	reestimateSide(io.buy, bids)
	reestimateSide(io.sell, asks)
}

// ApplyTradeTick narrows queue positions from executed flow: a market trade
// printing at a level where the tracker holds passive orders means that
// much quantity ahead of them is gone.
func (t *ActiveOrderTracker) ApplyTradeTick(instrument string, price, qty decimal.Decimal, buyerIsPassive bool) {
	io, ok := t.orders[instrument]
	if !ok {
		return
	}
	side := io.sell
	if buyerIsPassive {
		side = io.buy
	}
	for _, order := range side[domain.PriceKey(price)] {
		order.QueuePosition = decimal.Max(order.QueuePosition.Sub(qty), decimal.Zero)
	}
}

// ApplyPartialFill accumulates a fill into the order. Queue position is not
// touched here; the depth delta covering the same execution handles that.
func (t *ActiveOrderTracker) ApplyPartialFill(orderID int64, fillQty decimal.Decimal) error {
	order, ok := t.FindByID(orderID)
	if !ok {
		slog.Warn("partial fill for unknown order", slog.Int64("order_id", orderID))
		return domain.ErrOrderNotFound
	}
	order.FilledQty = order.FilledQty.Add(fillQty)
	order.PendingQty = decimal.Max(order.PendingQty.Sub(fillQty), decimal.Zero)
	return nil
}

// FindByID scans all instruments for the order. Order counts are tiny, so
// a linear scan beats maintaining a second index.
func (t *ActiveOrderTracker) FindByID(orderID int64) (*domain.ActiveOrder, bool) {
	for _, io := range t.orders {
		for _, so := range []sideOrders{io.buy, io.sell} {
			for _, orders := range so {
				for _, o := range orders {
					if o.ID == orderID {
						return o, true
					}
				}
			}
		}
	}
	return nil, false
}

// Delete removes the order, pruning its price level when it was the last
// order there. It reports whether the instrument now has no orders at all,
// which the caller uses to trigger stream teardown.
func (t *ActiveOrderTracker) Delete(orderID int64) (instrument string, instrumentEmpty bool, err error) {
	order, ok := t.FindByID(orderID)
	if !ok {
		slog.Warn("delete for unknown order", slog.Int64("order_id", orderID))
		return "", false, domain.ErrOrderNotFound
	}
	io := t.orders[order.Instrument]
	so := io.side(order.Side)
	key := domain.PriceKey(order.Price)

	kept := so[key][:0]
	for _, o := range so[key] {
		if o.ID != orderID {
			kept = append(kept, o)
		}
	}
	if len(kept) == 0 {
		delete(so, key)
	} else {
		so[key] = kept
	}

	if len(io.buy) == 0 && len(io.sell) == 0 {
		delete(t.orders, order.Instrument)
		return order.Instrument, true, nil
	}
	return order.Instrument, false, nil
}

// RemoveInstrument drops all tracked orders for an instrument.
func (t *ActiveOrderTracker) RemoveInstrument(instrument string) {
	delete(t.orders, instrument)
	delete(t.pendingSellEntry, instrument)
}

// OrdersAt returns the orders resting at an exact price.
func (t *ActiveOrderTracker) OrdersAt(instrument, side string, price decimal.Decimal) []*domain.ActiveOrder {
	io, ok := t.orders[instrument]
	if !ok {
		return nil
	}
	return io.side(side)[domain.PriceKey(price)]
}

// Orders returns every order for one side of an instrument.
func (t *ActiveOrderTracker) Orders(instrument, side string) []*domain.ActiveOrder {
	io, ok := t.orders[instrument]
	if !ok {
		return nil
	}
	var out []*domain.ActiveOrder
	for _, orders := range io.side(side) {
		out = append(out, orders...)
	}
	return out
}

// HasOrders reports whether any order is tracked for the instrument.
func (t *ActiveOrderTracker) HasOrders(instrument string) bool {
	io, ok := t.orders[instrument]
	return ok && (len(io.buy) > 0 || len(io.sell) > 0)
}

// QueueBounds returns the nearest and furthest queue positions among the
// trader's orders at the given price, for alert summaries.
func (t *ActiveOrderTracker) QueueBounds(instrument, side string, price decimal.Decimal) (nearest, furthest decimal.Decimal, ok bool) {
	orders := t.OrdersAt(instrument, side, price)
	if len(orders) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	nearest = orders[0].QueuePosition
	furthest = orders[0].QueuePosition
	for _, o := range orders[1:] {
		nearest = decimal.Min(nearest, o.QueuePosition)
		furthest = decimal.Max(furthest, o.QueuePosition)
	}
	return nearest, furthest, true
}

// SetPendingSellEntry parks an entry price for the next sell order created
// on the instrument.
func (t *ActiveOrderTracker) SetPendingSellEntry(instrument string, entryPrice decimal.Decimal) {
	t.pendingSellEntry[instrument] = entryPrice
}

// ConsumePendingSellEntry takes the parked entry price, emptying the slot.
func (t *ActiveOrderTracker) ConsumePendingSellEntry(instrument string) (decimal.Decimal, bool) {
	entry, ok := t.pendingSellEntry[instrument]
	if ok {
		delete(t.pendingSellEntry, instrument)
	}
	return entry, ok
}
