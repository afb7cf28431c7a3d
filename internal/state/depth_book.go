package state

import (
	"sort"

	"github.com/shopspring/decimal"

	"queue_go/internal/domain"
)

// level keeps the original decimal next to its quantity so sorted reads do
// not have to re-parse map keys.
type level struct {
	price decimal.Decimal
	qty   decimal.Decimal
}

type bookSide map[string]level

type instrumentBook struct {
	bids bookSide
	asks bookSide
}

// DepthBook is the per-instrument map of price to resting quantity for each
// side. It is mutated exclusively by the reconciliation pipeline; every
// other component reads it.
type DepthBook struct {
	books map[string]*instrumentBook
}

func NewDepthBook() *DepthBook {
	return &DepthBook{books: make(map[string]*instrumentBook)}
}

func (b *DepthBook) ensure(instrument string) *instrumentBook {
	ib, ok := b.books[instrument]
	if !ok {
		ib = &instrumentBook{bids: make(bookSide), asks: make(bookSide)}
		b.books[instrument] = ib
	}
	return ib
}

func applyUpdates(side bookSide, updates []domain.PriceUpdate) []domain.PriceUpdate {
	normalized := make([]domain.PriceUpdate, 0, len(updates))
	for _, u := range updates {
		key := domain.PriceKey(u.Price)
		if u.Qty.IsZero() {
			// Zero quantity is the exchange's removal signal. Absent key is
			// a no-op.
			delete(side, key)
		} else {
			side[key] = level{price: u.Price, qty: u.Qty}
		}
		normalized = append(normalized, u)
	}
	return normalized
}

// ApplyDelta upserts the given levels, deleting any with zero quantity. It
// returns the normalized update lists so the order tracker's queue
// re-estimation observes the exact same canonical prices.
func (b *DepthBook) ApplyDelta(instrument string, bids, asks []domain.PriceUpdate) (normBids, normAsks []domain.PriceUpdate) {
	ib := b.ensure(instrument)
	normBids = applyUpdates(ib.bids, bids)
	normAsks = applyUpdates(ib.asks, asks)
	return normBids, normAsks
}

// Reset replaces the instrument's book with a full authoritative snapshot.
// Fresh ground truth from a depth request beats accumulated deltas.
func (b *DepthBook) Reset(instrument string, depth domain.DepthData) {
	ib := &instrumentBook{bids: make(bookSide), asks: make(bookSide)}
	for _, u := range depth.Bids {
		if u.Qty.IsPositive() {
			ib.bids[domain.PriceKey(u.Price)] = level{price: u.Price, qty: u.Qty}
		}
	}
	for _, u := range depth.Asks {
		if u.Qty.IsPositive() {
			ib.asks[domain.PriceKey(u.Price)] = level{price: u.Price, qty: u.Qty}
		}
	}
	b.books[instrument] = ib
}

// Remove drops all book state for an instrument.
func (b *DepthBook) Remove(instrument string) {
	delete(b.books, instrument)
}

func (b *DepthBook) side(instrument, side string) (bookSide, bool) {
	ib, ok := b.books[instrument]
	if !ok {
		return nil, false
	}
	if side == domain.SideBuy {
		return ib.bids, true
	}
	return ib.asks, true
}

// Level returns the resting quantity at an exact price, or false when the
// level does not exist.
func (b *DepthBook) Level(instrument, side string, price decimal.Decimal) (decimal.Decimal, bool) {
	s, ok := b.side(instrument, side)
	if !ok {
		return decimal.Zero, false
	}
	lv, ok := s[domain.PriceKey(price)]
	if !ok {
		return decimal.Zero, false
	}
	return lv.qty, true
}

// BestBid returns the highest bid level.
func (b *DepthBook) BestBid(instrument string) (domain.PriceLevel, bool) {
	return b.extreme(instrument, domain.SideBuy, func(a, c decimal.Decimal) bool { return a.GreaterThan(c) })
}

// BestAsk returns the lowest ask level.
func (b *DepthBook) BestAsk(instrument string) (domain.PriceLevel, bool) {
	return b.extreme(instrument, domain.SideSell, func(a, c decimal.Decimal) bool { return a.LessThan(c) })
}

func (b *DepthBook) extreme(instrument, side string, better func(a, c decimal.Decimal) bool) (domain.PriceLevel, bool) {
	s, ok := b.side(instrument, side)
	if !ok || len(s) == 0 {
		return domain.PriceLevel{}, false
	}
	var best level
	first := true
	for _, lv := range s {
		if first || better(lv.price, best.price) {
			best = lv
			first = false
		}
	}
	return domain.PriceLevel{Price: best.price, Qty: best.qty}, true
}

// SortedLevels returns the side's levels ordered by ascending price.
func (b *DepthBook) SortedLevels(instrument, side string) []domain.PriceLevel {
	s, ok := b.side(instrument, side)
	if !ok {
		return nil
	}
	out := make([]domain.PriceLevel, 0, len(s))
	for _, lv := range s {
		out = append(out, domain.PriceLevel{Price: lv.price, Qty: lv.qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out
}

// HasInstrument reports whether any book state exists for the instrument.
func (b *DepthBook) HasInstrument(instrument string) bool {
	_, ok := b.books[instrument]
	return ok
}
