package snapshot

import (
	"queue_go/internal/domain"
	"queue_go/internal/state"
)

const levelsPerSide = 3

// Builder projects the instrument's reconciled state into the bounded read
// model served to the dashboard. The projection is pure: it reads the book,
// tracker and central state and mutates nothing, so it can run at any rate.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build assembles up to three levels per side around the central prices,
// annotates them with the trader's own resting orders, and attaches the
// pressure row. Levels come out in ascending price order.
func (b *Builder) Build(instrument string, book *state.DepthBook, orders *state.ActiveOrderTracker, central *state.CentralLevelTracker) domain.InstrumentSnapshot {
	entry := central.Entry(instrument)

	bids := book.SortedLevels(instrument, domain.SideBuy)
	asks := book.SortedLevels(instrument, domain.SideSell)

	// Nearest levels first: the top bids are the tail of the ascending bid
	// slice, the top asks its head.
	topBids := tailLevels(bids, levelsPerSide)
	topAsks := headLevels(asks, levelsPerSide)

	levels := make([]domain.SnapshotLevel, 0, len(topBids)+len(topAsks))
	for _, lv := range topBids {
		levels = append(levels, b.level(instrument, domain.SideBuy, lv, orders))
	}
	for _, lv := range topAsks {
		levels = append(levels, b.level(instrument, domain.SideSell, lv, orders))
	}

	return domain.InstrumentSnapshot{
		Levels:         levels,
		ProbabilityRow: probabilityRow(entry, bids, asks),
		CentralState:   entry,
	}
}

func (b *Builder) level(instrument, side string, lv domain.PriceLevel, orders *state.ActiveOrderTracker) domain.SnapshotLevel {
	out := domain.SnapshotLevel{
		Price:        lv.Price,
		Side:         side,
		MarketAmount: lv.Qty,
	}
	for _, o := range orders.OrdersAt(instrument, side, lv.Price) {
		out.UserOrders = append(out.UserOrders, domain.SnapshotUserOrder{
			ID:            o.ID,
			Amount:        o.PendingQty,
			QueuePosition: o.QueuePosition,
		})
	}
	return out
}

// probabilityRow builds the four pressure cells: the two best bid levels and
// the two best ask levels, each carrying its side's executed-since-change
// volume over the combined central depth. With fewer than two levels on
// either side the row is omitted entirely.
func probabilityRow(entry domain.CentralStateEntry, bids, asks []domain.PriceLevel) []domain.ProbabilityEntry {
	if len(bids) < 2 || len(asks) < 2 {
		return nil
	}
	denom := entry.CentralBuyDepth.Add(entry.CentralSellDepth)
	if !denom.IsPositive() {
		return nil
	}

	buyRatio := entry.ExecutedSinceBuyPriceChange.Div(denom)
	sellRatio := entry.ExecutedSinceSellPriceChange.Div(denom)

	secondBid := bids[len(bids)-2]
	bestBid := bids[len(bids)-1]
	bestAsk := asks[0]
	secondAsk := asks[1]

	return []domain.ProbabilityEntry{
		{Price: secondBid.Price, Side: domain.SideBuy, Prob: buyRatio},
		{Price: bestBid.Price, Side: domain.SideBuy, Prob: buyRatio},
		{Price: bestAsk.Price, Side: domain.SideSell, Prob: sellRatio},
		{Price: secondAsk.Price, Side: domain.SideSell, Prob: sellRatio},
	}
}

func tailLevels(levels []domain.PriceLevel, n int) []domain.PriceLevel {
	if len(levels) <= n {
		return levels
	}
	return levels[len(levels)-n:]
}

func headLevels(levels []domain.PriceLevel, n int) []domain.PriceLevel {
	if len(levels) <= n {
		return levels
	}
	return levels[:n]
}
