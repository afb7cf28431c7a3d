package engine

import (
	"queue_go/internal/domain"
	"queue_go/internal/state"
)

// ComputeCollision takes a point-in-time read of the top of the book: best
// bid, second-best bid, best ask, and the bid/ask pressure ratios. It
// returns nil when either side is empty or combined central depth is zero,
// in which case no decision pass runs.
func ComputeCollision(book *state.DepthBook, instrument string) *domain.CollisionSnapshot {
	bestBid, okBid := book.BestBid(instrument)
	bestAsk, okAsk := book.BestAsk(instrument)
	if !okBid || !okAsk {
		return nil
	}

	depthSum := bestBid.Qty.Add(bestAsk.Qty)
	if !depthSum.IsPositive() {
		return nil
	}

	snap := &domain.CollisionSnapshot{
		BidPrice:   bestBid.Price,
		AskPrice:   bestAsk.Price,
		DepthAtBid: bestBid.Qty,
		TopBid:     bestBid.Qty.Div(depthSum),
		TopAsk:     bestAsk.Qty.Div(depthSum),
	}

	bids := book.SortedLevels(instrument, domain.SideBuy)
	if len(bids) >= 2 {
		second := bids[len(bids)-2].Price
		snap.SecondBidPrice = &second
	}

	return snap
}
