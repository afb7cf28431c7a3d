package state

import (
	"github.com/shopspring/decimal"

	"queue_go/internal/domain"
)

// Depth bucket bands: 50k-wide up to 300k, 100k-wide beyond, capped at 2M.
// Bucketing exists so notifications react to meaningful depth moves instead
// of every tick.
var (
	bucketBandNarrow = decimal.NewFromInt(50_000)
	bucketBandWide   = decimal.NewFromInt(100_000)
	bucketNarrowTop  = decimal.NewFromInt(300_000)
	bucketDepthCap   = decimal.NewFromInt(2_000_000)
)

// DepthBucket maps a depth quantity to a small integer level. Zero or
// negative depth has no level (returns 0). Non-decreasing in its input.
func DepthBucket(qty decimal.Decimal) int {
	if !qty.IsPositive() {
		return 0
	}
	if qty.LessThanOrEqual(bucketNarrowTop) {
		return int(qty.Div(bucketBandNarrow).Ceil().IntPart())
	}
	capped := decimal.Min(qty, bucketDepthCap)
	extra := capped.Sub(bucketNarrowTop).Div(bucketBandWide).Ceil().IntPart()
	return 6 + int(extra)
}

// CentralChange classes produced by a recompute pass.
const (
	ChangeBuyPrice      = "BUY_PRICE"
	ChangeSellPrice     = "SELL_PRICE"
	ChangeBuyDepthDrop  = "BUY_DEPTH_DROP"
	ChangeSellDepthDrop = "SELL_DEPTH_DROP"
	ChangeDepthCollapse = "DEPTH_COLLAPSE"
	ChangeQueueGrowing  = "QUEUE_GROWING"
)

// CentralChange is one detected transition of the central state, consumed
// by the reconciler to drive alerts.
type CentralChange struct {
	Class     string
	Side      string
	Price     decimal.Decimal
	Depth     decimal.Decimal
	PrevDepth decimal.Decimal
	Threshold decimal.Decimal
}

// CentralConfig carries the alerting thresholds. The exact numbers were
// never finalized upstream, so they are configuration, not constants.
type CentralConfig struct {
	// CollapseFloor gates the depth-collapse alert: a bucket decrease only
	// alerts once depth has fallen below this floor.
	CollapseFloor decimal.Decimal
	// DropThresholds is the descending ladder; crossing any of them from
	// above emits a depth-drop alert.
	DropThresholds []decimal.Decimal
}

// DefaultCentralConfig mirrors the thresholds observed in the source
// pattern: collapse floor 400k, ladder 400k/300k/200k/100k.
func DefaultCentralConfig() CentralConfig {
	return CentralConfig{
		CollapseFloor: decimal.NewFromInt(400_000),
		DropThresholds: []decimal.Decimal{
			decimal.NewFromInt(400_000),
			decimal.NewFromInt(300_000),
			decimal.NewFromInt(200_000),
			decimal.NewFromInt(100_000),
		},
	}
}

// CentralLevelTracker derives best bid and best ask per instrument from the
// depth book, buckets their depth into discrete levels and detects
// transitions with hysteresis so alerts do not flap.
type CentralLevelTracker struct {
	cfg     CentralConfig
	entries map[string]*domain.CentralStateEntry
}

func NewCentralLevelTracker(cfg CentralConfig) *CentralLevelTracker {
	return &CentralLevelTracker{
		cfg:     cfg,
		entries: make(map[string]*domain.CentralStateEntry),
	}
}

func (t *CentralLevelTracker) ensure(instrument string) *domain.CentralStateEntry {
	e, ok := t.entries[instrument]
	if !ok {
		e = &domain.CentralStateEntry{}
		t.entries[instrument] = e
	}
	return e
}

// Entry returns a copy of the instrument's central state.
func (t *CentralLevelTracker) Entry(instrument string) domain.CentralStateEntry {
	return *t.ensure(instrument)
}

// Remove drops central state for an instrument.
func (t *CentralLevelTracker) Remove(instrument string) {
	delete(t.entries, instrument)
}

// AddExecutedBuy accumulates trade-tick volume against the current central
// buy price, as a staleness/momentum measure.
func (t *CentralLevelTracker) AddExecutedBuy(instrument string, qty decimal.Decimal) {
	e := t.ensure(instrument)
	e.ExecutedSinceBuyPriceChange = e.ExecutedSinceBuyPriceChange.Add(qty)
}

// AddExecutedSell accumulates trade-tick volume against the current central
// sell price.
func (t *CentralLevelTracker) AddExecutedSell(instrument string, qty decimal.Decimal) {
	e := t.ensure(instrument)
	e.ExecutedSinceSellPriceChange = e.ExecutedSinceSellPriceChange.Add(qty)
}

// Recompute re-derives the central prices and depths from the book and
// returns every transition the pass detected. When either side of the book
// is empty the previous values are retained and nothing is reported.
func (t *CentralLevelTracker) Recompute(instrument string, book *DepthBook) []CentralChange {
	bestBid, okBid := book.BestBid(instrument)
	bestAsk, okAsk := book.BestAsk(instrument)
	if !okBid || !okAsk {
		return nil
	}

	e := t.ensure(instrument)
	var changes []CentralChange

	prevBuyDepth := e.CentralBuyDepth
	prevSellDepth := e.CentralSellDepth

	if e.CentralBuyPrice == nil || !e.CentralBuyPrice.Equal(bestBid.Price) {
		p := bestBid.Price
		e.CentralBuyPrice = &p
		e.ExecutedSinceBuyPriceChange = decimal.Zero
		changes = append(changes, CentralChange{
			Class: ChangeBuyPrice,
			Side:  domain.SideBuy,
			Price: bestBid.Price,
			Depth: bestBid.Qty,
		})
	}
	if e.CentralSellPrice == nil || !e.CentralSellPrice.Equal(bestAsk.Price) {
		p := bestAsk.Price
		e.CentralSellPrice = &p
		e.ExecutedSinceSellPriceChange = decimal.Zero
		changes = append(changes, CentralChange{
			Class: ChangeSellPrice,
			Side:  domain.SideSell,
			Price: bestAsk.Price,
			Depth: bestAsk.Qty,
		})
	}

	e.CentralBuyDepth = bestBid.Qty
	e.CentralSellDepth = bestAsk.Qty

	changes = append(changes, t.bucketTransitions(e, bestBid, bestAsk)...)
	changes = append(changes, t.thresholdCrossings(domain.SideBuy, prevBuyDepth, bestBid)...)
	changes = append(changes, t.thresholdCrossings(domain.SideSell, prevSellDepth, bestAsk)...)

	return changes
}

func (t *CentralLevelTracker) bucketTransitions(e *domain.CentralStateEntry, bestBid, bestAsk domain.PriceLevel) []CentralChange {
	var changes []CentralChange

	buyLevel := DepthBucket(bestBid.Qty)
	if buyLevel != 0 && buyLevel != e.BuyCurrentLevel {
		if e.BuyCurrentLevel != 0 {
			switch {
			case buyLevel > e.BuyCurrentLevel:
				changes = append(changes, CentralChange{
					Class: ChangeQueueGrowing,
					Side:  domain.SideBuy,
					Price: bestBid.Price,
					Depth: bestBid.Qty,
				})
			case bestBid.Qty.LessThan(t.cfg.CollapseFloor):
				changes = append(changes, CentralChange{
					Class:     ChangeDepthCollapse,
					Side:      domain.SideBuy,
					Price:     bestBid.Price,
					Depth:     bestBid.Qty,
					Threshold: t.cfg.CollapseFloor,
				})
			}
		}
		e.BuyCurrentLevel = buyLevel
	}

	sellLevel := DepthBucket(bestAsk.Qty)
	if sellLevel != 0 && sellLevel != e.SellCurrentLevel {
		if e.SellCurrentLevel != 0 {
			switch {
			case sellLevel > e.SellCurrentLevel:
				changes = append(changes, CentralChange{
					Class: ChangeQueueGrowing,
					Side:  domain.SideSell,
					Price: bestAsk.Price,
					Depth: bestAsk.Qty,
				})
			case bestAsk.Qty.LessThan(t.cfg.CollapseFloor):
				changes = append(changes, CentralChange{
					Class:     ChangeDepthCollapse,
					Side:      domain.SideSell,
					Price:     bestAsk.Price,
					Depth:     bestAsk.Qty,
					Threshold: t.cfg.CollapseFloor,
				})
			}
		}
		e.SellCurrentLevel = sellLevel
	}

	return changes
}

func (t *CentralLevelTracker) thresholdCrossings(side string, prevDepth decimal.Decimal, best domain.PriceLevel) []CentralChange {
	if !prevDepth.IsPositive() {
		return nil
	}
	class := ChangeBuyDepthDrop
	if side == domain.SideSell {
		class = ChangeSellDepthDrop
	}
	var changes []CentralChange
	for _, thr := range t.cfg.DropThresholds {
		if prevDepth.GreaterThanOrEqual(thr) && best.Qty.LessThan(thr) {
			changes = append(changes, CentralChange{
				Class:     class,
				Side:      side,
				Price:     best.Price,
				Depth:     best.Qty,
				PrevDepth: prevDepth,
				Threshold: thr,
			})
		}
	}
	return changes
}
