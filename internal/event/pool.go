package event

import (
	"sync"
)

// Depth deltas dominate inbox traffic, so they are pooled to keep GC
// pressure off the ingestion hotpath.
var depthDeltaPool = sync.Pool{
	New: func() interface{} {
		return &DepthDeltaEvent{}
	},
}

// AcquireDepthDeltaEvent gets a DepthDeltaEvent from the pool. The returned
// event has zero values and must be initialized.
func AcquireDepthDeltaEvent() *DepthDeltaEvent {
	return depthDeltaPool.Get().(*DepthDeltaEvent)
}

// ReleaseDepthDeltaEvent returns a DepthDeltaEvent to the pool. Slices are
// truncated, not freed, so their capacity is reused on the next acquire.
func ReleaseDepthDeltaEvent(ev *DepthDeltaEvent) {
	if ev == nil {
		return
	}
	ev.Instrument = ""
	ev.Bids = ev.Bids[:0]
	ev.Asks = ev.Asks[:0]

	depthDeltaPool.Put(ev)
}

var tradeTickPool = sync.Pool{
	New: func() interface{} {
		return &TradeTickEvent{}
	},
}

// AcquireTradeTickEvent gets a TradeTickEvent from the pool.
func AcquireTradeTickEvent() *TradeTickEvent {
	return tradeTickPool.Get().(*TradeTickEvent)
}

// ReleaseTradeTickEvent returns a TradeTickEvent to the pool.
func ReleaseTradeTickEvent(ev *TradeTickEvent) {
	if ev == nil {
		return
	}
	ev.Instrument = ""
	ev.Price = ""
	ev.Qty = ""
	ev.BuyerIsMaker = false

	tradeTickPool.Put(ev)
}
