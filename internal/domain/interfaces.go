package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// DepthData is a full authoritative depth snapshot from the exchange REST
// API. It replaces, never merges with, incrementally accumulated state.
type DepthData struct {
	Bids []PriceUpdate
	Asks []PriceUpdate
}

// DepthFetcher fetches a full depth snapshot on demand, used at stream
// (re)start and after order-cancellation cleanup.
type DepthFetcher interface {
	FetchDepth(ctx context.Context, instrument string) (DepthData, error)
}

// OrderExecutor is the exchange order-action collaborator. Failures are
// retried a bounded number of times by the caller and otherwise logged;
// they never propagate into the reconciliation path.
type OrderExecutor interface {
	PlaceLimitOrder(ctx context.Context, instrument, side string, price, qty decimal.Decimal) error
	CancelOrder(ctx context.Context, instrument string, orderID int64) error
	// PlaceInstantSell crosses the spread: it sells the full available
	// balance at the current best bid.
	PlaceInstantSell(ctx context.Context, instrument string) error
}

// Notifier delivers alert pushes. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// SnapshotSink receives the serialized read-model projection on every
// material state change. Implementations must not block the caller.
type SnapshotSink interface {
	Publish(ctx context.Context, instrument string, snap InstrumentSnapshot) error
}

// StreamController opens and closes the per-instrument market-data
// streams. The tracker triggers Close as an external effect when the last
// order for an instrument goes away.
type StreamController interface {
	Open(ctx context.Context, instrument string) error
	Close(instrument string) error
}
