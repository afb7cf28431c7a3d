package event

// Type defines the type of event.
type Type uint16

const (
	EvDepthDelta Type = iota + 1
	EvTradeTick
	EvUserOrder
	EvResync
)

// Event is the interface for all reconciler inbox events.
type Event interface {
	GetType() Type
	GetInstrument() string
}

// PriceQty is one raw (price, quantity) string pair as it arrived on the
// wire. Parsing happens inside the reconciler so malformed values can be
// dropped with a warning without losing the rest of the batch.
type PriceQty struct {
	Price string
	Qty   string
}

// DepthDeltaEvent is one incremental order-book update from the depth feed.
type DepthDeltaEvent struct {
	Instrument string
	Bids       []PriceQty
	Asks       []PriceQty
}

func (e *DepthDeltaEvent) GetType() Type { return EvDepthDelta }
func (e *DepthDeltaEvent) GetInstrument() string { return e.Instrument }

// TradeTickEvent is one executed market trade from the trade feed.
// BuyerIsMaker true means the passive side of the print was a resting buy.
type TradeTickEvent struct {
	Instrument   string
	Price        string
	Qty          string
	BuyerIsMaker bool
}

func (e *TradeTickEvent) GetType() Type { return EvTradeTick }
func (e *TradeTickEvent) GetInstrument() string { return e.Instrument }

// UserOrderEvent is one execution report from the trader's own order
// stream.
type UserOrderEvent struct {
	Instrument string
	Side       string
	OrderType  string
	ExecType   string // NEW, CANCELED, TRADE
	FillStatus string // PARTIALLY_FILLED, FILLED
	OrderID    int64
	Price      string
	Qty        string
	LastFill   string // quantity filled by this report
}

func (e *UserOrderEvent) GetType() Type { return EvUserOrder }
func (e *UserOrderEvent) GetInstrument() string { return e.Instrument }

// ResyncEvent signals that the depth stream reconnected and any deltas in
// between were lost. The book must be rebuilt from an authoritative
// snapshot before further deltas apply.
type ResyncEvent struct {
	Instrument string
}

func (e *ResyncEvent) GetType() Type { return EvResync }
func (e *ResyncEvent) GetInstrument() string { return e.Instrument }
