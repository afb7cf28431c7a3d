package domain

import "github.com/shopspring/decimal"

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeLimit = "LIMIT"

	ExecTypeNew      = "NEW"
	ExecTypeCanceled = "CANCELED"
	ExecTypeTrade    = "TRADE"

	FillStatusPartial = "PARTIALLY_FILLED"
	FillStatusFilled  = "FILLED"
)

// ActiveOrder is one of the trader's own resting limit orders.
// QueuePosition is the estimated quantity resting ahead of the order at its
// price level. It is inferred from depth deltas and trade ticks, never
// reported by the exchange, and may only decrease after creation.
type ActiveOrder struct {
	ID         int64
	Instrument string
	Side       string // SideBuy or SideSell
	Price      decimal.Decimal

	PendingQty    decimal.Decimal
	FilledQty     decimal.Decimal
	QueuePosition decimal.Decimal

	// EntryPrice is set on sell orders only: the fill price of the buy that
	// opened the position. It bounds how far the sell may be repositioned.
	EntryPrice *decimal.Decimal
}

// IsOpen reports whether the order still has quantity resting on the book.
func (o *ActiveOrder) IsOpen() bool {
	return o.PendingQty.IsPositive()
}

// Combined is queue position plus pending quantity: the total depth the
// order believes exists at its price, itself included.
func (o *ActiveOrder) Combined() decimal.Decimal {
	return o.QueuePosition.Add(o.PendingQty)
}
