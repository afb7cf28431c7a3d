package domain

import "github.com/shopspring/decimal"

// SnapshotUserOrder annotates a projected level with one of the trader's
// own resting orders at that exact price.
type SnapshotUserOrder struct {
	ID            int64           `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	QueuePosition decimal.Decimal `json:"queue_position"`
}

// SnapshotLevel is one projected price level around the central prices.
type SnapshotLevel struct {
	Price        decimal.Decimal     `json:"price"`
	Side         string              `json:"side"`
	MarketAmount decimal.Decimal     `json:"market_amount"`
	UserOrders   []SnapshotUserOrder `json:"user_orders"`
}

// ProbabilityEntry is one cell of the dashboard pressure row: the bid or
// ask share of combined central depth, attached to a nearby price.
type ProbabilityEntry struct {
	Price decimal.Decimal `json:"price"`
	Side  string          `json:"side"`
	Prob  decimal.Decimal `json:"prob"`
}

// InstrumentSnapshot is the bounded read model for one instrument: a
// handful of levels around the central prices plus pressure indicators.
type InstrumentSnapshot struct {
	Levels         []SnapshotLevel    `json:"levels"`
	ProbabilityRow []ProbabilityEntry `json:"probability_row"`
	CentralState   CentralStateEntry  `json:"central_state"`
}
