package execution

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"queue_go/internal/domain"
)

// PaperExecutor is a dry-run order collaborator: it accepts every action,
// tracks the resulting open orders in memory and never talks to the
// exchange. Useful for running the full reconciliation pipeline against
// live market data without risking funds.
type PaperExecutor struct {
	mu     sync.Mutex
	nextID int64
	open   map[int64]PaperOrder
	sells  []string
	logger *slog.Logger
}

// PaperOrder is one simulated resting order.
type PaperOrder struct {
	ID         int64
	Instrument string
	Side       string
	Price      decimal.Decimal
	Qty        decimal.Decimal
}

func NewPaperExecutor() *PaperExecutor {
	return &PaperExecutor{
		nextID: 1,
		open:   make(map[int64]PaperOrder),
		logger: slog.Default().With("module", "paper_executor"),
	}
}

func (p *PaperExecutor) PlaceLimitOrder(_ context.Context, instrument, side string, price, qty decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order := PaperOrder{
		ID:         p.nextID,
		Instrument: instrument,
		Side:       side,
		Price:      price,
		Qty:        qty,
	}
	p.open[order.ID] = order
	p.nextID++

	p.logger.Info("paper order placed",
		slog.Int64("order_id", order.ID),
		slog.String("instrument", instrument),
		slog.String("side", side),
		slog.String("price", price.String()),
		slog.String("qty", qty.String()))
	return nil
}

func (p *PaperExecutor) CancelOrder(_ context.Context, instrument string, orderID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.open[orderID]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(p.open, orderID)

	p.logger.Info("paper order canceled",
		slog.Int64("order_id", orderID),
		slog.String("instrument", instrument))
	return nil
}

func (p *PaperExecutor) PlaceInstantSell(_ context.Context, instrument string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sells = append(p.sells, instrument)
	p.logger.Info("paper instant sell", slog.String("instrument", instrument))
	return nil
}

// OpenOrders returns the currently simulated resting orders.
func (p *PaperExecutor) OpenOrders() []PaperOrder {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]PaperOrder, 0, len(p.open))
	for _, o := range p.open {
		out = append(out, o)
	}
	return out
}

// InstantSells returns the instruments liquidated so far.
func (p *PaperExecutor) InstantSells() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sells...)
}
