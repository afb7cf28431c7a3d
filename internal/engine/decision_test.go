package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"queue_go/internal/domain"
	"queue_go/internal/state"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type placedOrder struct {
	instrument string
	side       string
	price      decimal.Decimal
	qty        decimal.Decimal
}

type fakeExecutor struct {
	mu           sync.Mutex
	canceled     []int64
	placed       []placedOrder
	instantSells []string
}

func (f *fakeExecutor) PlaceLimitOrder(_ context.Context, instrument, side string, price, qty decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, placedOrder{instrument, side, price, qty})
	return nil
}

func (f *fakeExecutor) CancelOrder(_ context.Context, _ string, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, orderID)
	return nil
}

func (f *fakeExecutor) PlaceInstantSell(_ context.Context, instrument string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instantSells = append(f.instantSells, instrument)
	return nil
}

func (f *fakeExecutor) snapshot() (canceled []int64, placed []placedOrder, instant []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.canceled...),
		append([]placedOrder(nil), f.placed...),
		append([]string(nil), f.instantSells...)
}

type fakeFetcher struct {
	depth domain.DepthData
}

func (f *fakeFetcher) FetchDepth(_ context.Context, _ string) (domain.DepthData, error) {
	return f.depth, nil
}

// waitFor polls until the condition holds. Order actions run on their own
// goroutines, so assertions on executor calls have to wait them out.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func newTestEngine(depth domain.DepthData) (*DecisionEngine, *fakeExecutor, *state.ActiveOrderTracker) {
	exec := &fakeExecutor{}
	orders := state.NewActiveOrderTracker()
	cfg := DefaultDecisionConfig()
	cfg.RetryDelay = 10 * time.Millisecond
	eng := NewDecisionEngine(cfg, exec, &fakeFetcher{depth: depth}, orders, nil)
	return eng, exec, orders
}

func TestEvaluateBuyOrders(t *testing.T) {
	t.Run("replaces when best bid drains below the floor", func(t *testing.T) {
		fresh := domain.DepthData{
			Bids: []domain.PriceUpdate{
				{Price: dec("100"), Qty: dec("80000")},
				{Price: dec("99"), Qty: dec("50000")},
			},
		}
		eng, exec, orders := newTestEngine(fresh)
		order := orders.Create("BTCUSDT", domain.SideBuy, dec("100"), dec("10"), 1, dec("90000"))

		snap := &domain.CollisionSnapshot{
			BidPrice:   dec("100"),
			AskPrice:   dec("101"),
			DepthAtBid: dec("60000"),
			TopBid:     dec("0.5"),
			TopAsk:     dec("0.5"),
		}
		eng.Evaluate("BTCUSDT", snap)

		waitFor(t, func() bool {
			_, placed, _ := exec.snapshot()
			return len(placed) == 1
		})
		canceled, placed, _ := exec.snapshot()
		if len(canceled) != 1 || canceled[0] != order.ID {
			t.Fatalf("expected cancel of order %d, got %v", order.ID, canceled)
		}
		if placed[0].side != domain.SideBuy || !placed[0].price.Equal(dec("100")) {
			t.Fatalf("expected buy replacement at 100, got %+v", placed[0])
		}
		if !placed[0].qty.Equal(dec("10")) {
			t.Fatalf("replacement must carry the unfilled quantity, got %s", placed[0].qty)
		}
	})

	t.Run("holds at the best bid while depth clears the floor", func(t *testing.T) {
		eng, exec, orders := newTestEngine(domain.DepthData{})
		orders.Create("BTCUSDT", domain.SideBuy, dec("100"), dec("10"), 1, dec("90000"))

		eng.Evaluate("BTCUSDT", &domain.CollisionSnapshot{
			BidPrice:   dec("100"),
			AskPrice:   dec("101"),
			DepthAtBid: dec("75000"),
		})

		time.Sleep(50 * time.Millisecond)
		canceled, placed, instant := exec.snapshot()
		if len(canceled)+len(placed)+len(instant) != 0 {
			t.Fatalf("expected no actions, got cancels=%v placed=%v instant=%v", canceled, placed, instant)
		}
	})

	t.Run("promotes from a strong second bid", func(t *testing.T) {
		fresh := domain.DepthData{
			Bids: []domain.PriceUpdate{
				{Price: dec("100"), Qty: dec("90000")},
				{Price: dec("99"), Qty: dec("120000")},
			},
		}
		eng, exec, orders := newTestEngine(fresh)
		// Believed depth 120k, own quantity 30k: queue 90k, combined 120k.
		orders.Create("BTCUSDT", domain.SideBuy, dec("99"), dec("30000"), 2, dec("120000"))

		secondBid := dec("99")
		eng.Evaluate("BTCUSDT", &domain.CollisionSnapshot{
			BidPrice:       dec("100"),
			SecondBidPrice: &secondBid,
			AskPrice:       dec("101"),
			DepthAtBid:     dec("200000"),
		})

		waitFor(t, func() bool {
			_, placed, _ := exec.snapshot()
			return len(placed) == 1
		})
		_, placed, _ := exec.snapshot()
		if !placed[0].price.Equal(dec("100")) {
			t.Fatalf("promotion should rejoin the deep best bid, got %s", placed[0].price)
		}
	})

	t.Run("stays at a weak second bid", func(t *testing.T) {
		eng, exec, orders := newTestEngine(domain.DepthData{})
		// Queue 10k is below the promotion floor.
		orders.Create("BTCUSDT", domain.SideBuy, dec("99"), dec("30000"), 2, dec("40000"))

		secondBid := dec("99")
		eng.Evaluate("BTCUSDT", &domain.CollisionSnapshot{
			BidPrice:       dec("100"),
			SecondBidPrice: &secondBid,
			AskPrice:       dec("101"),
			DepthAtBid:     dec("200000"),
		})

		time.Sleep(50 * time.Millisecond)
		canceled, placed, _ := exec.snapshot()
		if len(canceled)+len(placed) != 0 {
			t.Fatalf("expected no actions, got cancels=%v placed=%v", canceled, placed)
		}
	})

	t.Run("skips an order whose remainder was just filled", func(t *testing.T) {
		eng, exec, orders := newTestEngine(domain.DepthData{})
		// Out of range, which would normally force a reposition, but the
		// last fill already consumed it.
		orders.Create("BTCUSDT", domain.SideBuy, dec("95"), dec("10"), 4, dec("5000"))
		if err := orders.ApplyPartialFill(4, dec("10")); err != nil {
			t.Fatal(err)
		}

		eng.Evaluate("BTCUSDT", &domain.CollisionSnapshot{
			BidPrice:   dec("100"),
			AskPrice:   dec("101"),
			DepthAtBid: dec("200000"),
		})

		time.Sleep(50 * time.Millisecond)
		canceled, placed, _ := exec.snapshot()
		if len(canceled)+len(placed) != 0 {
			t.Fatalf("expected no actions, got cancels=%v placed=%v", canceled, placed)
		}
	})

	t.Run("repositions an order outside the top two levels", func(t *testing.T) {
		fresh := domain.DepthData{
			Bids: []domain.PriceUpdate{
				{Price: dec("100"), Qty: dec("80000")},
			},
		}
		eng, exec, orders := newTestEngine(fresh)
		orders.Create("BTCUSDT", domain.SideBuy, dec("95"), dec("10"), 3, dec("5000"))

		secondBid := dec("99")
		eng.Evaluate("BTCUSDT", &domain.CollisionSnapshot{
			BidPrice:       dec("100"),
			SecondBidPrice: &secondBid,
			AskPrice:       dec("101"),
			DepthAtBid:     dec("200000"),
		})

		waitFor(t, func() bool {
			_, placed, _ := exec.snapshot()
			return len(placed) == 1
		})
		_, placed, _ := exec.snapshot()
		if !placed[0].price.Equal(dec("100")) {
			t.Fatalf("expected reposition to the fresh best bid, got %s", placed[0].price)
		}
	})
}

func TestEvaluateSellOrders(t *testing.T) {
	t.Run("liquidates when the ask falls through the band", func(t *testing.T) {
		eng, exec, orders := newTestEngine(domain.DepthData{})
		order := orders.Create("BTCUSDT", domain.SideSell, dec("105"), dec("10"), 5, dec("0"))

		eng.Evaluate("BTCUSDT", &domain.CollisionSnapshot{
			BidPrice:   dec("102"),
			AskPrice:   dec("103"),
			DepthAtBid: dec("100000"),
		})

		waitFor(t, func() bool {
			_, _, instant := exec.snapshot()
			return len(instant) == 1
		})
		canceled, _, instant := exec.snapshot()
		if canceled[0] != order.ID {
			t.Fatalf("expected cancel before instant sell, got %v", canceled)
		}
		if instant[0] != "BTCUSDT" {
			t.Fatalf("unexpected instant sell target %s", instant[0])
		}
	})

	t.Run("repositions toward the ask capped at entry plus one", func(t *testing.T) {
		eng, exec, orders := newTestEngine(domain.DepthData{})
		orders.Create("BTCUSDT", domain.SideSell, dec("105"), dec("10"), 5, dec("0"))

		eng.Evaluate("BTCUSDT", &domain.CollisionSnapshot{
			BidPrice:   dec("107"),
			AskPrice:   dec("108"),
			DepthAtBid: dec("100000"),
		})

		// Entry carries over to the replacement order via the pending slot.
		entry, ok := orders.ConsumePendingSellEntry("BTCUSDT")
		if !ok || !entry.Equal(dec("105")) {
			t.Fatalf("expected pending entry 105, got %s ok=%v", entry, ok)
		}

		waitFor(t, func() bool {
			_, placed, _ := exec.snapshot()
			return len(placed) == 1
		})
		_, placed, _ := exec.snapshot()
		if placed[0].side != domain.SideSell || !placed[0].price.Equal(dec("106")) {
			t.Fatalf("expected sell replacement at 106, got %+v", placed[0])
		}
	})

	t.Run("follows a nearer ask below the cap", func(t *testing.T) {
		eng, exec, orders := newTestEngine(domain.DepthData{})
		// Entry 105 inherited from the pending slot, resting at 107.
		orders.SetPendingSellEntry("BTCUSDT", dec("105"))
		orders.Create("BTCUSDT", domain.SideSell, dec("107"), dec("10"), 6, dec("0"))

		eng.Evaluate("BTCUSDT", &domain.CollisionSnapshot{
			BidPrice:   dec("104"),
			AskPrice:   dec("105.5"),
			DepthAtBid: dec("100000"),
		})

		waitFor(t, func() bool {
			_, placed, _ := exec.snapshot()
			return len(placed) == 1
		})
		_, placed, _ := exec.snapshot()
		if !placed[0].price.Equal(dec("105.5")) {
			t.Fatalf("expected sell replacement at 105.5, got %+v", placed[0])
		}
	})

	t.Run("rests untouched at the target price", func(t *testing.T) {
		eng, exec, orders := newTestEngine(domain.DepthData{})
		orders.SetPendingSellEntry("BTCUSDT", dec("105"))
		orders.Create("BTCUSDT", domain.SideSell, dec("106"), dec("10"), 6, dec("0"))

		eng.Evaluate("BTCUSDT", &domain.CollisionSnapshot{
			BidPrice:   dec("107"),
			AskPrice:   dec("108"),
			DepthAtBid: dec("100000"),
		})

		time.Sleep(50 * time.Millisecond)
		canceled, placed, instant := exec.snapshot()
		if len(canceled)+len(placed)+len(instant) != 0 {
			t.Fatalf("expected no actions, got cancels=%v placed=%v instant=%v", canceled, placed, instant)
		}
	})
}

func TestChooseBuyPrice(t *testing.T) {
	floor := dec("70000")

	tests := []struct {
		name string
		bids []domain.PriceUpdate
		want string
		ok   bool
	}{
		{
			name: "deep best bid wins",
			bids: []domain.PriceUpdate{
				{Price: dec("100"), Qty: dec("80000")},
				{Price: dec("99"), Qty: dec("50000")},
			},
			want: "100", ok: true,
		},
		{
			name: "thin best bid steps back to the second",
			bids: []domain.PriceUpdate{
				{Price: dec("100"), Qty: dec("30000")},
				{Price: dec("99"), Qty: dec("200000")},
			},
			want: "99", ok: true,
		},
		{
			name: "unsorted input",
			bids: []domain.PriceUpdate{
				{Price: dec("98"), Qty: dec("10000")},
				{Price: dec("100"), Qty: dec("30000")},
				{Price: dec("99"), Qty: dec("200000")},
			},
			want: "99", ok: true,
		},
		{
			name: "single thin level is still the best available",
			bids: []domain.PriceUpdate{
				{Price: dec("100"), Qty: dec("30000")},
			},
			want: "100", ok: true,
		},
		{
			name: "zero quantity levels are ignored",
			bids: []domain.PriceUpdate{
				{Price: dec("101"), Qty: dec("0")},
				{Price: dec("100"), Qty: dec("80000")},
			},
			want: "100", ok: true,
		},
		{
			name: "empty book",
			bids: nil,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := chooseBuyPrice(domain.DepthData{Bids: tt.bids}, floor)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(dec(tt.want)) {
				t.Fatalf("price = %s, want %s", got, tt.want)
			}
		})
	}
}
