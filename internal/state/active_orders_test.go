package state

import (
	"testing"

	"queue_go/internal/domain"
)

func TestActiveOrderTracker_Create(t *testing.T) {
	tr := NewActiveOrderTracker()

	order := tr.Create("ACAUSDT", domain.SideBuy, dec("10"), dec("40"), 1, dec("100"))

	if !order.QueuePosition.Equal(dec("60")) {
		t.Errorf("queue position = %s, want 60", order.QueuePosition)
	}

	t.Run("queue floors at zero when depth is smaller than the order", func(t *testing.T) {
		o := tr.Create("ACAUSDT", domain.SideBuy, dec("9"), dec("40"), 2, dec("10"))
		if !o.QueuePosition.IsZero() {
			t.Errorf("queue position = %s, want 0", o.QueuePosition)
		}
	})
}

func TestActiveOrderTracker_Reestimate(t *testing.T) {
	t.Run("shrunken depth narrows the estimate", func(t *testing.T) {
		tr := NewActiveOrderTracker()
		order := tr.Create("ACAUSDT", domain.SideBuy, dec("10"), dec("40"), 1, dec("100"))

		// combined was 100; new depth 50 < 100
		tr.Reestimate("ACAUSDT", []domain.PriceUpdate{update("10", "50")}, nil)

		if !order.QueuePosition.Equal(dec("10")) {
			t.Errorf("queue position = %s, want 10", order.QueuePosition)
		}
	})

	t.Run("grown depth leaves the estimate alone", func(t *testing.T) {
		tr := NewActiveOrderTracker()
		order := tr.Create("ACAUSDT", domain.SideBuy, dec("10"), dec("40"), 1, dec("100"))
		tr.Reestimate("ACAUSDT", []domain.PriceUpdate{update("10", "50")}, nil)

		// combined is now 50; 200 >= 50, the shrink could be behind us
		tr.Reestimate("ACAUSDT", []domain.PriceUpdate{update("10", "200")}, nil)

		if !order.QueuePosition.Equal(dec("10")) {
			t.Errorf("queue position = %s, want unchanged 10", order.QueuePosition)
		}
	})

	t.Run("other price levels are untouched", func(t *testing.T) {
		tr := NewActiveOrderTracker()
		order := tr.Create("ACAUSDT", domain.SideBuy, dec("10"), dec("40"), 1, dec("100"))

		tr.Reestimate("ACAUSDT", []domain.PriceUpdate{update("9", "5")}, nil)

		if !order.QueuePosition.Equal(dec("60")) {
			t.Errorf("queue position = %s, want 60", order.QueuePosition)
		}
	})

	t.Run("never increases across delta sequences", func(t *testing.T) {
		tr := NewActiveOrderTracker()
		order := tr.Create("ACAUSDT", domain.SideBuy, dec("10"), dec("40"), 1, dec("100"))

		prev := order.QueuePosition
		for _, qty := range []string{"90", "500", "70", "45", "1000", "41"} {
			tr.Reestimate("ACAUSDT", []domain.PriceUpdate{update("10", qty)}, nil)
			if order.QueuePosition.GreaterThan(prev) {
				t.Fatalf("queue position increased from %s to %s after depth %s", prev, order.QueuePosition, qty)
			}
			prev = order.QueuePosition
		}
	})
}

func TestActiveOrderTracker_ApplyTradeTick(t *testing.T) {
	tr := NewActiveOrderTracker()
	order := tr.Create("ACAUSDT", domain.SideBuy, dec("10"), dec("40"), 1, dec("100"))

	// A trade against passive buyers at our level moves us up the queue.
	tr.ApplyTradeTick("ACAUSDT", dec("10"), dec("25"), true)
	if !order.QueuePosition.Equal(dec("35")) {
		t.Errorf("queue position = %s, want 35", order.QueuePosition)
	}

	// Passive sellers traded: our buy order is unaffected.
	tr.ApplyTradeTick("ACAUSDT", dec("10"), dec("25"), false)
	if !order.QueuePosition.Equal(dec("35")) {
		t.Errorf("queue position = %s, want still 35", order.QueuePosition)
	}

	// Floors at zero, never negative.
	tr.ApplyTradeTick("ACAUSDT", dec("10"), dec("999"), true)
	if !order.QueuePosition.IsZero() {
		t.Errorf("queue position = %s, want 0", order.QueuePosition)
	}
}

func TestActiveOrderTracker_ApplyPartialFill(t *testing.T) {
	tr := NewActiveOrderTracker()
	order := tr.Create("ACAUSDT", domain.SideBuy, dec("10"), dec("40"), 1, dec("100"))

	if err := tr.ApplyPartialFill(1, dec("15")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !order.FilledQty.Equal(dec("15")) || !order.PendingQty.Equal(dec("25")) {
		t.Errorf("filled=%s pending=%s, want 15/25", order.FilledQty, order.PendingQty)
	}
	if !order.QueuePosition.Equal(dec("60")) {
		t.Errorf("partial fill must not touch queue position, got %s", order.QueuePosition)
	}

	if err := tr.ApplyPartialFill(99, dec("1")); err != domain.ErrOrderNotFound {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestActiveOrderTracker_Delete(t *testing.T) {
	tr := NewActiveOrderTracker()
	tr.Create("ACAUSDT", domain.SideBuy, dec("10"), dec("40"), 1, dec("100"))
	tr.Create("ACAUSDT", domain.SideBuy, dec("10"), dec("10"), 2, dec("100"))

	_, empty, err := tr.Delete(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty {
		t.Error("instrument should still have orders")
	}
	if got := tr.OrdersAt("ACAUSDT", domain.SideBuy, dec("10")); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("level should keep order 2, got %v", got)
	}

	instrument, empty, err := tr.Delete(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !empty || instrument != "ACAUSDT" {
		t.Errorf("last delete should report the instrument empty, got %q empty=%v", instrument, empty)
	}
	if tr.HasOrders("ACAUSDT") {
		t.Error("tracker should have pruned the instrument")
	}
}

func TestActiveOrderTracker_PendingSellEntry(t *testing.T) {
	tr := NewActiveOrderTracker()

	tr.SetPendingSellEntry("ACAUSDT", dec("99"))
	order := tr.Create("ACAUSDT", domain.SideSell, dec("98"), dec("5"), 7, dec("0"))

	if order.EntryPrice == nil || !order.EntryPrice.Equal(dec("99")) {
		t.Fatalf("replacement sell should inherit entry price 99, got %v", order.EntryPrice)
	}

	// Slot is one-shot: the next sell falls back to its own price.
	next := tr.Create("ACAUSDT", domain.SideSell, dec("100"), dec("5"), 8, dec("0"))
	if next.EntryPrice == nil || !next.EntryPrice.Equal(dec("100")) {
		t.Errorf("fresh sell entry price = %v, want own price 100", next.EntryPrice)
	}
}

func TestActiveOrderTracker_QueueBounds(t *testing.T) {
	tr := NewActiveOrderTracker()
	tr.Create("ACAUSDT", domain.SideBuy, dec("10"), dec("40"), 1, dec("100")) // queue 60
	tr.Create("ACAUSDT", domain.SideBuy, dec("10"), dec("10"), 2, dec("30"))  // queue 20

	nearest, furthest, ok := tr.QueueBounds("ACAUSDT", domain.SideBuy, dec("10"))
	if !ok {
		t.Fatal("bounds should exist")
	}
	if !nearest.Equal(dec("20")) || !furthest.Equal(dec("60")) {
		t.Errorf("bounds = %s/%s, want 20/60", nearest, furthest)
	}
}
