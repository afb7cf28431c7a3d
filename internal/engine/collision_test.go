package engine

import (
	"testing"

	"queue_go/internal/domain"
	"queue_go/internal/state"
)

func seedBook(t *testing.T, bids, asks []domain.PriceUpdate) *state.DepthBook {
	t.Helper()
	book := state.NewDepthBook()
	book.ApplyDelta("BTCUSDT", bids, asks)
	return book
}

func TestComputeCollision(t *testing.T) {
	t.Run("derives top of book and pressure ratios", func(t *testing.T) {
		book := seedBook(t,
			[]domain.PriceUpdate{
				{Price: dec("100"), Qty: dec("60000")},
				{Price: dec("99"), Qty: dec("150000")},
			},
			[]domain.PriceUpdate{
				{Price: dec("101"), Qty: dec("40000")},
			},
		)

		snap := ComputeCollision(book, "BTCUSDT")
		if snap == nil {
			t.Fatal("expected a snapshot")
		}
		if !snap.BidPrice.Equal(dec("100")) || !snap.AskPrice.Equal(dec("101")) {
			t.Fatalf("top of book = %s/%s", snap.BidPrice, snap.AskPrice)
		}
		if !snap.DepthAtBid.Equal(dec("60000")) {
			t.Fatalf("depth at bid = %s", snap.DepthAtBid)
		}
		if snap.SecondBidPrice == nil || !snap.SecondBidPrice.Equal(dec("99")) {
			t.Fatalf("second bid = %v", snap.SecondBidPrice)
		}
		if !snap.TopBid.Equal(dec("0.6")) || !snap.TopAsk.Equal(dec("0.4")) {
			t.Fatalf("ratios = %s/%s", snap.TopBid, snap.TopAsk)
		}
	})

	t.Run("single bid level leaves the second bid unset", func(t *testing.T) {
		book := seedBook(t,
			[]domain.PriceUpdate{{Price: dec("100"), Qty: dec("60000")}},
			[]domain.PriceUpdate{{Price: dec("101"), Qty: dec("40000")}},
		)

		snap := ComputeCollision(book, "BTCUSDT")
		if snap == nil {
			t.Fatal("expected a snapshot")
		}
		if snap.SecondBidPrice != nil {
			t.Fatalf("second bid should be nil, got %s", snap.SecondBidPrice)
		}
	})

	t.Run("empty ask side yields no snapshot", func(t *testing.T) {
		book := seedBook(t,
			[]domain.PriceUpdate{{Price: dec("100"), Qty: dec("60000")}},
			nil,
		)
		if snap := ComputeCollision(book, "BTCUSDT"); snap != nil {
			t.Fatalf("expected nil, got %+v", snap)
		}
	})

	t.Run("unknown instrument yields no snapshot", func(t *testing.T) {
		book := state.NewDepthBook()
		if snap := ComputeCollision(book, "ETHUSDT"); snap != nil {
			t.Fatalf("expected nil, got %+v", snap)
		}
	})
}
