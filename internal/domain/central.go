package domain

import "github.com/shopspring/decimal"

// CentralStateEntry is the derived best-price state for one instrument.
// It is recomputed from the depth book after every delta and never edited
// by hand.
type CentralStateEntry struct {
	// CentralBuyPrice is the highest bid on the book, CentralSellPrice the
	// lowest ask. Nil until the corresponding side has at least one level.
	CentralBuyPrice  *decimal.Decimal `json:"central_buy_price"`
	CentralSellPrice *decimal.Decimal `json:"central_sell_price"`

	CentralBuyDepth  decimal.Decimal `json:"central_buy_depth"`
	CentralSellDepth decimal.Decimal `json:"central_sell_depth"`

	// Traded volume accumulated since the central price last moved. Resets
	// to zero in the same update that changes the price.
	ExecutedSinceBuyPriceChange  decimal.Decimal `json:"executed_since_buy_price_change"`
	ExecutedSinceSellPriceChange decimal.Decimal `json:"executed_since_sell_price_change"`

	// Last-notified depth bucket per side. 0 means no bucket yet.
	BuyCurrentLevel  int `json:"buy_current_level"`
	SellCurrentLevel int `json:"sell_current_level"`
}

// CollisionSnapshot is a single point-in-time read of the top of the book,
// consumed by one decision pass and thrown away.
type CollisionSnapshot struct {
	BidPrice       decimal.Decimal
	SecondBidPrice *decimal.Decimal
	AskPrice       decimal.Decimal
	DepthAtBid     decimal.Decimal

	// TopBid and TopAsk are the bid/ask share of the combined depth at the
	// central prices. Simple pressure ratios, not forecasts.
	TopBid decimal.Decimal
	TopAsk decimal.Decimal
}
