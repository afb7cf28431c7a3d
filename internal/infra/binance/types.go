package binance

import "time"

const (
	pingInterval     = 60 * time.Second
	readTimeout      = 90 * time.Second
	handshakeTimeout = 10 * time.Second

	// Listen keys expire after 60 minutes without a keepalive.
	listenKeyRenewInterval = 30 * time.Minute
)

// restDepthSnapshot is the /api/v3/depth response. Levels arrive as
// [price, qty] string pairs.
type restDepthSnapshot struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// depthUpdateMsg is one diff event from the <symbol>@depth stream.
type depthUpdateMsg struct {
	EventType string      `json:"e"`
	EventTime int64       `json:"E"`
	Symbol    string      `json:"s"`
	Bids      [][2]string `json:"b"`
	Asks      [][2]string `json:"a"`
}

// aggTradeMsg is one print from the <symbol>@aggTrade stream.
type aggTradeMsg struct {
	EventType    string `json:"e"`
	Symbol       string `json:"s"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	BuyerIsMaker bool   `json:"m"`
}

// executionReportMsg is one report from the user data stream.
type executionReportMsg struct {
	EventType   string `json:"e"`
	Symbol      string `json:"s"`
	Side        string `json:"S"`
	OrderType   string `json:"o"`
	ExecType    string `json:"x"`
	OrderStatus string `json:"X"`
	OrderID     int64  `json:"i"`
	Price       string `json:"p"`
	OrigQty     string `json:"q"`
	LastFillQty string `json:"l"`
}

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

type accountResponse struct {
	Balances []accountBalance `json:"balances"`
}

type accountBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
