package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"queue_go/internal/event"
	"queue_go/internal/infra"
)

// MarketHandler receives parsed market events. The reconciliation layer
// implements it; workers never touch state directly.
type MarketHandler interface {
	HandleDepthDelta(ev *event.DepthDeltaEvent)
	HandleTradeTick(ev *event.TradeTickEvent)
	// HandleResync fires after every successful depth-stream (re)connect,
	// before any delta from the new connection is delivered.
	HandleResync(instrument string)
}

// MarketStreams owns the per-instrument depth and trade websockets. Streams
// open when an instrument goes live and close when its last order leaves
// the book.
type MarketStreams struct {
	wsURL   string
	handler MarketHandler
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]*instrumentStreams
}

type instrumentStreams struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMarketStreams(wsURL string, handler MarketHandler) *MarketStreams {
	return &MarketStreams{
		wsURL:   strings.TrimRight(wsURL, "/"),
		handler: handler,
		active:  make(map[string]*instrumentStreams),
		logger:  slog.Default().With("module", "market_streams"),
	}
}

// Open starts the depth and trade streams for an instrument. Opening an
// already open instrument is a no-op.
func (m *MarketStreams) Open(ctx context.Context, instrument string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[instrument]; ok {
		return nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	is := &instrumentStreams{cancel: cancel}
	m.active[instrument] = is

	symbol := strings.ToLower(instrument)
	depthURL := fmt.Sprintf("%s/ws/%s@depth@100ms", m.wsURL, symbol)
	tradeURL := fmt.Sprintf("%s/ws/%s@aggTrade", m.wsURL, symbol)

	is.wg.Add(2)
	go func() {
		defer is.wg.Done()
		m.streamLoop(streamCtx, instrument, "depth", depthURL, m.handleDepthMessage, true)
	}()
	go func() {
		defer is.wg.Done()
		m.streamLoop(streamCtx, instrument, "trade", tradeURL, m.handleTradeMessage, false)
	}()

	m.logger.Info("market streams opened", slog.String("instrument", instrument))
	return nil
}

// Close stops both streams and waits for their goroutines.
func (m *MarketStreams) Close(instrument string) error {
	m.mu.Lock()
	is, ok := m.active[instrument]
	if ok {
		delete(m.active, instrument)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	is.cancel()
	is.wg.Wait()
	m.logger.Info("market streams closed", slog.String("instrument", instrument))
	return nil
}

// streamLoop dials, reads until failure and reconnects with exponential
// backoff, forever, until the context is canceled.
func (m *MarketStreams) streamLoop(ctx context.Context, instrument, name, url string, handle func(instrument string, msg []byte), resync bool) {
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := m.dial(ctx, url)
		if err != nil {
			m.logger.Warn("stream connect failed",
				slog.String("instrument", instrument),
				slog.String("stream", name),
				slog.Int("retry", retryCount),
				slog.Any("error", err))
			retryCount++
			select {
			case <-ctx.Done():
				return
			case <-time.After(infra.CalculateBackoff(retryCount)):
			}
			continue
		}
		retryCount = 0
		m.logger.Info("stream connected",
			slog.String("instrument", instrument),
			slog.String("stream", name))

		if resync {
			// Deltas missed while disconnected are gone. The book must be
			// rebuilt from a snapshot before the new deltas mean anything.
			m.handler.HandleResync(instrument)
		}

		m.readLoop(ctx, conn, instrument, handle)
		conn.Close()
	}
}

func (m *MarketStreams) dial(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	return conn, err
}

func (m *MarketStreams) readLoop(ctx context.Context, conn *websocket.Conn, instrument string, handle func(instrument string, msg []byte)) {
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Warn("stream read failed",
					slog.String("instrument", instrument),
					slog.Any("error", err))
			}
			return
		}
		handle(instrument, msg)
	}
}

func (m *MarketStreams) handleDepthMessage(instrument string, msg []byte) {
	var update depthUpdateMsg
	if err := json.Unmarshal(msg, &update); err != nil {
		m.logger.Warn("malformed depth message", slog.Any("error", err))
		infra.GlobalMetrics.RecordDrop()
		return
	}
	if update.EventType != "depthUpdate" {
		return
	}

	ev := event.AcquireDepthDeltaEvent()
	ev.Instrument = instrument
	for _, pair := range update.Bids {
		ev.Bids = append(ev.Bids, event.PriceQty{Price: pair[0], Qty: pair[1]})
	}
	for _, pair := range update.Asks {
		ev.Asks = append(ev.Asks, event.PriceQty{Price: pair[0], Qty: pair[1]})
	}
	m.handler.HandleDepthDelta(ev)
}

func (m *MarketStreams) handleTradeMessage(instrument string, msg []byte) {
	var trade aggTradeMsg
	if err := json.Unmarshal(msg, &trade); err != nil {
		m.logger.Warn("malformed trade message", slog.Any("error", err))
		infra.GlobalMetrics.RecordDrop()
		return
	}
	if trade.EventType != "aggTrade" {
		return
	}

	ev := event.AcquireTradeTickEvent()
	ev.Instrument = instrument
	ev.Price = trade.Price
	ev.Qty = trade.Quantity
	ev.BuyerIsMaker = trade.BuyerIsMaker
	m.handler.HandleTradeTick(ev)
}
