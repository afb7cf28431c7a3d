package binance

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"queue_go/internal/event"
	"queue_go/internal/infra"
)

// UserHandler receives the trader's own execution reports.
type UserHandler interface {
	HandleUserOrder(ev *event.UserOrderEvent)
}

// UserStream maintains the user-data websocket: one listen key, renewed
// every half hour, reconnected with backoff on failure. It runs for the
// whole process lifetime regardless of which instruments are live.
type UserStream struct {
	client  *Client
	wsURL   string
	handler UserHandler
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewUserStream(client *Client, wsURL string, handler UserHandler) *UserStream {
	return &UserStream{
		client:  client,
		wsURL:   wsURL,
		handler: handler,
		logger:  slog.Default().With("module", "user_stream"),
	}
}

// Start launches the connection loop in the background.
func (u *UserStream) Start(ctx context.Context) {
	ctx, u.cancel = context.WithCancel(ctx)
	u.wg.Add(1)
	go u.connectionLoop(ctx)
}

// Stop tears the stream down and waits for its goroutines.
func (u *UserStream) Stop() {
	if u.cancel != nil {
		u.cancel()
	}
	u.wg.Wait()
}

func (u *UserStream) connectionLoop(ctx context.Context) {
	defer u.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := u.runSession(ctx); err != nil {
			u.logger.Warn("user stream session ended",
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
	}
}

// runSession acquires a listen key, connects and reads until failure. The
// renew loop keeps the key alive for the duration of the session.
func (u *UserStream) runSession(ctx context.Context) error {
	keyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	listenKey, err := u.client.GetListenKey(keyCtx)
	cancel()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.wsURL+"/ws/"+listenKey, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	u.logger.Info("user stream connected")

	sessionCtx, stopRenew := context.WithCancel(ctx)
	defer stopRenew()
	go u.renewLoop(sessionCtx, listenKey)

	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		u.handleMessage(msg)
	}
}

func (u *UserStream) renewLoop(ctx context.Context, listenKey string) {
	ticker := time.NewTicker(listenKeyRenewInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := u.client.RenewListenKey(renewCtx, listenKey); err != nil {
				u.logger.Warn("listen key renewal failed", slog.Any("error", err))
			}
			cancel()
		}
	}
}

func (u *UserStream) handleMessage(msg []byte) {
	var report executionReportMsg
	if err := json.Unmarshal(msg, &report); err != nil {
		u.logger.Warn("malformed user stream message", slog.Any("error", err))
		infra.GlobalMetrics.RecordDrop()
		return
	}
	if report.EventType != "executionReport" {
		return
	}

	switch report.ExecType {
	case "NEW", "CANCELED", "TRADE":
	default:
		// REJECTED, EXPIRED and replacements never enter the tracker.
		return
	}

	u.handler.HandleUserOrder(&event.UserOrderEvent{
		Instrument: report.Symbol,
		Side:       report.Side,
		OrderType:  report.OrderType,
		ExecType:   report.ExecType,
		FillStatus: report.OrderStatus,
		OrderID:    report.OrderID,
		Price:      report.Price,
		Qty:        report.OrigQty,
		LastFill:   report.LastFillQty,
	})
}
