package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"queue_go/internal/domain"
	"queue_go/internal/infra"
)

// quoteAssets, longest first, so the base asset can be split off an
// instrument symbol like BTCUSDT.
var quoteAssets = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "BNB"}

// Client is the spot REST API boundary. It implements the depth-fetch and
// order-action collaborators plus the user-stream listen-key lifecycle.
type Client struct {
	baseURL    string
	depthLimit int
	httpClient *http.Client
	signer     *Signer
	logger     *slog.Logger
}

func NewClient(cfg *infra.Config) *Client {
	depthLimit := cfg.API.Binance.DepthLimit
	if depthLimit <= 0 {
		depthLimit = 20
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.API.Binance.RestURL, "/"),
		depthLimit: depthLimit,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		signer: NewSigner(cfg.API.Binance.APIKey, cfg.API.Binance.SecretKey),
		logger: slog.Default().With("module", "binance_client"),
	}
}

// FetchDepth pulls a full authoritative depth snapshot.
func (c *Client) FetchDepth(ctx context.Context, instrument string) (domain.DepthData, error) {
	reqURL := fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=%d", c.baseURL, instrument, c.depthLimit)

	body, err := c.do(ctx, http.MethodGet, reqURL, false)
	if err != nil {
		return domain.DepthData{}, fmt.Errorf("fetch depth %s: %w", instrument, err)
	}

	var snap restDepthSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return domain.DepthData{}, fmt.Errorf("parse depth %s: %w", instrument, err)
	}

	depth := domain.DepthData{
		Bids: parseLevels(snap.Bids),
		Asks: parseLevels(snap.Asks),
	}
	return depth, nil
}

func parseLevels(raw [][2]string) []domain.PriceUpdate {
	out := make([]domain.PriceUpdate, 0, len(raw))
	for _, pair := range raw {
		price, err1 := decimal.NewFromString(pair[0])
		qty, err2 := decimal.NewFromString(pair[1])
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, domain.PriceUpdate{Price: price, Qty: qty})
	}
	return out
}

// PlaceLimitOrder submits a GTC limit order. The resulting NEW execution
// report on the user stream registers it with the tracker.
func (c *Client) PlaceLimitOrder(ctx context.Context, instrument, side string, price, qty decimal.Decimal) error {
	query := url.Values{}
	query.Set("symbol", instrument)
	query.Set("side", side)
	query.Set("type", domain.OrderTypeLimit)
	query.Set("timeInForce", "GTC")
	query.Set("price", price.String())
	query.Set("quantity", qty.String())

	reqURL := c.baseURL + "/api/v3/order?" + c.signer.SignQuery(query.Encode())
	if _, err := c.do(ctx, http.MethodPost, reqURL, true); err != nil {
		return fmt.Errorf("place %s %s@%s: %w", side, instrument, price, err)
	}

	c.logger.Info("order placed",
		slog.String("instrument", instrument),
		slog.String("side", side),
		slog.String("price", price.String()),
		slog.String("qty", qty.String()))
	return nil
}

// CancelOrder cancels one resting order by exchange id.
func (c *Client) CancelOrder(ctx context.Context, instrument string, orderID int64) error {
	query := url.Values{}
	query.Set("symbol", instrument)
	query.Set("orderId", fmt.Sprintf("%d", orderID))

	reqURL := c.baseURL + "/api/v3/order?" + c.signer.SignQuery(query.Encode())
	if _, err := c.do(ctx, http.MethodDelete, reqURL, true); err != nil {
		return fmt.Errorf("cancel order %d on %s: %w", orderID, instrument, err)
	}

	c.logger.Info("order canceled",
		slog.String("instrument", instrument),
		slog.Int64("order_id", orderID))
	return nil
}

// PlaceInstantSell liquidates the position: a GTC limit sell at the current
// best bid, sized to the full asset balance truncated to a whole unit. The
// bid absorbs it immediately, so this fills like a market order without
// quoting one.
func (c *Client) PlaceInstantSell(ctx context.Context, instrument string) error {
	asset := baseAsset(instrument)
	balance, err := c.assetBalance(ctx, asset)
	if err != nil {
		return fmt.Errorf("instant sell %s: %w", instrument, err)
	}
	qty := balance.Floor()
	if !qty.IsPositive() {
		return fmt.Errorf("instant sell %s: no %s balance to sell", instrument, asset)
	}

	depth, err := c.FetchDepth(ctx, instrument)
	if err != nil {
		return fmt.Errorf("instant sell %s: %w", instrument, err)
	}
	bid, ok := bestBid(depth)
	if !ok {
		return fmt.Errorf("instant sell %s: %w", instrument, domain.ErrEmptyBook)
	}

	query := url.Values{}
	query.Set("symbol", instrument)
	query.Set("side", domain.SideSell)
	query.Set("type", domain.OrderTypeLimit)
	query.Set("timeInForce", "GTC")
	query.Set("price", bid.Price.String())
	query.Set("quantity", qty.String())

	reqURL := c.baseURL + "/api/v3/order?" + c.signer.SignQuery(query.Encode())
	if _, err := c.do(ctx, http.MethodPost, reqURL, true); err != nil {
		return fmt.Errorf("instant sell %s: %w", instrument, err)
	}

	c.logger.Info("instant sell placed",
		slog.String("instrument", instrument),
		slog.String("price", bid.Price.String()),
		slog.String("qty", qty.String()))
	return nil
}

// assetBalance returns the full position in the asset, free plus locked.
// Locked counts because the liquidation path cancels the resting order
// before selling, which releases its quantity.
func (c *Client) assetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	reqURL := c.baseURL + "/api/v3/account?" + c.signer.SignQuery("")
	body, err := c.do(ctx, http.MethodGet, reqURL, true)
	if err != nil {
		return decimal.Zero, err
	}

	var account accountResponse
	if err := json.Unmarshal(body, &account); err != nil {
		return decimal.Zero, fmt.Errorf("parse account: %w", err)
	}
	for _, bal := range account.Balances {
		if bal.Asset != asset {
			continue
		}
		free, err := decimal.NewFromString(bal.Free)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse balance %s: %w", bal.Free, err)
		}
		locked, err := decimal.NewFromString(bal.Locked)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse balance %s: %w", bal.Locked, err)
		}
		return free.Add(locked), nil
	}
	return decimal.Zero, nil
}

func bestBid(depth domain.DepthData) (domain.PriceUpdate, bool) {
	var best domain.PriceUpdate
	found := false
	for _, u := range depth.Bids {
		if !u.Qty.IsPositive() {
			continue
		}
		if !found || u.Price.GreaterThan(best.Price) {
			best = u
			found = true
		}
	}
	return best, found
}

// GetListenKey requests a fresh user-data-stream key.
func (c *Client) GetListenKey(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/v3/userDataStream", true)
	if err != nil {
		return "", fmt.Errorf("get listen key: %w", err)
	}
	var resp listenKeyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse listen key: %w", err)
	}
	if resp.ListenKey == "" {
		return "", fmt.Errorf("empty listen key in response")
	}
	return resp.ListenKey, nil
}

// RenewListenKey keeps the user stream alive. Must run at least every 60
// minutes.
func (c *Client) RenewListenKey(ctx context.Context, listenKey string) error {
	reqURL := c.baseURL + "/api/v3/userDataStream?listenKey=" + url.QueryEscape(listenKey)
	if _, err := c.do(ctx, http.MethodPut, reqURL, true); err != nil {
		return fmt.Errorf("renew listen key: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, reqURL string, signed bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.signer.APIKey())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("binance", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		msg := fmt.Errorf("api error: status=%d body=%s", resp.StatusCode, string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			msg = fmt.Errorf("api error: status=%d code=%d msg=%s", resp.StatusCode, apiErr.Code, apiErr.Msg)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			// Bad credentials never get better on retry.
			return nil, domain.NewFatalNetworkError("binance", msg)
		}
		return nil, msg
	}
	return body, nil
}

func baseAsset(instrument string) string {
	for _, quote := range quoteAssets {
		if strings.HasSuffix(instrument, quote) && len(instrument) > len(quote) {
			return strings.TrimSuffix(instrument, quote)
		}
	}
	return instrument
}
