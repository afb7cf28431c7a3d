package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"queue_go/internal/domain"
)

const (
	expoPushURL = "https://exp.host/--/api/v2/push/send"

	// Identical alerts inside this window collapse into the first one.
	dedupeWindow = 60 * time.Second
)

// ExpoNotifier delivers alerts to the Expo push gateway. Repeated alerts
// with the same dedupe key are suppressed for a window so a flapping level
// does not spam the phone.
type ExpoNotifier struct {
	tokens     []string
	httpClient *http.Client
	logger     *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewExpoNotifier(tokens []string) *ExpoNotifier {
	return &ExpoNotifier{
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		lastSent: make(map[string]time.Time),
		logger:   slog.Default().With("module", "expo_push"),
	}
}

type expoMessage struct {
	To    []string `json:"to"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Sound string   `json:"sound"`
}

type expoResponse struct {
	Data []struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
}

func (n *ExpoNotifier) Notify(ctx context.Context, alert domain.Alert) error {
	if len(n.tokens) == 0 {
		return nil
	}
	if n.suppressed(alert.DedupeKey()) {
		n.logger.Debug("alert suppressed", slog.String("dedupe", alert.DedupeKey()))
		return nil
	}

	msg := expoMessage{
		To:    n.tokens,
		Title: alert.Title,
		Body:  alert.Body,
		Sound: "default",
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, expoPushURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError("expo push", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expo push: status=%d body=%s", resp.StatusCode, string(body))
	}

	var parsed expoResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, ticket := range parsed.Data {
			if ticket.Status == "error" {
				n.logger.Warn("push ticket rejected", slog.String("message", ticket.Message))
			}
		}
	}

	n.logger.Info("alert delivered",
		slog.String("instrument", alert.Instrument),
		slog.String("class", alert.Class))
	return nil
}

// suppressed reports whether an identical alert went out inside the dedupe
// window, recording this one if not.
func (n *ExpoNotifier) suppressed(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := time.Now()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < dedupeWindow {
		return true
	}
	n.lastSent[key] = now
	return false
}
