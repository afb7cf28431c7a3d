package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"queue_go/internal/domain"
	"queue_go/internal/state"
)

// Alerter turns central-state transitions into push notifications. Delivery
// runs off the reconciliation goroutine and is best effort: a failing push
// collaborator must never stall feed ingestion.
type Alerter struct {
	notifier domain.Notifier
	orders   *state.ActiveOrderTracker
	central  *state.CentralLevelTracker
	logger   *slog.Logger
}

func NewAlerter(notifier domain.Notifier, orders *state.ActiveOrderTracker, central *state.CentralLevelTracker) *Alerter {
	return &Alerter{
		notifier: notifier,
		orders:   orders,
		central:  central,
		logger:   slog.Default().With("module", "alerts"),
	}
}

// Emit sends one alert per reportable change. QueueGrowing is informational
// and only logged.
func (a *Alerter) Emit(instrument string, changes []state.CentralChange) {
	for _, change := range changes {
		if change.Class == state.ChangeQueueGrowing {
			a.logger.Info("queue growing",
				slog.String("instrument", instrument),
				slog.String("side", change.Side),
				slog.String("depth", change.Depth.String()))
			continue
		}
		if a.notifier == nil {
			continue
		}
		alert := a.build(instrument, change)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.notifier.Notify(ctx, alert); err != nil {
				a.logger.Warn("alert delivery failed",
					slog.String("dedupe", alert.DedupeKey()),
					slog.Any("error", err))
			}
		}()
	}
}

func (a *Alerter) build(instrument string, change state.CentralChange) domain.Alert {
	entry := a.central.Entry(instrument)

	var class, title string
	switch change.Class {
	case state.ChangeBuyPrice, state.ChangeSellPrice:
		class = domain.AlertClassPriceChange
		title = fmt.Sprintf("%s central price moved", instrument)
	case state.ChangeDepthCollapse:
		class = domain.AlertClassDepthCollapse
		title = fmt.Sprintf("%s depth collapsing", instrument)
	default:
		class = domain.AlertClassDepthDrop
		title = fmt.Sprintf("%s depth dropped below %s", instrument, change.Threshold)
	}

	body := fmt.Sprintf("%s %s @ %s, depth %s (buy %s / sell %s)",
		instrument, change.Side, change.Price, change.Depth,
		entry.CentralBuyDepth, entry.CentralSellDepth)

	if nearest, furthest, ok := a.queueSummary(instrument, change); ok {
		body += fmt.Sprintf(", own queue %s-%s", nearest, furthest)
	}

	return domain.Alert{
		Instrument: instrument,
		Class:      class,
		Title:      title,
		Body:       body,
	}
}

func (a *Alerter) queueSummary(instrument string, change state.CentralChange) (string, string, bool) {
	nearest, furthest, ok := a.orders.QueueBounds(instrument, change.Side, change.Price)
	if !ok {
		return "", "", false
	}
	return nearest.String(), furthest.String(), true
}
