// Package notify detects stock transitions between scrapes and delivers the
// resulting notifications.
package notify

import (
	"context"
	"log/slog"

	"github.com/V0rt3xRP/beedspeed-tracker/internal/models"
	"github.com/V0rt3xRP/beedspeed-tracker/internal/stock"
)

// DetectChanges compares a product's state before and after a scrape and
// returns the notification events the transition warrants, filtered by the
// per-kind flags. The checks are independent: a single scrape can fire more
// than one event.
//
// Transition detection uses the strict stock vocabulary, not the display
// classifier, so that free-form status text cannot fire spurious alerts.
func DetectChanges(previous models.TrackedProduct, updated models.TrackedProduct, flags models.NotificationFlags) []models.NotificationEvent {
	var events []models.NotificationEvent

	wasInStock := stock.IsInStock(previous.StockStatus)
	nowInStock := stock.IsInStock(updated.StockStatus)

	if flags.OutOfStock && wasInStock && !nowInStock {
		events = append(events, models.NotificationEvent{Kind: models.EventOutOfStock, Product: updated})
	}
	if flags.BackInStock && !wasInStock && nowInStock {
		events = append(events, models.NotificationEvent{Kind: models.EventBackInStock, Product: updated})
	}
	if flags.PriceChange && previous.Price != nil && updated.Price != nil && *previous.Price != *updated.Price {
		events = append(events, models.NotificationEvent{Kind: models.EventPriceChange, Product: updated})
	}

	return events
}

// Sender delivers a notification event to an external channel.
type Sender interface {
	SendEvent(ctx context.Context, webhook, channel string, event models.NotificationEvent) error
}

// Publisher records a notification event for downstream consumers.
type Publisher interface {
	PublishStockEvent(ctx context.Context, event models.NotificationEvent) error
}

// Notifier runs change detection and fans events out to Slack and the event
// stream. Delivery failures never fail the scrape that triggered them.
type Notifier struct {
	sender    Sender
	publisher Publisher
	logger    *slog.Logger
}

func NewNotifier(sender Sender, publisher Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender:    sender,
		publisher: publisher,
		logger:    logger.With("component", "notifier"),
	}
}

// Process detects transitions between previous and updated and delivers the
// resulting events. Slack delivery only happens when the integration is
// enabled with a non-empty webhook; events are published to the stream
// regardless, so consumers see transitions even without Slack configured.
func (n *Notifier) Process(ctx context.Context, previous, updated models.TrackedProduct, settings models.SlackSettings) []models.NotificationEvent {
	events := DetectChanges(previous, updated, settings.Notifications)

	for _, event := range events {
		n.logger.Info("stock transition detected",
			"product_id", event.Product.ID,
			"event", event.Kind,
			"stock_status", event.Product.StockStatus)

		if n.publisher != nil {
			if err := n.publisher.PublishStockEvent(ctx, event); err != nil {
				n.logger.Error("failed to publish stock event", "product_id", event.Product.ID, "error", err)
			}
		}

		if !settings.Enabled || settings.Webhook == "" {
			continue
		}
		if err := n.sender.SendEvent(ctx, settings.Webhook, settings.Channel, event); err != nil {
			n.logger.Error("slack delivery failed", "product_id", event.Product.ID, "event", event.Kind, "error", err)
		}
	}

	return events
}
