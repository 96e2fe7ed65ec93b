// Package events stages stock-change events for downstream consumers via the
// transactional outbox.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/V0rt3xRP/beedspeed-tracker/internal/database"
	"github.com/V0rt3xRP/beedspeed-tracker/internal/models"
)

type stockEventPayload struct {
	Event       models.EventKind `json:"event"`
	ProductID   string           `json:"product_id"`
	ProductName string           `json:"product_name"`
	ProductCode *string          `json:"product_code,omitempty"`
	StockStatus string           `json:"stock_status"`
	Price       *float64         `json:"price,omitempty"`
	URL         string           `json:"url"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// Publisher writes stock events to the outbox so the relay can push them to
// the Redis stream.
type Publisher struct {
	db     *database.DB
	outbox *database.OutboxRepository
	logger *slog.Logger
}

func NewPublisher(db *database.DB, logger *slog.Logger) *Publisher {
	return &Publisher{
		db:     db,
		outbox: database.NewOutboxRepository(db),
		logger: logger.With("component", "events"),
	}
}

// PublishStockEvent stages a stock transition in the outbox.
func (p *Publisher) PublishStockEvent(ctx context.Context, event models.NotificationEvent) error {
	payload, err := json.Marshal(stockEventPayload{
		Event:       event.Kind,
		ProductID:   event.Product.ID,
		ProductName: event.Product.ProductName,
		ProductCode: event.Product.ProductCode,
		StockStatus: event.Product.StockStatus,
		Price:       event.Product.Price,
		URL:         event.Product.URL,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal stock event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "product",
		AggregateID:   event.Product.ID,
		EventType:     string(event.Kind),
		Payload:       payload,
		TargetStream:  database.StockEventStream,
	}

	err = p.db.WithTx(ctx, func(tx pgx.Tx) error {
		return p.outbox.InsertWithTx(ctx, tx, outboxEvent)
	})
	if err != nil {
		return err
	}

	p.logger.Debug("stock event staged",
		"event", event.Kind,
		"product_id", event.Product.ID)

	return nil
}
