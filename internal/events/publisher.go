package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pricewatch/pricewatch/internal/database"
)

const (
	EventProductDiscovered = "product.discovered"
	EventPriceRecorded     = "price.recorded"
)

// ProductDiscoveredPayload announces a product seen for the first time.
type ProductDiscoveredPayload struct {
	ProductID    string    `json:"product_id"`
	CanonicalURL string    `json:"canonical_url"`
	Name         string    `json:"name"`
	Store        string    `json:"store"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// PriceRecordedPayload announces a new price observation for a product.
type PriceRecordedPayload struct {
	ProductID    string    `json:"product_id"`
	CanonicalURL string    `json:"canonical_url"`
	Name         string    `json:"name"`
	Store        string    `json:"store"`
	Price        float64   `json:"price"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Publisher writes domain events to the transactional outbox. The relay ships
// them to the Redis stream afterwards; nothing here talks to Redis directly.
type Publisher struct {
	outbox *database.OutboxRepository
}

func NewPublisher(outbox *database.OutboxRepository) *Publisher {
	return &Publisher{outbox: outbox}
}

// PublishProductDiscovered stages a product.discovered event in tx.
func (p *Publisher) PublishProductDiscovered(ctx context.Context, tx pgx.Tx, payload ProductDiscoveredPayload) error {
	return p.publish(ctx, tx, EventProductDiscovered, payload.ProductID, payload)
}

// PublishPriceRecorded stages a price.recorded event in tx.
func (p *Publisher) PublishPriceRecorded(ctx context.Context, tx pgx.Tx, payload PriceRecordedPayload) error {
	return p.publish(ctx, tx, EventPriceRecorded, payload.ProductID, payload)
}

func (p *Publisher) publish(ctx context.Context, tx pgx.Tx, eventType, aggregateID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	event := database.NewProductEvent(aggregateID, eventType, data)
	if err := p.outbox.InsertWithTx(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to stage %s event: %w", eventType, err)
	}

	return nil
}
