package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessed  = "processed"
	OutboxStatusFailed     = "failed"
	OutboxStatusDeadLetter = "dead_letter"

	// AggregateProduct is the aggregate type behind every price event; the
	// watcher tracks no other aggregate.
	AggregateProduct = "product"

	// MaxRetryCount bounds delivery attempts before an event is parked in
	// the dead letter state.
	MaxRetryCount = 5

	// DefaultStream is where price events go unless the writer says
	// otherwise.
	DefaultStream = "stream:price_events"
)

// OutboxEvent is one row of the transactional outbox. Events are written in
// the same transaction as the state change they describe and shipped to Redis
// by the relay.
type OutboxEvent struct {
	ID            uuid.UUID       `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	TargetStream  string          `db:"target_stream"`
	Status        string          `db:"status"`
	RetryCount    int             `db:"retry_count"`
	ErrorMessage  *string         `db:"error_message"`
	CreatedAt     time.Time       `db:"created_at"`
	ProcessedAt   *time.Time      `db:"processed_at"`
	NextRetryAt   *time.Time      `db:"next_retry_at"`
}

// NewProductEvent builds a pending outbox row for one product aggregate,
// bound for the default price stream.
func NewProductEvent(productID, eventType string, payload json.RawMessage) *OutboxEvent {
	return &OutboxEvent{
		ID:            uuid.New(),
		AggregateType: AggregateProduct,
		AggregateID:   productID,
		EventType:     eventType,
		Payload:       payload,
		TargetStream:  DefaultStream,
		Status:        OutboxStatusPending,
	}
}

// OutboxRepository reads and writes the outbox_event table.
type OutboxRepository struct {
	db *DB
}

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// InsertWithTx inserts an event into the outbox within a transaction
func (r *OutboxRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = OutboxStatusPending
	}
	if event.TargetStream == "" {
		event.TargetStream = DefaultStream
	}

	now := time.Now()
	event.CreatedAt = now
	if event.NextRetryAt == nil {
		event.NextRetryAt = &now
	}

	query := `
		INSERT INTO outbox_event (
			id, aggregate_type, aggregate_id, event_type,
			payload, target_stream, status, retry_count,
			created_at, next_retry_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	_, err := tx.Exec(ctx, query,
		event.ID, event.AggregateType, event.AggregateID, event.EventType,
		event.Payload, event.TargetStream, event.Status, event.RetryCount,
		event.CreatedAt, event.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return nil
}

// GetPending returns deliverable events, oldest first: pending rows plus
// failed rows whose retry window has opened.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `
		SELECT
			id, aggregate_type, aggregate_id, event_type,
			payload, target_stream, status, retry_count,
			error_message, created_at, processed_at, next_retry_at
		FROM outbox_event
		WHERE status IN ($1, $2)
			AND next_retry_at <= now()
		ORDER BY created_at ASC
		LIMIT $3`

	rows, err := r.db.pool.Query(ctx, query, OutboxStatusPending, OutboxStatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load deliverable events: %w", err)
	}

	events, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[OutboxEvent])
	if err != nil {
		return nil, fmt.Errorf("failed to scan outbox rows: %w", err)
	}

	return events, nil
}

// MarkProcessed marks an event as successfully processed
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_event
		SET status = $1, processed_at = $2
		WHERE id = $3`

	result, err := r.db.pool.Exec(ctx, query, OutboxStatusProcessed, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("event not found: %s", id)
	}

	return nil
}

// MarkFailed counts a failed delivery attempt and schedules the next one with
// exponential backoff (2s, 4s, 8s... capped at five minutes), parking the
// event in the dead letter state once MaxRetryCount attempts are spent. The
// whole step is one statement so concurrent relays cannot double-count an
// attempt.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, processErr error) error {
	query := `
		UPDATE outbox_event
		SET retry_count = retry_count + 1,
			error_message = $2,
			status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE $5 END,
			next_retry_at = now() + make_interval(secs => LEAST(pow(2, retry_count + 1), 300))
		WHERE id = $1`

	result, err := r.db.pool.Exec(ctx, query, id, processErr.Error(),
		MaxRetryCount, OutboxStatusDeadLetter, OutboxStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("event not found: %s", id)
	}

	return nil
}
