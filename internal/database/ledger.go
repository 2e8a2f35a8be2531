package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Product is one tracked product, identified by its canonical URL.
type Product struct {
	ID           uuid.UUID          `json:"id"`
	CanonicalURL string             `json:"canonical_url"`
	Name         string             `json:"name"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	History      []PriceObservation `json:"price_history,omitempty"`
}

// PriceObservation is one append-only price point for a product.
type PriceObservation struct {
	ID         int64     `json:"id"`
	ProductID  uuid.UUID `json:"product_id"`
	Price      float64   `json:"price"`
	Store      string    `json:"store"`
	ObservedAt time.Time `json:"observed_at"`
}

// Ledger persists products and their price history.
type Ledger struct {
	db *DB
}

func NewLedger(db *DB) *Ledger {
	return &Ledger{db: db}
}

// upsertProductQuery keeps the previous name when the new one is empty and
// reports whether the row was freshly inserted via the xmax trick.
const upsertProductQuery = `
	INSERT INTO products (canonical_url, name)
	VALUES ($1, $2)
	ON CONFLICT (canonical_url) DO UPDATE SET
		name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE products.name END,
		updated_at = NOW()
	RETURNING id, canonical_url, name, created_at, updated_at, (xmax = 0) AS created`

// UpsertProductTx upserts the product keyed by canonical URL inside tx and
// reports whether the row was freshly created.
func (l *Ledger) UpsertProductTx(ctx context.Context, tx pgx.Tx, canonicalURL, name string) (*Product, bool, error) {
	var (
		product Product
		created bool
	)

	err := tx.QueryRow(ctx, upsertProductQuery, canonicalURL, name).Scan(
		&product.ID, &product.CanonicalURL, &product.Name,
		&product.CreatedAt, &product.UpdatedAt, &created,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert product: %w", err)
	}

	return &product, created, nil
}

// AppendPriceTx appends one price observation inside tx. History rows are
// never updated or deleted.
func (l *Ledger) AppendPriceTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID, price float64, storeLabel string) error {
	query := `
		INSERT INTO price_history (product_id, price, store)
		VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, query, productID, price, storeLabel); err != nil {
		return fmt.Errorf("failed to append price observation: %w", err)
	}
	return nil
}

// RecordObservation upserts the product and, when a price was parsed, appends
// it to the history in one transaction. It returns the product row, whether
// it was newly created, and whether a price point was appended.
func (l *Ledger) RecordObservation(ctx context.Context, canonicalURL, name, storeLabel string, price *float64) (*Product, bool, bool, error) {
	var (
		product  *Product
		created  bool
		appended bool
	)

	err := l.db.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		product, created, err = l.UpsertProductTx(ctx, tx, canonicalURL, name)
		if err != nil {
			return err
		}

		if price == nil {
			return nil
		}

		if err := l.AppendPriceTx(ctx, tx, product.ID, *price, storeLabel); err != nil {
			return err
		}
		appended = true
		return nil
	})
	if err != nil {
		return nil, false, false, err
	}

	return product, created, appended, nil
}

// GetProduct returns a product with its full history, newest observation
// first, or nil when the ID is unknown.
func (l *Ledger) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `
		SELECT id, canonical_url, name, created_at, updated_at
		FROM products
		WHERE id = $1`

	product := &Product{}
	err := l.db.QueryRow(ctx, query, id).Scan(
		&product.ID, &product.CanonicalURL, &product.Name,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	history, err := l.getHistory(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	product.History = history

	return product, nil
}

// GetProductByCanonicalURL returns a product with its history, or nil when
// the URL has never been observed.
func (l *Ledger) GetProductByCanonicalURL(ctx context.Context, canonicalURL string) (*Product, error) {
	query := `
		SELECT id, canonical_url, name, created_at, updated_at
		FROM products
		WHERE canonical_url = $1`

	product := &Product{}
	err := l.db.QueryRow(ctx, query, canonicalURL).Scan(
		&product.ID, &product.CanonicalURL, &product.Name,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	history, err := l.getHistory(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	product.History = history

	return product, nil
}

// ListProducts returns all tracked products without history, newest first.
func (l *Ledger) ListProducts(ctx context.Context, limit int) ([]*Product, error) {
	query := `
		SELECT id, canonical_url, name, created_at, updated_at
		FROM products
		ORDER BY updated_at DESC
		LIMIT $1`

	rows, err := l.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p := &Product{}
		err := rows.Scan(&p.ID, &p.CanonicalURL, &p.Name, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return products, nil
}

func (l *Ledger) getHistory(ctx context.Context, productID uuid.UUID) ([]PriceObservation, error) {
	query := `
		SELECT id, product_id, price, store, observed_at
		FROM price_history
		WHERE product_id = $1
		ORDER BY observed_at DESC, id DESC`

	rows, err := l.db.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var history []PriceObservation
	for rows.Next() {
		var obs PriceObservation
		err := rows.Scan(&obs.ID, &obs.ProductID, &obs.Price, &obs.Store, &obs.ObservedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		history = append(history, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return history, nil
}
