package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pricewatch/pricewatch/internal/database"
	"github.com/pricewatch/pricewatch/internal/events"
	"github.com/pricewatch/pricewatch/internal/store"
)

// ScrapeReport is the full result of one scrape request, including what was
// persisted. Success means the page yielded at least one field; Saved means
// the ledger write went through.
type ScrapeReport struct {
	Success      bool                   `json:"success"`
	URL          string                 `json:"url"`
	CanonicalURL string                 `json:"canonical_url"`
	Store        string                 `json:"store"`
	Observed     string                 `json:"observed,omitempty"`
	Result       store.ExtractionResult `json:"result"`
	Price        *float64               `json:"price,omitempty"`
	Product      *database.Product      `json:"product,omitempty"`
	Saved        bool                   `json:"saved"`
	Diagnostic   string                 `json:"diagnostic,omitempty"`
}

// recorder persists one successful scrape report.
type recorder interface {
	record(ctx context.Context, report *ScrapeReport) error
}

// Service runs the scrape pipeline end to end: render and extract, parse the
// price, upsert the ledger and stage outbox events.
type Service struct {
	coordinator *Coordinator
	rec         recorder
	logger      *slog.Logger
}

// NewService builds the pipeline. With a nil db or ledger nothing is
// persisted; with a publisher every recorded observation also stages outbox
// events in the same transaction.
func NewService(coordinator *Coordinator, ledger *database.Ledger, db *database.DB, publisher *events.Publisher, logger *slog.Logger) *Service {
	s := &Service{
		coordinator: coordinator,
		logger:      logger.With("component", "scrape_service"),
	}

	switch {
	case ledger == nil || db == nil:
	case publisher != nil:
		s.rec = &outboxRecorder{ledger: ledger, db: db, publisher: publisher}
	default:
		s.rec = &ledgerRecorder{ledger: ledger}
	}

	return s
}

// ScrapeProduct scrapes one product URL and records the observation. The only
// error returned is ErrStoreUnsupported; render, extraction and persistence
// failures all degrade into the report. A scrape that yielded nothing is
// never persisted, so a blocked page or a timeout cannot fabricate a product.
func (s *Service) ScrapeProduct(ctx context.Context, rawURL string) (*ScrapeReport, error) {
	outcome, err := s.coordinator.Scrape(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	report := &ScrapeReport{
		URL:          rawURL,
		CanonicalURL: outcome.CanonicalURL,
		Store:        outcome.Store.Label,
		Observed:     outcome.Store.ObservationLabel(outcome.CanonicalURL),
		Result:       outcome.Result,
		Success:      outcome.Result.Usable(),
		Diagnostic:   outcome.Diagnostic,
	}

	if price, ok := ParsePrice(outcome.Result.RawPrice); ok {
		report.Price = &price
	}

	if !report.Success || s.rec == nil {
		return report, nil
	}

	if err := s.rec.record(ctx, report); err != nil {
		s.logger.Error("failed to record observation",
			"canonical_url", report.CanonicalURL, "error", err)
		report.Saved = false
		if report.Diagnostic == "" {
			report.Diagnostic = fmt.Sprintf("observation not persisted: %v", err)
		}
		return report, nil
	}

	report.Saved = true
	return report, nil
}

// ledgerRecorder writes the observation without event publishing. The batch
// CLI uses it.
type ledgerRecorder struct {
	ledger *database.Ledger
}

func (r *ledgerRecorder) record(ctx context.Context, report *ScrapeReport) error {
	product, _, _, err := r.ledger.RecordObservation(ctx,
		report.CanonicalURL, report.Result.Title, report.Observed, report.Price)
	if err != nil {
		return err
	}
	report.Product = product
	return nil
}

// outboxRecorder writes the product upsert, the optional price point and the
// outbox events in one transaction.
type outboxRecorder struct {
	ledger    *database.Ledger
	db        *database.DB
	publisher *events.Publisher
}

func (r *outboxRecorder) record(ctx context.Context, report *ScrapeReport) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		product, created, err := r.ledger.UpsertProductTx(ctx, tx, report.CanonicalURL, report.Result.Title)
		if err != nil {
			return err
		}
		report.Product = product

		if created {
			err := r.publisher.PublishProductDiscovered(ctx, tx, events.ProductDiscoveredPayload{
				ProductID:    product.ID.String(),
				CanonicalURL: product.CanonicalURL,
				Name:         product.Name,
				Store:        report.Observed,
				DiscoveredAt: time.Now(),
			})
			if err != nil {
				return err
			}
		}

		if report.Price == nil {
			return nil
		}

		if err := r.ledger.AppendPriceTx(ctx, tx, product.ID, *report.Price, report.Observed); err != nil {
			return err
		}

		return r.publisher.PublishPriceRecorded(ctx, tx, events.PriceRecordedPayload{
			ProductID:    product.ID.String(),
			CanonicalURL: product.CanonicalURL,
			Name:         product.Name,
			Store:        report.Observed,
			Price:        *report.Price,
			ObservedAt:   time.Now(),
		})
	})
}
