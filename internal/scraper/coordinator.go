package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pricewatch/pricewatch/internal/browser"
	"github.com/pricewatch/pricewatch/internal/ratelimit"
	"github.com/pricewatch/pricewatch/internal/render"
	"github.com/pricewatch/pricewatch/internal/store"
)

var ErrStoreUnsupported = errors.New("store not supported")

// Session is the per-job rendering capability consumed by the coordinators.
type Session interface {
	Navigate(url string, timeout time.Duration) error
	Humanize()
	Blocked() bool
	Page() render.Page
	Screenshot(path string) error
	Close() error
}

// Renderer opens isolated rendering sessions, one per job.
type Renderer interface {
	NewSession() (Session, error)
}

// NewBrowserRenderer adapts the playwright browser to the Renderer interface.
func NewBrowserRenderer(b *browser.Browser) Renderer {
	return browserRenderer{b: b}
}

type browserRenderer struct {
	b *browser.Browser
}

func (r browserRenderer) NewSession() (Session, error) {
	return r.b.NewSession()
}

// Options bound each scrape job.
type Options struct {
	JobTimeout  time.Duration
	SettleDelay time.Duration
}

func DefaultCoordinatorOptions() Options {
	return Options{
		JobTimeout:  45 * time.Second,
		SettleDelay: 2 * time.Second,
	}
}

// Outcome is the structured result of one scrape. Render and extraction
// failures never surface as errors; they arrive here as an empty result with
// a diagnostic message.
type Outcome struct {
	Store        *store.Store
	CanonicalURL string
	Result       store.ExtractionResult
	Diagnostic   string
}

// Coordinator schedules render+extract jobs on the worker pool and converts
// every failure below it into a partial result.
type Coordinator struct {
	registry *store.Registry
	renderer Renderer
	pool     *Pool
	limiter  *ratelimit.AdaptiveRateLimiter
	opts     Options
	logger   *slog.Logger
}

func NewCoordinator(registry *store.Registry, renderer Renderer, pool *Pool, limiter *ratelimit.AdaptiveRateLimiter, opts Options, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		renderer: renderer,
		pool:     pool,
		limiter:  limiter,
		opts:     opts,
		logger:   logger.With("component", "scrape_coordinator"),
	}
}

// Registry exposes the store table, mainly so callers can list supported
// stores alongside an ErrStoreUnsupported.
func (c *Coordinator) Registry() *store.Registry {
	return c.registry
}

// Scrape resolves the store for the URL, renders the page on a pooled worker
// and runs the extraction chains. The only error it returns is
// ErrStoreUnsupported; everything else degrades into Outcome.Diagnostic.
func (c *Coordinator) Scrape(ctx context.Context, rawURL string) (*Outcome, error) {
	st, ok := c.registry.Resolve(rawURL)
	if !ok {
		return nil, ErrStoreUnsupported
	}

	outcome := &Outcome{
		Store:        st,
		CanonicalURL: st.Canonicalize(rawURL),
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.JobTimeout)
	defer cancel()

	results := make(chan jobResult, 1)
	err := c.pool.Submit(ctx, func() {
		results <- c.runJob(rawURL, st)
	})
	if err != nil {
		outcome.Diagnostic = fmt.Sprintf("scrape not scheduled: %v", err)
		return outcome, nil
	}

	select {
	case <-ctx.Done():
		// The job keeps its buffered slot, so the worker is freed as soon as
		// the render attempt finishes.
		outcome.Diagnostic = fmt.Sprintf("scrape abandoned: %v", ctx.Err())
		return outcome, nil
	case r := <-results:
		outcome.Result = r.result
		outcome.Diagnostic = r.diagnostic
		return outcome, nil
	}
}

type jobResult struct {
	result     store.ExtractionResult
	diagnostic string
}

func (c *Coordinator) runJob(rawURL string, st *store.Store) jobResult {
	if c.limiter != nil {
		if err := c.limiter.Wait(context.Background()); err != nil {
			return jobResult{diagnostic: fmt.Sprintf("rate limiter interrupted: %v", err)}
		}
	}

	session, err := c.renderer.NewSession()
	if err != nil {
		c.recordError()
		return jobResult{diagnostic: fmt.Sprintf("failed to open render session: %v", err)}
	}
	defer session.Close()

	c.logger.Info("rendering product page", "store", st.Label, "url", rawURL)

	if err := session.Navigate(rawURL, c.opts.JobTimeout); err != nil {
		c.recordError()
		c.logger.Error("navigation failed", "url", rawURL, "error", err)
		return jobResult{diagnostic: fmt.Sprintf("page load failed: %v", err)}
	}

	session.Humanize()
	time.Sleep(c.opts.SettleDelay)

	if session.Blocked() {
		c.recordError()
		return jobResult{diagnostic: "blocked by anti-bot protection"}
	}

	result := st.Extract(session.Page())
	if !result.Usable() {
		c.recordError()
		return jobResult{
			result:     result,
			diagnostic: "no data could be extracted from the page",
		}
	}

	c.recordSuccess()
	return jobResult{result: result}
}

func (c *Coordinator) recordSuccess() {
	if c.limiter != nil {
		c.limiter.RecordSuccess()
	}
}

func (c *Coordinator) recordError() {
	if c.limiter != nil {
		c.limiter.RecordError()
	}
}
