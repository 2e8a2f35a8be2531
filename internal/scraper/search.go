package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/pricewatch/pricewatch/internal/store"
)

var (
	ErrUnknownStore = errors.New("unknown store label")
	ErrNotFound     = errors.New("no matching product found")
)

// SearchCoordinator renders a store's search-results page and returns the
// first link that looks like a product URL.
type SearchCoordinator struct {
	registry *store.Registry
	renderer Renderer
	pool     *Pool
	recorder *DebugRecorder
	opts     Options
	logger   *slog.Logger
}

// NewSearchCoordinator builds a search coordinator. recorder may be nil to
// disable diagnostic capture.
func NewSearchCoordinator(registry *store.Registry, renderer Renderer, pool *Pool, recorder *DebugRecorder, opts Options, logger *slog.Logger) *SearchCoordinator {
	return &SearchCoordinator{
		registry: registry,
		renderer: renderer,
		pool:     pool,
		recorder: recorder,
		opts:     opts,
		logger:   logger.With("component", "search_coordinator"),
	}
}

// Registry exposes the store table for listing supported store labels.
func (sc *SearchCoordinator) Registry() *store.Registry {
	return sc.registry
}

// Search looks a product up by title on the given store and returns the first
// matching product URL, stripped of query string and fragment.
func (sc *SearchCoordinator) Search(ctx context.Context, storeLabel, query string) (string, error) {
	st, ok := sc.registry.ResolveLabel(storeLabel)
	if !ok {
		return "", ErrUnknownStore
	}

	ctx, cancel := context.WithTimeout(ctx, sc.opts.JobTimeout)
	defer cancel()

	type searchResult struct {
		url string
		err error
	}

	results := make(chan searchResult, 1)
	err := sc.pool.Submit(ctx, func() {
		u, err := sc.runSearch(st, query)
		results <- searchResult{url: u, err: err}
	})
	if err != nil {
		return "", fmt.Errorf("search not scheduled: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("search abandoned: %w", ctx.Err())
	case r := <-results:
		return r.url, r.err
	}
}

func (sc *SearchCoordinator) runSearch(st *store.Store, query string) (string, error) {
	searchURL := st.SearchURL(query)
	sc.logger.Info("searching store", "store", st.Label, "query", query, "url", searchURL)

	session, err := sc.renderer.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open render session: %w", err)
	}
	defer session.Close()

	if err := session.Navigate(searchURL, sc.opts.JobTimeout); err != nil {
		return "", fmt.Errorf("search page load failed: %w", err)
	}

	session.Humanize()
	time.Sleep(sc.opts.SettleDelay)

	page := session.Page()
	for _, selector := range st.ResultSelectors {
		links, err := page.QueryAll(selector)
		if err != nil {
			continue
		}

		for _, link := range links {
			href, err := link.Attribute("href")
			if err != nil || href == "" {
				continue
			}

			href = resolveHref(searchURL, href)
			if !st.IsProductHref(href) {
				continue
			}

			return stripQueryAndFragment(href), nil
		}
	}

	if sc.recorder != nil {
		if err := sc.recorder.Capture(st.Label, query, session); err != nil {
			sc.logger.Warn("failed to capture search diagnostics", "error", err)
		}
	}

	return "", ErrNotFound
}

// resolveHref resolves a result href against the search page URL, covering
// absolute, root-relative, path-relative and protocol-relative links alike.
func resolveHref(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func stripQueryAndFragment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
