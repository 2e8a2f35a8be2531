package store

import (
	"net/url"
	"strings"

	"github.com/pricewatch/pricewatch/internal/render"
)

// ExtractionResult holds whatever could be pulled from a product page. All
// fields are independently optional; RawPrice keeps the store-native
// formatting ("$1,299.00", "MXN 549") for downstream parsing.
type ExtractionResult struct {
	Title    string `json:"title,omitempty"`
	RawPrice string `json:"price,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Usable reports whether at least one field was extracted. An all-empty
// result is a scrape failure, not something to persist.
func (r ExtractionResult) Usable() bool {
	return r.Title != "" || r.RawPrice != "" || r.ImageURL != ""
}

// Store binds a domain predicate to one marketplace's extraction,
// canonicalization and search behavior. Adding a store is adding one entry to
// the registry plus one file implementing these functions.
type Store struct {
	// Label is the registry display name ("Amazon", "MercadoLibre").
	Label string

	// Domains are substrings tested against the www-stripped host, in order.
	Domains []string

	// Extract runs the per-field selector fallback chains against a rendered
	// product page.
	Extract func(page render.Page) ExtractionResult

	// Canonicalize derives the stable identity URL. It must be deterministic
	// and idempotent, and return the input unchanged when no pattern matches.
	Canonicalize func(rawURL string) string

	// ObservationLabel derives the marketplace display label recorded with a
	// price observation ("Amazon.com.mx", "MercadoLibre México").
	ObservationLabel func(canonicalURL string) string

	// SearchURL builds the store's search-results URL for a free-text query.
	SearchURL func(query string) string

	// ResultSelectors is the ordered fallback chain of result-link selectors
	// applied to a rendered search page.
	ResultSelectors []string

	// IsProductHref reports whether a result href has the store's product-URL
	// shape.
	IsProductHref func(href string) bool

	// BaseURL resolves relative search-result hrefs.
	BaseURL string
}

// Registry is an ordered table of supported stores. First domain match wins,
// in registration order.
type Registry struct {
	stores []*Store
}

func NewRegistry(stores ...*Store) *Registry {
	return &Registry{stores: stores}
}

// DefaultRegistry returns the registry with every supported store in its
// canonical order.
func DefaultRegistry() *Registry {
	return NewRegistry(Amazon(), MercadoLibre())
}

// Resolve maps a product URL to its store. A malformed URL or an unknown
// domain yields ok=false, never an error.
func (r *Registry) Resolve(rawURL string) (*Store, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, false
	}
	host = strings.TrimPrefix(host, "www.")

	for _, s := range r.stores {
		for _, domain := range s.Domains {
			if strings.Contains(host, domain) {
				return s, true
			}
		}
	}

	return nil, false
}

// ResolveLabel finds a store by its display label, case-insensitively.
func (r *Registry) ResolveLabel(label string) (*Store, bool) {
	for _, s := range r.stores {
		if strings.EqualFold(s.Label, label) {
			return s, true
		}
	}
	return nil, false
}

// Labels returns the display labels of every supported store in registration
// order.
func (r *Registry) Labels() []string {
	labels := make([]string, 0, len(r.stores))
	for _, s := range r.stores {
		labels = append(labels, s.Label)
	}
	return labels
}
