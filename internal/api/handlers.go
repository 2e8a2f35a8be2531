package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pricewatch/pricewatch/internal/database"
	"github.com/pricewatch/pricewatch/internal/scraper"
)

type Handlers struct {
	service *scraper.Service
	search  *scraper.SearchCoordinator
	ledger  *database.Ledger
	logger  *slog.Logger
}

func NewHandlers(service *scraper.Service, search *scraper.SearchCoordinator, ledger *database.Ledger, logger *slog.Logger) *Handlers {
	return &Handlers{
		service: service,
		search:  search,
		ledger:  ledger,
		logger:  logger,
	}
}

// ScrapeRequest asks for one product URL to be scraped and recorded.
type ScrapeRequest struct {
	URL string `json:"url"`
}

// Scrape handles POST /api/v1/scrape. Unsupported stores are a client error;
// extraction failures come back as a 200 with success=false and a diagnostic.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	report, err := h.service.ScrapeProduct(r.Context(), req.URL)
	if errors.Is(err, scraper.ErrStoreUnsupported) {
		h.respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":            "store not supported",
			"supported_stores": h.search.Registry().Labels(),
		})
		return
	}
	if err != nil {
		h.logger.Error("scrape failed", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "scrape failed")
		return
	}

	h.respondJSON(w, http.StatusOK, report)
}

// GetProduct handles GET /api/v1/products/{productID}.
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.ledger.GetProduct(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load product", "product_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	if product == nil {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

// ListProducts handles GET /api/v1/products. With a ?url= parameter it looks
// up the single product behind that URL instead, canonicalizing it first when
// the store is known.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	if rawURL := r.URL.Query().Get("url"); rawURL != "" {
		h.getProductByURL(w, r, rawURL)
		return
	}

	products, err := h.ledger.ListProducts(r.Context(), 100)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

func (h *Handlers) getProductByURL(w http.ResponseWriter, r *http.Request, rawURL string) {
	if st, ok := h.search.Registry().Resolve(rawURL); ok {
		rawURL = st.Canonicalize(rawURL)
	}

	product, err := h.ledger.GetProductByCanonicalURL(r.Context(), rawURL)
	if err != nil {
		h.logger.Error("failed to load product", "url", rawURL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	if product == nil {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

// ListStores handles GET /api/v1/stores.
func (h *Handlers) ListStores(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"stores": h.search.Registry().Labels(),
	})
}

// SearchRequest asks a store's site search for a product by title.
type SearchRequest struct {
	Store string `json:"store"`
	Query string `json:"query"`
}

// SearchResponse carries the first product link the results page yielded.
type SearchResponse struct {
	Found bool   `json:"found"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

// Search handles POST /api/v1/search.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Store == "" || req.Query == "" {
		h.respondError(w, http.StatusBadRequest, "store and query are required")
		return
	}

	url, err := h.search.Search(r.Context(), req.Store, req.Query)
	if errors.Is(err, scraper.ErrUnknownStore) {
		h.respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":            "unknown store",
			"supported_stores": h.search.Registry().Labels(),
		})
		return
	}
	if errors.Is(err, scraper.ErrNotFound) {
		h.respondJSON(w, http.StatusOK, SearchResponse{Found: false})
		return
	}
	if err != nil {
		h.logger.Error("search failed", "store", req.Store, "query", req.Query, "error", err)
		h.respondJSON(w, http.StatusOK, SearchResponse{Found: false, Error: err.Error()})
		return
	}

	h.respondJSON(w, http.StatusOK, SearchResponse{Found: true, URL: url})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
