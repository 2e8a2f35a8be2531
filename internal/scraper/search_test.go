package scraper

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewatch/pricewatch/internal/render"
	"github.com/pricewatch/pricewatch/internal/store"
)

// searchPage maps result selectors to link hrefs.
type searchPage struct {
	links map[string][]string
}

func (p *searchPage) Query(selector string) (render.Element, error) { return nil, nil }

func (p *searchPage) QueryAll(selector string) ([]render.Element, error) {
	hrefs, ok := p.links[selector]
	if !ok {
		return nil, nil
	}
	var els []render.Element
	for _, href := range hrefs {
		els = append(els, &stubElement{attrs: map[string]string{"href": href}})
	}
	return els, nil
}

func (p *searchPage) Content() (string, error) { return "<html></html>", nil }
func (p *searchPage) URL() string              { return "" }

func newSearchCoordinator(page render.Page) (*SearchCoordinator, *Pool) {
	pool := NewPool(1)
	renderer := &fakeRenderer{session: &fakeSession{page: page}}
	opts := Options{JobTimeout: 5 * time.Second, SettleDelay: 0}
	return NewSearchCoordinator(store.DefaultRegistry(), renderer, pool, nil, opts, slog.Default()), pool
}

func TestSearchCoordinator(t *testing.T) {
	amazonResults := `div[data-component-type="s-search-result"] h2 a`

	t.Run("first product link wins", func(t *testing.T) {
		sc, pool := newSearchCoordinator(&searchPage{links: map[string][]string{
			amazonResults: {
				"/sspa/click?ie=UTF8&ad=1",
				"/Echo-Dot/dp/B09B8V1LZ3/ref=sr_1_1?keywords=echo#reviews",
				"/Other/dp/B0OTHER1234",
			},
		}})
		defer pool.Close()

		url, err := sc.Search(context.Background(), "Amazon", "echo dot")
		require.NoError(t, err)
		assert.Equal(t, "https://www.amazon.com/Echo-Dot/dp/B09B8V1LZ3/ref=sr_1_1", url)
	})

	t.Run("fallback selector used when primary misses", func(t *testing.T) {
		sc, pool := newSearchCoordinator(&searchPage{links: map[string][]string{
			`a.a-link-normal[href*="/dp/"]`: {
				"https://www.amazon.com/Producto/dp/B0FALLBACK9?tag=x",
			},
		}})
		defer pool.Close()

		url, err := sc.Search(context.Background(), "Amazon", "producto")
		require.NoError(t, err)
		assert.Equal(t, "https://www.amazon.com/Producto/dp/B0FALLBACK9", url)
	})

	t.Run("no product links yields ErrNotFound", func(t *testing.T) {
		sc, pool := newSearchCoordinator(&searchPage{links: map[string][]string{
			amazonResults: {"/gp/help/customer", "/s?k=more"},
		}})
		defer pool.Close()

		_, err := sc.Search(context.Background(), "Amazon", "nada")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown store label", func(t *testing.T) {
		sc, pool := newSearchCoordinator(&searchPage{})
		defer pool.Close()

		_, err := sc.Search(context.Background(), "walmart", "tv")
		assert.ErrorIs(t, err, ErrUnknownStore)
	})

	t.Run("mercadolibre item links match", func(t *testing.T) {
		sc, pool := newSearchCoordinator(&searchPage{links: map[string][]string{
			"a.ui-search-link": {
				"https://listado.mercadolibre.com.mx/mas-resultados",
				"https://articulo.mercadolibre.com.mx/MLM-1234567890-audifonos-_JM?position=2",
			},
		}})
		defer pool.Close()

		url, err := sc.Search(context.Background(), "MercadoLibre", "audifonos")
		require.NoError(t, err)
		assert.Equal(t, "https://articulo.mercadolibre.com.mx/MLM-1234567890-audifonos-_JM", url)
	})
}

func TestResolveHref(t *testing.T) {
	searchURL := "https://www.amazon.com/s?k=echo"

	t.Run("root relative", func(t *testing.T) {
		assert.Equal(t, "https://www.amazon.com/dp/B08N5WRWNW",
			resolveHref(searchURL, "/dp/B08N5WRWNW"))
	})

	t.Run("absolute passes through", func(t *testing.T) {
		assert.Equal(t, "https://other.example.com/x",
			resolveHref(searchURL, "https://other.example.com/x"))
	})

	t.Run("protocol relative gains the page scheme", func(t *testing.T) {
		assert.Equal(t, "https://www.amazon.com.mx/dp/B09B8V1LZ3",
			resolveHref(searchURL, "//www.amazon.com.mx/dp/B09B8V1LZ3"))
	})

	t.Run("path relative resolves against the page", func(t *testing.T) {
		assert.Equal(t, "https://listado.mercadolibre.com.mx/MLM-1234567890",
			resolveHref("https://listado.mercadolibre.com.mx/audifonos", "MLM-1234567890"))
	})
}

func TestStripQueryAndFragment(t *testing.T) {
	assert.Equal(t, "https://www.amazon.com/dp/B08N5WRWNW",
		stripQueryAndFragment("https://www.amazon.com/dp/B08N5WRWNW?th=1&psc=1#detail"))
	assert.Equal(t, "https://www.amazon.com/dp/B08N5WRWNW",
		stripQueryAndFragment("https://www.amazon.com/dp/B08N5WRWNW"))
}
