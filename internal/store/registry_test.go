package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolve(t *testing.T) {
	registry := DefaultRegistry()

	tests := []struct {
		name      string
		url       string
		wantLabel string
		wantOK    bool
	}{
		{
			name:      "amazon com",
			url:       "https://www.amazon.com/dp/B08N5WRWNW",
			wantLabel: "Amazon",
			wantOK:    true,
		},
		{
			name:      "amazon mx without www",
			url:       "https://amazon.com.mx/Some-Product/dp/B08N5WRWNW?ref=x",
			wantLabel: "Amazon",
			wantOK:    true,
		},
		{
			name:      "mercadolibre article host",
			url:       "https://articulo.mercadolibre.com.mx/MLM-1234567890-producto",
			wantLabel: "MercadoLibre",
			wantOK:    true,
		},
		{
			name:   "unsupported store",
			url:    "https://www.ebay.com/itm/123",
			wantOK: false,
		},
		{
			name:   "malformed url",
			url:    "://not-a-url",
			wantOK: false,
		},
		{
			name:   "empty host",
			url:    "/relative/path",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := registry.Resolve(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				require.NotNil(t, st)
				assert.Equal(t, tt.wantLabel, st.Label)
			}
		})
	}
}

func TestRegistryOrderWins(t *testing.T) {
	// Both stores claim the host; registration order decides.
	first := &Store{Label: "First", Domains: []string{"example."}}
	second := &Store{Label: "Second", Domains: []string{"example."}}

	registry := NewRegistry(first, second)

	st, ok := registry.Resolve("https://www.example.com/p/1")
	require.True(t, ok)
	assert.Equal(t, "First", st.Label)
}

func TestRegistryResolveLabel(t *testing.T) {
	registry := DefaultRegistry()

	st, ok := registry.ResolveLabel("amazon")
	require.True(t, ok)
	assert.Equal(t, "Amazon", st.Label)

	st, ok = registry.ResolveLabel("MERCADOLIBRE")
	require.True(t, ok)
	assert.Equal(t, "MercadoLibre", st.Label)

	_, ok = registry.ResolveLabel("walmart")
	assert.False(t, ok)
}

func TestRegistryLabels(t *testing.T) {
	assert.Equal(t, []string{"Amazon", "MercadoLibre"}, DefaultRegistry().Labels())
}

func TestExtractionResultUsable(t *testing.T) {
	assert.False(t, ExtractionResult{}.Usable())
	assert.True(t, ExtractionResult{Title: "x"}.Usable())
	assert.True(t, ExtractionResult{RawPrice: "$1"}.Usable())
	assert.True(t, ExtractionResult{ImageURL: "https://x/1.jpg"}.Usable())
}
