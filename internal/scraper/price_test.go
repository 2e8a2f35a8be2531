package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   float64
		wantOK bool
	}{
		{"dollar sign", "$14.98", 14.98, true},
		{"thousands separator", "$1,299.00", 1299.00, true},
		{"currency code prefix", "MXN 549", 549, true},
		{"symbol and spaces", " $ 2,499.99 ", 2499.99, true},
		{"integer only", "1299", 1299, true},
		{"euro format", "€89.90", 89.90, true},
		{"empty", "", 0, false},
		{"no digits", "Precio no disponible", 0, false},
		{"only currency", "$", 0, false},
		{"multiple points", "1.299.00", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}
