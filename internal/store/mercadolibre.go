package store

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/pricewatch/pricewatch/internal/render"
)

// mlItemRe captures the MercadoLibre item token (site prefix + numeric ID,
// with or without the hyphen): MLM-1234567890, MLA876543210.
var mlItemRe = regexp.MustCompile(`(ML[A-Z])-?(\d{6,})`)

// currencyMarkers are the symbols and codes the original markup may already
// carry; when none is present a "$" prefix is synthesized.
var currencyMarkers = []string{"$", "€", "£", "USD", "MXN", "ARS", "CLP", "COP"}

func MercadoLibre() *Store {
	return &Store{
		Label:   "MercadoLibre",
		Domains: []string{"mercadolibre."},

		Extract:          extractMercadoLibre,
		Canonicalize:     canonicalizeMercadoLibre,
		ObservationLabel: mercadoLibreObservationLabel,

		SearchURL: func(query string) string {
			slug := strings.ReplaceAll(strings.TrimSpace(query), " ", "-")
			return "https://listado.mercadolibre.com.mx/" + url.PathEscape(slug)
		},
		ResultSelectors: []string{
			`a.ui-search-link`,
			`li.ui-search-layout__item a`,
			`a.ui-search-item__group__element`,
		},
		IsProductHref: func(href string) bool {
			return mlItemRe.MatchString(href)
		},
		BaseURL: "https://www.mercadolibre.com.mx",
	}
}

var mlTitleChain = []candidate{
	{selector: "h1.ui-pdp-title"},
	{selector: ".ui-pdp-title"},
	{selector: `h1[class*="title"]`},
	{selector: "h1.item-title"},
	{selector: ".item-title__primary"},
	{selector: "head", extract: ogTitle},
}

// The price markup usually splits the amount into a fraction element and a
// separate currency-symbol element, so every candidate reconstructs the full
// price text from both.
var mlPriceChain = []candidate{
	{selector: `meta[itemprop="price"]`, extract: mlPriceFromMeta},
	{selector: ".andes-money-amount__fraction", extract: mlPriceFromText},
	{selector: ".price-tag-fraction", extract: mlPriceFromText},
	{selector: "span.andes-money-amount__fraction", extract: mlPriceFromText},
	{selector: ".andes-money-amount--cents-superscript .andes-money-amount__fraction", extract: mlPriceFromText},
	{selector: `span[class*="price-tag-fraction"]`, extract: mlPriceFromText},
	{selector: ".price-tag-amount", extract: mlPriceFromText},
}

var mlImageChain = []candidate{
	{selector: "figure.ui-pdp-gallery__figure img", extract: mlImage},
	{selector: ".ui-pdp-image", extract: mlImage},
	{selector: "img.ui-pdp-gallery__figure__image", extract: mlImage},
	{selector: ".ui-pdp-gallery__figure img[src]", extract: mlImage},
	{selector: "figure img[data-zoom]", extract: mlImage},
	{selector: ".gallery-image img", extract: mlImage},
	{selector: `img[class*="gallery"]`, extract: mlImage},
	{selector: "head", extract: ogImage},
}

func mlImage(_ render.Page, el render.Element) (string, error) {
	return imageFromElement(el, "data-src", "data-zoom")
}

func mlPriceFromMeta(page render.Page, el render.Element) (string, error) {
	value, err := el.Attribute("content")
	if err != nil || value == "" {
		return "", err
	}
	return reconstructCurrency(page, value), nil
}

func mlPriceFromText(page render.Page, el render.Element) (string, error) {
	text, err := el.Text()
	if err != nil || strings.TrimSpace(text) == "" {
		return "", err
	}
	return reconstructCurrency(page, strings.TrimSpace(text)), nil
}

// reconstructCurrency prefixes the scraped amount with the page's
// currency-symbol element. Without one, the text keeps any marker it already
// has; a bare number gets a default "$".
func reconstructCurrency(page render.Page, amount string) string {
	if el, err := page.Query(".andes-money-amount__currency-symbol"); err == nil && el != nil {
		if symbol, err := el.Text(); err == nil && strings.TrimSpace(symbol) != "" {
			return strings.TrimSpace(symbol) + amount
		}
	}

	for _, marker := range currencyMarkers {
		if strings.Contains(amount, marker) {
			return amount
		}
	}

	return "$" + amount
}

func extractMercadoLibre(page render.Page) ExtractionResult {
	return ExtractionResult{
		Title:    evalChain(page, mlTitleChain),
		RawPrice: evalChain(page, mlPriceChain),
		ImageURL: evalChain(page, mlImageChain),
	}
}

// canonicalizeMercadoLibre reduces a product URL to scheme + original host +
// item token, discarding the slug, query string and fragment. The host keeps
// the regional marketplace (articulo.mercadolibre.com.mx stays Mexican).
func canonicalizeMercadoLibre(rawURL string) string {
	m := mlItemRe.FindStringSubmatch(rawURL)
	if m == nil {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}

	token := fmt.Sprintf("%s-%s", strings.ToUpper(m[1]), m[2])
	return fmt.Sprintf("https://%s/%s", strings.ToLower(u.Hostname()), token)
}

// mercadoLibreObservationLabel maps the regional host suffix to the
// marketplace display name.
func mercadoLibreObservationLabel(canonicalURL string) string {
	u, err := url.Parse(canonicalURL)
	if err != nil {
		return "MercadoLibre"
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case strings.HasSuffix(host, ".com.mx"):
		return "MercadoLibre México"
	case strings.HasSuffix(host, ".com.ar"):
		return "MercadoLibre Argentina"
	case strings.HasSuffix(host, ".com.co"):
		return "MercadoLibre Colombia"
	case strings.HasSuffix(host, ".cl"):
		return "MercadoLibre Chile"
	default:
		return "MercadoLibre"
	}
}
