package store

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/pricewatch/pricewatch/internal/render"
)

// amazonProductRe captures the regional domain and the 10-character ASIN from
// any Amazon product URL shape (/dp/, /gp/product/.../dp/, with or without a
// title slug).
var amazonProductRe = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(amazon\.[a-z.]{2,13})/(?:.*?/)?dp/([A-Z0-9]{10})`)

func Amazon() *Store {
	return &Store{
		Label:   "Amazon",
		Domains: []string{"amazon."},

		Extract:          extractAmazon,
		Canonicalize:     canonicalizeAmazon,
		ObservationLabel: amazonObservationLabel,

		SearchURL: func(query string) string {
			return "https://www.amazon.com/s?k=" + url.QueryEscape(query)
		},
		ResultSelectors: []string{
			`div[data-component-type="s-search-result"] h2 a`,
			`a.a-link-normal.s-no-outline`,
			`a.a-link-normal[href*="/dp/"]`,
		},
		IsProductHref: func(href string) bool {
			return strings.Contains(href, "/dp/")
		},
		BaseURL: "https://www.amazon.com",
	}
}

var amazonTitleChain = []candidate{
	{selector: "#productTitle"},
	{selector: "h1#title"},
	{selector: "h1.product-title"},
	{selector: "span#productTitle"},
	{selector: "head", extract: ogTitle},
}

var amazonPriceChain = []candidate{
	{selector: "span.a-price.aok-align-center.reinventPricePriceToPayMargin.priceToPay span.a-offscreen"},
	{selector: "span.a-price span.a-offscreen"},
	{selector: "#priceblock_ourprice"},
	{selector: "#priceblock_dealprice"},
	{selector: "#price_inside_buybox"},
	{selector: ".a-price .a-offscreen"},
	{selector: `span[data-a-color="price"] span.a-offscreen`},
}

var amazonImageChain = []candidate{
	{selector: "#landingImage", extract: amazonImage},
	{selector: "#imgBlkFront", extract: amazonImage},
	{selector: "#main-image", extract: amazonImage},
	{selector: "img.a-dynamic-image", extract: amazonImage},
	{selector: "#imageBlock img", extract: amazonImage},
	{selector: "head", extract: ogImage},
}

func amazonImage(_ render.Page, el render.Element) (string, error) {
	return imageFromElement(el, "data-old-hires", "data-a-dynamic-image")
}

func extractAmazon(page render.Page) ExtractionResult {
	return ExtractionResult{
		Title:    evalChain(page, amazonTitleChain),
		RawPrice: evalChain(page, amazonPriceChain),
		ImageURL: evalChain(page, amazonImageChain),
	}
}

// canonicalizeAmazon reduces a product URL to scheme + regional host + /dp/ +
// ASIN, dropping the title slug, tracking segments and every query parameter.
// URLs that do not look like a product page pass through unchanged.
func canonicalizeAmazon(rawURL string) string {
	m := amazonProductRe.FindStringSubmatch(rawURL)
	if m == nil {
		return rawURL
	}

	domain := strings.ToLower(m[1])
	asin := strings.ToUpper(m[2])

	return fmt.Sprintf("https://www.%s/dp/%s", domain, asin)
}

// amazonObservationLabel turns the canonical host into the marketplace label
// stored with each observation: "Amazon.com", "Amazon.com.mx", "Amazon.es".
func amazonObservationLabel(canonicalURL string) string {
	u, err := url.Parse(canonicalURL)
	if err != nil {
		return "Amazon.com"
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if !strings.HasPrefix(host, "amazon.") {
		return "Amazon.com"
	}

	return "Amazon" + strings.TrimPrefix(host, "amazon")
}
