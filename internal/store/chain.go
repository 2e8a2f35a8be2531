package store

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricewatch/pricewatch/internal/render"
)

// candidate is one step of a selector fallback chain: a query plus an
// optional post-processing step. A nil extract reads the element's text.
type candidate struct {
	selector string
	extract  func(page render.Page, el render.Element) (string, error)
}

// evalChain tries candidates in order and returns the first non-empty value.
// A query error or an extract error counts as "this selector did not match"
// and advances the chain; it never aborts the other fields.
func evalChain(page render.Page, candidates []candidate) string {
	for _, c := range candidates {
		el, err := page.Query(c.selector)
		if err != nil || el == nil {
			continue
		}

		var value string
		if c.extract != nil {
			value, err = c.extract(page, el)
		} else {
			value, err = el.Text()
		}
		if err != nil {
			continue
		}

		value = strings.TrimSpace(value)
		if value != "" {
			return value
		}
	}
	return ""
}

// attr returns an extract step that reads a single attribute.
func attr(name string) func(render.Page, render.Element) (string, error) {
	return func(_ render.Page, el render.Element) (string, error) {
		return el.Attribute(name)
	}
}

// imageFromElement resolves an image URL from an <img> element: a direct src
// wins unless it is empty or an inline data URI, in which case the
// high-resolution attributes are tried in order. A JSON-object value (the
// dynamic-image attribute) is decoded best-effort to its first URL key.
func imageFromElement(el render.Element, hiResAttrs ...string) (string, error) {
	src, err := el.Attribute("src")
	if err != nil {
		src = ""
	}

	if src == "" || strings.Contains(src, "data:image") {
		for _, name := range hiResAttrs {
			v, err := el.Attribute(name)
			if err != nil || v == "" {
				continue
			}
			src = v
			break
		}
	}

	if src == "" {
		return "", nil
	}

	if strings.HasPrefix(strings.TrimSpace(src), "{") {
		if first := firstJSONKey(src); first != "" {
			return first, nil
		}
		// Undecodable blob: fall through to the next selector.
		return "", nil
	}

	if strings.HasPrefix(src, "data:") {
		return "", nil
	}

	return src, nil
}

// firstJSONKey decodes a JSON object literal and returns its first key in
// document order, or "" when the value is not a decodable object.
func firstJSONKey(raw string) string {
	dec := json.NewDecoder(strings.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return ""
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ""
	}

	tok, err = dec.Token()
	if err != nil {
		return ""
	}
	key, _ := tok.(string)
	return key
}

// metaContent reads a <meta> tag from the rendered HTML snapshot. It is the
// shared last candidate of the title and image chains: when every live
// selector misses, OpenGraph metadata often still carries the field.
func metaContent(page render.Page, attrName, attrValue string) string {
	html, err := page.Content()
	if err != nil {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	sel := `meta[` + attrName + `="` + attrValue + `"]`
	if content, ok := doc.Find(sel).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

func ogTitle(page render.Page, _ render.Element) (string, error) {
	return metaContent(page, "property", "og:title"), nil
}

func ogImage(page render.Page, _ render.Element) (string, error) {
	v := metaContent(page, "property", "og:image")
	if strings.HasPrefix(v, "data:") {
		return "", nil
	}
	return v, nil
}
