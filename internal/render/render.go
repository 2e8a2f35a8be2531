package render

// Page is the read-only view of a rendered document that extractors and the
// search coordinator operate on. Implementations wrap a live browser page;
// tests substitute in-memory fakes.
type Page interface {
	// Query returns the first element matching the selector, or nil if none.
	Query(selector string) (Element, error)
	// QueryAll returns every element matching the selector.
	QueryAll(selector string) ([]Element, error)
	// Content returns the full HTML of the rendered document.
	Content() (string, error)
	// URL returns the page's current URL.
	URL() string
}

type Element interface {
	Text() (string, error)
	Attribute(name string) (string, error)
}
