package browser

import (
	"github.com/playwright-community/playwright-go"

	"github.com/pricewatch/pricewatch/internal/render"
)

// Page adapts a playwright page to the render.Page interface consumed by the
// extractors.
type Page struct {
	page playwright.Page
}

var _ render.Page = (*Page)(nil)

func (p *Page) Query(selector string) (render.Element, error) {
	el, err := p.page.QuerySelector(selector)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, nil
	}
	return &element{handle: el}, nil
}

func (p *Page) QueryAll(selector string) ([]render.Element, error) {
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}

	elements := make([]render.Element, 0, len(handles))
	for _, h := range handles {
		elements = append(elements, &element{handle: h})
	}
	return elements, nil
}

func (p *Page) Content() (string, error) {
	return p.page.Content()
}

func (p *Page) URL() string {
	return p.page.URL()
}

type element struct {
	handle playwright.ElementHandle
}

var _ render.Element = (*element)(nil)

func (e *element) Text() (string, error) {
	return e.handle.TextContent()
}

func (e *element) Attribute(name string) (string, error) {
	return e.handle.GetAttribute(name)
}
