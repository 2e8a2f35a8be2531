package browser

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/pricewatch/pricewatch/internal/render"
)

// stealthScript hides the usual headless-automation fingerprints before any
// page script runs.
const stealthScript = `
	Object.defineProperty(navigator, 'webdriver', {
		get: () => undefined
	});

	Object.defineProperty(navigator, 'plugins', {
		get: () => [1, 2, 3, 4, 5]
	});

	window.chrome = {
		runtime: {}
	};
`

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	Latitude       float64
	Longitude      float64
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "es-ES,es;q=0.9,en;q=0.8",
		TimezoneID:     "America/Mexico_City",
		Locale:         "es-ES",
		Latitude:       19.4326,
		Longitude:      -99.1332,
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Encoding": "gzip, deflate, br",
			"DNT":             "1",
		},
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-web-security",
			"--disable-features=IsolateOrigins,site-per-process",
			"--window-size=1920,1080",
			"--user-agent=" + opts.UserAgent,
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: b,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

// NewSession creates an isolated browser context with a single page. Each
// scrape job gets its own session so cookies and navigation history never
// leak between concurrent jobs. The caller must Close the session on every
// exit path.
func (b *Browser) NewSession() (*Session, error) {
	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &b.opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &b.opts.Locale,
		TimezoneId:        &b.opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  b.opts.ViewportWidth,
			Height: b.opts.ViewportHeight,
		},
		Permissions: []string{"geolocation"},
		Geolocation: &playwright.Geolocation{
			Latitude:  b.opts.Latitude,
			Longitude: b.opts.Longitude,
		},
		ExtraHttpHeaders: b.opts.ExtraHeaders,
	}

	context, err := b.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if err := context.AddInitScript(playwright.Script{
		Content: playwright.String(stealthScript),
	}); err != nil {
		context.Close()
		return nil, fmt.Errorf("failed to add init script: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return &Session{
		context: context,
		page:    page,
		logger:  b.logger,
	}, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

// Session is a single-job browser context. It is not safe for concurrent use.
type Session struct {
	context playwright.BrowserContext
	page    playwright.Page
	logger  *slog.Logger
}

// Navigate loads the URL and waits for the DOM to be ready, bounded by the
// given timeout.
func (s *Session) Navigate(url string, timeout time.Duration) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Humanize adds a couple of mouse movements and a small scroll so the page
// sees something other than an instant, motionless visitor.
func (s *Session) Humanize() {
	viewport := s.page.ViewportSize()
	if viewport == nil {
		return
	}

	x := float64(viewport.Width / 2)
	y := float64(viewport.Height / 2)

	s.page.Mouse().Move(x, y, playwright.MouseMoveOptions{
		Steps: playwright.Int(10),
	})
	time.Sleep(100 * time.Millisecond)
	s.page.Mouse().Move(x+50, y+50, playwright.MouseMoveOptions{
		Steps: playwright.Int(5),
	})
	s.page.Evaluate(`window.scrollBy(0, Math.random() * 300)`)
}

// Blocked reports whether the page landed on a captcha or robot check instead
// of the requested content.
func (s *Session) Blocked() bool {
	captchaSelectors := []string{
		"#captchacharacters",
		"form[action*='Captcha']",
		"iframe[src*='captcha']",
	}

	for _, selector := range captchaSelectors {
		if count, _ := s.page.Locator(selector).Count(); count > 0 {
			s.logger.Warn("detected captcha/block", "selector", selector)
			return true
		}
	}

	title, _ := s.page.Title()
	if strings.Contains(strings.ToLower(title), "robot") {
		s.logger.Warn("detected robot check in title", "title", title)
		return true
	}

	return false
}

// Screenshot writes a full-page screenshot to path.
func (s *Session) Screenshot(path string) error {
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to take screenshot: %w", err)
	}
	return nil
}

// Page exposes the rendered document through the read-only query interface.
func (s *Session) Page() render.Page {
	return &Page{page: s.page}
}

func (s *Session) Close() error {
	if err := s.context.Close(); err != nil {
		return fmt.Errorf("failed to close context: %w", err)
	}
	return nil
}
