package scraper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DebugCapture indexes one saved diagnostic artifact pair.
type DebugCapture struct {
	Store      string    `json:"store"`
	Query      string    `json:"query"`
	Screenshot string    `json:"screenshot,omitempty"`
	PageSource string    `json:"page_source,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// DebugRecorder persists screenshots and page-source snapshots of search
// pages whose selectors all missed, to aid selector maintenance. It is a
// debugging side channel, never part of normal control flow.
type DebugRecorder struct {
	mu       sync.Mutex
	dir      string
	captures []DebugCapture
}

func NewDebugRecorder(dir string) (*DebugRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create debug dir: %w", err)
	}

	r := &DebugRecorder{dir: dir}
	r.loadIndex()
	return r, nil
}

// Capture saves a screenshot and the page HTML for the failed search and
// appends an entry to the JSON index.
func (r *DebugRecorder) Capture(storeLabel, query string, session Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stamp := time.Now().Format("20060102-150405")
	base := fmt.Sprintf("%s-%s", sanitize(storeLabel), stamp)

	capture := DebugCapture{
		Store:      storeLabel,
		Query:      query,
		CapturedAt: time.Now(),
	}

	shotPath := filepath.Join(r.dir, base+".png")
	if err := session.Screenshot(shotPath); err == nil {
		capture.Screenshot = shotPath
	}

	if html, err := session.Page().Content(); err == nil {
		srcPath := filepath.Join(r.dir, base+".html")
		if err := os.WriteFile(srcPath, []byte(html), 0o644); err == nil {
			capture.PageSource = srcPath
		}
	}

	r.captures = append(r.captures, capture)
	return r.saveIndex()
}

func (r *DebugRecorder) indexPath() string {
	return filepath.Join(r.dir, "captures.json")
}

func (r *DebugRecorder) loadIndex() {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		return
	}
	json.Unmarshal(data, &r.captures)
}

// saveIndex writes through a temp file so a crash never leaves a truncated
// index behind.
func (r *DebugRecorder) saveIndex() error {
	data, err := json.MarshalIndent(r.captures, "", "  ")
	if err != nil {
		return err
	}

	tmp := r.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, r.indexPath())
}

func sanitize(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, s)
	return strings.Trim(s, "-")
}
