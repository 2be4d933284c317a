// Package static implements a browser-free session over plain HTTP. It
// cannot execute JavaScript, so dynamic controls report failure and callers
// fall back to whatever the initial HTML carries. Useful for tests, fixtures,
// and sources that render server-side.
package static

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/pubview/scholarstream/internal/scholar"
)

// Config controls the HTTP collector.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

const defaultTimeout = 15 * time.Second

// Factory builds static sessions sharing one base collector.
type Factory struct {
	cfg           Config
	baseCollector *colly.Collector
}

// NewFactory builds the Factory.
func NewFactory(cfg Config) *Factory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &Factory{cfg: cfg, baseCollector: c}
}

// Open returns a session with no page loaded yet.
func (f *Factory) Open(context.Context) (scholar.Session, error) {
	return &session{factory: f}, nil
}

// session holds the most recently fetched document. Queries against a
// session with no successful navigation return empty results.
type session struct {
	factory *Factory

	mu  sync.Mutex
	doc *goquery.Document
}

func (s *session) Navigate(ctx context.Context, url string) error {
	var (
		body     []byte
		fetchErr error
	)
	collector := s.factory.baseCollector.Clone()
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("fetch %s: %w", url, err)
		}
	case <-ctx.Done():
		return fmt.Errorf("fetch %s: %w", url, ctx.Err())
	}
	if fetchErr != nil {
		return fmt.Errorf("fetch %s: %w", url, fetchErr)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", url, err)
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

func (s *session) FirstText(_ context.Context, candidates []string) (string, bool) {
	doc := s.document()
	if doc == nil {
		return "", false
	}
	for _, sel := range candidates {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text != "" {
			return text, true
		}
	}
	return "", false
}

func (s *session) Attr(_ context.Context, selector, name string) (string, bool) {
	doc := s.document()
	if doc == nil {
		return "", false
	}
	val, ok := doc.Find(selector).First().Attr(name)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

func (s *session) AllAttrs(_ context.Context, candidates []string, name string) []string {
	doc := s.document()
	if doc == nil {
		return nil
	}
	for _, sel := range candidates {
		var out []string
		doc.Find(sel).Each(func(_ int, node *goquery.Selection) {
			if val, ok := node.Attr(name); ok && val != "" {
				out = append(out, val)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func (s *session) Title(context.Context) (string, bool) {
	doc := s.document()
	if doc == nil {
		return "", false
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	return title, title != ""
}

// Click always reports false: without a JavaScript runtime there is nothing
// to activate.
func (s *session) Click(context.Context, []string) bool {
	return false
}

// WaitVisible degrades to a presence check on the parsed document.
func (s *session) WaitVisible(_ context.Context, selector string, _ time.Duration) bool {
	doc := s.document()
	if doc == nil {
		return false
	}
	return doc.Find(selector).Length() > 0
}

func (s *session) Close() {
	s.mu.Lock()
	s.doc = nil
	s.mu.Unlock()
}

func (s *session) document() *goquery.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}
