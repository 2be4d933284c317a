// Package headless drives real browser sessions via chromedp. Scholar
// profile pages render their publication table with JavaScript, so plain
// HTTP fetches are not enough for discovery.
package headless

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/pubview/scholarstream/internal/scholar"
)

// Config controls the browser pool.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

const defaultNavigationTimeout = 45 * time.Second

// Factory owns a shared Chrome allocator and hands out one tab per session.
// MaxParallel bounds concurrently open tabs; Open blocks until a slot frees
// or the caller's context expires.
type Factory struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewFactory creates the allocator. Close must be called to reap the browser
// processes.
func NewFactory(cfg Config) (*Factory, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Factory{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, terminating any remaining browsers.
func (f *Factory) Close() {
	f.allocCancel()
}

// Open acquires a pool slot and starts a fresh tab.
func (f *Factory) Open(ctx context.Context) (scholar.Session, error) {
	if err := f.acquire(ctx); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(f.allocator)
	if err := chromedp.Run(tabCtx, f.startupAction()); err != nil {
		tabCancel()
		f.release()
		return nil, fmt.Errorf("start browser tab: %w", err)
	}

	return &session{
		factory:    f,
		ctx:        tabCtx,
		cancel:     tabCancel,
		navTimeout: f.cfg.NavigationTimeout,
	}, nil
}

func (f *Factory) startupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if f.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

func (f *Factory) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (f *Factory) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

// session wraps one browser tab. DOM queries run as injected JavaScript so a
// missing element is an ordinary empty result, not a wait that times out.
type session struct {
	factory    *Factory
	ctx        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
	closeOnce  sync.Once
}

func (s *session) Navigate(ctx context.Context, url string) error {
	tctx, cancel := context.WithTimeout(s.ctx, s.navTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *session) FirstText(ctx context.Context, candidates []string) (string, bool) {
	for _, sel := range candidates {
		expr := fmt.Sprintf(
			`(() => { const el = document.querySelector(%q); return el ? el.textContent.trim() : ""; })()`,
			sel,
		)
		var out string
		if err := s.evaluate(ctx, expr, &out); err != nil {
			continue
		}
		if out != "" {
			return out, true
		}
	}
	return "", false
}

func (s *session) Attr(ctx context.Context, selector, name string) (string, bool) {
	expr := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); return el ? (el.getAttribute(%q) || "") : ""; })()`,
		selector, name,
	)
	var out string
	if err := s.evaluate(ctx, expr, &out); err != nil || out == "" {
		return "", false
	}
	return out, true
}

func (s *session) AllAttrs(ctx context.Context, candidates []string, name string) []string {
	for _, sel := range candidates {
		expr := fmt.Sprintf(
			`Array.from(document.querySelectorAll(%q)).map(el => el.getAttribute(%q) || "").filter(v => v !== "")`,
			sel, name,
		)
		var out []string
		if err := s.evaluate(ctx, expr, &out); err != nil {
			continue
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func (s *session) Title(ctx context.Context) (string, bool) {
	var title string
	if err := s.evaluate(ctx, `document.title`, &title); err != nil {
		return "", false
	}
	title = strings.TrimSpace(title)
	return title, title != ""
}

func (s *session) Click(ctx context.Context, candidates []string) bool {
	for _, sel := range candidates {
		expr := fmt.Sprintf(
			`(() => {
				const el = document.querySelector(%q);
				if (!el || el.disabled || el.offsetParent === null) { return false; }
				el.click();
				return true;
			})()`,
			sel,
		)
		var clicked bool
		if err := s.evaluate(ctx, expr, &clicked); err != nil {
			continue
		}
		if clicked {
			return true
		}
	}
	return false
}

func (s *session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = s.navTimeout
	}
	tctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(tctx, chromedp.WaitVisible(selector, chromedp.ByQuery)) == nil
}

// Close tears down the tab and frees the pool slot. Safe to call more than
// once.
func (s *session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.factory.release()
	})
}

func (s *session) evaluate(ctx context.Context, expr string, out any) error {
	tctx, cancel := context.WithTimeout(s.ctx, s.navTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(tctx, chromedp.Evaluate(expr, out))
}
