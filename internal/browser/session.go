// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/actions"
)

const (
	startupProbeTimeout = 30 * time.Second
	closeTimeout        = 10 * time.Second
)

var _ actions.Page = (*Session)(nil)

// Session owns one browser tab on the configured Chrome instance. It is
// created once per interactive session and shared by the agent runner and
// the capture actions; the loop runs one task at a time, so operations are
// never concurrent with each other, only with Close.
type Session struct {
	id  string
	cfg *schemas.Configuration
	log *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	closed bool
	mu     sync.Mutex
}

// NewSession establishes the browser connection for the configured mode and
// verifies it responds before returning. Remote modes attach to a running
// browser; managed and local-path modes launch one.
func NewSession(ctx context.Context, cfg *schemas.Configuration, logger *zap.Logger) (*Session, error) {
	id := uuid.New().String()
	log := logger.Named("browser").With(zap.String("session_id", id[:8]))

	allocCtx, allocCancel := newAllocator(ctx, cfg)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:          id,
		cfg:         cfg,
		log:         log,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}

	probe := []chromedp.Action{chromedp.Navigate("about:blank")}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		probe = append(probe, chromedp.EmulateViewport(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight)))
	}

	probeCtx, cancel := context.WithTimeout(tabCtx, startupProbeTimeout)
	defer cancel()
	if err := chromedp.Run(probeCtx, probe...); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("browser failed to start or respond (%s mode): %w", cfg.ConnectionMode(), err)
	}

	log.Info("Browser session established.",
		zap.String("mode", string(cfg.ConnectionMode())),
		zap.Int("viewport_width", cfg.ViewportWidth),
		zap.Int("viewport_height", cfg.ViewportHeight))
	return s, nil
}

// ID returns the session identifier actions use as their accumulation key.
func (s *Session) ID() string { return s.id }

// run executes chromedp actions on the tab with a per-operation timeout. The
// caller's context cannot be handed to chromedp directly, so its
// cancellation is propagated into the run context instead.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("browser session is closed")
	}
	tab := s.tabCtx
	s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Navigate loads a URL and waits for the document body to be ready, bounded
// by the navigation timeout. Only http(s) targets on the domain allow-list
// are reachable.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("invalid navigation URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported navigation scheme %q", u.Scheme)
	}
	if !s.cfg.DomainAllowed(u.Hostname()) {
		return fmt.Errorf("host %q is outside the domain allow-list", u.Hostname())
	}

	s.log.Debug("Navigating.", zap.String("url", u.String()))
	err = s.run(ctx, s.cfg.NavigationDuration(),
		chromedp.Navigate(u.String()),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", u.String(), err)
	}
	return nil
}

// CurrentURL reports the tab's location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, s.cfg.PageLoadDuration(), chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

// Title reports the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, s.cfg.PageLoadDuration(), chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

// HTML returns the full serialized document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.cfg.PageLoadDuration(), chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}

// Text returns the visible text of the document body.
func (s *Session) Text(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, s.cfg.PageLoadDuration(), chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}
	return text, nil
}

// Click clicks the first visible element matching the selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	if strings.TrimSpace(selector) == "" {
		return fmt.Errorf("click requires a selector")
	}
	err := s.run(ctx, s.cfg.PageLoadDuration(),
		chromedp.Click(selector, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

// Type replaces the value of the matching input with text.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	if strings.TrimSpace(selector) == "" {
		return fmt.Errorf("type requires a selector")
	}
	err := s.run(ctx, s.cfg.PageLoadDuration(),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("typing into %q failed: %w", selector, err)
	}
	return nil
}

// Scroll moves the viewport one window height. Direction "up" scrolls
// backwards; anything else scrolls forward.
func (s *Session) Scroll(ctx context.Context, direction string) error {
	script := "window.scrollBy(0, window.innerHeight)"
	if strings.EqualFold(strings.TrimSpace(direction), "up") {
		script = "window.scrollBy(0, -window.innerHeight)"
	}
	if err := s.run(ctx, s.cfg.PageLoadDuration(), chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

// CaptureScreenshot captures the viewport as PNG.
func (s *Session) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, s.cfg.PageLoadDuration(), chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// CaptureElementScreenshot captures the first visible element matching the
// selector as PNG.
func (s *Session) CaptureElementScreenshot(ctx context.Context, selector string) ([]byte, error) {
	if strings.TrimSpace(selector) == "" {
		return s.CaptureScreenshot(ctx)
	}
	var buf []byte
	err := s.run(ctx, s.cfg.PageLoadDuration(),
		chromedp.Screenshot(selector, &buf, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("element screenshot of %q failed: %w", selector, err)
	}
	return buf, nil
}

// Close tears down the tab and, for launched browsers, the Chrome process.
// Safe to call more than once; later calls are no-ops.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	tab := s.tabCtx
	s.mu.Unlock()

	// Ask for a graceful target close first, with a hard stop.
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(tab) }()
	select {
	case err := <-done:
		if err != nil {
			s.log.Debug("Graceful tab close reported an error.", zap.Error(err))
		}
	case <-time.After(closeTimeout):
		s.log.Warn("Timeout waiting for browser session to close.")
	}

	s.tabCancel()
	s.allocCancel()
	s.log.Info("Browser session closed.")
	return nil
}
