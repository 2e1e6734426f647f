// Package browser manages headless Chromium sessions through
// playwright: stealth launch configuration, bounded navigation and
// page capture, and ordered teardown.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"mlscraper/internal/logger"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// Timeouts bounds the blocking playwright calls. Every call is raced
// against a deadline so a wedged browser process cannot stall a
// worker.
type Timeouts struct {
	Navigation time.Duration
	Operation  time.Duration
	Close      time.Duration
}

// DefaultTimeouts mirrors the worker's production settings.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation: 120 * time.Second,
		Operation:  60 * time.Second,
		Close:      15 * time.Second,
	}
}

// Launcher creates sessions with a shared configuration.
type Launcher struct {
	headless bool
	timeouts Timeouts
	log      *logger.Logger
}

func NewLauncher(headless bool, timeouts Timeouts, log *logger.Logger) *Launcher {
	if timeouts.Navigation <= 0 {
		timeouts = DefaultTimeouts()
	}
	return &Launcher{headless: headless, timeouts: timeouts, log: log}
}

// Session owns one playwright stack: driver, browser, context, page.
type Session struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	context  playwright.BrowserContext
	page     playwright.Page
	timeouts Timeouts
	log      *logger.Logger
}

// await races a blocking playwright call against the context and a
// timeout. The underlying call keeps running if the deadline fires;
// Close tears down the process that owns it.
func await[T any](ctx context.Context, timeout time.Duration, op func() (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := op()
		done <- outcome{v, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, fmt.Errorf("operation timed out after %s", timeout)
	}
}

// NewSession starts a full browser stack with stealth configuration
// and a pt-BR fingerprint. On any partial failure the pieces already
// started are torn down before returning.
func (l *Launcher) NewSession(ctx context.Context) (*Session, error) {
	pw, err := await(ctx, l.timeouts.Operation, func() (*playwright.Playwright, error) {
		return playwright.Run()
	})
	if err != nil {
		return nil, fmt.Errorf("playwright run: %w", err)
	}

	browser, err := await(ctx, l.timeouts.Operation, func() (playwright.Browser, error) {
		return pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(l.headless),
			Args:     launchArgs,
		})
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("browser launch: %w", err)
	}

	bctx, err := await(ctx, l.timeouts.Operation, func() (playwright.BrowserContext, error) {
		return browser.NewContext(playwright.BrowserNewContextOptions{
			UserAgent:  playwright.String(defaultUserAgent),
			Locale:     playwright.String("pt-BR"),
			TimezoneId: playwright.String("America/Sao_Paulo"),
			Geolocation: &playwright.Geolocation{
				Latitude:  -23.5505,
				Longitude: -46.6333,
			},
			Permissions: []string{"geolocation"},
			Viewport: &playwright.Size{
				Width:  1366,
				Height: 768,
			},
			ExtraHttpHeaders: map[string]string{
				"Accept-Language": "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7",
			},
		})
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("browser context: %w", err)
	}

	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		bctx.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("init script: %w", err)
	}

	page, err := await(ctx, l.timeouts.Operation, func() (playwright.Page, error) {
		return bctx.NewPage()
	})
	if err != nil {
		bctx.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("new page: %w", err)
	}

	l.log.LogDebugf("browser session started (headless=%v)", l.headless)
	return &Session{
		pw:       pw,
		browser:  browser,
		context:  bctx,
		page:     page,
		timeouts: l.timeouts,
		log:      l.log,
	}, nil
}

// Navigate loads url, falling back from domcontentloaded to a full
// load wait when the first attempt times out.
func (s *Session) Navigate(ctx context.Context, url string) error {
	_, err := await(ctx, s.timeouts.Navigation, func() (playwright.Response, error) {
		return s.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(s.timeouts.Navigation.Milliseconds()) / 2),
		})
	})
	if err == nil {
		return nil
	}
	s.log.LogDebugf("domcontentloaded navigation failed, retrying with load: %v", err)

	_, err = await(ctx, s.timeouts.Navigation, func() (playwright.Response, error) {
		return s.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateLoad,
			Timeout:   playwright.Float(float64(s.timeouts.Navigation.Milliseconds())),
		})
	})
	if err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

// Content returns the rendered HTML of the current page.
func (s *Session) Content(ctx context.Context) (string, error) {
	html, err := await(ctx, s.timeouts.Operation, s.page.Content)
	if err != nil {
		return "", fmt.Errorf("page content: %w", err)
	}
	return html, nil
}

// Screenshot captures the full page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	buf, err := await(ctx, s.timeouts.Operation, func() ([]byte, error) {
		return s.page.Screenshot(playwright.PageScreenshotOptions{
			FullPage: playwright.Bool(true),
			Type:     playwright.ScreenshotTypePng,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// URL returns the page's current address.
func (s *Session) URL() string {
	return s.page.URL()
}

// closeStep is one stage of the ordered teardown.
type closeStep struct {
	name string
	fn   func() error
}

// closeAll runs every step in order regardless of failures, each
// bounded by timeout, and returns the first error seen.
func closeAll(timeout time.Duration, log *logger.Logger, steps []closeStep) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error
	for _, step := range steps {
		fn := step.fn
		_, err := await(ctx, timeout, func() (struct{}, error) {
			return struct{}{}, fn()
		})
		if err != nil {
			log.LogWarnf("session close: %s: %v", step.name, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", step.name, err)
			}
		}
	}
	return firstErr
}

// Close tears the stack down page first, driver last. Each step is
// best effort and bounded; the first error is reported after all
// steps ran.
func (s *Session) Close() error {
	var steps []closeStep
	if s.page != nil {
		steps = append(steps, closeStep{"page", func() error { return s.page.Close() }})
	}
	if s.context != nil {
		steps = append(steps, closeStep{"context", func() error { return s.context.Close() }})
	}
	if s.browser != nil {
		steps = append(steps, closeStep{"browser", func() error { return s.browser.Close() }})
	}
	if s.pw != nil {
		steps = append(steps, closeStep{"driver", s.pw.Stop})
	}
	return closeAll(s.timeouts.Close, s.log, steps)
}
