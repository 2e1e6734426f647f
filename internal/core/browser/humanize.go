package browser

import (
	"context"
	"math/rand"
	"time"

	"github.com/playwright-community/playwright-go"
)

// consentSelectors are tried in order; the first visible match is
// clicked. The data-testid form is the current banner, the has-text
// variants cover older layouts and A/B tests.
var consentSelectors = []string{
	`button[data-testid="action:understood"]`,
	`button:has-text("Aceitar cookies")`,
	`button:has-text("Aceitar")`,
	`button:has-text("Entendi")`,
	`button:has-text("Concordo")`,
	`button:has-text("OK")`,
	`[data-testid="cookie-consent-banner"] button`,
}

// readyMarkers identify a rendered product or listing page. The first
// one that appears wins; none appearing is not an error since some
// layouts lack all of them.
var readyMarkers = []string{
	".ui-pdp-title",
	".price-tag-fraction",
	".ui-pdp-gallery",
	".ui-pdp-description",
}

// AcceptCookies dismisses the consent banner if present, with a
// pointer move toward the button before the click. Absence of a
// banner is the common case and not an error.
func (s *Session) AcceptCookies(ctx context.Context) {
	for _, selector := range consentSelectors {
		loc := s.page.Locator(selector).First()
		visible, err := loc.IsVisible()
		if err != nil || !visible {
			continue
		}

		if box, err := loc.BoundingBox(); err == nil && box != nil {
			s.page.Mouse().Move(box.X+box.Width/2, box.Y+box.Height/2,
				playwright.MouseMoveOptions{Steps: playwright.Int(8 + rand.Intn(8))})
			sleepCtx(ctx, time.Duration(100+rand.Intn(200))*time.Millisecond)
		}
		if err := loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(3000)}); err != nil {
			s.log.LogDebugf("consent click failed on %s: %v", selector, err)
			continue
		}
		s.log.LogDebugf("dismissed cookie banner via %s", selector)
		return
	}
}

// WanderMouse performs a few random pointer movements inside the
// viewport.
func (s *Session) WanderMouse(ctx context.Context) {
	moves := 2 + rand.Intn(3)
	for i := 0; i < moves; i++ {
		if ctx.Err() != nil {
			return
		}
		x := float64(100 + rand.Intn(1100))
		y := float64(100 + rand.Intn(500))
		s.page.Mouse().Move(x, y, playwright.MouseMoveOptions{Steps: playwright.Int(5 + rand.Intn(15))})
		sleepCtx(ctx, time.Duration(50+rand.Intn(250))*time.Millisecond)
	}
}

// WaitForContent waits for the first known page marker to appear,
// giving each one up to 5 seconds. Returns the marker that matched,
// or empty when none did.
func (s *Session) WaitForContent(ctx context.Context) string {
	for _, marker := range readyMarkers {
		if ctx.Err() != nil {
			return ""
		}
		err := s.page.Locator(marker).First().WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(5000),
		})
		if err == nil {
			s.log.LogDebugf("page ready marker found: %s", marker)
			return marker
		}
	}
	s.log.LogDebugf("no ready marker appeared, proceeding with current DOM")
	return ""
}

// ScrollThrough scrolls the page to trigger lazy loading. Low latency
// mode does three smooth jumps; high fidelity mode steps through the
// full height with reading pauses. Both end scrolled back to the top.
func (s *Session) ScrollThrough(ctx context.Context, highFidelity bool) {
	if highFidelity {
		s.scrollStepped(ctx)
	} else {
		s.scrollJumps(ctx)
	}
	s.page.Evaluate(`window.scrollTo({ top: 0, behavior: 'smooth' })`)
	sleepCtx(ctx, 300*time.Millisecond)
}

func (s *Session) scrollJumps(ctx context.Context) {
	for _, fraction := range []float64{0.35, 0.7, 1.0} {
		if ctx.Err() != nil {
			return
		}
		s.page.Evaluate(`f => window.scrollTo({ top: document.body.scrollHeight * f, behavior: 'smooth' })`, fraction)
		sleepCtx(ctx, time.Duration(400+rand.Intn(300))*time.Millisecond)
	}
}

func (s *Session) scrollStepped(ctx context.Context) {
	steps := 8 + rand.Intn(5)
	for i := 1; i <= steps; i++ {
		if ctx.Err() != nil {
			return
		}
		fraction := float64(i) / float64(steps)
		s.page.Evaluate(`f => window.scrollTo({ top: document.body.scrollHeight * f, behavior: 'smooth' })`, fraction)
		sleepCtx(ctx, time.Duration(600+rand.Intn(900))*time.Millisecond)
	}
}

// Humanize runs the full interaction pass after navigation: consent,
// pointer noise, content wait, scroll. Individual steps are best
// effort; only an interrupted context surfaces as an error.
func (s *Session) Humanize(ctx context.Context, highFidelity bool) error {
	s.AcceptCookies(ctx)
	s.WanderMouse(ctx)
	s.WaitForContent(ctx)
	s.ScrollThrough(ctx, highFidelity)
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
