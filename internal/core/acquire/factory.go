package acquire

import (
	"context"

	"mlscraper/internal/core/browser"
)

// BrowserFactory adapts the browser launcher to the orchestrator's
// session interface.
type BrowserFactory struct {
	Launcher *browser.Launcher
}

func (f BrowserFactory) NewSession(ctx context.Context) (PageSession, error) {
	return f.Launcher.NewSession(ctx)
}
