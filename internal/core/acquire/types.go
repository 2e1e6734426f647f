// Package acquire is the acquisition orchestrator: it drives the
// strategy cascade (optional plain HTTP, rendered browser fetch,
// screenshot recognition) for one request at a time, owns session
// cleanup on every exit path, and shapes the result callers see.
package acquire

import (
	"context"

	"mlscraper/internal/core/extract"
	"mlscraper/internal/core/fetch"
	"mlscraper/internal/core/ocr"
)

// Strategy is one acquisition method in the cascade.
type Strategy string

const (
	StrategyHTTP        Strategy = "http"
	StrategyBrowser     Strategy = "browser"
	StrategyRecognition Strategy = "recognition"
)

// Intent selects the extraction shape.
type Intent string

const (
	IntentList    Intent = "list"
	IntentDetails Intent = "details"
)

const (
	// DefaultLimit applies when the caller sends none.
	DefaultLimit = 50
	// MaxLimit is the hard cap on requested items.
	MaxLimit = 200
)

// Request is one acquisition job. Target is a search term for list
// intent, or a product URL for details intent.
type Request struct {
	Target       string `json:"target"`
	Intent       Intent `json:"intent"`
	Limit        int    `json:"limit,omitempty"`
	IncludeStock bool   `json:"include_stock,omitempty"`
	Debug        bool   `json:"debug,omitempty"`
	Fresh        bool   `json:"fresh,omitempty"`
}

// StageReport is one cascade stage's timing and error, emitted only
// when the caller asked for debug output.
type StageReport struct {
	Strategy   Strategy `json:"strategy"`
	DurationMs int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

// Outcome is what the orchestrator returns upward. Exactly one of
// Items or Item is set on success, depending on intent.
type Outcome struct {
	Success             bool               `json:"success"`
	Query               string             `json:"query,omitempty"`
	SourceURL           string             `json:"source_url,omitempty"`
	StrategyUsed        Strategy           `json:"strategy_used,omitempty"`
	StrategiesAttempted []Strategy         `json:"strategies_attempted"`
	Items               []extract.ListItem `json:"items,omitempty"`
	Item                *extract.Detail    `json:"item,omitempty"`
	Error               string             `json:"error,omitempty"`
	Cached              bool               `json:"cached,omitempty"`
	Debug               []StageReport      `json:"debug,omitempty"`
}

// PageSession is the slice of a browser session the orchestrator
// drives. *browser.Session satisfies it.
type PageSession interface {
	Navigate(ctx context.Context, url string) error
	Humanize(ctx context.Context, highFidelity bool) error
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// SessionFactory opens a fresh session per acquisition attempt.
// Sessions are never shared across requests.
type SessionFactory interface {
	NewSession(ctx context.Context) (PageSession, error)
}

// Fetcher is the plain-HTTP engine behind the fast-path toggle.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts fetch.Options) (*fetch.Result, error)
}

// Extractor turns rendered HTML into records. Implementations are
// pure and must tolerate missing fields.
type Extractor interface {
	ListRecords(html string) []extract.ListItem
	DetailRecord(html, url string) extract.Detail
	Stock(html string) int
}

// Recognizer matches ocr.Processor; redeclared here so test doubles
// need not import the ocr internals.
type Recognizer interface {
	Available(ctx context.Context) bool
	Process(ctx context.Context, image []byte) ocr.Result
}

// Archiver persists fetched artifacts as a diagnostic side channel.
type Archiver interface {
	SavePage(url, strategy, html string) string
	SaveScreenshot(url, strategy string, png []byte) string
}

// ResultCache stores finished outcomes keyed by request shape. A get
// error counts as a miss.
type ResultCache interface {
	CacheGet(ctx context.Context, key string, dest interface{}) error
	CacheSet(ctx context.Context, key string, val interface{}, ttlSeconds int) error
}
