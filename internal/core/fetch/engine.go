// Package fetch implements the plain-HTTP acquisition path: rotated
// browser header profiles, jittered exponential backoff and blocking
// classification of each response.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"mlscraper/internal/core/blocking"
	"mlscraper/internal/logger"
)

// ErrHardBlock signals a 403 that persisted through every attempt.
// Callers match it with errors.Is to tell a standing block from a
// transient failure.
var ErrHardBlock = errors.New("hard block (403)")

// Options tunes a single Fetch call.
type Options struct {
	Retries             int
	BaseDelay           time.Duration
	SuspiciousBodyFloor int
	SizeFloor           int
}

// Result carries a successful fetch.
type Result struct {
	HTML       string
	StatusCode int
	FinalURL   string
	Profile    string
	Attempts   int
}

// Engine performs retried HTTP fetches with rotated header profiles.
type Engine struct {
	client *http.Client
	pool   *ProfilePool
	log    *logger.Logger
}

// NewEngine builds an engine with a shared transport. Redirects are
// followed normally here; only the canonicalizer uses last-response
// semantics.
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{
		client: &http.Client{Timeout: 30 * time.Second},
		pool:   NewProfilePool(),
		log:    log,
	}
}

// transient status codes get a longer pause before the next attempt.
func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// errTransient wraps failures worth a longer pause before retrying.
type errTransient struct{ inner error }

func (e errTransient) Error() string { return e.inner.Error() }
func (e errTransient) Unwrap() error { return e.inner }

// backoff returns the pause before the next attempt, exponential with
// up to ~30% jitter.
func backoff(base time.Duration, attempt int, transient bool) time.Duration {
	d := base << uint(attempt)
	if transient {
		d *= 2
	}
	jitter := time.Duration(rand.Int63n(int64(d)/3 + 1))
	return d + jitter
}

// Fetch retrieves url, retrying on failures including 403s and
// suspicious bodies. A small jittered pause precedes the first attempt
// so bursts of calls do not land in lockstep; later attempts back off
// exponentially. A 403 on every attempt surfaces as ErrHardBlock.
func (e *Engine) Fetch(ctx context.Context, url string, opts Options) (*Result, error) {
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 2 * time.Second
	}
	if opts.SuspiciousBodyFloor <= 0 {
		opts.SuspiciousBodyFloor = 50000
	}

	var lastErr error
	for attempt := 0; attempt < opts.Retries; attempt++ {
		var pause time.Duration
		if attempt == 0 {
			pause = time.Duration(rand.Int63n(int64(opts.BaseDelay)/4 + 1))
		} else {
			var tr errTransient
			pause = backoff(opts.BaseDelay, attempt-1, errors.As(lastErr, &tr))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pause):
		}

		res, err := e.fetchOnce(ctx, url, opts)
		if err == nil {
			res.Attempts = attempt + 1
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
		e.log.LogWarnf("fetch attempt %d/%d for %s failed: %v", attempt+1, opts.Retries, url, err)
	}
	return nil, fmt.Errorf("all %d attempts failed for %s: %w", opts.Retries, url, lastErr)
}

func (e *Engine) fetchOnce(ctx context.Context, url string, opts Options) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	profile := e.pool.Pick()
	profile.Apply(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, ErrHardBlock
	}
	if transientStatus(resp.StatusCode) {
		return nil, errTransient{fmt.Errorf("transient status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	html := string(body)

	det := blocking.Inspect(url, html, opts.SizeFloor)
	if det.Blocked {
		return nil, fmt.Errorf("blocked content (%s)", strings.Join(det.Indicators, ", "))
	}
	if blocking.IsProtectedDomain(url) && len(html) < opts.SuspiciousBodyFloor {
		return nil, errTransient{fmt.Errorf("suspicious body size %d", len(html))}
	}

	return &Result{
		HTML:       html,
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Profile:    profile.UserAgent,
	}, nil
}
