package acquire

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mlscraper/internal/config"
	"mlscraper/internal/core/blocking"
	"mlscraper/internal/core/extract"
	"mlscraper/internal/core/fetch"
	"mlscraper/internal/core/ocr"
	"mlscraper/internal/core/urls"
	"mlscraper/internal/logger"
)

// errEmptyExtraction advances the cascade: the stage ran but nothing
// usable came out.
var errEmptyExtraction = errors.New("extraction produced no usable records")

const searchBase = "https://lista.mercadolivre.com.br/"

// Service runs the acquisition cascade. One invocation owns at most
// one live browser session at a time and always closes it before
// moving on.
type Service struct {
	tuning   config.Tuning
	sessions SessionFactory
	fetcher  Fetcher
	rec      Recognizer
	ext      Extractor
	arch     Archiver
	cache    ResultCache
	log      *logger.Logger
}

// Deps bundles the orchestrator's collaborators. Fetcher, Archiver
// and Cache may be nil; the corresponding behavior is skipped.
type Deps struct {
	Sessions  SessionFactory
	Fetcher   Fetcher
	Recognize Recognizer
	Extract   Extractor
	Archive   Archiver
	Cache     ResultCache
}

func NewService(tuning config.Tuning, deps Deps, log *logger.Logger) *Service {
	if deps.Extract == nil {
		deps.Extract = HTMLExtractor{}
	}
	return &Service{
		tuning:   tuning,
		sessions: deps.Sessions,
		fetcher:  deps.Fetcher,
		rec:      deps.Recognize,
		ext:      deps.Extract,
		arch:     deps.Archive,
		cache:    deps.Cache,
		log:      log,
	}
}

// HTMLExtractor is the production Extractor backed by the extract
// package.
type HTMLExtractor struct{}

func (HTMLExtractor) ListRecords(html string) []extract.ListItem { return extract.ListItems(html) }
func (HTMLExtractor) DetailRecord(html, url string) extract.Detail {
	return extract.ProductDetail(html, url)
}
func (HTMLExtractor) Stock(html string) int { return extract.Stock(html) }

// targetURL resolves the request target into the URL the cascade
// fetches. List targets are search terms unless they already look
// like a site URL.
func (s *Service) targetURL(ctx context.Context, req Request) (string, error) {
	target := strings.TrimSpace(req.Target)
	if target == "" {
		return "", fmt.Errorf("target is required")
	}

	if req.Intent == IntentDetails {
		if !urls.IsAcceptableProductURL(target) {
			return "", fmt.Errorf("unsupported product url: %s", target)
		}
		if urls.IsTracking(target) {
			resolved := urls.ResolveRedirects(ctx, nil, target, s.tuning.MaxRedirectHops)
			if canonical, ok := urls.Normalize(resolved); ok {
				return canonical, nil
			}
			return resolved, nil
		}
		if canonical, ok := urls.Normalize(target); ok {
			return canonical, nil
		}
		return target, nil
	}

	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		if !urls.Validate(target) {
			return "", fmt.Errorf("unsupported listing url: %s", target)
		}
		return target, nil
	}
	return searchBase + strings.ReplaceAll(target, " ", "-"), nil
}

func clampLimit(limit, cap int) int {
	if cap <= 0 {
		cap = MaxLimit
	}
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > cap {
		return cap
	}
	return limit
}

func cacheKey(req Request, url string) string {
	return fmt.Sprintf("acquire:%s:%s:%d:%v", req.Intent, url, req.Limit, req.IncludeStock)
}

// Acquire runs the cascade for one request. It never returns an
// error: every failure mode is encoded in the Outcome.
func (s *Service) Acquire(ctx context.Context, req Request) Outcome {
	if req.Intent == "" {
		req.Intent = IntentList
	}
	req.Limit = clampLimit(req.Limit, s.tuning.ResultCap)

	out := Outcome{Query: req.Target}

	url, err := s.targetURL(ctx, req)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.SourceURL = url

	key := cacheKey(req, url)
	if s.cache != nil && !req.Fresh {
		var cached Outcome
		if err := s.cache.CacheGet(ctx, key, &cached); err == nil && cached.Success {
			cached.Cached = true
			s.log.LogDebugf("cache hit for %s", key)
			return cached
		}
	}

	strategies := []Strategy{StrategyBrowser, StrategyRecognition}
	if s.tuning.HTTPFirst && s.fetcher != nil {
		strategies = append([]Strategy{StrategyHTTP}, strategies...)
	}

	var stageErrs []string
	for _, strategy := range strategies {
		start := time.Now()
		result, err := s.runStage(ctx, strategy, url, req)
		elapsed := time.Since(start)

		if req.Debug {
			report := StageReport{Strategy: strategy, DurationMs: elapsed.Milliseconds()}
			if err != nil {
				report.Error = err.Error()
			}
			out.Debug = append(out.Debug, report)
		}
		out.StrategiesAttempted = append(out.StrategiesAttempted, strategy)

		if err != nil {
			s.log.LogWarnf("strategy %s failed for %s: %v", strategy, url, err)
			stageErrs = append(stageErrs, fmt.Sprintf("%s: %v", strategy, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		out.Success = true
		out.StrategyUsed = strategy
		out.Items = result.Items
		out.Item = result.Item
		s.log.LogInfof("acquired %s via %s in %s", url, strategy, elapsed)

		if s.cache != nil {
			if err := s.cache.CacheSet(ctx, key, out, s.tuning.CacheTTLSeconds); err != nil {
				s.log.LogWarnf("cache set %s: %v", key, err)
			}
		}
		return out
	}

	out.Error = strings.Join(stageErrs, "; ")
	if out.Error == "" {
		out.Error = "no strategy available"
	}
	return out
}

// stageResult is the payload a successful stage hands back.
type stageResult struct {
	Items []extract.ListItem
	Item  *extract.Detail
}

func (s *Service) runStage(ctx context.Context, strategy Strategy, url string, req Request) (*stageResult, error) {
	switch strategy {
	case StrategyHTTP:
		return s.httpStage(ctx, url, req)
	case StrategyBrowser:
		return s.browserStage(ctx, url, req)
	case StrategyRecognition:
		return s.recognitionStage(ctx, url, req)
	}
	return nil, fmt.Errorf("unknown strategy %q", strategy)
}

func (s *Service) fetchOpts() fetch.Options {
	return fetch.Options{
		Retries:             s.tuning.FetchRetries,
		SuspiciousBodyFloor: s.tuning.SuspiciousBodyFloor,
		SizeFloor:           s.tuning.BlockSizeFloor,
	}
}

func (s *Service) httpStage(ctx context.Context, url string, req Request) (*stageResult, error) {
	res, err := s.fetcher.Fetch(ctx, url, s.fetchOpts())
	if err != nil {
		return nil, err
	}
	s.archivePage(url, StrategyHTTP, res.HTML)

	if req.Intent == IntentDetails {
		detail := s.ext.DetailRecord(res.HTML, url)
		if detail.Title == "" {
			return nil, errEmptyExtraction
		}
		return &stageResult{Item: &detail}, nil
	}

	items := s.ext.ListRecords(res.HTML)
	if len(items) == 0 {
		return nil, errEmptyExtraction
	}
	items = truncate(items, req.Limit)
	if req.IncludeStock {
		s.fillStockHTTP(ctx, items)
	}
	return &stageResult{Items: items}, nil
}

func (s *Service) fillStockHTTP(ctx context.Context, items []extract.ListItem) {
	for i := range items {
		if items[i].Link == "" || ctx.Err() != nil {
			continue
		}
		res, err := s.fetcher.Fetch(ctx, items[i].Link, s.fetchOpts())
		if err != nil {
			s.log.LogDebugf("stock fetch %s: %v", items[i].Link, err)
			continue
		}
		items[i].Stock = s.ext.Stock(res.HTML)
	}
}

func (s *Service) browserStage(ctx context.Context, url string, req Request) (result *stageResult, err error) {
	session, err := s.sessions.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			s.log.LogWarnf("session close after browser stage: %v", cerr)
		}
	}()

	html, err := s.renderPage(ctx, session, url)
	if err != nil {
		return nil, err
	}
	s.archivePage(url, StrategyBrowser, html)

	if req.Intent == IntentDetails {
		detail := s.ext.DetailRecord(html, url)
		if detail.Title == "" {
			return nil, errEmptyExtraction
		}
		return &stageResult{Item: &detail}, nil
	}

	items := s.ext.ListRecords(html)
	if len(items) == 0 {
		return nil, errEmptyExtraction
	}
	items = truncate(items, req.Limit)

	// Stock lookups reuse the open session sequentially; a failed
	// item keeps the zero default instead of sinking the batch.
	if req.IncludeStock {
		for i := range items {
			if items[i].Link == "" || ctx.Err() != nil {
				continue
			}
			detailHTML, derr := s.renderPage(ctx, session, items[i].Link)
			if derr != nil {
				s.log.LogDebugf("stock render %s: %v", items[i].Link, derr)
				continue
			}
			items[i].Stock = s.ext.Stock(detailHTML)
		}
	}
	return &stageResult{Items: items}, nil
}

func (s *Service) renderPage(ctx context.Context, session PageSession, url string) (string, error) {
	if err := session.Navigate(ctx, url); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := session.Humanize(ctx, s.tuning.HighFidelity); err != nil {
		return "", fmt.Errorf("humanize: %w", err)
	}
	html, err := session.Content(ctx)
	if err != nil {
		return "", fmt.Errorf("content: %w", err)
	}
	if html == "" {
		return "", fmt.Errorf("empty document")
	}
	if det := blocking.Inspect(url, html, s.tuning.BlockSizeFloor); det.Blocked {
		return "", fmt.Errorf("blocked content (%s)", strings.Join(det.Indicators, ", "))
	}
	return html, nil
}

func (s *Service) recognitionStage(ctx context.Context, url string, req Request) (*stageResult, error) {
	if s.rec == nil || !s.rec.Available(ctx) {
		return nil, fmt.Errorf("recognition engine unavailable")
	}

	// Fresh session just for the capture; the browser stage's session
	// is already closed by now.
	session, err := s.sessions.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			s.log.LogWarnf("session close after recognition stage: %v", cerr)
		}
	}()

	if err := session.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	shot, err := session.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	if s.arch != nil {
		s.arch.SaveScreenshot(url, string(StrategyRecognition), shot)
	}

	res := s.rec.Process(ctx, shot)
	if !res.Success {
		return nil, fmt.Errorf("recognition failed: %s", res.Error)
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, fmt.Errorf("recognition produced no text")
	}

	if req.Intent == IntentDetails {
		item := detailFromRecognition(res.Text, res.Products, url)
		return &stageResult{Item: &item}, nil
	}
	return &stageResult{Items: candidatesFromRecognition(req.Target, res.Products)}, nil
}

// candidatesFromRecognition turns recognized product lines into up to
// three low-confidence candidate records seeded from the search term.
// When no product lines were identified the term alone seeds the
// placeholders, so a readable screenshot never empties the stage.
func candidatesFromRecognition(term string, products []ocr.Product) []extract.ListItem {
	var items []extract.ListItem
	for _, p := range products {
		if len(items) == 3 {
			break
		}
		title := p.Title
		if title == "" {
			title = term
		}
		items = append(items, extract.ListItem{
			Title:  title,
			Price:  extract.ParsePrice(p.Price),
			Source: string(StrategyRecognition),
		})
	}
	for i := len(items); i < 3 && len(products) == 0; i++ {
		items = append(items, extract.ListItem{
			Title:  fmt.Sprintf("%s - candidato %d", term, i+1),
			Source: string(StrategyRecognition),
		})
	}
	return items
}

func detailFromRecognition(text string, products []ocr.Product, url string) extract.Detail {
	d := extract.Detail{URL: url, Source: string(StrategyRecognition)}
	if len(products) > 0 {
		d.Title = products[0].Title
		d.Price = extract.ParsePrice(products[0].Price)
		return d
	}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			d.Title = line
			break
		}
	}
	return d
}

func (s *Service) archivePage(url string, strategy Strategy, html string) {
	if s.arch != nil {
		s.arch.SavePage(url, string(strategy), html)
	}
}

func truncate(items []extract.ListItem, limit int) []extract.ListItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
