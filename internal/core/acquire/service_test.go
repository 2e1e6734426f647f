package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlscraper/internal/config"
	"mlscraper/internal/core/extract"
	"mlscraper/internal/core/fetch"
	"mlscraper/internal/core/ocr"
	"mlscraper/internal/logger"
)

// --- test doubles ---

type fakeSession struct {
	html          string
	shot          []byte
	navigateErr   error
	navErrAfter   int // fail navigations beyond the first N (0 = use navigateErr always)
	humanizeErr   error
	contentErr    error
	screenshotErr error
	closeCount    int
	navigations   []string
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.navigations = append(f.navigations, url)
	if f.navErrAfter > 0 {
		if len(f.navigations) > f.navErrAfter {
			return errors.New("scripted navigation failure")
		}
		return nil
	}
	return f.navigateErr
}
func (f *fakeSession) Humanize(context.Context, bool) error { return f.humanizeErr }
func (f *fakeSession) Content(context.Context) (string, error) {
	if f.contentErr != nil {
		return "", f.contentErr
	}
	return f.html, nil
}
func (f *fakeSession) Screenshot(context.Context) ([]byte, error) {
	if f.screenshotErr != nil {
		return nil, f.screenshotErr
	}
	return f.shot, nil
}
func (f *fakeSession) Close() error {
	f.closeCount++
	return nil
}

type fakeFactory struct {
	sessions []*fakeSession
	err      error
	opened   int
}

func (f *fakeFactory) NewSession(context.Context) (PageSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.opened >= len(f.sessions) {
		return nil, errors.New("no more sessions scripted")
	}
	s := f.sessions[f.opened]
	f.opened++
	return s, nil
}

type fakeExtractor struct {
	items  []extract.ListItem
	detail extract.Detail
	stock  int
}

func (f fakeExtractor) ListRecords(string) []extract.ListItem   { return f.items }
func (f fakeExtractor) DetailRecord(string, string) extract.Detail { return f.detail }
func (f fakeExtractor) Stock(string) int                        { return f.stock }

type fakeRecognizer struct {
	available bool
	result    ocr.Result
}

func (f fakeRecognizer) Available(context.Context) bool          { return f.available }
func (f fakeRecognizer) Process(context.Context, []byte) ocr.Result { return f.result }

type fakeFetcher struct {
	res *fetch.Result
	err error
}

func (f fakeFetcher) Fetch(context.Context, string, fetch.Options) (*fetch.Result, error) {
	return f.res, f.err
}

type memCache struct {
	data map[string][]byte
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) CacheGet(_ context.Context, key string, dest interface{}) error {
	b, ok := m.data[key]
	if !ok {
		return errors.New("miss")
	}
	return json.Unmarshal(b, dest)
}

func (m *memCache) CacheSet(_ context.Context, key string, val interface{}, _ int) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	m.data[key] = b
	m.sets++
	return nil
}

// --- helpers ---

func testTuning() config.Tuning {
	t := config.DefaultTuning()
	t.BlockSizeFloor = 10
	t.SuspiciousBodyFloor = 10
	return t
}

func listItems(n int) []extract.ListItem {
	items := make([]extract.ListItem, n)
	for i := range items {
		items[i] = extract.ListItem{
			Title: fmt.Sprintf("Notebook %d", i+1),
			Price: float64(1000 + i),
			Link:  fmt.Sprintf("https://produto.mercadolivre.com.br/MLB-10000000%d", i),
		}
	}
	return items
}

const pageHTML = "<html><body>listing markup goes here, long enough</body></html>"

func newTestService(deps Deps) *Service {
	return NewService(testTuning(), deps, logger.New("acquire-test"))
}

// --- tests ---

func TestListTruncatesToLimit(t *testing.T) {
	session := &fakeSession{html: pageHTML}
	svc := newTestService(Deps{
		Sessions: &fakeFactory{sessions: []*fakeSession{session}},
		Extract:  fakeExtractor{items: listItems(8)},
	})

	out := svc.Acquire(context.Background(), Request{Target: "notebook", Intent: IntentList, Limit: 5})
	require.True(t, out.Success)
	assert.Equal(t, StrategyBrowser, out.StrategyUsed)
	assert.Len(t, out.Items, 5)
	assert.Equal(t, []Strategy{StrategyBrowser}, out.StrategiesAttempted)
	assert.Equal(t, 1, session.closeCount)
}

func TestLimitDefaultsAndCap(t *testing.T) {
	assert.Equal(t, DefaultLimit, clampLimit(0, MaxLimit))
	assert.Equal(t, MaxLimit, clampLimit(10000, MaxLimit))
	assert.Equal(t, 7, clampLimit(7, MaxLimit))
}

func TestBrowserFailsRecognitionUnavailable(t *testing.T) {
	session := &fakeSession{navigateErr: errors.New("navigation timeout")}
	svc := newTestService(Deps{
		Sessions:  &fakeFactory{sessions: []*fakeSession{session}},
		Extract:   fakeExtractor{},
		Recognize: fakeRecognizer{available: false},
	})

	out := svc.Acquire(context.Background(), Request{Target: "notebook", Intent: IntentList})
	assert.False(t, out.Success)
	assert.Equal(t, []Strategy{StrategyBrowser, StrategyRecognition}, out.StrategiesAttempted)
	assert.Contains(t, out.Error, "navigation timeout")
	assert.Contains(t, out.Error, "recognition engine unavailable")
	assert.Equal(t, 1, session.closeCount)
}

func TestEmptyExtractionAdvancesCascade(t *testing.T) {
	browserSession := &fakeSession{html: pageHTML}
	shotSession := &fakeSession{html: pageHTML, shot: []byte{1}}
	factory := &fakeFactory{sessions: []*fakeSession{browserSession, shotSession}}

	svc := newTestService(Deps{
		Sessions: factory,
		Extract:  fakeExtractor{},
		Recognize: fakeRecognizer{available: true, result: ocr.Result{
			Success: true,
			Text:    "Tênis Nike R$ 299,90",
			Products: []ocr.Product{
				{Title: "Tênis Nike", Price: "299,90"},
				{Title: "Tênis Adidas", Price: "449,90"},
				{Title: "Tênis Vans", Price: "189,90"},
				{Title: "Tênis Puma", Price: "329,90"},
			},
		}},
	})

	out := svc.Acquire(context.Background(), Request{Target: "tenis", Intent: IntentList})
	require.True(t, out.Success)
	assert.Equal(t, StrategyRecognition, out.StrategyUsed)
	assert.Equal(t, []Strategy{StrategyBrowser, StrategyRecognition}, out.StrategiesAttempted)
	// Candidate records cap at three and are flagged as synthetic.
	require.Len(t, out.Items, 3)
	for _, item := range out.Items {
		assert.Equal(t, string(StrategyRecognition), item.Source)
	}
	assert.Equal(t, 299.90, out.Items[0].Price)
	assert.Equal(t, 2, factory.opened)
	assert.Equal(t, 1, browserSession.closeCount)
	assert.Equal(t, 1, shotSession.closeCount)
}

func TestRecognitionWithoutProductLinesSeedsPlaceholders(t *testing.T) {
	browserSession := &fakeSession{html: pageHTML}
	shotSession := &fakeSession{html: pageHTML, shot: []byte{1}}

	svc := newTestService(Deps{
		Sessions: &fakeFactory{sessions: []*fakeSession{browserSession, shotSession}},
		Extract:  fakeExtractor{},
		Recognize: fakeRecognizer{available: true, result: ocr.Result{
			Success: true,
			Text:    "texto legível sem linha de produto",
		}},
	})

	out := svc.Acquire(context.Background(), Request{Target: "tenis", Intent: IntentList})
	require.True(t, out.Success)
	assert.Equal(t, StrategyRecognition, out.StrategyUsed)
	require.Len(t, out.Items, 3)
	for _, item := range out.Items {
		assert.Contains(t, item.Title, "tenis")
		assert.Equal(t, string(StrategyRecognition), item.Source)
		assert.Zero(t, item.Price)
	}
}

func TestDetailsEmptyTitleAdvances(t *testing.T) {
	session := &fakeSession{html: pageHTML}
	svc := newTestService(Deps{
		Sessions:  &fakeFactory{sessions: []*fakeSession{session}},
		Extract:   fakeExtractor{detail: extract.Detail{Price: 100}},
		Recognize: fakeRecognizer{available: false},
	})

	out := svc.Acquire(context.Background(), Request{
		Target: "https://produto.mercadolivre.com.br/MLB-123456789",
		Intent: IntentDetails,
	})
	assert.False(t, out.Success)
	assert.Equal(t, []Strategy{StrategyBrowser, StrategyRecognition}, out.StrategiesAttempted)
	assert.Contains(t, out.Error, "no usable records")
}

func TestDetailsSuccess(t *testing.T) {
	session := &fakeSession{html: pageHTML}
	svc := newTestService(Deps{
		Sessions: &fakeFactory{sessions: []*fakeSession{session}},
		Extract:  fakeExtractor{detail: extract.Detail{Title: "Notebook Gamer", Price: 4500}},
	})

	out := svc.Acquire(context.Background(), Request{
		Target: "https://produto.mercadolivre.com.br/MLB-123456789",
		Intent: IntentDetails,
	})
	require.True(t, out.Success)
	require.NotNil(t, out.Item)
	assert.Equal(t, "Notebook Gamer", out.Item.Title)
	assert.Equal(t, "https://produto.mercadolivre.com.br/MLB-123456789", out.SourceURL)
}

func TestRejectsUnsupportedHostBeforeFetch(t *testing.T) {
	factory := &fakeFactory{}
	svc := newTestService(Deps{Sessions: factory, Extract: fakeExtractor{}})

	out := svc.Acquire(context.Background(), Request{
		Target: "https://www.amazon.com.br/dp/B0000",
		Intent: IntentDetails,
	})
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "unsupported product url")
	assert.Zero(t, factory.opened)
	assert.Empty(t, out.StrategiesAttempted)
}

func TestCloseRunsOnEveryFailurePath(t *testing.T) {
	cases := map[string]*fakeSession{
		"navigate": {navigateErr: errors.New("boom")},
		"consent":  {humanizeErr: errors.New("boom")},
		"content":  {contentErr: errors.New("boom")},
		"blocked":  {html: "captcha"},
	}
	for name, session := range cases {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(Deps{
				Sessions:  &fakeFactory{sessions: []*fakeSession{session}},
				Extract:   fakeExtractor{items: listItems(1)},
				Recognize: fakeRecognizer{available: false},
			})
			out := svc.Acquire(context.Background(), Request{Target: "tenis", Intent: IntentList})
			assert.False(t, out.Success)
			assert.Equal(t, 1, session.closeCount)
		})
	}
}

func TestStockFetchedSequentiallyOnSameSession(t *testing.T) {
	session := &fakeSession{html: pageHTML}
	items := listItems(2)
	svc := newTestService(Deps{
		Sessions: &fakeFactory{sessions: []*fakeSession{session}},
		Extract:  fakeExtractor{items: items, stock: 9},
	})

	out := svc.Acquire(context.Background(), Request{Target: "notebook", Intent: IntentList, IncludeStock: true})
	require.True(t, out.Success)
	require.Len(t, out.Items, 2)
	// All renders share the scripted session, so stock resolves here.
	assert.Equal(t, 9, out.Items[0].Stock)
	// Listing plus one navigation per item.
	assert.Len(t, session.navigations, 3)
	assert.Equal(t, 1, session.closeCount)
}

func TestStockRenderErrorKeepsBatch(t *testing.T) {
	// Listing render succeeds, every per-item render fails: items keep
	// the zero-stock default and the batch still succeeds.
	session := &fakeSession{html: pageHTML, navErrAfter: 1}
	svc := newTestService(Deps{
		Sessions: &fakeFactory{sessions: []*fakeSession{session}},
		Extract:  fakeExtractor{items: listItems(2), stock: 9},
	})

	out := svc.Acquire(context.Background(), Request{Target: "notebook", Intent: IntentList, IncludeStock: true})
	require.True(t, out.Success)
	require.Len(t, out.Items, 2)
	assert.Zero(t, out.Items[0].Stock)
	assert.Zero(t, out.Items[1].Stock)
	assert.Equal(t, 1, session.closeCount)
}

func TestHTTPFastPath(t *testing.T) {
	tuning := testTuning()
	tuning.HTTPFirst = true
	svc := NewService(tuning, Deps{
		Sessions: &fakeFactory{},
		Fetcher:  fakeFetcher{res: &fetch.Result{HTML: pageHTML, StatusCode: 200}},
		Extract:  fakeExtractor{items: listItems(3)},
	}, logger.New("acquire-test"))

	out := svc.Acquire(context.Background(), Request{Target: "notebook", Intent: IntentList})
	require.True(t, out.Success)
	assert.Equal(t, StrategyHTTP, out.StrategyUsed)
	assert.Equal(t, []Strategy{StrategyHTTP}, out.StrategiesAttempted)
}

func TestHTTPFailureFallsThroughToBrowser(t *testing.T) {
	tuning := testTuning()
	tuning.HTTPFirst = true
	session := &fakeSession{html: pageHTML}
	svc := NewService(tuning, Deps{
		Sessions: &fakeFactory{sessions: []*fakeSession{session}},
		Fetcher:  fakeFetcher{err: fetch.ErrHardBlock},
		Extract:  fakeExtractor{items: listItems(3)},
	}, logger.New("acquire-test"))

	out := svc.Acquire(context.Background(), Request{Target: "notebook", Intent: IntentList})
	require.True(t, out.Success)
	assert.Equal(t, StrategyBrowser, out.StrategyUsed)
	assert.Equal(t, []Strategy{StrategyHTTP, StrategyBrowser}, out.StrategiesAttempted)
}

func TestResultCaching(t *testing.T) {
	cache := newMemCache()
	sessions := []*fakeSession{{html: pageHTML}, {html: pageHTML}}
	factory := &fakeFactory{sessions: sessions}
	svc := newTestService(Deps{
		Sessions: factory,
		Extract:  fakeExtractor{items: listItems(2)},
		Cache:    cache,
	})

	req := Request{Target: "notebook", Intent: IntentList}
	first := svc.Acquire(context.Background(), req)
	require.True(t, first.Success)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, cache.sets)

	second := svc.Acquire(context.Background(), req)
	require.True(t, second.Success)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, factory.opened)

	req.Fresh = true
	third := svc.Acquire(context.Background(), req)
	require.True(t, third.Success)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, factory.opened)
}

func TestDebugReportsStages(t *testing.T) {
	session := &fakeSession{navigateErr: errors.New("nav down")}
	svc := newTestService(Deps{
		Sessions:  &fakeFactory{sessions: []*fakeSession{session}},
		Extract:   fakeExtractor{},
		Recognize: fakeRecognizer{available: false},
	})

	out := svc.Acquire(context.Background(), Request{Target: "tenis", Intent: IntentList, Debug: true})
	require.Len(t, out.Debug, 2)
	assert.Equal(t, StrategyBrowser, out.Debug[0].Strategy)
	assert.Contains(t, out.Debug[0].Error, "nav down")
	assert.Equal(t, StrategyRecognition, out.Debug[1].Strategy)
}

func TestSearchTermBecomesListingURL(t *testing.T) {
	session := &fakeSession{html: pageHTML}
	svc := newTestService(Deps{
		Sessions: &fakeFactory{sessions: []*fakeSession{session}},
		Extract:  fakeExtractor{items: listItems(1)},
	})

	out := svc.Acquire(context.Background(), Request{Target: "tenis nike air", Intent: IntentList})
	require.True(t, out.Success)
	assert.Equal(t, "https://lista.mercadolivre.com.br/tenis-nike-air", out.SourceURL)
	require.NotEmpty(t, session.navigations)
	assert.True(t, strings.HasPrefix(session.navigations[0], "https://lista.mercadolivre.com.br/"))
}

func TestRecognitionDetailFromText(t *testing.T) {
	d := detailFromRecognition("  \nTênis Nike Air\nR$ 299,90", nil, "u")
	assert.Equal(t, "Tênis Nike Air", d.Title)
	assert.Equal(t, string(StrategyRecognition), d.Source)
}
