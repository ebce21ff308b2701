package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sitewake/internal/sites"
)

type fakeRenderer struct {
	mu      sync.Mutex
	pages   []RenderedPage
	errs    []error
	calls   int
	optsLog []RenderOptions
}

func (f *fakeRenderer) Render(_ context.Context, _ string, opts RenderOptions) (RenderedPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	f.optsLog = append(f.optsLog, opts)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return RenderedPage{}, err
	}
	if i >= len(f.pages) {
		i = len(f.pages) - 1
	}
	return f.pages[i], nil
}

type fakeActuator struct {
	mu            sync.Mutex
	calls         int
	err           error
	blockUntilCtx bool
}

func (f *fakeActuator) Wake(ctx context.Context, _, _ string) error {
	f.mu.Lock()
	f.calls++
	block := f.blockUntilCtx
	err := f.err
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return fmt.Errorf("wake lookup aborted: %w", ctx.Err())
	}
	return err
}

type fakeProber struct {
	body  string
	err   error
	calls int
}

func (f *fakeProber) Probe(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.body, f.err
}

type fakeRawSink struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (f *fakeRawSink) SaveRaw(_ context.Context, siteName, suffix, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, siteName+"/"+suffix)
	return "path", nil
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func testConfig() Config {
	return Config{
		SitesPath:         "config/sites.json",
		Concurrency:       2,
		SiteTimeout:       5 * time.Second,
		RenderTimeout:     time.Second,
		SettleDelay:       0,
		WakeLookupTimeout: time.Second,
		WakeSettleDelay:   0,
		UserAgent:         "test",
		WakeSelector:      `button[data-testid="wakeup-button-owner"]`,
		DormantMarkers:    []string{"This app has gone to sleep"},
	}
}

func testSite() sites.Site {
	return sites.Site{
		Name:        "lookout",
		URL:         "https://example.com/app",
		MustContain: "lookout post",
		IsStreamlit: true,
	}
}

func newTestChecker(r Renderer, a Actuator, p Prober, sink RawSink, cfg Config) *Checker {
	classifier := NewClassifier(cfg.DormantMarkers, cfg.WakeSelector)
	return NewChecker(r, a, p, classifier, sink, &fakeClock{now: time.Unix(100, 0)}, cfg, zap.NewNop())
}

func TestCheckSiteUp(t *testing.T) {
	renderer := &fakeRenderer{pages: []RenderedPage{{Text: "the lookout post is live"}}}
	actuator := &fakeActuator{}
	checker := newTestChecker(renderer, actuator, nil, nil, testConfig())

	res := checker.CheckSite(context.Background(), testSite(), Options{})
	require.Equal(t, StatusUp, res.Status)
	require.Equal(t, "lookout", res.SiteName)
	require.Zero(t, actuator.calls)
	require.Equal(t, 1, renderer.calls)
	require.False(t, res.CheckedAt.IsZero())
}

func TestCheckSiteMissingContentIsDown(t *testing.T) {
	renderer := &fakeRenderer{pages: []RenderedPage{{Text: "something else entirely"}}}
	actuator := &fakeActuator{}
	checker := newTestChecker(renderer, actuator, nil, nil, testConfig())

	res := checker.CheckSite(context.Background(), testSite(), Options{})
	require.Equal(t, StatusDown, res.Status)
	require.Contains(t, res.Detail, "lookout post")
	require.Zero(t, actuator.calls)
}

func TestCheckSiteRestartedAfterWake(t *testing.T) {
	renderer := &fakeRenderer{pages: []RenderedPage{
		{Text: "This app has gone to sleep"},
		{Text: "the lookout post is live"},
	}}
	actuator := &fakeActuator{}
	checker := newTestChecker(renderer, actuator, nil, nil, testConfig())

	res := checker.CheckSite(context.Background(), testSite(), Options{})
	require.Equal(t, StatusRestarted, res.Status)
	require.Equal(t, 1, actuator.calls)
	require.Equal(t, 2, renderer.calls)
}

func TestCheckSiteWakeDidNotHelp(t *testing.T) {
	renderer := &fakeRenderer{pages: []RenderedPage{
		{Text: "This app has gone to sleep"},
		{Text: "This app has gone to sleep"},
	}}
	actuator := &fakeActuator{}
	checker := newTestChecker(renderer, actuator, nil, nil, testConfig())

	res := checker.CheckSite(context.Background(), testSite(), Options{})
	require.Equal(t, StatusDown, res.Status)
	// Recovery is bounded: one actuation, one re-render, no further retries.
	require.Equal(t, 1, actuator.calls)
	require.Equal(t, 2, renderer.calls)
}

func TestCheckSiteDryRunSkipsWake(t *testing.T) {
	renderer := &fakeRenderer{pages: []RenderedPage{{Text: "This app has gone to sleep"}}}
	actuator := &fakeActuator{}
	checker := newTestChecker(renderer, actuator, nil, nil, testConfig())

	res := checker.CheckSite(context.Background(), testSite(), Options{DryRun: true})
	require.Equal(t, StatusDown, res.Status)
	require.Zero(t, actuator.calls)
	require.Equal(t, 1, renderer.calls)
}

func TestCheckSiteWakeControlNotFoundIsDown(t *testing.T) {
	renderer := &fakeRenderer{pages: []RenderedPage{{Text: "This app has gone to sleep"}}}
	actuator := &fakeActuator{err: ErrControlNotFound}
	checker := newTestChecker(renderer, actuator, nil, nil, testConfig())

	res := checker.CheckSite(context.Background(), testSite(), Options{})
	require.Equal(t, StatusDown, res.Status)
	require.Equal(t, 1, actuator.calls)
	require.Equal(t, 1, renderer.calls)
}

func TestCheckSiteRenderErrorIsError(t *testing.T) {
	renderer := &fakeRenderer{errs: []error{errors.New("browser crashed\nstack trace here")}}
	checker := newTestChecker(renderer, &fakeActuator{}, nil, nil, testConfig())

	res := checker.CheckSite(context.Background(), testSite(), Options{})
	require.Equal(t, StatusError, res.Status)
	// Only the first line of the error is surfaced.
	require.Equal(t, "browser crashed", res.Detail)
}

func TestCheckSiteTimeoutDetail(t *testing.T) {
	renderer := &fakeRenderer{errs: []error{context.DeadlineExceeded}}
	checker := newTestChecker(renderer, &fakeActuator{}, nil, nil, testConfig())

	res := checker.CheckSite(context.Background(), testSite(), Options{})
	require.Equal(t, StatusError, res.Status)
	require.Contains(t, res.Detail, "timeout")
}

func TestCheckSitePanicIsRecovered(t *testing.T) {
	checker := newTestChecker(panicRenderer{}, &fakeActuator{}, nil, nil, testConfig())

	res := checker.CheckSite(context.Background(), testSite(), Options{})
	require.Equal(t, StatusError, res.Status)
	require.Contains(t, res.Detail, "panic")
}

type panicRenderer struct{}

func (panicRenderer) Render(context.Context, string, RenderOptions) (RenderedPage, error) {
	panic("renderer exploded")
}

func TestCheckSiteProbeFastPath(t *testing.T) {
	cfg := testConfig()
	cfg.ProbeFirst = true
	renderer := &fakeRenderer{pages: []RenderedPage{{Text: "unused"}}}
	prober := &fakeProber{body: "<html>static lookout post</html>"}
	site := testSite()
	site.IsStreamlit = false
	checker := newTestChecker(renderer, &fakeActuator{}, prober, nil, cfg)

	res := checker.CheckSite(context.Background(), site, Options{})
	require.Equal(t, StatusUp, res.Status)
	require.Equal(t, 1, prober.calls)
	require.Zero(t, renderer.calls, "probe hit must not start the browser")
}

func TestCheckSiteProbeSkippedForStreamlit(t *testing.T) {
	cfg := testConfig()
	cfg.ProbeFirst = true
	renderer := &fakeRenderer{pages: []RenderedPage{{Text: "the lookout post is live"}}}
	prober := &fakeProber{body: "irrelevant"}
	checker := newTestChecker(renderer, &fakeActuator{}, prober, nil, cfg)

	res := checker.CheckSite(context.Background(), testSite(), Options{})
	require.Equal(t, StatusUp, res.Status)
	require.Zero(t, prober.calls)
	require.Equal(t, 1, renderer.calls)
}

func TestCheckSiteProbeMissEscalates(t *testing.T) {
	cfg := testConfig()
	cfg.ProbeFirst = true
	renderer := &fakeRenderer{pages: []RenderedPage{{Text: "the lookout post is live"}}}
	prober := &fakeProber{body: "<html>placeholder shell</html>"}
	site := testSite()
	site.IsStreamlit = false
	checker := newTestChecker(renderer, &fakeActuator{}, prober, nil, cfg)

	res := checker.CheckSite(context.Background(), site, Options{})
	require.Equal(t, StatusUp, res.Status)
	require.Equal(t, 1, prober.calls)
	require.Equal(t, 1, renderer.calls)
}

func TestCheckSiteLogRawForwardsMarkup(t *testing.T) {
	renderer := &fakeRenderer{pages: []RenderedPage{
		{Text: "This app has gone to sleep", Markup: "<html>sleeping</html>"},
		{Text: "the lookout post is live", Markup: "<html>live</html>"},
	}}
	sink := &fakeRawSink{}
	site := testSite()
	site.LogRaw = true
	checker := newTestChecker(renderer, &fakeActuator{}, nil, sink, testConfig())

	res := checker.CheckSite(context.Background(), site, Options{})
	require.Equal(t, StatusRestarted, res.Status)
	require.Equal(t, []string{"lookout/render", "lookout/after_wakeup"}, sink.saved)
}

func TestCheckSiteStreamlitFollowsAppFrame(t *testing.T) {
	renderer := &fakeRenderer{pages: []RenderedPage{{Text: "the lookout post is live"}}}
	checker := newTestChecker(renderer, &fakeActuator{}, nil, nil, testConfig())

	checker.CheckSite(context.Background(), testSite(), Options{})
	require.True(t, renderer.optsLog[0].FollowAppFrame)

	plain := testSite()
	plain.IsStreamlit = false
	checker.CheckSite(context.Background(), plain, Options{})
	require.False(t, renderer.optsLog[1].FollowAppFrame)
}

func TestFirstLine(t *testing.T) {
	require.Equal(t, "", firstLine(nil))
	require.Equal(t, "one", firstLine(errors.New("one")))
	got := firstLine(errors.New("first\nsecond\nthird"))
	require.Equal(t, "first", got)
	require.False(t, strings.Contains(got, "\n"))
}

func TestCheckSiteSinkFailureDoesNotChangeStatus(t *testing.T) {
	renderer := &fakeRenderer{pages: []RenderedPage{
		{Text: "This app has gone to sleep", Markup: "<html></html>"},
		{Text: "the lookout post is live", Markup: "<html></html>"},
	}}
	actuator := &fakeActuator{}
	sink := &fakeRawSink{err: errors.New("disk full")}

	site := testSite()
	site.LogRaw = true
	checker := newTestChecker(renderer, actuator, nil, sink, testConfig())

	res := checker.CheckSite(context.Background(), site, Options{})
	require.Equal(t, StatusRestarted, res.Status)
	require.NotContains(t, res.Detail, "disk full")
	require.Empty(t, sink.saved)
	require.Equal(t, 2, renderer.calls)
}

func TestCheckSiteTimeoutDuringWakeIsError(t *testing.T) {
	renderer := &fakeRenderer{pages: []RenderedPage{
		{Text: "This app has gone to sleep", Markup: "<html></html>"},
	}}
	actuator := &fakeActuator{blockUntilCtx: true}

	cfg := testConfig()
	cfg.SiteTimeout = 50 * time.Millisecond
	checker := newTestChecker(renderer, actuator, nil, nil, cfg)

	res := checker.CheckSite(context.Background(), testSite(), Options{})
	require.Equal(t, StatusError, res.Status)
	require.Contains(t, res.Detail, "timeout")
	require.Equal(t, 1, actuator.calls)
	require.Equal(t, 1, renderer.calls)
}
