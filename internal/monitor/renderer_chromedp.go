package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// appFrameSrcJS pulls the src of the hosting platform's app iframe, or an
// empty string when the page has no such frame. Streamlit's cloud host wraps
// the app document in an iframe, so the wrapper's text never contains app
// content.
const appFrameSrcJS = `(() => {
	const f = document.querySelector('iframe[title="streamlitApp"]');
	return f && f.src ? f.src : '';
})()`

// ChromedpRenderer renders pages using headless Chrome via chromedp.
// One browser process is shared per run; every render gets a tab inside its
// own incognito browser context, disposed afterwards, so no cookies or
// storage leak between sites.
type ChromedpRenderer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	sem             chan struct{}
	timeout         time.Duration
	settle          time.Duration
	hostQPS         float64
	hostLimiters    sync.Map
	userAgent       string
}

// NewChromedpRenderer creates a renderer using the provided configuration.
func NewChromedpRenderer(cfg Config, logger *zap.Logger) (*ChromedpRenderer, error) {
	if cfg.Concurrency <= 0 {
		return nil, ErrRendererDisabled
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &ChromedpRenderer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		sem:             make(chan struct{}, cfg.Concurrency),
		timeout:         cfg.RenderTimeout,
		settle:          cfg.SettleDelay,
		hostQPS:         cfg.RenderHostQPS,
		userAgent:       cfg.UserAgent,
	}, nil
}

// Close tears down the chromedp allocator and browser contexts.
func (r *ChromedpRenderer) Close(_ context.Context) error {
	if r == nil {
		return nil
	}
	r.browserCancel()
	r.allocatorCancel()
	return nil
}

// Render loads the page in a fresh tab, waits for it to settle, and extracts
// visible text and raw markup.
func (r *ChromedpRenderer) Render(ctx context.Context, rawURL string, opts RenderOptions) (RenderedPage, error) {
	if r == nil {
		return RenderedPage{}, ErrRendererDisabled
	}

	release, err := r.acquireSlot(ctx)
	if err != nil {
		return RenderedPage{}, err
	}
	defer release()

	if waitErr := r.waitHostBudget(ctx, rawURL); waitErr != nil {
		return RenderedPage{}, fmt.Errorf("render rate limit: %w", waitErr)
	}

	tabCtx, closeTab, err := r.newIsolatedTab()
	if err != nil {
		TotalRenderErrors.Inc()
		return RenderedPage{}, err
	}
	defer closeTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	r.recordResponse(tabCtx, meta)

	page, err := r.runTab(taskCtx, rawURL, opts)
	if err != nil {
		TotalRenderErrors.Inc()
		return RenderedPage{}, fmt.Errorf("render %s: %w", rawURL, err)
	}
	page.StatusCode = meta.statusCode
	return page, nil
}

func (r *ChromedpRenderer) runTab(ctx context.Context, rawURL string, opts RenderOptions) (RenderedPage, error) {
	if err := chromedp.Run(ctx, r.settleTasks(rawURL)); err != nil {
		return RenderedPage{}, err
	}

	if opts.FollowAppFrame {
		var frameSrc string
		if err := chromedp.Run(ctx, chromedp.Evaluate(appFrameSrcJS, &frameSrc)); err != nil {
			return RenderedPage{}, fmt.Errorf("resolve app frame: %w", err)
		}
		if frameSrc != "" {
			r.logger.Debug("Following app frame", zap.String("src", frameSrc))
			if err := chromedp.Run(ctx, r.settleTasks(frameSrc)); err != nil {
				return RenderedPage{}, fmt.Errorf("render app frame: %w", err)
			}
		}
	}

	var (
		text     string
		markup   string
		finalURL string
	)
	extract := chromedp.Tasks{
		chromedp.Text("body", &text, chromedp.ByQuery),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	}
	if err := chromedp.Run(ctx, extract); err != nil {
		return RenderedPage{}, err
	}
	return RenderedPage{Text: text, Markup: markup, FinalURL: finalURL}, nil
}

type responseMeta struct {
	once       sync.Once
	statusCode int
	headers    http.Header
	url        string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: make(http.Header)}
}

// recordResponse captures the main document's response so render failures
// can report the HTTP status the host actually returned.
func (r *ChromedpRenderer) recordResponse(tabCtx context.Context, meta *responseMeta) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		meta.once.Do(func() {
			meta.statusCode = int(resp.Response.Status)
			meta.url = resp.Response.URL
			for k, v := range resp.Response.Headers {
				meta.headers.Add(k, fmt.Sprint(v))
			}
		})
	})
}

// settleTasks navigates and waits for the document to become interactive.
// WaitReady alone is not enough for single-page apps that populate content
// after load, so a fixed settle delay follows it.
func (r *ChromedpRenderer) settleTasks(rawURL string) chromedp.Tasks {
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(r.userAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if r.settle > 0 {
		tasks = append(tasks, chromedp.Sleep(r.settle))
	}
	return tasks
}

// newIsolatedTab opens a tab inside a dedicated incognito browser context,
// so nothing one site stores is ever presented to another. The returned
// cleanup closes the tab and disposes the context; it is safe to call more
// than once.
func (r *ChromedpRenderer) newIsolatedTab() (context.Context, func(), error) {
	var (
		browserContextID cdp.BrowserContextID
		targetID         target.ID
	)
	if err := chromedp.Run(r.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		id, err := target.CreateBrowserContext().Do(ctx)
		if err != nil {
			return err
		}
		browserContextID = id
		tid, err := target.CreateTarget("about:blank").WithBrowserContextID(id).Do(ctx)
		if err != nil {
			return err
		}
		targetID = tid
		return nil
	})); err != nil {
		return nil, nil, fmt.Errorf("create isolated browser context: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx, chromedp.WithTargetID(targetID))
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			cancelTab()
			_ = chromedp.Run(r.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
				return target.DisposeBrowserContext(browserContextID).Do(ctx)
			}))
		})
	}
	return tabCtx, cleanup, nil
}

func (r *ChromedpRenderer) acquireSlot(ctx context.Context) (func(), error) {
	if r.sem == nil {
		return func() {}, nil
	}
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (r *ChromedpRenderer) waitHostBudget(ctx context.Context, rawURL string) error {
	if r.hostQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.hostLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.hostQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

// forwardCancel propagates cancellation from the caller's context into a
// chromedp task context that has a different parent.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
