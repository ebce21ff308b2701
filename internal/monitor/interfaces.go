package monitor

import (
	"context"
	"time"
)

// RenderOptions tune a single page render.
type RenderOptions struct {
	// FollowAppFrame resolves the hosting platform's app iframe and
	// renders the inner document, so text extraction sees app content
	// rather than the wrapper shell.
	FollowAppFrame bool
}

// Renderer opens a page in an isolated browser context, waits for it to
// settle, and extracts visible text and raw markup.
type Renderer interface {
	Render(ctx context.Context, url string, opts RenderOptions) (RenderedPage, error)
}

// Actuator interacts with the hosting platform's wake-up control to revive
// a dormant app.
type Actuator interface {
	Wake(ctx context.Context, url, selector string) error
}

// Prober is the optional fast path: a plain HTTP fetch that can satisfy a
// check without spinning up the browser.
type Prober interface {
	Probe(ctx context.Context, url string) (string, error)
}

// RawSink persists raw rendered markup for diagnostics when a site has
// log_raw set. The renderer only returns data; persistence is the sink's
// call site's decision.
type RawSink interface {
	SaveRaw(ctx context.Context, siteName, suffix, markup string) (string, error)
}

// ReportSink receives the aggregate report after a run completes.
type ReportSink interface {
	WriteReport(ctx context.Context, report Report) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
