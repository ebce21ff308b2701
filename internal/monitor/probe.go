package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// CollyProber is the plain-HTTP fast path. Static sites whose expected
// content appears in the raw HTML never need the browser; the runner only
// escalates to headless rendering when the probe comes back without the
// marker. Streamlit sites skip the probe entirely, since their content is
// always rendered client side.
type CollyProber struct {
	userAgent string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewCollyProber constructs the fast-path prober.
func NewCollyProber(cfg Config, logger *zap.Logger) *CollyProber {
	return &CollyProber{
		userAgent: cfg.UserAgent,
		timeout:   cfg.RenderTimeout,
		logger:    logger,
	}
}

// Probe fetches the URL without JavaScript and returns the raw HTML.
func (p *CollyProber) Probe(ctx context.Context, rawURL string) (string, error) {
	c := colly.NewCollector(colly.UserAgent(p.userAgent))
	c.SetRequestTimeout(p.timeout)

	var (
		body     []byte
		fetchErr error
	)
	c.OnResponse(func(resp *colly.Response) {
		body = append([]byte(nil), resp.Body...)
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("probe canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("probe %s: %w", rawURL, err)
		}
	}
	if fetchErr != nil {
		return "", fmt.Errorf("probe %s: %w", rawURL, fetchErr)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("probe %s: %w", rawURL, ErrProbeMiss)
	}
	return string(body), nil
}
