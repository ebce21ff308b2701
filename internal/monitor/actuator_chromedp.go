package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromedpActuator revives dormant apps by clicking the hosting platform's
// wake-up control. It shares the renderer's browser process but opens its
// own isolated tab per attempt.
type ChromedpActuator struct {
	renderer      *ChromedpRenderer
	logger        *zap.Logger
	lookupTimeout time.Duration
}

// NewChromedpActuator builds an actuator on top of an existing renderer's
// browser so a run never pays for a second Chrome process.
func NewChromedpActuator(r *ChromedpRenderer, cfg Config, logger *zap.Logger) (*ChromedpActuator, error) {
	if r == nil {
		return nil, ErrRendererDisabled
	}
	return &ChromedpActuator{
		renderer:      r,
		logger:        logger,
		lookupTimeout: cfg.WakeLookupTimeout,
	}, nil
}

// Wake navigates to the page, waits briefly for the wake-up control, and
// clicks it. A missing control within the lookup timeout is reported as
// ErrControlNotFound so the orchestrator can treat it as a soft failure.
func (a *ChromedpActuator) Wake(ctx context.Context, rawURL, selector string) error {
	tabCtx, closeTab, err := a.renderer.newIsolatedTab()
	if err != nil {
		return fmt.Errorf("open wake tab: %w", err)
	}
	defer closeTab()

	stopForward := forwardCancel(ctx, closeTab)
	defer stopForward()

	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("wake navigate aborted: %w", cerr)
		}
		return fmt.Errorf("wake navigate %s: %w", rawURL, err)
	}

	lookupCtx, cancelLookup := context.WithTimeout(tabCtx, a.lookupTimeout)
	defer cancelLookup()

	if err := chromedp.Run(lookupCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		// The caller's per-site deadline also cancels tabCtx; that is a
		// timeout of the whole check, not a missing control.
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("wake lookup aborted: %w", cerr)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrControlNotFound, selector)
		}
		return fmt.Errorf("locate wake-up control %s: %w", selector, err)
	}

	a.logger.Warn("Wake-up control found, clicking", zap.String("url", rawURL), zap.String("selector", selector))
	if err := chromedp.Run(tabCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click wake-up control %s: %w", selector, err)
	}
	TotalWakeAttempts.Inc()
	return nil
}
