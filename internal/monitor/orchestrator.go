package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sitewake/internal/sites"
)

// Checker runs the renderer → classifier → actuator pipeline for one site.
//
// CheckSite never lets a failure escape: every error (and panic) from the
// renderer or actuator is mapped to a result so the fleet runner can run many
// sites without one poisoning the batch.
type Checker struct {
	renderer   Renderer
	actuator   Actuator
	prober     Prober
	classifier *Classifier
	rawSink    RawSink
	clock      Clock
	cfg        Config
	logger     *zap.Logger
}

// NewChecker constructs a Checker. actuator, prober, and rawSink may be nil;
// the corresponding steps are skipped.
func NewChecker(
	renderer Renderer,
	actuator Actuator,
	prober Prober,
	classifier *Classifier,
	rawSink RawSink,
	clock Clock,
	cfg Config,
	logger *zap.Logger,
) *Checker {
	return &Checker{
		renderer:   renderer,
		actuator:   actuator,
		prober:     prober,
		classifier: classifier,
		rawSink:    rawSink,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// CheckSite performs one full check of a single site and returns the result.
// The whole workflow, including any recovery and re-render, is bounded by the
// configured per-site timeout.
func (c *Checker) CheckSite(ctx context.Context, site sites.Site, opts Options) (result CheckResult) {
	log := c.logger.With(zap.String("site", site.Name), zap.String("url", site.URL))

	defer func() {
		if rec := recover(); rec != nil {
			result = c.finalize(site, StatusError, fmt.Sprintf("panic: %v", rec), log)
		}
	}()

	siteCtx, cancel := context.WithTimeout(ctx, c.cfg.SiteTimeout)
	defer cancel()

	log.Info("Checking site")

	if res, done := c.tryProbe(siteCtx, site, log); done {
		return res
	}

	page, err := c.render(siteCtx, site, "render", log)
	if err != nil {
		return c.finalize(site, StatusError, timeoutDetail(err), log)
	}

	switch state := c.classifier.Classify(site, page); state {
	case StateUp:
		return c.finalize(site, StatusUp, fmt.Sprintf("found %q", site.MustContain), log)
	case StateMissing:
		return c.finalize(site, StatusDown, fmt.Sprintf("not found: %q", site.MustContain), log)
	default:
		return c.recover(siteCtx, site, opts, log)
	}
}

// tryProbe is the plain-HTTP fast path. A hit settles the check as up; any
// miss or failure silently escalates to the browser.
func (c *Checker) tryProbe(ctx context.Context, site sites.Site, log *zap.Logger) (CheckResult, bool) {
	if !c.cfg.ProbeFirst || c.prober == nil || site.IsStreamlit {
		return CheckResult{}, false
	}
	body, err := c.prober.Probe(ctx, site.URL)
	if err != nil {
		log.Debug("Probe failed, escalating to browser", zap.Error(err))
		return CheckResult{}, false
	}
	if !strings.Contains(body, site.MustContain) {
		log.Debug("Probe missed marker, escalating to browser")
		return CheckResult{}, false
	}
	TotalProbeHits.Inc()
	return c.finalize(site, StatusUp, fmt.Sprintf("found %q (probe)", site.MustContain), log), true
}

// recover handles a Dormant classification: at most one wake-up actuation
// and one re-render per site per run.
func (c *Checker) recover(ctx context.Context, site sites.Site, opts Options, log *zap.Logger) CheckResult {
	if opts.DryRun {
		log.Info("Dormant app detected; dry run enabled, skipping wake-up")
		return c.finalize(site, StatusDown, "dormant; dry run, wake-up skipped", log)
	}
	if !site.IsStreamlit || c.actuator == nil {
		return c.finalize(site, StatusDown, "dormant; no recovery configured", log)
	}

	selector := c.classifier.WakeSelector(site)
	if err := c.actuator.Wake(ctx, site.URL, selector); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return c.finalize(site, StatusError, timeoutDetail(cerr), log)
		}
		if errors.Is(err, ErrControlNotFound) {
			log.Warn("Wake-up control not found", zap.String("selector", selector))
		} else {
			log.Warn("Wake-up actuation failed", zap.Error(err))
		}
		return c.finalize(site, StatusDown, firstLine(err), log)
	}

	if err := c.settle(ctx); err != nil {
		return c.finalize(site, StatusError, timeoutDetail(err), log)
	}

	page, err := c.render(ctx, site, "after_wakeup", log)
	if err != nil {
		log.Warn("Post-wake-up render failed", zap.Error(err))
		return c.finalize(site, StatusDown, "wake-up attempted; re-check failed: "+timeoutDetail(err), log)
	}
	if c.classifier.Classify(site, page) == StateUp {
		return c.finalize(site, StatusRestarted, fmt.Sprintf("wake-up successful, found %q", site.MustContain), log)
	}
	return c.finalize(site, StatusDown, fmt.Sprintf("wake-up attempted but content still missing: %q", site.MustContain), log)
}

// render performs one page render and, when the site asks for it, forwards
// the raw markup to the diagnostic sink. Sink failures are logged and never
// change the check outcome.
func (c *Checker) render(ctx context.Context, site sites.Site, suffix string, log *zap.Logger) (RenderedPage, error) {
	page, err := c.renderer.Render(ctx, site.URL, RenderOptions{FollowAppFrame: site.IsStreamlit})
	if err != nil {
		return RenderedPage{}, err
	}
	if site.LogRaw && c.rawSink != nil {
		if path, sinkErr := c.rawSink.SaveRaw(ctx, site.Name, suffix, page.Markup); sinkErr != nil {
			log.Warn("Failed to persist raw markup", zap.Error(sinkErr))
		} else {
			log.Debug("Raw markup persisted", zap.String("path", path))
		}
	}
	return page, nil
}

// settle waits out the post-wake delay, bounded by the site context.
func (c *Checker) settle(ctx context.Context) error {
	if c.cfg.WakeSettleDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(c.cfg.WakeSettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("wake settle: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (c *Checker) finalize(site sites.Site, status Status, detail string, log *zap.Logger) CheckResult {
	TotalChecks.WithLabelValues(string(status)).Inc()
	switch status {
	case StatusUp, StatusRestarted:
		log.Info("Check finished", zap.String("status", string(status)), zap.String("detail", detail))
	case StatusDown:
		log.Warn("Check finished", zap.String("status", string(status)), zap.String("detail", detail))
	default:
		log.Error("Check failed", zap.String("detail", detail))
	}
	return CheckResult{
		SiteName:  site.Name,
		Status:    status,
		Detail:    detail,
		CheckedAt: c.clock.Now(),
	}
}
