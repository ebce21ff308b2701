package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sitewake/internal/sites"
)

// SiteChecker is the per-site workflow the runner fans out. Satisfied by
// *Checker; tests substitute fakes.
type SiteChecker interface {
	CheckSite(ctx context.Context, site sites.Site, opts Options) CheckResult
}

// Runner fans one check per site out across a bounded pool and aggregates
// the results into a Report.
type Runner struct {
	checker     SiteChecker
	concurrency int
	clock       Clock
	logger      *zap.Logger
}

// NewRunner constructs a Runner. concurrency bounds the number of checks in
// flight at once; it protects the shared browser's resource limits.
func NewRunner(checker SiteChecker, concurrency int, clock Clock, logger *zap.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{
		checker:     checker,
		concurrency: concurrency,
		clock:       clock,
		logger:      logger,
	}
}

// Run checks every configured site (or the one named by opts.Site) and
// returns the aggregate report. Exactly one result is produced per site; a
// failing site never aborts the others. An unknown site filter is the only
// error path, and it fires before any browser work.
func (r *Runner) Run(ctx context.Context, list []sites.Site, opts Options) (Report, error) {
	selected, err := sites.Filter(list, opts.Site)
	if err != nil {
		return Report{}, fmt.Errorf("select sites: %w", err)
	}

	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: r.clock.Now(),
	}
	r.logger.Info("Starting fleet run",
		zap.String("run_id", report.RunID),
		zap.Int("sites", len(selected)),
		zap.Bool("dry_run", opts.DryRun),
	)

	results := make(chan CheckResult, len(selected))
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

	for _, site := range selected {
		wg.Add(1)
		go func(site sites.Site) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- r.checker.CheckSite(ctx, site, opts)
		}(site)
	}
	wg.Wait()
	close(results)

	report.Results = make([]CheckResult, 0, len(selected))
	for res := range results {
		report.Results = append(report.Results, res)
	}
	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].SiteName < report.Results[j].SiteName
	})
	report.Duration = r.clock.Now().Sub(report.StartedAt)
	report.Count()

	r.logger.Info("Fleet run finished",
		zap.String("run_id", report.RunID),
		zap.Duration("duration", report.Duration),
		zap.Int("up", report.Counts[StatusUp]),
		zap.Int("restarted", report.Counts[StatusRestarted]),
		zap.Int("down", report.Counts[StatusDown]),
		zap.Int("errors", report.Counts[StatusError]),
	)
	return report, nil
}
