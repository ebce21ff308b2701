package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sitewake/internal/sites"
)

type stubChecker struct {
	mu         sync.Mutex
	calls      int
	inFlight   int
	maxFlight  int
	delay      time.Duration
	statusFor  map[string]Status
	lastOpts   Options
	checkedSet map[string]int
}

func newStubChecker(statusFor map[string]Status) *stubChecker {
	return &stubChecker{statusFor: statusFor, checkedSet: make(map[string]int)}
}

func (s *stubChecker) CheckSite(_ context.Context, site sites.Site, opts Options) CheckResult {
	s.mu.Lock()
	s.calls++
	s.inFlight++
	if s.inFlight > s.maxFlight {
		s.maxFlight = s.inFlight
	}
	s.checkedSet[site.Name]++
	s.lastOpts = opts
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	status := StatusUp
	if st, ok := s.statusFor[site.Name]; ok {
		status = st
	}
	return CheckResult{SiteName: site.Name, Status: status, CheckedAt: time.Unix(0, 0)}
}

func fleetOf(names ...string) []sites.Site {
	out := make([]sites.Site, 0, len(names))
	for _, n := range names {
		out = append(out, sites.Site{
			Name:        n,
			URL:         "https://" + n + ".example.com",
			MustContain: "marker",
		})
	}
	return out
}

func TestRunnerOneResultPerSite(t *testing.T) {
	t.Parallel()

	checker := newStubChecker(map[string]Status{"beta": StatusError})
	runner := NewRunner(checker, 4, &fakeClock{now: time.Unix(200, 0)}, zap.NewNop())

	fleet := fleetOf("alpha", "beta", "gamma", "delta")
	rep, err := runner.Run(context.Background(), fleet, Options{})
	require.NoError(t, err)
	require.Len(t, rep.Results, len(fleet))

	byName := make(map[string]CheckResult, len(rep.Results))
	for _, res := range rep.Results {
		byName[res.SiteName] = res
	}
	// One site failing never contaminates the others.
	require.Equal(t, StatusError, byName["beta"].Status)
	for _, n := range []string{"alpha", "gamma", "delta"} {
		require.Equal(t, StatusUp, byName[n].Status, n)
		require.Equal(t, 1, checker.checkedSet[n], n)
	}
	require.Equal(t, 3, rep.Counts[StatusUp])
	require.Equal(t, 1, rep.Counts[StatusError])
	require.NotEmpty(t, rep.RunID)
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	t.Parallel()

	checker := newStubChecker(nil)
	checker.delay = 30 * time.Millisecond
	runner := NewRunner(checker, 2, &fakeClock{now: time.Unix(200, 0)}, zap.NewNop())

	rep, err := runner.Run(context.Background(), fleetOf("a", "b", "c", "d", "e", "f"), Options{})
	require.NoError(t, err)
	require.Len(t, rep.Results, 6)
	require.LessOrEqual(t, checker.maxFlight, 2)
}

func TestRunnerSiteFilter(t *testing.T) {
	t.Parallel()

	checker := newStubChecker(nil)
	runner := NewRunner(checker, 2, &fakeClock{now: time.Unix(200, 0)}, zap.NewNop())

	rep, err := runner.Run(context.Background(), fleetOf("alpha", "beta"), Options{Site: "beta"})
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	require.Equal(t, "beta", rep.Results[0].SiteName)
	require.Equal(t, 1, checker.calls)
}

func TestRunnerUnknownSiteFilter(t *testing.T) {
	t.Parallel()

	checker := newStubChecker(nil)
	runner := NewRunner(checker, 2, &fakeClock{now: time.Unix(200, 0)}, zap.NewNop())

	_, err := runner.Run(context.Background(), fleetOf("alpha", "beta"), Options{Site: "nope"})
	require.Error(t, err)
	require.True(t, errors.Is(err, sites.ErrSiteNotFound))
	// A configuration-level failure fires before any check work starts.
	require.Zero(t, checker.calls)
}

func TestRunnerForwardsDryRun(t *testing.T) {
	t.Parallel()

	checker := newStubChecker(nil)
	runner := NewRunner(checker, 1, &fakeClock{now: time.Unix(200, 0)}, zap.NewNop())

	_, err := runner.Run(context.Background(), fleetOf("alpha"), Options{DryRun: true})
	require.NoError(t, err)
	require.True(t, checker.lastOpts.DryRun)
}

func TestReportCount(t *testing.T) {
	t.Parallel()

	rep := Report{Results: []CheckResult{
		{Status: StatusUp}, {Status: StatusUp}, {Status: StatusDown}, {Status: StatusRestarted},
	}}
	rep.Count()
	require.Equal(t, 2, rep.Counts[StatusUp])
	require.Equal(t, 1, rep.Counts[StatusDown])
	require.Equal(t, 1, rep.Counts[StatusRestarted])
	require.Zero(t, rep.Counts[StatusError])
}
