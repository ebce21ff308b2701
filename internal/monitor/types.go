// Package monitor implements the per-site check-and-recover workflow and the
// concurrent fleet runner around it.
package monitor

import "time"

// Status is the final outcome of one site check.
type Status string

// Check outcomes written to the report.
const (
	// StatusUp means the expected content was found.
	StatusUp Status = "up"
	// StatusRestarted means the app was dormant, a wake-up was actuated,
	// and the re-check found the expected content.
	StatusRestarted Status = "restarted"
	// StatusDown means the expected content was absent and recovery was
	// not applicable, not attempted, or did not bring the app back.
	StatusDown Status = "down"
	// StatusError means the check itself failed (navigation timeout,
	// browser crash, or an unanticipated fault).
	StatusError Status = "error"
)

// PageState is the classifier's verdict on one rendered page.
type PageState int

// Classifier verdicts.
const (
	// StateUp: the expected marker content is present.
	StateUp PageState = iota
	// StateDormant: no marker content, but the hosting platform's
	// sleep indicator is present.
	StateDormant
	// StateMissing: neither marker content nor a recognized dormant
	// pattern. Covers genuine outages, wrong URLs, and unrelated hosts.
	StateMissing
)

func (s PageState) String() string {
	switch s {
	case StateUp:
		return "up"
	case StateDormant:
		return "dormant"
	default:
		return "missing"
	}
}

// RenderedPage is what the renderer hands back for one page load.
type RenderedPage struct {
	// Text is the visible text of the settled document.
	Text string
	// Markup is the raw outer HTML of the settled document.
	Markup string
	// FinalURL is the document URL after redirects and frame resolution.
	FinalURL string
	// StatusCode is the HTTP status of the main document, when observed.
	StatusCode int
}

// CheckResult is produced once per site per run.
type CheckResult struct {
	SiteName  string    `json:"site_name"`
	Status    Status    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Report aggregates one full pass over the fleet.
type Report struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Results   []CheckResult  `json:"results"`
	Counts    map[Status]int `json:"counts"`
}

// Count re-derives the per-status totals from Results.
func (r *Report) Count() {
	r.Counts = make(map[Status]int, 4)
	for _, res := range r.Results {
		r.Counts[res.Status]++
	}
}

// Options are the caller-supplied knobs for one run.
type Options struct {
	// DryRun suppresses recovery actuation. Classification and logging
	// still proceed.
	DryRun bool
	// Site restricts the run to a single named site. Empty checks all.
	Site string
}
