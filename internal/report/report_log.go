// Package report persists check outcomes: a line-oriented append-only report
// log and, optionally, raw markup dumps for diagnostics.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"sitewake/internal/monitor"
)

// timestampLayout matches the report format the surrounding tooling already
// parses: "2006-01-02 15:04:05,<name>,<status>".
const timestampLayout = "2006-01-02 15:04:05"

// LogSink appends one CSV-style line per check result to a flat file. The
// file is a status history consumed by humans and one-liner scripts; no
// rotation or aggregation happens here.
type LogSink struct {
	path   string
	logger *zap.Logger
}

// NewLogSink returns a sink appending to path, creating the parent directory
// if needed.
func NewLogSink(path string, logger *zap.Logger) (*LogSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create report dir for %s: %w", path, err)
	}
	return &LogSink{path: path, logger: logger}, nil
}

// WriteReport appends one line per result.
func (s *LogSink) WriteReport(ctx context.Context, rep monitor.Report) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	var b strings.Builder
	for _, res := range rep.Results {
		ts := res.CheckedAt.Format(timestampLayout)
		fmt.Fprintf(&b, "%s,%s,%s\n", ts, res.SiteName, res.Status)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open report log %s: %w", s.path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("append report log %s: %w", s.path, err)
	}
	s.logger.Debug("Report appended", zap.String("path", s.path), zap.Int("results", len(rep.Results)))
	return nil
}
