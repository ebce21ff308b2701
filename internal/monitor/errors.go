package monitor

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors forming the monitor's error taxonomy. Render failures are
// surfaced as status=error; recovery failures as status=down.
var (
	// ErrRendererDisabled indicates rendering has been disabled via
	// configuration.
	ErrRendererDisabled = errors.New("renderer disabled")
	// ErrControlNotFound means the wake-up control was not located within
	// the lookup timeout.
	ErrControlNotFound = errors.New("wake-up control not found")
	// ErrProbeMiss is returned by the fast path when the plain fetch
	// could not settle the check and the browser must be used.
	ErrProbeMiss = errors.New("probe inconclusive")
)

// firstLine truncates an error message to its first line for report details.
func firstLine(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

// timeoutDetail normalizes deadline errors so operators reading the report
// can grep for "timeout".
func timeoutDetail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout: " + firstLine(err)
	}
	return firstLine(err)
}
