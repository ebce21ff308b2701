package monitor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sitewake/internal/sites"
)

// Classifier decides whether a rendered page is up, dormant, or missing its
// expected content. It is a pure policy object: the dormant marker phrases
// and wake-control selector live here so they can change without touching
// orchestration.
type Classifier struct {
	markers      []string
	wakeSelector string
}

// NewClassifier builds a classifier from the configured dormant markers and
// default wake-control selector.
func NewClassifier(markers []string, wakeSelector string) *Classifier {
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		lowered = append(lowered, strings.ToLower(m))
	}
	return &Classifier{markers: lowered, wakeSelector: wakeSelector}
}

// Classify maps a rendered page to a PageState.
//
// The expected content is matched case-sensitively, the way operators write
// must_contain values against real page text. Content presence always wins:
// an app can legitimately contain stale dormant-looking text alongside its
// own content, and that must not be reported as asleep.
func (c *Classifier) Classify(site sites.Site, page RenderedPage) PageState {
	if strings.Contains(page.Text, site.MustContain) ||
		strings.Contains(page.Markup, site.MustContain) {
		return StateUp
	}
	if site.IsStreamlit && c.dormant(site, page) {
		return StateDormant
	}
	return StateMissing
}

// WakeSelector resolves the wake-control selector for a site, honoring the
// per-site override.
func (c *Classifier) WakeSelector(site sites.Site) string {
	if site.Selector != "" {
		return site.Selector
	}
	return c.wakeSelector
}

// dormant reports whether the page shows the hosting platform's sleep
// indicator: a known phrase in the visible text, or the wake-up control
// present in the markup.
func (c *Classifier) dormant(site sites.Site, page RenderedPage) bool {
	lowerText := strings.ToLower(page.Text)
	for _, m := range c.markers {
		if strings.Contains(lowerText, m) {
			return true
		}
	}
	return c.hasWakeControl(site, page.Markup)
}

func (c *Classifier) hasWakeControl(site sites.Site, markup string) bool {
	if markup == "" {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return false
	}
	return doc.Find(c.WakeSelector(site)).Length() > 0
}
