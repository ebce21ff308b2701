package monitor

import (
	"testing"

	"sitewake/internal/sites"
)

func TestClassifierClassify(t *testing.T) {
	c := NewClassifier(
		[]string{"This app has gone to sleep", "Yes, get this app back up"},
		`button[data-testid="wakeup-button-owner"]`,
	)
	site := sites.Site{
		Name:        "lookout",
		URL:         "https://example.com",
		MustContain: "lookout post",
		IsStreamlit: true,
	}

	tests := []struct {
		name string
		site sites.Site
		page RenderedPage
		want PageState
	}{
		{
			name: "content present",
			site: site,
			page: RenderedPage{Text: "welcome to the lookout post"},
			want: StateUp,
		},
		{
			name: "content present in markup only",
			site: site,
			page: RenderedPage{Markup: `<div data-value="lookout post"></div>`},
			want: StateUp,
		},
		{
			name: "content wins over dormant marker",
			site: site,
			page: RenderedPage{Text: "lookout post. This app has gone to sleep."},
			want: StateUp,
		},
		{
			name: "dormant marker in text",
			site: site,
			page: RenderedPage{Text: "Zzzz. This app has gone to sleep."},
			want: StateDormant,
		},
		{
			name: "dormant marker is case-insensitive",
			site: site,
			page: RenderedPage{Text: "THIS APP HAS GONE TO SLEEP"},
			want: StateDormant,
		},
		{
			name: "wake control in markup",
			site: site,
			page: RenderedPage{Markup: `<html><body><button data-testid="wakeup-button-owner">wake</button></body></html>`},
			want: StateDormant,
		},
		{
			name: "must_contain match is case-sensitive",
			site: site,
			page: RenderedPage{Text: "LOOKOUT POST"},
			want: StateMissing,
		},
		{
			name: "dormant marker on non-streamlit site",
			site: sites.Site{Name: "plain", MustContain: "lookout post"},
			page: RenderedPage{Text: "This app has gone to sleep"},
			want: StateMissing,
		},
		{
			name: "nothing recognizable",
			site: site,
			page: RenderedPage{Text: "404 not found", Markup: "<html></html>"},
			want: StateMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.site, tt.page)
			if got != tt.want {
				t.Fatalf("expected %v got %v", tt.want, got)
			}
		})
	}
}

func TestClassifierWakeSelectorOverride(t *testing.T) {
	c := NewClassifier([]string{"asleep"}, "button.default")

	plain := sites.Site{Name: "a", MustContain: "x", IsStreamlit: true}
	if got := c.WakeSelector(plain); got != "button.default" {
		t.Fatalf("expected default selector, got %q", got)
	}

	override := sites.Site{Name: "b", MustContain: "x", IsStreamlit: true, Selector: "button.custom"}
	if got := c.WakeSelector(override); got != "button.custom" {
		t.Fatalf("expected override selector, got %q", got)
	}

	page := RenderedPage{Markup: `<html><button class="custom">wake</button></html>`}
	if got := c.Classify(override, page); got != StateDormant {
		t.Fatalf("expected dormant via overridden selector, got %v", got)
	}
}
