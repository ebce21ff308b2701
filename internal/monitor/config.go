package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every configuration knob that influences a monitoring run.
// All values originate from Viper so the monitor can be configured via files,
// env vars, or CLI flags.
type Config struct {
	SitesPath         string
	Concurrency       int
	SiteTimeout       time.Duration
	RenderTimeout     time.Duration
	SettleDelay       time.Duration
	WakeLookupTimeout time.Duration
	WakeSettleDelay   time.Duration
	RenderHostQPS     float64
	ProbeFirst        bool
	UserAgent         string
	WakeSelector      string
	DormantMarkers    []string
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		SitesPath:         v.GetString("monitor.sites_path"),
		Concurrency:       v.GetInt("monitor.concurrency"),
		SiteTimeout:       v.GetDuration("monitor.site_timeout"),
		RenderTimeout:     v.GetDuration("monitor.render_timeout"),
		SettleDelay:       v.GetDuration("monitor.settle_delay"),
		WakeLookupTimeout: v.GetDuration("monitor.wake_lookup_timeout"),
		WakeSettleDelay:   v.GetDuration("monitor.wake_settle_delay"),
		RenderHostQPS:     v.GetFloat64("monitor.render_host_qps"),
		ProbeFirst:        v.GetBool("monitor.probe_first"),
		UserAgent:         v.GetString("monitor.user_agent"),
		WakeSelector:      v.GetString("monitor.wake_selector"),
		DormantMarkers:    normalizeMarkers(v.GetStringSlice("monitor.dormant_markers")),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.SitesPath == "" {
		return fmt.Errorf("monitor.sites_path must be set")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("monitor.concurrency must be > 0")
	}
	if c.SiteTimeout <= 0 {
		return fmt.Errorf("monitor.site_timeout must be > 0")
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("monitor.render_timeout must be > 0")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("monitor.settle_delay must be >= 0")
	}
	if c.WakeLookupTimeout <= 0 {
		return fmt.Errorf("monitor.wake_lookup_timeout must be > 0")
	}
	if c.WakeSettleDelay < 0 {
		return fmt.Errorf("monitor.wake_settle_delay must be >= 0")
	}
	if c.RenderHostQPS < 0 {
		return fmt.Errorf("monitor.render_host_qps must be >= 0")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("monitor.user_agent must be set")
	}
	if c.WakeSelector == "" {
		return fmt.Errorf("monitor.wake_selector must be set")
	}
	if len(c.DormantMarkers) == 0 {
		return fmt.Errorf("monitor.dormant_markers must include at least one phrase")
	}
	return nil
}

func normalizeMarkers(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, m := range in {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
