// Package config is responsible for initializing the application's configuration.
// It uses the Viper library to read settings from a config file, environment
// variables, and command-line flags, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"sitewake/internal/logging"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and enables
// reading from environment variables. This function is designed to be called
// once at application startup.
func InitConfig() {
	viper.SetConfigName("sitewake")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/sitewake/")
	viper.AddConfigPath("$HOME/.sitewake")

	// Monitor pipeline defaults. Timeouts mirror the values the checks were
	// tuned with in production: 15s navigation, 3s settle for apps that
	// populate the DOM after load, 5s wake-button lookup.
	viper.SetDefault("monitor.sites_path", "config/sites.json")
	viper.SetDefault("monitor.concurrency", 4)
	viper.SetDefault("monitor.site_timeout", "60s")
	viper.SetDefault("monitor.render_timeout", "15s")
	viper.SetDefault("monitor.settle_delay", "3s")
	viper.SetDefault("monitor.wake_lookup_timeout", "5s")
	viper.SetDefault("monitor.wake_settle_delay", "3s")
	viper.SetDefault("monitor.render_host_qps", 0)
	viper.SetDefault("monitor.probe_first", true)
	viper.SetDefault("monitor.user_agent", "sitewake/1.0 (+uptime monitor)")
	viper.SetDefault("monitor.wake_selector", `button[data-testid="wakeup-button-owner"]`)
	viper.SetDefault("monitor.dormant_markers", []string{
		"This app has gone to sleep",
		"Yes, get this app back up",
	})

	viper.SetDefault("report.log_path", "logs/uptime_report.log")
	viper.SetDefault("report.raw_dir", "logs/raw")
	viper.SetDefault("report.max_raw_bytes", 5*1024*1024)
	viper.SetDefault("report.history_db", "")

	viper.SetDefault("watch.interval", "10m")
	viper.SetDefault("watch.listen_addr", ":8090")

	viper.SetDefault("log.file", "logs/uptime.log")
	viper.SetDefault("log.development", false)

	viper.SetEnvPrefix("SITEWAKE") // e.g. SITEWAKE_MONITOR_CONCURRENCY=8
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logging.L.Debug("Config file not found; using defaults and environment variables.")
		} else {
			logging.L.Error("Error reading config file", zap.Error(err))
		}
	} else {
		logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
