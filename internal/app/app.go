// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"sitewake/internal/logging"
	"sitewake/internal/monitor"
	"sitewake/internal/report"
	sqlitestore "sitewake/internal/report/sqlite"
)

// App holds the shared, long-lived services for the application: the logger,
// the monitor configuration, and the report sinks. It is initialized once at
// startup and threaded through the commands that need it.
type App struct {
	logger      *zap.Logger
	cfg         monitor.Config
	rawSink     *report.FileSystemSink
	reportSinks []monitor.ReportSink
	history     *sqlitestore.Store
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// MonitorConfig returns the validated monitor configuration.
func (a *App) MonitorConfig() monitor.Config {
	return a.cfg
}

// RawSink returns the diagnostic markup sink.
func (a *App) RawSink() monitor.RawSink {
	return a.rawSink
}

// ReportSinks returns every configured report destination.
func (a *App) ReportSinks() []monitor.ReportSink {
	return a.reportSinks
}

// History returns the sqlite history store, or nil when disabled.
func (a *App) History() *sqlitestore.Store {
	return a.history
}

// Close flushes the logger and closes any open stores.
func (a *App) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("Failed to close history store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// NewApp creates and initializes a new App from the application's Viper
// configuration. It fails fast if any critical service cannot be built.
func NewApp(ctx context.Context) (*App, error) {
	logger, err := logging.NewWithFile(viper.GetBool("log.development"), viper.GetString("log.file"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logging.L = logger

	cfg, err := monitor.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load monitor config: %w", err)
	}

	rawSink, err := report.NewFileSystemSink(
		viper.GetString("report.raw_dir"),
		viper.GetInt64("report.max_raw_bytes"),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("init raw sink: %w", err)
	}

	logSink, err := report.NewLogSink(viper.GetString("report.log_path"), logger)
	if err != nil {
		return nil, fmt.Errorf("init report log: %w", err)
	}
	sinks := []monitor.ReportSink{logSink}

	var history *sqlitestore.Store
	if dbPath := viper.GetString("report.history_db"); dbPath != "" {
		history, err = sqlitestore.New(ctx, dbPath)
		if err != nil {
			return nil, fmt.Errorf("init history store: %w", err)
		}
		sinks = append(sinks, history)
	}

	return &App{
		logger:      logger,
		cfg:         cfg,
		rawSink:     rawSink,
		reportSinks: sinks,
		history:     history,
	}, nil
}
