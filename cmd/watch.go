package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"sitewake/internal/api"
	"sitewake/internal/monitor"
	"sitewake/internal/sites"
)

// newWatchCmd creates the 'watch' subcommand: the built-in scheduler. It
// runs a full check pass on an interval and serves the latest report over
// HTTP, for deployments without an external cron.
func newWatchCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check sites on an interval and serve status over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only check content, do not wake anything")
	cmd.Flags().Duration("interval", 0, "time between passes (overrides watch.interval)")
	_ = viper.BindPFlag("watch.interval", cmd.Flags().Lookup("interval"))
	cmd.Flags().String("listen", "", "status server address (overrides watch.listen_addr)")
	_ = viper.BindPFlag("watch.listen_addr", cmd.Flags().Lookup("listen"))
	return cmd
}

func runWatch(parent context.Context, dryRun bool) error {
	appInstance, err := resolveApp(parent)
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger()
	cfg := appInstance.MonitorConfig()

	interval := viper.GetDuration("watch.interval")
	if interval <= 0 {
		return fmt.Errorf("watch.interval must be > 0")
	}
	addr := viper.GetString("watch.listen_addr")

	fleet, err := sites.Load(cfg.SitesPath)
	if err != nil {
		return fmt.Errorf("load sites: %w", err)
	}

	runner, closeMonitor, err := buildMonitor(appInstance)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer closeMonitor(context.Background())

	var history api.HistoryStore
	if store := appInstance.History(); store != nil {
		history = store
	}
	server := api.NewServer(fleet, history, logger)
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Status server listening", zap.String("addr", addr))
		serverErr <- server.ListenAndServe(ctx, addr)
	}()

	opts := monitor.Options{DryRun: dryRun}
	logger.Info("Watch loop starting", zap.Duration("interval", interval))

	runPass := func() {
		rep, rerr := runner.Run(ctx, fleet, opts)
		if rerr != nil {
			logger.Error("Fleet run failed", zap.Error(rerr))
			return
		}
		server.SetReport(rep)
		for _, sink := range appInstance.ReportSinks() {
			if werr := sink.WriteReport(ctx, rep); werr != nil {
				logger.Warn("Failed to write report", zap.Error(werr))
			}
		}
	}

	runPass()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Watch loop stopping")
			if serr := <-serverErr; serr != nil && !errors.Is(serr, http.ErrServerClosed) {
				logger.Error("Status server shutdown failed", zap.Error(serr))
			}
			return nil
		case serr := <-serverErr:
			if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", serr)
			}
			return nil
		case <-ticker.C:
			runPass()
		}
	}
}
