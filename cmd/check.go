// Package cmd defines and implements the CLI commands for the sitewake executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"sitewake/internal/clock/system"
	"sitewake/internal/monitor"
	"sitewake/internal/sites"
)

// newCheckCmd creates and configures the 'check' subcommand: a single pass
// over the fleet (or one named site), with recovery unless --dry-run is set.
func newCheckCmd() *cobra.Command {
	var (
		dryRun   bool
		siteFlag string
	)
	cmd := &cobra.Command{
		Use:   "check [site]",
		Short: "Check site uptime and wake dormant apps",
		Long: `Visits every configured site in a headless browser, verifies the expected
content is present, and clicks the wake-up control for dormant Streamlit
apps. Individual site failures never fail the run; only configuration
problems do.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := siteFlag
			if len(args) == 1 {
				name = args[0]
			}
			return runCheck(cmd.Context(), monitor.Options{DryRun: dryRun, Site: name})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only check content, do not wake anything")
	cmd.Flags().StringVar(&siteFlag, "site", "", "only check the specified site by name")
	return cmd
}

func runCheck(ctx context.Context, opts monitor.Options) error {
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger()
	cfg := appInstance.MonitorConfig()

	fleet, err := sites.Load(cfg.SitesPath)
	if err != nil {
		return fmt.Errorf("load sites: %w", err)
	}

	runner, closeMonitor, err := buildMonitor(appInstance)
	if err != nil {
		return err
	}
	defer closeMonitor(ctx)

	rep, err := runner.Run(ctx, fleet, opts)
	if err != nil {
		return fmt.Errorf("run checks: %w", err)
	}

	for _, sink := range appInstance.ReportSinks() {
		if werr := sink.WriteReport(ctx, rep); werr != nil {
			logger.Warn("Failed to write report", zap.Error(werr))
		}
	}

	printSummary(rep)
	return nil
}

// buildMonitor wires the renderer, actuator, prober, classifier, checker,
// and runner from the app's configuration.
func buildMonitor(appInstance App) (*monitor.Runner, func(context.Context), error) {
	cfg := appInstance.MonitorConfig()
	logger := appInstance.GetLogger()

	renderer, err := monitor.NewChromedpRenderer(cfg, logger)
	if err != nil {
		if errors.Is(err, monitor.ErrRendererDisabled) {
			return nil, nil, fmt.Errorf("renderer disabled by configuration: %w", err)
		}
		return nil, nil, fmt.Errorf("init renderer: %w", err)
	}

	actuator, err := monitor.NewChromedpActuator(renderer, cfg, logger)
	if err != nil {
		renderer.Close(context.Background())
		return nil, nil, fmt.Errorf("init actuator: %w", err)
	}

	var prober monitor.Prober
	if cfg.ProbeFirst {
		prober = monitor.NewCollyProber(cfg, logger)
	}

	classifier := monitor.NewClassifier(cfg.DormantMarkers, cfg.WakeSelector)
	clk := system.New()
	checker := monitor.NewChecker(renderer, actuator, prober, classifier, appInstance.RawSink(), clk, cfg, logger)
	runner := monitor.NewRunner(checker, cfg.Concurrency, clk, logger)

	closeMonitor := func(ctx context.Context) {
		if cerr := renderer.Close(ctx); cerr != nil {
			logger.Warn("Failed to close renderer", zap.Error(cerr))
		}
	}
	return runner, closeMonitor, nil
}

func printSummary(rep monitor.Report) {
	fmt.Println("\nCheck Results:")
	fmt.Println("----------------------------------------")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, res := range rep.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", res.SiteName, res.Status, res.Detail)
	}
	w.Flush()
	fmt.Printf("\n%d up, %d restarted, %d down, %d errors (%.1fs)\n",
		rep.Counts[monitor.StatusUp],
		rep.Counts[monitor.StatusRestarted],
		rep.Counts[monitor.StatusDown],
		rep.Counts[monitor.StatusError],
		rep.Duration.Seconds(),
	)
}

// sitesPath resolves the descriptor source for the config CRUD commands,
// which run before the full app container exists.
func sitesPath() string {
	return viper.GetString("monitor.sites_path")
}
