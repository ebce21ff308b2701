package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"sitewake/internal/app"
	"sitewake/internal/logging"
	"sitewake/internal/monitor"
	sqlitestore "sitewake/internal/report/sqlite"
	"sitewake/pkg/config"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. This allows us
// to inject a mock app during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	MonitorConfig() monitor.Config
	RawSink() monitor.RawSink
	ReportSinks() []monitor.ReportSink
	History() *sqlitestore.Store
}

// newApp is the application factory. It's a variable so we can replace it
// with a mock factory in tests.
var newApp func(ctx context.Context) (App, error) = func(ctx context.Context) (App, error) {
	return app.NewApp(ctx)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitewake",
		Short: "Checks site uptime and wakes dormant Streamlit apps.",
		Long: `sitewake periodically visits a configured list of web pages, verifies each
page's content against an expected marker, and for Streamlit-hosted apps
clicks the wake-up control when the app has gone to sleep.

It is intended to run unattended on a schedule; use 'check' for a single
pass or 'watch' for a built-in loop with a status endpoint.`,

		// Runs after config is loaded but before the subcommand's RunE;
		// builds and injects the application services.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
		config.InitConfig()
	})

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sitewake.yaml)")
	cmd.PersistentFlags().String("sites", "", "path to the sites JSON file (overrides monitor.sites_path)")
	_ = viper.BindPFlag("monitor.sites_path", cmd.PersistentFlags().Lookup("sites"))

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newValidateCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	logging.InitLogger()

	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
