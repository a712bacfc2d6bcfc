package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := newViper()
	var configPath string

	cmd := &cobra.Command{
		Use:   "ponwatch",
		Short: "PON alarm dashboard for Huawei and ZTE OLTs",
		Long: `ponwatch merges the published Huawei and ZTE alarm sheets, joins them
with the active-clients snapshot and serves the filtered views, the
hour-by-hour pivot and per-ONT status lookups over HTTP.`,

		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(v, configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runServer(cfg, logger)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/ponwatch/config.yml)")

	pflags := cmd.PersistentFlags()
	pflags.String("huawei-url", "", "published CSV URL of the Huawei alarm sheet")
	pflags.String("zte-url", "", "published CSV URL of the ZTE alarm sheet")
	pflags.String("clients-path", "", "path of the active-clients Parquet snapshot")
	pflags.String("db-path", "", "DuckDB file for the queryable alarm copy (empty for in-memory)")
	pflags.String("log-level", "", "log level (debug, info, warn, error)")
	pflags.String("log-format", "", "log format (json, console)")
	for _, name := range []string{"huawei-url", "zte-url", "clients-path", "db-path", "log-level", "log-format"} {
		mustBind(v, name, pflags)
	}

	flags := cmd.Flags()
	flags.String("api-addr", "", "address for the HTTP API")
	flags.Bool("background-refresh", false, "refresh the alarm snapshot on a timer instead of on demand")
	mustBind(v, "api-addr", flags)
	mustBind(v, "background-refresh", flags)

	cmd.AddCommand(newReportCmd(v, &configPath))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newReportCmd(v *viper.Viper, configPath *string) *cobra.Command {
	opts := reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Fetch the feeds once and print the pivot and OLT ranking",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(v, *configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runReport(ctx, cfg, opts, logger, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&opts.Rows, "rows", 20, "pivot rows to print (-1 for all)")
	cmd.Flags().IntVar(&opts.TopOLTs, "top", 10, "OLTs in the ranking")
	cmd.Flags().StringVar(&opts.XLSXPath, "xlsx", "", "also write the full pivot to this workbook")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ponwatch - PON alarm dashboard\n")
			fmt.Fprintf(out, "  Version:    %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Built:      %s\n", buildTime)
		},
	}
}

// mustBind binds a flag to the viper key of the same name. Only flags set
// on the command line override config and environment values.
func mustBind(v *viper.Viper, name string, flags *pflag.FlagSet) {
	if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", name, err))
	}
}

func setup(v *viper.Viper, configPath string) (appConfig, *zap.Logger, error) {
	cfg, err := loadConfig(v, configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return cfg, nil, fmt.Errorf("building logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}
