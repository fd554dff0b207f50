package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yokurang/logo-crawler/internal/app"
	"github.com/yokurang/logo-crawler/internal/config"
	"github.com/yokurang/logo-crawler/internal/logging"
	"github.com/yokurang/logo-crawler/internal/stats"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the commands need from the application. Tests swap in a fake.
type App interface {
	Crawl(ctx context.Context, domains []string) (stats.Report, error)
	Close()
}

// newApp is the application factory; it is a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// rootOptions carries the persistent flags and the state built from them.
type rootOptions struct {
	cfgFile string
	format  string
	output  string
	workers int

	cfg    config.Config
	logger *zap.Logger
}

// runState is stored in the command context once services are up.
type runState struct {
	app    App
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "logocrawler",
		Short: "Finds the logo or favicon of every domain in a list.",
		Long: `logocrawler fetches the home page of each input domain concurrently,
looks for a logo in JSON-LD structured data and icon links, and writes one
record per domain in input order.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.load(cmd); err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			state := &runState{app: appInstance, cfg: opts.cfg, logger: opts.logger}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, state))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if state, ok := cmd.Context().Value(appKey).(*runState); ok && state != nil {
				state.app.Close()
			}
			if opts.logger != nil {
				// Sync fails on ttys/pipes for stderr; nothing useful to do about it.
				_ = opts.logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.logocrawler/config.yaml)")
	flags.StringVar(&opts.format, "format", "", "output format: csv or xlsx (overrides output.format)")
	flags.StringVarP(&opts.output, "output", "o", "", "output file; stdout when empty (overrides output.path)")
	flags.IntVar(&opts.workers, "workers", 0, "worker count; 0 derives it from the input size (overrides crawler.workers)")

	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// load reads the config, applies flag overrides and builds the logger.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = strings.ToLower(o.format)
	}
	if flags.Changed("output") {
		cfg.Output.Path = o.output
	}
	if flags.Changed("workers") {
		cfg.Crawler.Workers = o.workers
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level, logging.WithFile(logging.FileConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}

func resolveState(ctx context.Context) (*runState, error) {
	state, ok := ctx.Value(appKey).(*runState)
	if !ok || state == nil {
		return nil, errors.New("application services not initialized")
	}
	return state, nil
}

// Execute runs the CLI until it finishes or SIGINT/SIGTERM cancels the crawl.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "logocrawler: %v\n", err)
		stop()
		os.Exit(1)
	}
}
