// Command hnlive is a live terminal reader for Hacker News.
//
// Usage:
//
//	hnlive                  Interactive TUI (paged feed + live updates)
//	hnlive page --pages 3   Print pages to stdout and exit
//	hnlive watch            Print live updates as they arrive
//	hnlive version          Print version information
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abelbrown/hnlive/internal/config"
	"github.com/abelbrown/hnlive/internal/feed"
	"github.com/abelbrown/hnlive/internal/hn"
	"github.com/abelbrown/hnlive/internal/httpclient"
	"github.com/abelbrown/hnlive/internal/logging"
	"github.com/abelbrown/hnlive/internal/ui"
)

var version = "dev"

// Flag names. Each maps to the config key in flagKeys.
const (
	FlagConfig       = "config"
	FlagFilter       = "filter"
	FlagAPIBaseURL   = "api-base-url"
	FlagPageSize     = "page-size"
	FlagLiveCapacity = "live-capacity"
	FlagPollInterval = "poll-interval"
	FlagConcurrency  = "fetch-concurrency"
	FlagRPS          = "requests-per-second"
	FlagMetricsAddr  = "metrics-addr"
	FlagLogFile      = "log-file"
	FlagLogLevel     = "log-level"
)

var flagKeys = map[string]string{
	FlagConfig:       "config",
	FlagFilter:       "filter",
	FlagAPIBaseURL:   "api_base_url",
	FlagPageSize:     "page_size",
	FlagLiveCapacity: "live_capacity",
	FlagPollInterval: "poll_interval",
	FlagConcurrency:  "fetch_concurrency",
	FlagRPS:          "requests_per_second",
	FlagMetricsAddr:  "metrics_addr",
	FlagLogFile:      "log.file",
	FlagLogLevel:     "log.level",
}

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	defaults := config.Default()

	rootCmd := &cobra.Command{
		Use:   "hnlive",
		Short: "Live terminal reader for Hacker News",
		Long: `hnlive pages backwards through the newest Hacker News items while
polling for new ones in the background. Press enter on an item to load its
comment tree, 1-4 to switch between all, story, job and poll feeds.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), v, runTUI)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(FlagConfig, "", "Config file path (default: $XDG_CONFIG_HOME/hnlive/config.yaml)")
	flags.String(FlagFilter, defaults.Filter, "Feed filter: all, story, job, poll")
	flags.String(FlagAPIBaseURL, defaults.APIBaseURL, "API root URL")
	flags.Int(FlagPageSize, defaults.PageSize, "Items per page")
	flags.Int(FlagLiveCapacity, defaults.LiveCapacity, "Live updates shown before \"show more\"")
	flags.Duration(FlagPollInterval, defaults.PollInterval, "Live poll interval")
	flags.Int(FlagConcurrency, defaults.FetchConcurrency, "Parallel item requests per batch")
	flags.Float64(FlagRPS, defaults.RequestsPerSecond, "Request rate limit (0 = unlimited)")
	flags.String(FlagMetricsAddr, "", "Serve Prometheus metrics on this address (e.g. :9464)")
	flags.String(FlagLogFile, "", "Log file path (default: ~/.hnlive/logs/hnlive.log)")
	flags.String(FlagLogLevel, defaults.Log.Level, "Log level: debug, info, warn, error")

	for name, key := range flagKeys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		newPageCmd(v),
		newWatchCmd(v),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "hnlive %s\n", version)
			},
		},
	)
	return rootCmd
}

// session is everything a command needs once config is loaded.
type session struct {
	cfg    *config.Config
	client *hn.Client
	engine *feed.SyncEngine
	reg    *prometheus.Registry
}

// withSession loads config, starts logging and metrics, builds the engine
// and runs fn with a context canceled on SIGINT/SIGTERM.
func withSession(parent context.Context, v *viper.Viper, fn func(context.Context, *session) error) error {
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logging.Init(logging.Options{
		Path:       cfg.Log.File,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	logging.Info("Starting hnlive", "version", version, "filter", cfg.Filter, "api", cfg.APIBaseURL)

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, s.reg)
		defer shutdownMetrics(srv)
	}

	return fn(ctx, s)
}

// newSession wires the HTTP client, API client and sync engine.
func newSession(cfg *config.Config) (*session, error) {
	burst := max(1, int(cfg.RequestsPerSecond))
	httpClient := httpclient.RateLimited(cfg.RequestsPerSecond, burst, cfg.RequestTimeout)

	client, err := hn.NewClient(cfg.APIBaseURL,
		hn.WithHTTPClient(httpClient),
		hn.WithCacheSize(cfg.CacheSize),
	)
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	opts.Metrics = feed.NewMetrics(reg)

	return &session{
		cfg:    cfg,
		client: client,
		engine: feed.NewSyncEngine(client, opts),
		reg:    reg,
	}, nil
}

// runTUI runs the interactive reader until the user quits.
func runTUI(ctx context.Context, s *session) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := ui.NewApp(ctx, s.engine)
	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	events := s.engine.Subscribe()
	defer s.engine.Unsubscribe(events)
	go ui.Forward(ctx, events, program)

	s.engine.Run(ctx)

	_, err := program.Run()

	// Graceful shutdown
	cancel()
	s.engine.Wait()

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
