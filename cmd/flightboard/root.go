package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/flightboard/internal/adapters/console"
	"github.com/okian/flightboard/internal/adapters/http/api"
	"github.com/okian/flightboard/internal/adapters/http/swagger"
	"github.com/okian/flightboard/internal/adapters/upstream"
	service "github.com/okian/flightboard/internal/app"
	"github.com/okian/flightboard/internal/config"
	"github.com/okian/flightboard/internal/domain/display"
	"github.com/okian/flightboard/internal/domain/endpoint"
	"github.com/okian/flightboard/pkg/logger"
	"github.com/okian/flightboard/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

var errServe = errors.New("http server failed")

// flags holds command line overrides of the loaded configuration.
type flags struct {
	configPath string
	ui         string
	logLevel   string
	addr       string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "flightboard",
		Short:         "Dashboard for the flight event pipeline",
		Long:          "flightboard polls the processing and analyzer services, renders their responses and runs consistency checks on demand.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			cfg, err := config.Load(cmd.Context(), f.configPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, &f, cfg); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to a YAML configuration file (default $FLIGHTBOARD_CONFIG)")
	cmd.Flags().StringVar(&f.ui, "ui", "", "renderers to run: web, console or both")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&f.addr, "addr", "", "HTTP listen address")
	_ = cmd.MarkFlagFilename("config", "yaml", "yml")

	return cmd
}

// applyFlags overrides cfg with the flags given on the command line.
func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) error {
	changed := false
	if cmd.Flags().Changed("ui") {
		cfg.UI, changed = f.ui, true
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, changed = f.logLevel, true
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr, changed = f.addr, true
	}
	if !changed {
		return nil
	}
	return cfg.Validate()
}

func run(parent context.Context, cfg *config.Config, consoleOpts ...console.Option) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := logger.Init(); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	set, err := endpoint.NewSet(cfg.BaseURL, cfg.Endpoints)
	if err != nil {
		return err
	}
	board := display.NewBoard(endpoint.Regions...)

	errc := make(chan error, 2)
	var svc atomic.Pointer[service.Service]
	var ui *console.Console
	if cfg.ConsoleEnabled() {
		ui = console.New(board, console.TriggerFunc(func() error {
			s := svc.Load()
			if s == nil {
				return service.ErrStopped
			}
			return s.TriggerConsistencyCheck()
		}), consoleOpts...)
		go func() {
			if err := ui.Run(ctx); err != nil {
				errc <- err
				return
			}
			cancel()
		}()
		// Logs go to the pane only once the application is drawing.
		if ui.WaitReady() {
			if err := logger.InitWithWriter(ui.LogWriter()); err != nil {
				return err
			}
		}
	}
	log := logger.Get()

	client := upstream.NewClient(
		upstream.WithTimeout(cfg.RequestTimeout()),
		upstream.WithLogger(log.Named("upstream")),
	)
	poller := service.New(set, client,
		service.WithBoard(board),
		service.WithRefreshInterval(cfg.RefreshInterval()),
		service.WithBannerTTL(cfg.BannerTTL()),
		service.WithTimeFormat(cfg.TimeFormat),
		service.WithLogger(log.Named("poller")),
	)
	svc.Store(poller)
	if err := poller.Start(ctx); err != nil {
		return err
	}
	defer poller.Stop()

	go startSystemMetricsUpdater(ctx)

	var srv *http.Server
	if cfg.WebEnabled() {
		mux := http.NewServeMux()
		swagger.Register(ctx, mux)
		api.NewServer(poller).Register(ctx, mux)

		srv = &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		go func() {
			log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("%w: %w", errServe, err)
			}
		}()
	}
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
		cancel()
	}
	if ui != nil {
		ui.Stop()
		// The terminal is released; log to stdout again.
		_ = logger.Init()
		log = logger.Get()
	}
	log.Info(ctx, "shutting down...")

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "server shutdown failed", logger.Error(err))
		}
	}
	log.Info(ctx, "stopped")
	return runErr
}

// startSystemMetricsUpdater periodically records process memory and goroutines.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
