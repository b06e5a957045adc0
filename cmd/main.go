package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/okian/acolyte/internal/adapters/export"
	"github.com/okian/acolyte/internal/adapters/http/api"
	"github.com/okian/acolyte/internal/adapters/http/swagger"
	service "github.com/okian/acolyte/internal/app"
	"github.com/okian/acolyte/internal/config"
	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/seeder"
	"github.com/okian/acolyte/pkg/logger"
	"github.com/okian/acolyte/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Go runtime metrics are published through our own gauges instead.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Configuration is loaded once in Before and
// shared by every command.
func newApp() *cli.App {
	var cfg *config.Config
	return &cli.App{
		Name:  "acolyte",
		Usage: "attendance points and approval engine for altar servers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				EnvVars: []string{config.FileEnv},
			},
		},
		Before: func(c *cli.Context) error {
			if path := c.String("config"); path != "" {
				if err := os.Setenv(config.FileEnv, path); err != nil {
					return err
				}
			}
			var err error
			if cfg, err = config.Load(c.Context); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithLevel(cfg.LogLevel)); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			return nil
		},
		After: func(*cli.Context) error {
			return logger.Sync()
		},
		Action: func(c *cli.Context) error {
			return serve(c.Context, cfg)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Action: func(c *cli.Context) error {
					return serve(c.Context, cfg)
				},
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations and exit",
				Action: func(c *cli.Context) error {
					svc, err := openService(c.Context, cfg)
					if err != nil {
						return err
					}
					svc.Stop()
					logger.Get().Info(c.Context, "database is up to date", logger.String("driver", cfg.DBDriver))
					return nil
				},
			},
			{
				Name:  "purge",
				Usage: "delete claims older than the retention window",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Usage: "retention in days (default: retention_days)"},
					&cli.StringFlag{Name: "actor", Usage: "administrator performing the purge (default: bootstrap_admin)"},
				},
				Action: func(c *cli.Context) error {
					days := c.Int("days")
					if days == 0 {
						days = cfg.RetentionDays
					}
					actor := c.String("actor")
					if actor == "" {
						actor = cfg.BootstrapAdmin
					}
					return purge(c.Context, cfg, actor, days)
				},
			},
			{
				Name:  "export",
				Usage: "write claims as csv or xlsx",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: string(export.FormatCSV), Usage: "csv or xlsx"},
					&cli.StringFlag{Name: "out", Usage: "output file (default: stdout)"},
					&cli.StringFlag{Name: "participant", Usage: "only this participant's claims"},
					&cli.StringFlag{Name: "status", Usage: "pending, approved or rejected"},
					&cli.StringFlag{Name: "actor", Usage: "moderator or administrator exporting (default: bootstrap_admin)"},
				},
				Action: func(c *cli.Context) error {
					f := model.ClaimFilter{Participant: c.String("participant"), Status: model.Status(c.String("status"))}
					if f.Status != "" && !f.Status.Valid() {
						return fmt.Errorf("unknown status %q", f.Status)
					}
					actor := c.String("actor")
					if actor == "" {
						actor = cfg.BootstrapAdmin
					}
					return exportClaims(c.Context, cfg, actor, c.String("format"), c.String("out"), f)
				},
			},
			seedCommand(func() *config.Config { return cfg }),
		},
	}
}

// seedCommand fills a running server with generated data. Run the server with
// submit_rate_per_minute=0 or most submissions are throttled.
func seedCommand(loaded func() *config.Config) *cli.Command {
	def := seeder.DefaultConfig()
	return &cli.Command{
		Name:  "seed",
		Usage: "populate a running server with demo participants, schedule and claims",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: def.BaseURL, Usage: "base URL of the server"},
			&cli.StringFlag{Name: "admin", Usage: "administrator used for setup (default: bootstrap_admin)"},
			&cli.IntFlag{Name: "participants", Value: def.Participants},
			&cli.IntFlag{Name: "days", Value: def.Days, Usage: "days of schedule ending today"},
			&cli.Float64Flag{Name: "attendance", Value: def.Attendance, Usage: "chance a participant claims an entry"},
			&cli.Float64Flag{Name: "approve", Value: def.ApproveRatio, Usage: "chance a claim is approved"},
			&cli.IntFlag{Name: "workers", Value: def.Workers},
			&cli.DurationFlag{Name: "timeout", Value: def.Timeout},
			&cli.Int64Flag{Name: "seed", Usage: "generator seed (default: clock)"},
		},
		Action: func(c *cli.Context) error {
			cfg := seeder.Config{
				BaseURL:      c.String("url"),
				Admin:        c.String("admin"),
				Participants: c.Int("participants"),
				Days:         c.Int("days"),
				Attendance:   c.Float64("attendance"),
				ApproveRatio: c.Float64("approve"),
				Workers:      c.Int("workers"),
				Timeout:      c.Duration("timeout"),
				Seed:         c.Int64("seed"),
			}
			if cfg.Admin == "" {
				cfg.Admin = loaded().BootstrapAdmin
			}
			stats, err := seeder.Run(c.Context, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "participants=%d scheduled=%d claims=%d approved=%d rejected=%d throttled=%d duration=%s\n",
				stats.ParticipantsCreated, stats.EventsScheduled, stats.ClaimsSubmitted,
				stats.Approved, stats.Rejected, stats.ClaimsThrottled, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

// openService builds and starts the service from cfg. Start migrates the schema.
func openService(ctx context.Context, cfg *config.Config) (*service.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	svc := service.New(
		service.WithLogger(logger.Get()),
		service.WithDatabase(cfg.DBDriver, cfg.DBDSN),
		service.WithMaxOpenConns(cfg.DBMaxOpenConns),
		service.WithBootstrapAdmin(cfg.BootstrapAdmin),
		service.WithLocation(loc),
	)
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start service: %w", err)
	}
	return svc, nil
}

func serve(parent context.Context, cfg *config.Config) error {
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc,
		api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		api.WithSubmitRate(cfg.SubmitRatePerMinute, cfg.SubmitBurst),
		api.WithServerLogger(log.Named("http")),
	)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(mux),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

func purge(ctx context.Context, cfg *config.Config, actorName string, days int) error {
	svc, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Stop()

	actor, err := svc.Participant(ctx, actorName)
	if err != nil {
		return fmt.Errorf("actor %q: %w", actorName, err)
	}
	n, err := svc.Purge(ctx, actor, days)
	if err != nil {
		return err
	}
	logger.Get().Info(ctx, "purge finished", logger.Int64("deleted", n), logger.Int("days", days))
	return nil
}

func exportClaims(ctx context.Context, cfg *config.Config, actorName, rawFormat, out string, f model.ClaimFilter) error {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return err
	}
	svc, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Stop()

	actor, err := svc.Participant(ctx, actorName)
	if err != nil {
		return fmt.Errorf("actor %q: %w", actorName, err)
	}
	var w io.Writer = os.Stdout
	if out != "" {
		file, err := os.Create(out)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	return svc.Export(ctx, actor, w, format, f)
}

// startSystemMetricsUpdater refreshes process gauges until ctx is done.
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

// startServiceMetricsUpdater refreshes the participant and pending gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.GetStats(ctx)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
