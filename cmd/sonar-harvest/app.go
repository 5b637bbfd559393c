package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/sonar-harvest/internal/config"
	"github.com/Sternrassler/sonar-harvest/internal/harvest"
	"github.com/Sternrassler/sonar-harvest/internal/store"
	"github.com/Sternrassler/sonar-harvest/pkg/cache"
	"github.com/Sternrassler/sonar-harvest/pkg/client"
	"github.com/Sternrassler/sonar-harvest/pkg/logging"
	"github.com/Sternrassler/sonar-harvest/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app is everything one command invocation needs.
type app struct {
	cfg       *config.Config
	harvester *harvest.Harvester
	logger    zerolog.Logger
	closers   []func()
}

func newApp(ctx context.Context, v *viper.Viper, logOutput io.Writer) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}

	logging.Setup(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: logOutput})
	a := &app{cfg: cfg, logger: logging.NewLogger(logging.ComponentHarvest)}

	clientCfg := client.DefaultConfig(cfg.APIURL)
	clientCfg.Timeout = cfg.Timeout
	clientCfg.InsecureSkipVerify = cfg.InsecureSkipVerify
	clientCfg.UserAgent = cfg.UserAgent
	if cfg.CacheEnabled() {
		clientCfg.Cache = a.openCache(ctx)
		clientCfg.CacheTTL = cfg.CacheTTL
	}

	c, err := client.New(clientCfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	st, err := store.New(cfg.OutputDir)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	a.harvester, err = harvest.New(c, st, harvest.OptionsFromConfig(cfg))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}

	if cfg.MetricsAddr != "" {
		if err := a.serveMetrics(cfg.MetricsAddr); err != nil {
			a.close()
			return nil, err
		}
	}

	a.logger.Info().
		Str("api_url", cfg.APIURL).
		Str("dialect", cfg.Dialect.Name).
		Bool("sonarcloud", cfg.SonarCloud).
		Str("output_dir", cfg.OutputDir).
		Int("workers", cfg.Workers).
		Bool("cache", clientCfg.Cache != nil).
		Msg("Harvester configured")
	return a, nil
}

// openCache connects to Redis. An unreachable Redis disables the cache
// instead of failing the run.
func (a *app) openCache(ctx context.Context) *cache.Manager {
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Invalid Redis URL, response cache disabled")
		return nil
	}
	rdb := redis.NewClient(opts)
	mgr := cache.NewManager(rdb)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mgr.Ping(pingCtx); err != nil {
		a.logger.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unavailable, response cache disabled")
		rdb.Close()
		return nil
	}

	a.logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	a.closers = append(a.closers, func() { rdb.Close() })
	return mgr
}

func (a *app) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	a.logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")

	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

type phaseFunc func(ctx context.Context, h *harvest.Harvester, report *harvest.Report) error

// runPhases sets up the app, runs fn, prints the summary and writes the
// metrics textfile. With --strict a report with failures is an error.
func runPhases(cmd *cobra.Command, v *viper.Viper, fn phaseFunc) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, v, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	report := &harvest.Report{}
	runErr := fn(ctx, a.harvester, report)

	printSummary(cmd.OutOrStdout(), report)

	if a.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.logger.Error().Err(err).Msg("Failed to write metrics textfile")
		}
	}

	if runErr != nil {
		return runErr
	}
	if v.GetBool(keyStrict) && report.Failed() {
		return ErrFailures
	}
	return nil
}
