package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/artpar/rowmap/adapters/http"
	"github.com/artpar/rowmap/bootstrap"
	"github.com/artpar/rowmap/config"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(flags *globalFlags) *cobra.Command {
	var hotReload bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only browse API",
		Long: `Start the browse API server.

The server will:
  - Load configuration from rowmap.yaml (or --config)
  - Or load configuration from ROWMAP_* environment variables
  - Register the entity declarations found under entities.paths
  - Serve entity descriptions and stored records as JSON
  - Expose Prometheus metrics when metrics.enabled is set

With a config file present the file is watched, and SIGHUP reloads it. Log
level, engine settings and new entity declarations apply without restart.

Examples:
  rowmap serve
  rowmap serve --config /etc/rowmap/rowmap.yaml
  ROWMAP_DATABASE_DSN=/data/app.db rowmap serve --hot-reload=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags, hotReload)
		},
	}

	cmd.Flags().BoolVar(&hotReload, "hot-reload", true, "reload the config file when it changes")
	return cmd
}

func runServe(parent context.Context, flags *globalFlags, hotReload bool) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	logger := bootstrap.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	var holder *config.Holder
	if _, statErr := os.Stat(flags.configPath); statErr == nil && hotReload {
		holder, err = config.NewHolder(flags.configPath, logger)
		if err != nil {
			return err
		}
		defer holder.Stop()
	} else if statErr != nil {
		logger.Info().Msg("running with environment variables (no config file)")
	}

	c, err := bootstrap.InitWithOptions(cfg, nil, bootstrap.Options{Logger: &logger})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer c.Teardown()

	if holder != nil {
		holder.OnChange(func(next *config.Config) {
			if len(flags.entities) > 0 {
				next.Entities.Paths = flags.entities
			}
			err := c.Apply(next)
			if err != nil {
				logger.Error().Err(err).Msg("apply reloaded config")
			}
			if c.Metrics != nil {
				c.Metrics.RecordReload(time.Now(), err)
			}
		})
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch disabled")
		}
		holder.WatchSignals()
	}

	router := apihttp.NewRouter(apihttp.NewHandlerFrom(c, logger), logger, apihttp.RouterConfig{
		Metrics:     c.Metrics,
		MetricsPath: cfg.Metrics.Path,
		Version:     version,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, server, logger)
}

// serve runs server until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, logger zerolog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("starting http server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
