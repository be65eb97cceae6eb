// Package bootstrap wires the persistence core to its configuration and
// owns the lifecycle of the shared storage handle.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/artpar/rowmap/adapters/clock"
	"github.com/artpar/rowmap/adapters/metrics"
	"github.com/artpar/rowmap/adapters/sqlite"
	"github.com/artpar/rowmap/config"
	"github.com/artpar/rowmap/core/introspect"
	"github.com/artpar/rowmap/core/persist"
	"github.com/artpar/rowmap/core/registry"
	"github.com/artpar/rowmap/core/schema"
	"github.com/artpar/rowmap/core/storage"
	"github.com/artpar/rowmap/ports"
)

// ErrTornDown is returned by Reinit after Teardown.
var ErrTornDown = errors.New("bootstrap: context torn down")

// Options provides optional dependencies for Init.
type Options struct {
	// Logger overrides the logger built from the logging config.
	Logger *zerolog.Logger

	// Registerer receives the collectors when metrics are enabled.
	// Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// Clock times engine operations. Defaults to the wall clock.
	Clock ports.Clock
}

// Context holds everything one persistence session shares: the storage
// handle, the schema cache and the engine built on them.
type Context struct {
	mu sync.RWMutex

	Config   *config.Config
	Logger   zerolog.Logger
	Registry *registry.Registry
	Metrics  *metrics.Collector

	store   *storage.SQLiteStore
	schemas *introspect.Introspector
	engine  *persist.Engine
	clock   ports.Clock
	closed  bool
}

// Init opens storage per cfg, registers the declarations found under
// cfg.Entities.Paths into reg and builds an engine. reg may already hold
// compiled entity types; a nil reg starts empty.
func Init(cfg *config.Config, reg *registry.Registry) (*Context, error) {
	return InitWithOptions(cfg, reg, Options{})
}

// InitWithOptions is Init with optional dependencies.
func InitWithOptions(cfg *config.Config, reg *registry.Registry, opts Options) (*Context, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: nil config")
	}
	if reg == nil {
		reg = registry.New()
	}

	logger := NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	c := &Context{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		clock:    opts.Clock,
	}
	if c.clock == nil {
		c.clock = clock.Real{}
	}

	decls, err := LoadDeclarations(cfg.Entities.Paths, logger)
	if err != nil {
		return nil, err
	}
	for _, decl := range decls {
		if err := reg.RegisterSchema(decl); err != nil {
			return nil, fmt.Errorf("register %s: %w", decl.Name, err)
		}
	}

	if cfg.Metrics.Enabled {
		r := opts.Registerer
		if r == nil {
			r = prometheus.DefaultRegisterer
		}
		c.Metrics = metrics.NewWithRegistry(r)
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := c.open(cfg); err != nil {
		return nil, err
	}

	logger.Info().
		Str("driver", cfg.Database.Driver).
		Str("dsn", cfg.Database.DSN).
		Int("entities", reg.Len()).
		Msg("rowmap initialized")
	return c, nil
}

// open connects to the database named by cfg and builds a fresh schema
// cache and engine on it.
func (c *Context) open(cfg *config.Config) error {
	store, err := sqlite.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	rec := c.recorder()
	schemas := introspect.New(introspect.Config{
		Registry: c.Registry,
		Store:    store,
		Recorder: rec,
		Logger:   c.Logger,
	})

	c.store = store
	c.schemas = schemas
	c.engine = persist.New(persist.Config{
		Registry:     c.Registry,
		Store:        store,
		Introspector: schemas,
		Recorder:     rec,
		Clock:        c.clock,
		Logger:       c.Logger,
		Options:      EngineOptions(cfg.Engine),
	})
	return nil
}

// EngineOptions maps the engine section of the config onto persist.Options.
func EngineOptions(e config.EngineConfig) persist.Options {
	return persist.Options{
		Transactional: e.IsTransactional(),
		PageSize:      e.PageSize,
		MaxDepth:      e.MaxDepth,
	}
}

// Engine returns the current engine.
func (c *Context) Engine() *persist.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

// Store returns the current storage handle.
func (c *Context) Store() *storage.SQLiteStore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

// Reinit replaces the storage handle with one opened from cfg. The schema
// cache starts empty, so tables are checked again on first use. The old
// handle is closed once the new one is in place.
func (c *Context) Reinit(cfg *config.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrTornDown
	}

	old := c.store
	if err := c.open(cfg); err != nil {
		return err
	}
	c.Config = cfg

	if err := old.Close(); err != nil {
		c.Logger.Warn().Err(err).Msg("close previous database")
	}

	c.Logger.Info().
		Str("driver", cfg.Database.Driver).
		Str("dsn", cfg.Database.DSN).
		Msg("rowmap reinitialized")
	return nil
}

// Apply updates the settings that take effect without reopening storage:
// the log level, the engine options and newly declared entity types.
// Engine changes build a new engine over the same handle and schema cache.
func (c *Context) Apply(cfg *config.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrTornDown
	}

	decls, err := LoadDeclarations(cfg.Entities.Paths, c.Logger)
	if err != nil {
		return err
	}
	added := 0
	for _, decl := range decls {
		if _, ok := c.Registry.Lookup(decl.Name); ok {
			continue
		}
		if err := c.Registry.RegisterSchema(decl); err != nil {
			return fmt.Errorf("register %s: %w", decl.Name, err)
		}
		added++
	}

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		c.Logger = c.Logger.Level(level)
	}

	c.engine = persist.New(persist.Config{
		Registry:     c.Registry,
		Store:        c.store,
		Introspector: c.schemas,
		Recorder:     c.recorder(),
		Clock:        c.clock,
		Logger:       c.Logger,
		Options:      EngineOptions(cfg.Engine),
	})

	next := *c.Config
	next.Engine = cfg.Engine
	next.Entities = cfg.Entities
	next.Logging = cfg.Logging
	c.Config = &next

	c.Logger.Info().Int("entities_added", added).Msg("configuration applied")
	return nil
}

func (c *Context) recorder() ports.Recorder {
	if c.Metrics != nil {
		return c.Metrics
	}
	return ports.NopRecorder{}
}

// Teardown closes the storage handle. Calling it again is a no-op.
func (c *Context) Teardown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.store.Close(); err != nil {
		c.Logger.Error().Err(err).Msg("database close error")
		return fmt.Errorf("close database: %w", err)
	}

	c.Logger.Info().Msg("shutdown complete")
	return nil
}

// Ping checks that the storage handle answers.
func (c *Context) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.Store().DB().PingContext(ctx)
}

// LoadDeclarations parses the entity declarations under paths. Paths that
// do not exist are skipped with a warning.
func LoadDeclarations(paths []string, logger zerolog.Logger) ([]schema.Entity, error) {
	var present []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			logger.Warn().Str("path", p).Msg("entity path not found, skipping")
			continue
		}
		present = append(present, p)
	}

	decls, err := schema.ParsePaths(present)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	for _, d := range decls {
		logger.Debug().Str("entity", d.Name).Msg("loaded entity declaration")
	}
	return decls, nil
}

// NewLogger builds the process logger. format "console" writes
// human-readable lines, anything else writes JSON.
func NewLogger(level, format string) zerolog.Logger {
	return NewLoggerTo(os.Stdout, level, format)
}

// NewLoggerTo is NewLogger writing to w.
func NewLoggerTo(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
