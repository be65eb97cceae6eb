package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder owns the live configuration of a long running process. The file
// is re-read on Reload, on writes to it and on SIGHUP; a file that fails to
// load leaves the previous configuration in place.
type Holder struct {
	path   string
	logger zerolog.Logger

	mu        sync.RWMutex
	current   *Config
	listeners []func(*Config)

	watcher *fsnotify.Watcher
	done    chan struct{}
	stop    sync.Once
}

// NewHolder loads path and returns a holder for it. Nothing is watched
// until WatchFile or WatchSignals is called.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	return &Holder{
		path:    abs,
		logger:  logger.With().Str("config", abs).Logger(),
		current: cfg,
		done:    make(chan struct{}),
	}, nil
}

// Get returns the configuration in effect.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnChange registers fn to run with every configuration that replaces the
// current one. Listeners run on the goroutine that triggered the reload.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload re-reads the file and, when it loads, swaps it in and notifies
// the listeners.
func (h *Holder) Reload() error {
	next, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload rejected, keeping current settings")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	listeners := slices.Clone(h.listeners)
	h.mu.Unlock()

	for _, change := range diff(prev, next) {
		h.logger.Info().Str("setting", change).Msg("setting changed")
	}
	if restartRequired(prev, next) {
		h.logger.Warn().Msg("database, metrics and server settings take effect after restart")
	}

	for _, fn := range listeners {
		fn(next)
	}
	h.logger.Info().Msg("config reloaded")
	return nil
}

// WatchFile reloads whenever the config file is written or replaced. The
// parent directory is watched so editors that save by rename are seen.
func (h *Holder) WatchFile() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	h.watcher = w

	go h.watch(w)
	h.logger.Info().Msg("watching config file")
	return nil
}

// WatchSignals reloads on SIGHUP until Stop is called.
func (h *Holder) WatchSignals() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-hup:
				h.logger.Info().Msg("SIGHUP received")
				_ = h.Reload()
			case <-h.done:
				return
			}
		}
	}()
}

// Stop ends file and signal watching. It is safe to call more than once.
func (h *Holder) Stop() {
	h.stop.Do(func() {
		close(h.done)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *Holder) watch(w *fsnotify.Watcher) {
	name := filepath.Base(h.path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			h.logger.Debug().Str("op", ev.Op.String()).Msg("config file event")
			_ = h.Reload()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("config watcher")

		case <-h.done:
			return
		}
	}
}

// diff names the reloadable settings that differ between a and b.
func diff(a, b *Config) []string {
	var changed []string
	if a.Logging != b.Logging {
		changed = append(changed, "logging")
	}
	if !slices.Equal(a.Entities.Paths, b.Entities.Paths) {
		changed = append(changed, "entities.paths")
	}
	if a.Engine.IsTransactional() != b.Engine.IsTransactional() {
		changed = append(changed, "engine.transactional")
	}
	if a.Engine.PageSize != b.Engine.PageSize {
		changed = append(changed, "engine.page_size")
	}
	if a.Engine.MaxDepth != b.Engine.MaxDepth {
		changed = append(changed, "engine.max_depth")
	}
	return changed
}

func restartRequired(a, b *Config) bool {
	return a.Database != b.Database || a.Metrics != b.Metrics || a.Server != b.Server
}

// ReloadableFields lists the settings a reload applies to a running process.
func ReloadableFields() []string {
	return []string{
		"engine.transactional",
		"engine.page_size",
		"engine.max_depth",
		"entities.paths",
		"logging.level",
		"logging.format",
	}
}

// NonReloadableFields lists the settings that need a restart.
func NonReloadableFields() []string {
	return []string{
		"database.driver",
		"database.dsn",
		"metrics.enabled",
		"metrics.path",
		"server.host",
		"server.port",
	}
}
