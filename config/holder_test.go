package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/artpar/rowmap/config"
	"github.com/rs/zerolog"
)

func TestHolder_Get(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	got := h.Get()
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if got.Database.DSN != ":memory:" {
		t.Errorf("Database.DSN = %s, want :memory:", got.Database.DSN)
	}
}

func TestHolder_NewHolderMissingFile(t *testing.T) {
	if _, err := config.NewHolder("/nonexistent/rowmap.yaml", zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	cfg := h.Get()
	if cfg.Engine.PageSize != 50 {
		t.Errorf("initial PageSize = %d, want 50", cfg.Engine.PageSize)
	}

	newContent := `
database:
  dsn: ":memory:"
engine:
  page_size: 200
  transactional: false
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	cfg = h.Get()
	if cfg.Engine.PageSize != 200 {
		t.Errorf("reloaded PageSize = %d, want 200", cfg.Engine.PageSize)
	}
	if cfg.Engine.IsTransactional() {
		t.Error("reloaded IsTransactional() = true, want false")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("reloaded Logging.Level = %s, want debug", cfg.Logging.Level)
	}
}

func TestHolder_OnChange(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var mu sync.Mutex
	var called bool
	var receivedCfg *config.Config

	h.OnChange(func(cfg *config.Config) {
		mu.Lock()
		called = true
		receivedCfg = cfg
		mu.Unlock()
	})

	newContent := `
database:
  dsn: ":memory:"
entities:
  paths: ["blog.yaml"]
`
	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !called {
		t.Error("OnChange callback was not called")
	}
	if receivedCfg == nil {
		t.Fatal("received nil config in callback")
	}
	if len(receivedCfg.Entities.Paths) != 1 || receivedCfg.Entities.Paths[0] != "blog.yaml" {
		t.Errorf("callback received Entities.Paths = %v, want [blog.yaml]", receivedCfg.Entities.Paths)
	}
}

func TestHolder_ReloadInvalidConfig(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	invalidContent := `
database:
  driver: "postgres"
`
	if err := os.WriteFile(path, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("write invalid config: %v", err)
	}

	if err := h.Reload(); err == nil {
		t.Error("Reload should fail for invalid config")
	}

	// Old config should still be in place
	cfg := h.Get()
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("should keep old config, got Database.Driver = %s", cfg.Database.Driver)
	}
}

func TestHolder_WatchFile(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	changed := make(chan struct{}, 8)
	h.OnChange(func(*config.Config) {
		changed <- struct{}{}
	})

	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile error: %v", err)
	}

	newContent := `
database:
  dsn: ":memory:"
engine:
  max_depth: 5
`
	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("file watcher did not trigger reload")
	}

	// A write can surface as several events; wait for the final content.
	deadline := time.Now().Add(2 * time.Second)
	for h.Get().Engine.MaxDepth != 5 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := h.Get().Engine.MaxDepth; got != 5 {
		t.Errorf("after file watch, MaxDepth = %d, want 5", got)
	}
}

func TestHolder_StopTwice(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile error: %v", err)
	}
	h.WatchSignals()

	h.Stop()
	h.Stop()
}

func TestHolder_ConcurrentAccess(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if h.Get() == nil {
					t.Error("concurrent Get returned nil")
				}
			}
		}()
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Reload()
		}()
	}

	wg.Wait()
}

func TestReloadableFields(t *testing.T) {
	fields := config.ReloadableFields()
	if len(fields) == 0 {
		t.Error("ReloadableFields returned empty")
	}

	expected := []string{"engine.page_size", "entities.paths", "logging.level"}
	for _, e := range expected {
		if !contains(fields, e) {
			t.Errorf("%s not in ReloadableFields", e)
		}
	}
}

func TestNonReloadableFields(t *testing.T) {
	fields := config.NonReloadableFields()
	if len(fields) == 0 {
		t.Error("NonReloadableFields returned empty")
	}

	expected := []string{"server.host", "server.port", "database.driver", "database.dsn"}
	for _, e := range expected {
		if !contains(fields, e) {
			t.Errorf("%s not in NonReloadableFields", e)
		}
	}

	for _, f := range fields {
		if contains(config.ReloadableFields(), f) {
			t.Errorf("%s listed as both reloadable and non-reloadable", f)
		}
	}
}

// Helpers

func validConfig() string {
	return `
database:
  dsn: ":memory:"

engine:
  page_size: 50
`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
