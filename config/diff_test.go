package config

import (
	"slices"
	"testing"
)

func TestDiff(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		setDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		want    []string
		restart bool
	}{
		{"unchanged", func(*Config) {}, nil, false},
		{"same paths, new slice", func(c *Config) { c.Entities.Paths = []string{"entities"} }, nil, false},
		{"paths", func(c *Config) { c.Entities.Paths = []string{"entities", "more"} }, []string{"entities.paths"}, false},
		{"log level", func(c *Config) { c.Logging.Level = "debug" }, []string{"logging"}, false},
		{"engine", func(c *Config) {
			off := false
			c.Engine.Transactional = &off
			c.Engine.PageSize = 10
		}, []string{"engine.transactional", "engine.page_size"}, false},
		{"dsn", func(c *Config) { c.Database.DSN = "other.db" }, nil, true},
		{"port", func(c *Config) { c.Server.Port = 9000 }, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev, next := base(), base()
			tt.mutate(next)

			if got := diff(prev, next); !slices.Equal(got, tt.want) {
				t.Errorf("diff() = %v, want %v", got, tt.want)
			}
			if got := restartRequired(prev, next); got != tt.restart {
				t.Errorf("restartRequired() = %v, want %v", got, tt.restart)
			}
		})
	}
}
