package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[search]
debounce_ms = 150
page_size = 10
min_query_length = 2
case_sensitive = true
fuzzy = false
fuzzy_threshold = 0.5
cache_size = 10

[server]
addr = ":9090"
request_log = false

[data]
kind = "sqlite"
path = "snippets.db"
table = "snippets"
columns = ["title", "body"]
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	want := &Config{
		Search: SearchConfig{
			DebounceMs:     150,
			PageSize:       10,
			MinQueryLength: 2,
			CaseSensitive:  true,
			Fuzzy:          false,
			FuzzyThreshold: 0.5,
			CacheSize:      10,
		},
		Server: ServerConfig{
			Addr:       ":9090",
			RequestLog: false,
		},
		Data: DataConfig{
			Kind:    "sqlite",
			Path:    "snippets.db",
			Table:   "snippets",
			Columns: []string{"title", "body"},
		},
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("LoadConfig() = %+v, want %+v", cfg, want)
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
[search]
debounce_ms = 50
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Search.DebounceMs != 50 {
		t.Errorf("DebounceMs = %d, want 50", cfg.Search.DebounceMs)
	}
	defaults := DefaultConfig()
	if cfg.Search.PageSize != defaults.Search.PageSize {
		t.Errorf("PageSize = %d, want default %d", cfg.Search.PageSize, defaults.Search.PageSize)
	}
	if cfg.Server.Addr != defaults.Server.Addr {
		t.Errorf("Addr = %q, want default %q", cfg.Server.Addr, defaults.Server.Addr)
	}
	if cfg.Data.Kind != defaults.Data.Kind {
		t.Errorf("Kind = %q, want default %q", cfg.Data.Kind, defaults.Data.Kind)
	}
}

func TestLoadConfigRecoversValidSections(t *testing.T) {
	// page_size has the wrong type, which fails the strict decode but
	// still parses into a loose map. The salvage pass should keep the
	// good keys and leave the bad one at its default.
	path := writeConfig(t, `
[search]
debounce_ms = 50
page_size = "twenty"

[server]
addr = ":7070"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Search.DebounceMs != 50 {
		t.Errorf("DebounceMs = %d, want 50", cfg.Search.DebounceMs)
	}
	if want := DefaultConfig().Search.PageSize; cfg.Search.PageSize != want {
		t.Errorf("PageSize = %d, want default %d", cfg.Search.PageSize, want)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Addr = %q, want \":7070\"", cfg.Server.Addr)
	}
}

func TestLoadConfigGarbageFallsBackToDefaults(t *testing.T) {
	path := writeConfig(t, "not [valid toml at all = = =")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("LoadConfig() on garbage = %+v, want defaults", cfg)
	}
}

func TestInitConfigCreatesCommentedDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relist", "config.toml")

	cfg, err := InitConfig(path)
	if err != nil {
		t.Fatalf("InitConfig() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("InitConfig() = %+v, want defaults", cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "# relist configuration") {
		t.Errorf("written file should start with a comment header, got %q", string(data[:40]))
	}

	// The template must stay in sync with DefaultConfig.
	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() on written template error = %v", err)
	}
	want := DefaultConfig()
	want.Data.Columns = []string{}
	if !reflect.DeepEqual(reloaded, want) {
		t.Errorf("template drifted from defaults: %+v vs %+v", reloaded, want)
	}
}

func TestInitConfigKeepsExistingFile(t *testing.T) {
	path := writeConfig(t, `
[search]
debounce_ms = 42
`)

	cfg, err := InitConfig(path)
	if err != nil {
		t.Fatalf("InitConfig() error = %v", err)
	}
	if cfg.Search.DebounceMs != 42 {
		t.Errorf("DebounceMs = %d, want 42 from existing file", cfg.Search.DebounceMs)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		description string
		mutate      func(*Config)
		wantErr     bool
	}{
		{
			description: "defaults are valid",
			mutate:      func(c *Config) {},
			wantErr:     false,
		},
		{
			description: "negative debounce",
			mutate:      func(c *Config) { c.Search.DebounceMs = -1 },
			wantErr:     true,
		},
		{
			description: "negative page size",
			mutate:      func(c *Config) { c.Search.PageSize = -5 },
			wantErr:     true,
		},
		{
			description: "negative cache size",
			mutate:      func(c *Config) { c.Search.CacheSize = -1 },
			wantErr:     true,
		},
		{
			description: "threshold above one",
			mutate:      func(c *Config) { c.Search.FuzzyThreshold = 1.5 },
			wantErr:     true,
		},
		{
			description: "threshold of zero is valid",
			mutate:      func(c *Config) { c.Search.FuzzyThreshold = 0 },
			wantErr:     false,
		},
		{
			description: "sqlite without path",
			mutate: func(c *Config) {
				c.Data.Kind = DataKindSQLite
				c.Data.Table = "snippets"
			},
			wantErr: true,
		},
		{
			description: "sqlite without table",
			mutate: func(c *Config) {
				c.Data.Kind = DataKindSQLite
				c.Data.Path = "snippets.db"
			},
			wantErr: true,
		},
		{
			description: "sqlite without columns",
			mutate: func(c *Config) {
				c.Data.Kind = DataKindSQLite
				c.Data.Path = "snippets.db"
				c.Data.Table = "snippets"
			},
			wantErr: true,
		},
		{
			description: "sqlite fully specified",
			mutate: func(c *Config) {
				c.Data.Kind = DataKindSQLite
				c.Data.Path = "snippets.db"
				c.Data.Table = "snippets"
				c.Data.Columns = []string{"title"}
			},
			wantErr: false,
		},
		{
			description: "words without path",
			mutate:      func(c *Config) { c.Data.Kind = DataKindWords },
			wantErr:     true,
		},
		{
			description: "file with path",
			mutate: func(c *Config) {
				c.Data.Kind = DataKindFile
				c.Data.Path = "lines.txt"
			},
			wantErr: false,
		},
		{
			description: "unknown kind",
			mutate:      func(c *Config) { c.Data.Kind = "redis" },
			wantErr:     true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
