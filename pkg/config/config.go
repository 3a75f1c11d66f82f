/*
Package config manages TOML config for the relist binary.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bastiangx/relist/internal/utils"
	"github.com/charmbracelet/log"
)

// Data source kinds accepted in [data] kind.
const (
	DataKindStatic = "static"
	DataKindSQLite = "sqlite"
	DataKindWords  = "words"
	DataKindFile   = "file"
)

// Config holds the entire config structure
type Config struct {
	Search SearchConfig `toml:"search"`
	Server ServerConfig `toml:"server"`
	Data   DataConfig   `toml:"data"`
}

// SearchConfig has controller related options.
type SearchConfig struct {
	DebounceMs     int     `toml:"debounce_ms"`
	PageSize       int     `toml:"page_size"`
	MinQueryLength int     `toml:"min_query_length"`
	CaseSensitive  bool    `toml:"case_sensitive"`
	Fuzzy          bool    `toml:"fuzzy"`
	FuzzyThreshold float64 `toml:"fuzzy_threshold"`
	CacheSize      int     `toml:"cache_size"`
}

// ServerConfig has web server related options.
type ServerConfig struct {
	Addr       string `toml:"addr"`
	RequestLog bool   `toml:"request_log"`
}

// DataConfig picks the data source backing the controller.
type DataConfig struct {
	Kind    string   `toml:"kind"`
	Path    string   `toml:"path"`
	Table   string   `toml:"table"`
	Columns []string `toml:"columns"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
// 4. builtin defaults
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		execDir, execErr := utils.GetExecutableDir()
		if execErr != nil {
			return "", execErr
		}
		return execDir, nil
	}
	primaryPath := filepath.Join(homeDir, ".config", "relist")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	// Not conventional, fallback from ~/.config if not writable
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "relist")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/relist/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	var config *Config
	var err error

	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err = LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err = InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			DebounceMs:     300,
			PageSize:       20,
			MinQueryLength: 0,
			CaseSensitive:  false,
			Fuzzy:          true,
			FuzzyThreshold: 0.3,
			CacheSize:      100,
		},
		Server: ServerConfig{
			Addr:       ":8080",
			RequestLog: true,
		},
		Data: DataConfig{
			Kind:    DataKindStatic,
			Path:    "",
			Table:   "",
			Columns: nil,
		},
	}
}

// defaultConfigFile is written on first run so users get a documented
// starting point instead of a bare struct dump.
const defaultConfigFile = `# relist configuration

[search]
# Milliseconds to wait after the last keystroke before searching.
debounce_ms = 300
# Items per page.
page_size = 20
# Queries shorter than this are ignored (0 disables the gate).
min_query_length = 0
case_sensitive = false
# Fuzzy scoring instead of plain substring matching.
fuzzy = true
# Minimum fuzzy score to keep a result, between 0.0 and 1.0.
fuzzy_threshold = 0.3
# Cached result pages, 0 disables caching.
cache_size = 100

[server]
# Listen address for the web subcommand.
addr = ":8080"
request_log = true

[data]
# One of: static, sqlite, words, file.
kind = "static"
# Source path for sqlite, words and file kinds.
path = ""
# Table to query, sqlite kind only.
table = ""
# Columns to search, sqlite kind only. First column is the display value.
columns = []
`

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		if err := os.WriteFile(configPath, []byte(defaultConfigFile), 0644); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return DefaultConfig(), nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse salvages valid sections from a broken TOML file
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if searchSection, ok := utils.ExtractSection(tempConfig, "search"); ok {
		extractSearchConfig(searchSection, &config.Search)
	}
	if serverSection, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(serverSection, &config.Server)
	}
	if dataSection, ok := utils.ExtractSection(tempConfig, "data"); ok {
		extractDataConfig(dataSection, &config.Data)
	}
	return config, nil
}

// extractSearchConfig extracts search configuration from a map
func extractSearchConfig(data map[string]any, search *SearchConfig) {
	if val, ok := utils.ExtractInt64(data, "debounce_ms"); ok {
		search.DebounceMs = val
	}
	if val, ok := utils.ExtractInt64(data, "page_size"); ok {
		search.PageSize = val
	}
	if val, ok := utils.ExtractInt64(data, "min_query_length"); ok {
		search.MinQueryLength = val
	}
	if val, ok := utils.ExtractBool(data, "case_sensitive"); ok {
		search.CaseSensitive = val
	}
	if val, ok := utils.ExtractBool(data, "fuzzy"); ok {
		search.Fuzzy = val
	}
	if val, ok := utils.ExtractFloat64(data, "fuzzy_threshold"); ok {
		search.FuzzyThreshold = val
	}
	if val, ok := utils.ExtractInt64(data, "cache_size"); ok {
		search.CacheSize = val
	}
}

// extractServerConfig extracts server configuration from a map
func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractString(data, "addr"); ok {
		server.Addr = val
	}
	if val, ok := utils.ExtractBool(data, "request_log"); ok {
		server.RequestLog = val
	}
}

// extractDataConfig extracts data source configuration from a map
func extractDataConfig(data map[string]any, dc *DataConfig) {
	if val, ok := utils.ExtractString(data, "kind"); ok {
		dc.Kind = val
	}
	if val, ok := utils.ExtractString(data, "path"); ok {
		dc.Path = val
	}
	if val, ok := utils.ExtractString(data, "table"); ok {
		dc.Table = val
	}
	if val, ok := utils.ExtractStrings(data, "columns"); ok {
		dc.Columns = val
	}
}

// Validate checks the loaded values against the same rules the controller
// enforces, so bad configs fail before anything is built on top of them.
func (c *Config) Validate() error {
	if c.Search.DebounceMs < 0 {
		return fmt.Errorf("negative debounce_ms %d", c.Search.DebounceMs)
	}
	if c.Search.PageSize < 0 {
		return fmt.Errorf("negative page_size %d", c.Search.PageSize)
	}
	if c.Search.MinQueryLength < 0 {
		return fmt.Errorf("negative min_query_length %d", c.Search.MinQueryLength)
	}
	if c.Search.CacheSize < 0 {
		return fmt.Errorf("negative cache_size %d", c.Search.CacheSize)
	}
	if c.Search.FuzzyThreshold < 0 || c.Search.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy_threshold %v outside [0, 1]", c.Search.FuzzyThreshold)
	}
	switch c.Data.Kind {
	case DataKindStatic:
	case DataKindSQLite:
		if c.Data.Path == "" {
			return fmt.Errorf("data kind %q needs a path", c.Data.Kind)
		}
		if c.Data.Table == "" {
			return fmt.Errorf("data kind %q needs a table", c.Data.Kind)
		}
		if len(c.Data.Columns) == 0 {
			return fmt.Errorf("data kind %q needs at least one column", c.Data.Kind)
		}
	case DataKindWords, DataKindFile:
		if c.Data.Path == "" {
			return fmt.Errorf("data kind %q needs a path", c.Data.Kind)
		}
	default:
		return fmt.Errorf("unknown data kind %q", c.Data.Kind)
	}
	return nil
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	configDir := filepath.Dir(defaultPath)
	if err := utils.EnsureDir(configDir); err != nil {
		return err
	}
	return os.WriteFile(defaultPath, []byte(defaultConfigFile), 0644)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}
