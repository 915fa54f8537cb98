package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/provider"
	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"
)

// Search backends accepted in [search].provider.
const (
	SearchNone = ""
	SearchTMDB = "tmdb"
	SearchOMDB = "omdb"
	SearchTVDB = "tvdb"
)

// Config holds the application settings read from config.toml.
type Config struct {
	LogLevel         string `toml:"log_level"`
	EnableLogging    bool   `toml:"enable_logging"`
	LogRetentionDays int    `toml:"log_retention_days"`
	WorkerCount      int    `toml:"worker_count"`
	ItemConcurrency  int    `toml:"item_concurrency"`
	DatabasePath     string `toml:"database_path"`

	Search    Search                    `toml:"search"`
	Fetch     Fetch                     `toml:"fetch"`
	Providers map[string]ProviderConfig `toml:"providers"`
}

// Search configures metadata enrichment.
type Search struct {
	Provider       string `toml:"provider"`
	TMDBAPIKey     string `toml:"tmdb_api_key"`
	TMDBLanguage   string `toml:"tmdb_language"`
	OMDBAPIKey     string `toml:"omdb_api_key"`
	TVDBAPIKey     string `toml:"tvdb_api_key"`
	CacheEnabled   bool   `toml:"cache_enabled"`
	CacheHours     int    `toml:"cache_hours"`
	TimeoutSeconds int    `toml:"timeout_seconds"` // bounds one title lookup
}

// Fetch configures the HTTP fetcher.
type Fetch struct {
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	Retries           int     `toml:"retries"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	MaxInFlight       int     `toml:"max_in_flight"`
	CacheTTLMinutes   int     `toml:"cache_ttl_minutes"`
	RedisURL          string  `toml:"redis_url"`
}

// ProviderConfig overrides one site descriptor. Nil fields keep the
// descriptor default.
type ProviderConfig struct {
	Enabled             *bool `toml:"enabled,omitempty"`
	CorrectionSeconds   *int  `toml:"correction_seconds,omitempty"`
	DropOnMissingDetail *bool `toml:"drop_on_missing_detail,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:         "info",
		EnableLogging:    true,
		LogRetentionDays: 30,
		WorkerCount:      4,
		ItemConcurrency:  8,
		DatabasePath:     "",
		Search: Search{
			Provider:       SearchNone,
			TMDBLanguage:   "en-US",
			CacheEnabled:   true,
			CacheHours:     168,
			TimeoutSeconds: 10,
		},
		Fetch: Fetch{
			TimeoutSeconds:  30,
			Retries:         2,
			MaxInFlight:     8,
			CacheTTLMinutes: 0,
		},
		Providers: map[string]ProviderConfig{},
	}
}

// Dir returns the data directory, ~/.guide-tidy.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".guide-tidy"), nil
}

// ConfigPath returns the path to the config file
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the configuration from the default path.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the configuration from path. A missing file yields the
// defaults. Environment overrides are applied last.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.fillDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillDefaults replaces zero values a file may have set explicitly.
func (cfg *Config) fillDefaults() {
	defaults := DefaultConfig()
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.LogRetentionDays == 0 {
		cfg.LogRetentionDays = defaults.LogRetentionDays
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaults.WorkerCount
	}
	if cfg.ItemConcurrency <= 0 {
		cfg.ItemConcurrency = defaults.ItemConcurrency
	}
	if cfg.Search.TMDBLanguage == "" {
		cfg.Search.TMDBLanguage = defaults.Search.TMDBLanguage
	}
	if cfg.Search.CacheHours <= 0 {
		cfg.Search.CacheHours = defaults.Search.CacheHours
	}
	if cfg.Search.TimeoutSeconds <= 0 {
		cfg.Search.TimeoutSeconds = defaults.Search.TimeoutSeconds
	}
	if cfg.Fetch.TimeoutSeconds <= 0 {
		cfg.Fetch.TimeoutSeconds = defaults.Fetch.TimeoutSeconds
	}
	if cfg.Fetch.MaxInFlight <= 0 {
		cfg.Fetch.MaxInFlight = defaults.Fetch.MaxInFlight
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
}

func (cfg *Config) applyEnv() {
	if key := firstEnv("TMDB_API_KEY", "TMDBKEY"); key != "" {
		cfg.Search.TMDBAPIKey = key
	}
	if key := firstEnv("OMDB_API_KEY"); key != "" {
		cfg.Search.OMDBAPIKey = key
	}
	if key := firstEnv("TVDB_API_KEY"); key != "" {
		cfg.Search.TVDBAPIKey = key
	}
	if url := firstEnv("GUIDE_TIDY_REDIS_URL"); url != "" {
		cfg.Fetch.RedisURL = url
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// Validate reports settings that cannot work.
func (cfg *Config) Validate() error {
	switch strings.ToLower(cfg.Search.Provider) {
	case SearchNone, SearchTMDB, SearchOMDB, SearchTVDB:
	default:
		return fmt.Errorf("unknown search provider %q (want tmdb, omdb, tvdb or empty)", cfg.Search.Provider)
	}
	if cfg.Fetch.Retries < 0 {
		return fmt.Errorf("fetch.retries must not be negative")
	}
	if cfg.Fetch.RequestsPerSecond < 0 {
		return fmt.Errorf("fetch.requests_per_second must not be negative")
	}
	return nil
}

// SearchAPIKey returns the key of the selected search backend.
func (cfg *Config) SearchAPIKey() string {
	switch strings.ToLower(cfg.Search.Provider) {
	case SearchTMDB:
		return cfg.Search.TMDBAPIKey
	case SearchOMDB:
		return cfg.Search.OMDBAPIKey
	case SearchTVDB:
		return cfg.Search.TVDBAPIKey
	}
	return ""
}

// Timeout returns the per-request timeout.
func (f Fetch) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// CacheTTL returns the default response cache lifetime. Zero disables
// caching for descriptors that do not set their own.
func (f Fetch) CacheTTL() time.Duration {
	return time.Duration(f.CacheTTLMinutes) * time.Minute
}

// ApplyProviders pushes the [providers] overrides into r.
func (cfg *Config) ApplyProviders(r *provider.Registry) error {
	for name, pc := range cfg.Providers {
		if pc.Enabled != nil {
			var err error
			if *pc.Enabled {
				err = r.Enable(name)
			} else {
				err = r.Disable(name)
			}
			if err != nil {
				return fmt.Errorf("providers.%s: %w", name, err)
			}
		}

		var o provider.Overrides
		if pc.CorrectionSeconds != nil {
			c := time.Duration(*pc.CorrectionSeconds) * time.Second
			o.Correction = &c
		}
		o.DropOnMissingDetail = pc.DropOnMissingDetail
		if o.Correction == nil && o.DropOnMissingDetail == nil {
			continue
		}
		if err := r.Configure(name, o); err != nil {
			return fmt.Errorf("providers.%s: %w", name, err)
		}
	}
	return nil
}

// Save writes the configuration to the default path.
func (cfg *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return cfg.SaveFile(path)
}

// SaveFile atomically writes the configuration to path.
func (cfg *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := renameio.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
