package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the ytproxy configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Reset    ResetConfig    `yaml:"reset"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
	// Disabled serves every route without a client key. Must be set explicitly.
	Disabled bool `yaml:"disabled"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// UpstreamConfig holds the quota-limited upstream API and its key pool.
type UpstreamConfig struct {
	BaseURL string `yaml:"base_url"`
	// Keys may contain comma-separated entries, so one env variable can carry the whole pool.
	Keys                  []string    `yaml:"keys"`
	DefaultQuota          int         `yaml:"default_quota"`
	QuotaExceededStatuses []int       `yaml:"quota_exceeded_statuses"`
	ConnectTimeoutSec     int         `yaml:"connect_timeout_sec"`
	RequestTimeoutSec     int         `yaml:"request_timeout_sec"`
	ProxyURL              string      `yaml:"proxy_url"`
	NoProxy               string      `yaml:"no_proxy"`
	Costs                 CostsConfig `yaml:"costs"`
}

// CostsConfig holds the quota charged per upstream operation.
type CostsConfig struct {
	Search       int `yaml:"search"`
	Single       int `yaml:"single"`
	PlaylistPage int `yaml:"playlist_page"`
}

// ResetConfig holds the daily UTC time at which every key budget is restored.
type ResetConfig struct {
	At string `yaml:"at"` // HH:MM in UTC
}

// Clock parses At into hour and minute.
func (r ResetConfig) Clock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", r.At)
	if err != nil {
		return 0, 0, fmt.Errorf("reset.at must be HH:MM, got %q", r.At)
	}
	return t.Hour(), t.Minute(), nil
}

// CacheConfig holds the optional response cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes, defaults and validates raw YAML configuration.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	c.Auth.APIKeys = splitKeys(c.Auth.APIKeys)
	c.Upstream.Keys = splitKeys(c.Upstream.Keys)
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "https://www.googleapis.com/youtube/v3"
	}
	if c.Upstream.DefaultQuota <= 0 {
		c.Upstream.DefaultQuota = 10000
	}
	if len(c.Upstream.QuotaExceededStatuses) == 0 {
		c.Upstream.QuotaExceededStatuses = []int{429}
	}
	if c.Upstream.ConnectTimeoutSec <= 0 {
		c.Upstream.ConnectTimeoutSec = 120
	}
	if c.Upstream.RequestTimeoutSec <= 0 {
		c.Upstream.RequestTimeoutSec = 120
	}
	if c.Upstream.Costs.Search <= 0 {
		c.Upstream.Costs.Search = 100
	}
	if c.Upstream.Costs.Single <= 0 {
		c.Upstream.Costs.Single = 6
	}
	if c.Upstream.Costs.PlaylistPage <= 0 {
		c.Upstream.Costs.PlaylistPage = 3
	}

	// One minute after the upstream quota day rolls over.
	if c.Reset.At == "" {
		c.Reset.At = "09:01"
	}

	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 3600
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if !c.Auth.Disabled && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth.api_keys is required unless auth.disabled is set")
	}
	if len(c.Upstream.Keys) == 0 {
		return fmt.Errorf("upstream.keys is required")
	}
	seen := make(map[string]struct{}, len(c.Upstream.Keys))
	for i, k := range c.Upstream.Keys {
		if _, dup := seen[k]; dup {
			return fmt.Errorf("upstream.keys[%d] is a duplicate", i)
		}
		seen[k] = struct{}{}
	}
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url must be an absolute URL, got %q", c.Upstream.BaseURL)
	}
	if c.Upstream.ProxyURL != "" {
		if _, err := url.Parse(c.Upstream.ProxyURL); err != nil {
			return fmt.Errorf("upstream.proxy_url is invalid: %w", err)
		}
	}
	for _, s := range c.Upstream.QuotaExceededStatuses {
		if s < 400 || s > 599 {
			return fmt.Errorf("upstream.quota_exceeded_statuses must be 4xx or 5xx, got %d", s)
		}
	}
	if _, _, err := c.Reset.Clock(); err != nil {
		return err
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache is enabled")
	}
	return nil
}

// splitKeys flattens comma-separated entries and drops blanks.
func splitKeys(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, k := range strings.Split(entry, ",") {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
