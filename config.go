package console

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultListenAddr      = ":8080"
	DefaultRequestTimeout  = 30 * time.Second
	DefaultRefreshInterval = 30 * time.Second
	DefaultPageSize        = 25
	DefaultSessionTTL      = 12 * time.Hour
	DefaultSweepInterval   = 5 * time.Minute
	DefaultShutdownTimeout = 10 * time.Second

	// EnvPrefix prefixes every environment variable, e.g.
	// AIFACTORY_BACKEND_URL.
	EnvPrefix = "AIFACTORY"
)

// Session store kinds.
const (
	SessionStoreMemory   = "memory"
	SessionStorePostgres = "postgres"
)

// Config holds the console configuration.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `mapstructure:"listen_addr"`

	// BasePath is the URL prefix the console is served under, e.g.
	// "/console". Empty serves it at the root.
	BasePath string `mapstructure:"base_path"`

	// BackendURL is the KAM worker URL (required).
	BackendURL string `mapstructure:"backend_url"`

	// WorkerURLs maps worker names (granulator, orchestrator,
	// resource-manager) to their URLs. Workers without an entry are
	// reached through BackendURL.
	WorkerURLs map[string]string `mapstructure:"-"`

	// RequestTimeout bounds every backend call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// RefreshInterval is the page auto-refresh period. Zero disables
	// auto-refresh.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`

	// PageSize is the number of rows per list page.
	PageSize int `mapstructure:"page_size"`

	// SessionStore is "memory" or "postgres".
	SessionStore string `mapstructure:"session_store"`

	// DatabaseURL is required for the postgres session store.
	DatabaseURL string `mapstructure:"database_url"`

	// SessionTTL caps how long a login lives.
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// SweepInterval is how often expired sessions are removed.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	// SecureCookies marks the session cookie Secure. Enable behind TLS.
	SecureCookies bool `mapstructure:"secure_cookies"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	Debug   bool   `mapstructure:"debug"`
	LogFile string `mapstructure:"log_file"`

	// ReadOnly rejects every action that writes to the backend.
	ReadOnly bool `mapstructure:"read_only"`
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// applyDefaults fills in default values for zero-valued fields.
// RefreshInterval is left alone: zero means disabled.
func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	c.BasePath = strings.TrimRight(c.BasePath, "/")
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.SessionStore == "" {
		c.SessionStore = SessionStoreMemory
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("%w: backend_url is required", ErrInvalidConfig)
	}
	if err := validURL(c.BackendURL); err != nil {
		return fmt.Errorf("%w: backend_url: %v", ErrInvalidConfig, err)
	}
	for name, raw := range c.WorkerURLs {
		if err := validURL(raw); err != nil {
			return fmt.Errorf("%w: worker %q url: %v", ErrInvalidConfig, name, err)
		}
	}
	if c.BasePath != "" && !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("%w: base_path must start with /", ErrInvalidConfig)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("%w: page_size must be positive", ErrInvalidConfig)
	}
	if c.RefreshInterval != 0 && c.RefreshInterval < time.Second {
		return fmt.Errorf("%w: refresh_interval must be at least 1s or 0", ErrInvalidConfig)
	}
	if c.RequestTimeout < 0 || c.SessionTTL < 0 || c.SweepInterval < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: database_url is required for the postgres session store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown session_store %q", ErrInvalidConfig, c.SessionStore)
	}
	return nil
}

func validURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// LoadConfig reads the configuration from file (optional; YAML, TOML or
// JSON by extension), a .env file in the working directory and
// AIFACTORY_* environment variables, in increasing precedence. The
// result has defaults applied and is validated.
func LoadConfig(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return loadConfig(viper.New(), file)
}

func loadConfig(v *viper.Viper, file string) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Every key needs a default for Unmarshal to see its env variable.
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("base_path", "")
	v.SetDefault("backend_url", "")
	v.SetDefault("worker_urls", "")
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("refresh_interval", DefaultRefreshInterval)
	v.SetDefault("page_size", DefaultPageSize)
	v.SetDefault("session_store", SessionStoreMemory)
	v.SetDefault("database_url", "")
	v.SetDefault("session_ttl", DefaultSessionTTL)
	v.SetDefault("sweep_interval", DefaultSweepInterval)
	v.SetDefault("secure_cookies", false)
	v.SetDefault("shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("debug", false)
	v.SetDefault("log_file", "")
	v.SetDefault("read_only", false)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	workers, err := workerURLs(v.Get("worker_urls"))
	if err != nil {
		return nil, err
	}
	cfg.WorkerURLs = workers

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// workerURLs accepts a map from a config file or a
// "name=url,name=url" list from the environment.
func workerURLs(raw any) (map[string]string, error) {
	out := make(map[string]string)
	switch val := raw.(type) {
	case nil:
	case string:
		for _, pair := range strings.Split(val, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			name, u, ok := strings.Cut(pair, "=")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("%w: worker_urls entry %q is not name=url", ErrInvalidConfig, pair)
			}
			out[strings.TrimSpace(name)] = strings.TrimSpace(u)
		}
	case map[string]any:
		for name, u := range val {
			s, ok := u.(string)
			if !ok {
				return nil, fmt.Errorf("%w: worker_urls.%s must be a string", ErrInvalidConfig, name)
			}
			out[name] = s
		}
	case map[string]string:
		for name, u := range val {
			out[name] = u
		}
	default:
		return nil, fmt.Errorf("%w: worker_urls has unsupported type %T", ErrInvalidConfig, raw)
	}
	return out, nil
}
