package faultline

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Default tuning values applied by Config.normalize.
const (
	DefaultHost      = "https://api.faultline.example"
	DefaultPoolSize  = 2
	DefaultQueueSize = 100
	DefaultTimeout   = 10 * time.Second
)

// Config captures all runtime configuration for the error-reporting client.
type Config struct {
	// ProjectID and ProjectKey identify and authenticate the project on the
	// collection endpoint. Both are required.
	ProjectID  int64
	ProjectKey string

	// Host is the base URL of the collection endpoint.
	Host string

	// Environment names the deployment environment ("production", "test").
	Environment string

	// IgnoredEnvironments suppresses all delivery when Environment is
	// listed here.
	IgnoredEnvironments []string

	// BlacklistKeys and WhitelistKeys seed the built-in redaction stages.
	// Blacklisted keys are redacted; when a whitelist is present every key
	// not on it is redacted.
	BlacklistKeys []string
	WhitelistKeys []string

	// PoolSize is the number of async delivery workers; QueueSize bounds
	// the async task queue.
	PoolSize  int
	QueueSize int

	// Timeout bounds each outbound delivery request.
	Timeout time.Duration

	// Logger receives operational events (async fallback warnings and the
	// like). A zero value disables logging.
	Logger zerolog.Logger
}

// Validate checks the configuration and returns ErrInvalidConfig describing
// every problem found.
func (c *Config) Validate() error {
	var errs []string
	if c.ProjectID <= 0 {
		errs = append(errs, "project id must be a positive integer")
	}
	if strings.TrimSpace(c.ProjectKey) == "" {
		errs = append(errs, "project key is required")
	}
	if c.Host != "" {
		u, err := url.Parse(c.Host)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("host %q is not a valid URL", c.Host))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
}

func (c *Config) normalize() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

func (c *Config) environmentIgnored() bool {
	for _, env := range c.IgnoredEnvironments {
		if env == c.Environment {
			return true
		}
	}
	return false
}

// LoadConfig reads FAULTLINE_* environment variables (including a .env file
// when present), applies defaults, validates required values and returns a
// populated Config.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.ProjectID = ldr.getInt64("FAULTLINE_PROJECT_ID", 0, true)
	cfg.ProjectKey = ldr.getString("FAULTLINE_PROJECT_KEY", "", true)
	cfg.Host = ldr.getString("FAULTLINE_HOST", DefaultHost, false)
	cfg.Environment = ldr.getString("FAULTLINE_ENVIRONMENT", "production", false)
	cfg.IgnoredEnvironments = ldr.getStringSlice("FAULTLINE_IGNORED_ENVIRONMENTS", false)
	cfg.BlacklistKeys = ldr.getStringSlice("FAULTLINE_BLACKLIST_KEYS", false)
	cfg.WhitelistKeys = ldr.getStringSlice("FAULTLINE_WHITELIST_KEYS", false)
	cfg.PoolSize = ldr.getInt("FAULTLINE_POOL_SIZE", DefaultPoolSize, false)
	cfg.QueueSize = ldr.getInt("FAULTLINE_QUEUE_SIZE", DefaultQueueSize, false)
	cfg.Timeout = time.Duration(ldr.getInt("FAULTLINE_TIMEOUT_SECONDS", int(DefaultTimeout/time.Second), false)) * time.Second

	if err := ldr.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	raw := l.getString(key, "", required)
	if raw == "" {
		return def
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getInt64(key string, def int64, required bool) int64 {
	raw := l.getString(key, "", required)
	if raw == "" {
		return def
	}
	i, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
