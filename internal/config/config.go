package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	// MinBcryptCost is the lowest accepted bcrypt work factor.
	MinBcryptCost = 12
)

// Config is the full runtime configuration of the site.
type Config struct {
	Env         string `yaml:"env"`
	Debug       bool   `yaml:"debug"`
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	BaseURL     string `yaml:"base_url"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	Log        LogConfig        `yaml:"log"`
	Session    SessionConfig    `yaml:"session"`
	Security   SecurityConfig   `yaml:"security"`
	RateLimits RateLimitsConfig `yaml:"rate_limits"`
	Tracking   TrackingConfig   `yaml:"tracking"`
	Uploads    UploadsConfig    `yaml:"uploads"`
	CORS       CORSConfig       `yaml:"cors"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SessionConfig struct {
	CookieName string        `yaml:"cookie_name"`
	TTL        time.Duration `yaml:"ttl"`
	Secure     bool          `yaml:"secure"`
}

type SecurityConfig struct {
	BcryptCost       int           `yaml:"bcrypt_cost"`
	LockoutThreshold int           `yaml:"lockout_threshold"`
	LockoutWindow    time.Duration `yaml:"lockout_window"`
	LockoutDuration  time.Duration `yaml:"lockout_duration"`
	// AccountLockoutThreshold counts failures per login across all client
	// addresses, over the same window and duration.
	AccountLockoutThreshold int `yaml:"account_lockout_threshold"`
	// TrustedProxies lists the addresses or CIDR ranges whose
	// X-Forwarded-For and X-Real-IP headers are believed.
	TrustedProxies []string `yaml:"trusted_proxies"`
	// Global per-IP token bucket applied before routing.
	ThrottlePerSecond int   `yaml:"throttle_per_second"`
	ThrottleBurst     int   `yaml:"throttle_burst"`
	MaxBodyBytes      int64 `yaml:"max_body_bytes"`
}

// RateLimit is a fixed-window budget for one bucket.
type RateLimit struct {
	Window time.Duration `yaml:"window"`
	Max    int           `yaml:"max"`
}

type RateLimitsConfig struct {
	Login      RateLimit `yaml:"login"`
	Booking    RateLimit `yaml:"booking"`
	Contact    RateLimit `yaml:"contact"`
	Newsletter RateLimit `yaml:"newsletter"`
}

type TrackingConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type UploadsConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
	MaxFiles int    `yaml:"max_files"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns a development configuration.
func Default() *Config {
	return &Config{
		Env:      EnvDevelopment,
		HTTPAddr: ":8080",
		BaseURL:  "http://localhost:8080",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Session: SessionConfig{
			CookieName: "ffb_session",
			TTL:        2 * time.Hour,
		},
		Security: SecurityConfig{
			BcryptCost:              MinBcryptCost,
			LockoutThreshold:        5,
			LockoutWindow:           15 * time.Minute,
			LockoutDuration:         15 * time.Minute,
			AccountLockoutThreshold: 10,
			ThrottlePerSecond:       20,
			ThrottleBurst:           40,
			MaxBodyBytes:            32 << 20,
		},
		RateLimits: RateLimitsConfig{
			Login:      RateLimit{Window: 15 * time.Minute, Max: 20},
			Booking:    RateLimit{Window: time.Hour, Max: 5},
			Contact:    RateLimit{Window: time.Hour, Max: 5},
			Newsletter: RateLimit{Window: time.Hour, Max: 3},
		},
		Tracking: TrackingConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Uploads: UploadsConfig{
			Dir:      "uploads/bookings",
			MaxBytes: 5 << 20,
			MaxFiles: 5,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
		},
	}
}

// Load reads .env files (if present), then the YAML file named by
// FFB_CONFIG_FILE, then environment overrides, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("FFB_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	int64v := func(key string, dst *int64) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("FFB_ENV", &c.Env)
	boolean("FFB_DEBUG", &c.Debug)
	str("FFB_HTTP_ADDR", &c.HTTPAddr)
	str("FFB_GRPC_ADDR", &c.GRPCAddr)
	str("FFB_BASE_URL", &c.BaseURL)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("FFB_LOG_LEVEL", &c.Log.Level)
	str("FFB_LOG_FORMAT", &c.Log.Format)
	str("FFB_SESSION_COOKIE", &c.Session.CookieName)
	duration("FFB_SESSION_TTL", &c.Session.TTL)
	boolean("FFB_COOKIE_SECURE", &c.Session.Secure)
	integer("FFB_BCRYPT_COST", &c.Security.BcryptCost)
	integer("FFB_LOCKOUT_THRESHOLD", &c.Security.LockoutThreshold)
	duration("FFB_LOCKOUT_WINDOW", &c.Security.LockoutWindow)
	duration("FFB_LOCKOUT_DURATION", &c.Security.LockoutDuration)
	integer("FFB_ACCOUNT_LOCKOUT_THRESHOLD", &c.Security.AccountLockoutThreshold)
	integer("FFB_THROTTLE_PER_SECOND", &c.Security.ThrottlePerSecond)
	integer("FFB_THROTTLE_BURST", &c.Security.ThrottleBurst)
	int64v("FFB_MAX_BODY_BYTES", &c.Security.MaxBodyBytes)
	str("FFB_TRACKING_SECRET", &c.Tracking.Secret)
	duration("FFB_TRACKING_TTL", &c.Tracking.TTL)
	str("FFB_UPLOAD_DIR", &c.Uploads.Dir)
	int64v("FFB_UPLOAD_MAX_BYTES", &c.Uploads.MaxBytes)
	integer("FFB_UPLOAD_MAX_FILES", &c.Uploads.MaxFiles)

	if v := strings.TrimSpace(os.Getenv("FFB_CORS_ORIGINS")); v != "" {
		c.CORS.AllowedOrigins = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("FFB_TRUSTED_PROXIES")); v != "" {
		c.Security.TrustedProxies = splitList(v)
	}

	if c.Env == EnvProduction {
		if _, ok := os.LookupEnv("FFB_COOKIE_SECURE"); !ok {
			c.Session.Secure = true
		}
	}
	return errors.Join(errs...)
}

// Validate checks invariants that would otherwise surface as runtime
// misbehaviour.
func (c *Config) Validate() error {
	var errs []error
	switch c.Env {
	case EnvProduction, EnvDevelopment, "test":
	default:
		errs = append(errs, fmt.Errorf("unknown env %q", c.Env))
	}
	if c.Security.BcryptCost < MinBcryptCost {
		errs = append(errs, fmt.Errorf("bcrypt cost must be at least %d", MinBcryptCost))
	}
	if c.Security.LockoutThreshold <= 0 {
		errs = append(errs, errors.New("lockout threshold must be positive"))
	}
	if c.Security.LockoutWindow <= 0 || c.Security.LockoutDuration <= 0 {
		errs = append(errs, errors.New("lockout window and duration must be positive"))
	}
	if c.Security.AccountLockoutThreshold < c.Security.LockoutThreshold {
		errs = append(errs, errors.New("account lockout threshold must not be below the lockout threshold"))
	}
	if _, err := c.Security.ProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		errs = append(errs, errors.New("session cookie name is required"))
	}
	for name, rl := range map[string]RateLimit{
		"login":      c.RateLimits.Login,
		"booking":    c.RateLimits.Booking,
		"contact":    c.RateLimits.Contact,
		"newsletter": c.RateLimits.Newsletter,
	} {
		if rl.Window <= 0 || rl.Max <= 0 {
			errs = append(errs, fmt.Errorf("rate limit %s: window and max must be positive", name))
		}
	}
	if c.Uploads.MaxFiles < 0 || c.Uploads.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload limits must be positive"))
	}
	if c.Env == EnvProduction {
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required in production"))
		}
		if len(c.Tracking.Secret) < 32 {
			errs = append(errs, errors.New("FFB_TRACKING_SECRET must be at least 32 bytes in production"))
		}
	}
	return errors.Join(errs...)
}

// ProxyPrefixes parses TrustedProxies. Bare addresses become single-host
// prefixes.
func (s SecurityConfig) ProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, raw := range s.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}
