// Package config loads runtime settings from the environment. Command-line
// flags may override any of them after loading.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults.
const (
	DefaultAddr          = ":3000"
	DefaultAPIURL        = "http://localhost:4000/api/v1"
	DefaultPageSize      = 8
	DefaultLoadMoreDelay = 300 * time.Millisecond
	DefaultVisitorTTL    = 2 * time.Hour
	DefaultHTTPTimeout   = 15 * time.Second
	DefaultCredentialTTL = 7 * 24 * time.Hour
	DefaultDevAPIAddr    = ":4000"
	DefaultDevAPIDB      = "lofoph-dev.sqlite3"
)

// keySize is the minimum length of decoded session and CSRF keys.
const keySize = 32

// Config holds the front end's settings.
type Config struct {
	Addr          string
	APIURL        string
	SessionKey    []byte
	CSRFKey       []byte
	CookieSecure  bool
	LogLevel      slog.Level
	LogPath       string
	PageSize      int
	LoadMoreDelay time.Duration
	VisitorTTL    time.Duration
	HTTPTimeout   time.Duration
	CredentialTTL time.Duration
}

// DevAPI holds the settings of the development API stand-in.
type DevAPI struct {
	Addr      string
	DBPath    string
	JWTSecret string
	LogLevel  slog.Level
	LogPath   string
}

// Load reads the front end's settings. Missing keys are generated with a
// warning; malformed numbers and durations are errors.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:         getEnv("LOFOPH_ADDR", DefaultAddr),
		APIURL:       strings.TrimRight(getEnv("API_URL", DefaultAPIURL), "/"),
		CookieSecure: getEnv("COOKIE_SECURE", "false") == "true",
		LogPath:      getEnv("LOG_PATH", ""),
	}

	var err error
	if cfg.LogLevel, err = parseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = getInt("PAGE_SIZE", DefaultPageSize); err != nil {
		return nil, err
	}
	if cfg.LoadMoreDelay, err = getDuration("LOAD_MORE_DELAY", DefaultLoadMoreDelay); err != nil {
		return nil, err
	}
	if cfg.VisitorTTL, err = getDuration("VISITOR_TTL", DefaultVisitorTTL); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", DefaultHTTPTimeout); err != nil {
		return nil, err
	}
	if cfg.CredentialTTL, err = getDuration("CREDENTIAL_TTL", DefaultCredentialTTL); err != nil {
		return nil, err
	}

	cfg.SessionKey = loadKey("SESSION_KEY")
	cfg.CSRFKey = loadKey("CSRF_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that flags may have changed after Load.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_URL %q must be an absolute URL", c.APIURL)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if c.CredentialTTL < 0 {
		return fmt.Errorf("credential ttl must not be negative, got %s", c.CredentialTTL)
	}
	if c.LoadMoreDelay < 0 {
		return fmt.Errorf("load more delay must not be negative, got %s", c.LoadMoreDelay)
	}
	return nil
}

// API holds what a command line client needs to reach the REST API.
type API struct {
	URL     string
	Timeout time.Duration
}

// LoadAPI reads only the API settings, without generating keys.
func LoadAPI() (*API, error) {
	cfg := &API{URL: strings.TrimRight(getEnv("API_URL", DefaultAPIURL), "/")}
	var err error
	if cfg.Timeout, err = getDuration("HTTP_TIMEOUT", DefaultHTTPTimeout); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDevAPI reads the development API's settings. The JWT secret may be
// left empty, in which case the store generates and keeps one.
func LoadDevAPI() (*DevAPI, error) {
	cfg := &DevAPI{
		Addr:      getEnv("DEVAPI_ADDR", DefaultDevAPIAddr),
		DBPath:    getEnv("DEVAPI_DB", DefaultDevAPIDB),
		JWTSecret: getEnv("JWT_SECRET", ""),
		LogPath:   getEnv("LOG_PATH", ""),
	}
	var err error
	if cfg.LogLevel, err = parseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("parsing LOG_LEVEL: %w", err)
	}
	return l, nil
}

// loadKey decodes a base64 key from the environment, or generates a random
// one when it is missing or too short.
func loadKey(name string) []byte {
	s := os.Getenv(name)
	if s == "" {
		slog.Warn(name + " not set, generating a random key; visitors will be logged out on restart")
		return randomKey()
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(key) < keySize {
		slog.Warn(name+" is invalid or shorter than 32 bytes, generating a random key", "error", err)
		return randomKey()
	}
	return key
}

func randomKey() []byte {
	b := make([]byte, keySize)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return b
}
