// Package config loads the service configuration from the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/optimode/mxverify/check"
)

// Config is the typed service configuration.
type Config struct {
	Environment string
	Port        string
	LogLevel    string
	SentryDSN   string

	RedisURL      string // empty selects the in-memory cache
	CacheTTL      time.Duration
	CacheFoldCase bool

	DNSTimeout     time.Duration
	DNSNameservers []string
	DNSRetries     int

	HeloDomain      string
	MailFrom        string
	SMTPPort        string
	SMTPTimeout     time.Duration
	SMTPMode        check.ProbeMode
	MaxConnsPerHost int

	ChunkSize     int
	ChunksPerWave int
	MaxInFlight   int

	MaxUploadBytes int
}

var defaults = map[string]any{
	"ENVIRONMENT":        "development",
	"PORT":               "5000",
	"LOG_LEVEL":          "info",
	"SENTRY_DSN":         "",
	"REDIS_URL":          "",
	"CACHE_TTL":          "1h",
	"CACHE_FOLD_CASE":    false,
	"DNS_TIMEOUT":        "5s",
	"DNS_NAMESERVERS":    "",
	"DNS_RETRIES":        1,
	"HELO_DOMAIN":        "example.com",
	"MAIL_FROM":          "verify@example.com",
	"SMTP_PORT":          "25",
	"SMTP_TIMEOUT":       "10s",
	"SMTP_MODE":          "strict",
	"MAX_CONNS_PER_HOST": 0,
	"CHUNK_SIZE":         1000,
	"WAVE_SIZE":          5,
	"MAX_IN_FLIGHT":      500,
	"MAX_UPLOAD_BYTES":   10 << 20,
}

// Load reads envFiles (".env" when none are given) into the process
// environment, then builds the Config from the environment with defaults.
// A missing env file is not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
		_ = v.BindEnv(k)
	}

	mode, err := check.ParseProbeMode(strings.ToLower(v.GetString("SMTP_MODE")))
	if err != nil {
		return Config{}, fmt.Errorf("SMTP_MODE: %w", err)
	}

	cfg := Config{
		Environment:     v.GetString("ENVIRONMENT"),
		Port:            v.GetString("PORT"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		SentryDSN:       v.GetString("SENTRY_DSN"),
		RedisURL:        v.GetString("REDIS_URL"),
		CacheTTL:        v.GetDuration("CACHE_TTL"),
		CacheFoldCase:   v.GetBool("CACHE_FOLD_CASE"),
		DNSTimeout:      v.GetDuration("DNS_TIMEOUT"),
		DNSNameservers:  splitList(v.GetString("DNS_NAMESERVERS")),
		DNSRetries:      v.GetInt("DNS_RETRIES"),
		HeloDomain:      v.GetString("HELO_DOMAIN"),
		MailFrom:        v.GetString("MAIL_FROM"),
		SMTPPort:        v.GetString("SMTP_PORT"),
		SMTPTimeout:     v.GetDuration("SMTP_TIMEOUT"),
		SMTPMode:        mode,
		MaxConnsPerHost: v.GetInt("MAX_CONNS_PER_HOST"),
		ChunkSize:       v.GetInt("CHUNK_SIZE"),
		ChunksPerWave:   v.GetInt("WAVE_SIZE"),
		MaxInFlight:     v.GetInt("MAX_IN_FLIGHT"),
		MaxUploadBytes:  v.GetInt("MAX_UPLOAD_BYTES"),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.Port == "":
		return errors.New("PORT is required")
	case c.HeloDomain == "" || c.MailFrom == "":
		return errors.New("HELO_DOMAIN and MAIL_FROM are required")
	case c.CacheTTL <= 0:
		return errors.New("CACHE_TTL must be positive")
	case c.DNSTimeout <= 0 || c.SMTPTimeout <= 0:
		return errors.New("DNS_TIMEOUT and SMTP_TIMEOUT must be positive")
	case c.ChunkSize <= 0 || c.ChunksPerWave <= 0 || c.MaxInFlight <= 0:
		return errors.New("CHUNK_SIZE, WAVE_SIZE and MAX_IN_FLIGHT must be positive")
	case c.MaxConnsPerHost < 0:
		return errors.New("MAX_CONNS_PER_HOST cannot be negative")
	case c.MaxUploadBytes <= 0:
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// IsProduction reports whether Environment is "production".
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// MaskedRedisURL returns RedisURL with the password replaced, for logging.
func (c Config) MaskedRedisURL() string {
	if c.RedisURL == "" {
		return ""
	}
	u, err := url.Parse(c.RedisURL)
	if err != nil {
		return "<invalid>"
	}
	return u.Redacted()
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
