package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// ErrMissingClientID is returned when neither DISCORD_CLIENT_ID nor a bot token is configured
var ErrMissingClientID = errors.New("discord client ID not configured")

// ErrMissingClientSecret is returned when the token exchange has no client secret to present
var ErrMissingClientSecret = errors.New("discord client secret not configured")

// Config holds application configuration
type Config struct {
	Port        int             `toml:"port"`
	StaticDir   string          `toml:"static_dir"`
	Environment string          `toml:"environment"`
	LogLevel    string          `toml:"log_level"`
	Discord     DiscordConfig   `toml:"discord"`
	Session     SessionConfig   `toml:"session"`
	RateLimit   RateLimitConfig `toml:"rate_limit"`
}

// DiscordConfig holds the OAuth2 client settings for the identity provider
type DiscordConfig struct {
	ClientID          string        `toml:"client_id"`
	ClientSecret      string        `toml:"client_secret"`
	BotToken          string        `toml:"bot_token"`
	PublicDomain      string        `toml:"public_domain"`
	FallbackDomain    string        `toml:"fallback_domain"`
	Scopes            []string      `toml:"scopes"`
	InvitePermissions string        `toml:"invite_permissions"`
	HTTPTimeout       time.Duration `toml:"http_timeout"`
}

// SessionConfig holds session cookie settings
type SessionConfig struct {
	Secret string        `toml:"secret"`
	MaxAge time.Duration `toml:"max_age"`
}

// RateLimitConfig holds the per-client limits applied to the auth endpoints
type RateLimitConfig struct {
	Rate  float64 `toml:"rate"`
	Burst int     `toml:"burst"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Port:        5000,
		StaticDir:   "client/dist",
		Environment: "production",
		Discord: DiscordConfig{
			Scopes:            []string{"identify", "email", "guilds"},
			InvitePermissions: "1099816856646",
			HTTPTimeout:       10 * time.Second,
		},
		Session: SessionConfig{
			MaxAge: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Rate:  1,
			Burst: 10,
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file and
// environment variables, in that order of precedence (environment wins).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.Session.Secret == "" && !cfg.IsProduction() {
		log.Warn("SESSION_SECRET not set. Generating random secret for development.")
		log.Warn("Sessions will not survive a restart. Set SESSION_SECRET in production!")
		secret, err := generateRandomSecret()
		if err != nil {
			return nil, err
		}
		cfg.Session.Secret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvInt("PORT", c.Port)
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
	c.Environment = getEnv("ENVIRONMENT", getEnv("NODE_ENV", c.Environment))
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	d := &c.Discord
	d.ClientID = getEnv("DISCORD_CLIENT_ID", d.ClientID)
	d.ClientSecret = getEnv("DISCORD_CLIENT_SECRET", d.ClientSecret)
	d.BotToken = getEnv("DISCORD_TOKEN", d.BotToken)
	d.InvitePermissions = getEnv("DISCORD_INVITE_PERMISSIONS", d.InvitePermissions)
	d.HTTPTimeout = getEnvDuration("DISCORD_HTTP_TIMEOUT", d.HTTPTimeout)
	if scopes := os.Getenv("DISCORD_SCOPES"); scopes != "" {
		d.Scopes = splitList(scopes)
	}

	if domain := os.Getenv("APP_DOMAIN"); domain != "" {
		d.PublicDomain = domain
	} else if domains := splitList(os.Getenv("REPLIT_DOMAINS")); len(domains) > 0 {
		d.PublicDomain = domains[0]
	}

	if fallback := os.Getenv("PUBLIC_DOMAIN_FALLBACK"); fallback != "" {
		d.FallbackDomain = fallback
	} else if slug, owner := os.Getenv("REPL_SLUG"), os.Getenv("REPL_OWNER"); slug != "" && owner != "" {
		d.FallbackDomain = fmt.Sprintf("%s.%s.repl.co", slug, owner)
	}

	c.Session.Secret = getEnv("SESSION_SECRET", c.Session.Secret)
	c.Session.MaxAge = getEnvDuration("SESSION_MAX_AGE", c.Session.MaxAge)

	c.RateLimit.Rate = getEnvFloat("AUTH_RATE_LIMIT", c.RateLimit.Rate)
	c.RateLimit.Burst = getEnvInt("AUTH_RATE_BURST", c.RateLimit.Burst)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.StaticDir == "" {
		return fmt.Errorf("STATIC_DIR must not be empty")
	}

	if c.IsProduction() {
		if len(c.Session.Secret) < 32 {
			return fmt.Errorf("SESSION_SECRET must be at least 32 characters in production")
		}

		// Check for insecure default secrets
		insecureSecrets := []string{
			"change-this-secret-in-production",
			"change-me-in-production",
			"secret",
			"password",
			"changeme",
		}
		for _, insecure := range insecureSecrets {
			if c.Session.Secret == insecure {
				return fmt.Errorf("SESSION_SECRET is set to an insecure default value. Please set a strong random secret")
			}
		}
	} else if len(c.Session.Secret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 characters long")
	}

	if c.Session.MaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive")
	}

	if c.Discord.HTTPTimeout <= 0 {
		return fmt.Errorf("DISCORD_HTTP_TIMEOUT must be positive")
	}

	if len(c.Discord.Scopes) == 0 {
		return fmt.Errorf("at least one OAuth scope must be configured")
	}

	if c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("auth rate limit and burst must be positive")
	}

	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ResolveClientID returns the configured client ID or, failing that, the
// application ID embedded in the first segment of the bot token.
func (d DiscordConfig) ResolveClientID() string {
	if d.ClientID != "" {
		return d.ClientID
	}
	if d.BotToken == "" {
		return ""
	}

	segment, _, _ := strings.Cut(d.BotToken, ".")
	return decodeBotID(segment)
}

// decodeBotID decodes a base64 token segment into a numeric ID. The raw
// segment is returned when it does not decode to one.
func decodeBotID(segment string) string {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(segment)
		if err == nil && isNumeric(string(decoded)) {
			return string(decoded)
		}
	}
	return segment
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// PublicHost returns the externally visible host used to build redirect URIs.
// An explicit domain wins; otherwise the request host is used unless it is a
// loopback address, in which case the fallback domain takes over.
func (d DiscordConfig) PublicHost(requestHost string) string {
	if d.PublicDomain != "" {
		return d.PublicDomain
	}
	if requestHost != "" && !IsLoopbackHost(requestHost) {
		return requestHost
	}
	if d.FallbackDomain != "" {
		return d.FallbackDomain
	}
	return requestHost
}

// IsLoopbackHost reports whether host (optionally with a port) names the local machine
func IsLoopbackHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")

	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return true
	}

	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Warn("ignoring invalid integer", "key", key, "value", value)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
		log.Warn("ignoring invalid number", "key", key, "value", value)
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("10s") or plain seconds
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Warn("ignoring invalid duration", "key", key, "value", value)
	return fallback
}

func generateRandomSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
