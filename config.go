package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Platforms a base URL can be selected for.
const (
	PlatformNative = "native"
	PlatformWeb    = "web"
)

// Config holds everything read from the environment. Flags override it.
type Config struct {
	APIURL     string `env:"API_URL"         env-default:"http://localhost:8000/api"`
	WebAPIURL  string `env:"WEB_API_URL"`
	Platform   string `env:"PLATFORM"        env-default:"native"`
	TimeoutMS  int    `env:"API_TIMEOUT_MS"  env-default:"30000"`
	MaxRetries int    `env:"API_MAX_RETRIES" env-default:"3"`
	TokenFile  string `env:"TOKEN_FILE"      env-default:".carebook-tokens.json"`
	LogLevel   string `env:"LOG_LEVEL"       env-default:"warn"`
	Email      string `env:"CAREBOOK_EMAIL"`
	Password   string `env:"CAREBOOK_PASSWORD"`

	EnableUploads bool `env:"ENABLE_UPLOADS" env-default:"true"`
}

// Options are one-shot actions that only come from flags.
type Options struct {
	Logout    bool
	Upload    string
	Ephemeral bool
}

// BaseURL returns the backend root for the configured platform. Web falls
// back to the native URL when no web URL is set.
func (c Config) BaseURL() string {
	if c.Platform == PlatformWeb && c.WebAPIURL != "" {
		return c.WebAPIURL
	}
	return c.APIURL
}

// Timeout is the per-attempt request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Profile names the token file section for the configured backend, so one
// file can hold sessions for several servers.
func (c Config) Profile() string {
	u, err := url.Parse(c.BaseURL())
	if err != nil || u.Host == "" {
		return "default"
	}
	return u.Host
}

// Level parses LogLevel, defaulting to warn.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.WarnLevel
	}
	return lvl
}

// loadConfig resolves configuration with priority flag > env > default.
// A .env file in the working directory is loaded first when present.
func loadConfig(args []string, output io.Writer) (Config, Options, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, Options{}, fmt.Errorf("failed to read environment: %w", err)
	}

	var (
		opts     Options
		apiURL   string
		platform string
		token    string
		logLevel string
		email    string
		password string
	)
	fs := flag.NewFlagSet("carebook", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&apiURL, "api-url", "", "Backend base URL (default: http://localhost:8000/api or API_URL env)")
	fs.StringVar(&platform, "platform", "", "Client platform: native or web (PLATFORM env)")
	fs.StringVar(&token, "token-file", "", "Token storage file (default: .carebook-tokens.json or TOKEN_FILE env)")
	fs.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (LOG_LEVEL env)")
	fs.StringVar(&email, "email", "", "Login email (CAREBOOK_EMAIL env)")
	fs.StringVar(&password, "password", "", "Login password (CAREBOOK_PASSWORD env)")
	fs.StringVar(&opts.Upload, "upload", "", "File to upload to the media endpoint")
	fs.BoolVar(&opts.Logout, "logout", false, "Forget the stored session and exit")
	fs.BoolVar(&opts.Ephemeral, "ephemeral", false, "Keep tokens in memory only for this run")
	if err := fs.Parse(args); err != nil {
		return cfg, opts, err
	}

	cfg.APIURL = override(apiURL, cfg.APIURL)
	cfg.Platform = override(platform, cfg.Platform)
	cfg.TokenFile = override(token, cfg.TokenFile)
	cfg.LogLevel = override(logLevel, cfg.LogLevel)
	cfg.Email = override(email, cfg.Email)
	cfg.Password = override(password, cfg.Password)

	if err := cfg.validate(); err != nil {
		return cfg, opts, err
	}
	if opts.Upload != "" && !cfg.EnableUploads {
		return cfg, opts, errors.New("uploads are disabled (ENABLE_UPLOADS=false)")
	}
	return cfg, opts, nil
}

func override(flagValue, current string) string {
	if flagValue != "" {
		return flagValue
	}
	return current
}

func (c Config) validate() error {
	if c.Platform != PlatformNative && c.Platform != PlatformWeb {
		return fmt.Errorf("unknown platform %q (want native or web)", c.Platform)
	}
	if err := validateServerURL(c.APIURL); err != nil {
		return fmt.Errorf("invalid API_URL: %w", err)
	}
	if c.WebAPIURL != "" {
		if err := validateServerURL(c.WebAPIURL); err != nil {
			return fmt.Errorf("invalid WEB_API_URL: %w", err)
		}
	}
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("API_TIMEOUT_MS must be positive, got %d", c.TimeoutMS)
	}
	if c.TokenFile == "" {
		return errors.New("token file cannot be empty")
	}
	return nil
}

// validateServerURL validates that the server URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

// isPlainHTTP reports whether tokens would travel unencrypted to rawURL.
func isPlainHTTP(rawURL string) bool {
	return strings.HasPrefix(strings.ToLower(rawURL), "http://")
}
