// Package config assembles crudctl settings. Sources apply in order of
// increasing precedence: built-in defaults, an optional YAML file, a .env
// file and CRUDMETA_* environment variables. Command line flags are applied
// by the caller on top of the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-crudmeta/pkg/client"
	"github.com/goliatone/go-crudmeta/pkg/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CRUDMETA_"

// Environment keys, without EnvPrefix.
const (
	KeyConfig       = "CONFIG"
	KeyBaseURL      = "BASE_URL"
	KeyTimeout      = "TIMEOUT"
	KeyCacheTTL     = "CACHE_TTL"
	KeyTheme        = "THEME"
	KeyThemeVariant = "THEME_VARIANT"
	KeyCatalog      = "CATALOG"
	KeyListen       = "LISTEN"
)

// Theme names the colour theme and carries its tokens. Variants override
// Tokens per variant name.
type Theme struct {
	Name     string                       `yaml:"name"`
	Variant  string                       `yaml:"variant"`
	Tokens   map[string]string            `yaml:"tokens"`
	Variants map[string]map[string]string `yaml:"variants"`
}

// Config holds the CLI settings.
type Config struct {
	BaseURL  string        `yaml:"baseURL"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
	Theme    Theme         `yaml:"theme"`
	// Catalog is a directory or file of entity catalogs. Empty selects the
	// embedded demo catalog.
	Catalog string `yaml:"catalog"`
	Listen  string `yaml:"listen"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		BaseURL:  "http://localhost:8080",
		Timeout:  10 * time.Second,
		CacheTTL: client.DefaultCacheTTL,
		Theme: Theme{
			Name:    "default",
			Variant: "light",
			Tokens: map[string]string{
				"color.primary":   "#1976d2",
				"color.secondary": "#9c27b0",
				"color.error":     "#d32f2f",
				"color.warning":   "#ed6c02",
				"color.info":      "#0288d1",
				"color.success":   "#2e7d32",
			},
			Variants: map[string]map[string]string{
				"light": {},
				"dark": {
					"color.primary":   "#90caf9",
					"color.secondary": "#ce93d8",
					"color.error":     "#f44336",
					"color.warning":   "#ffa726",
					"color.info":      "#29b6f6",
					"color.success":   "#66bb6a",
				},
			},
		},
		Listen: ":8080",
	}
}

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// Option configures Load.
type Option func(*loader)

type loader struct {
	file     string
	envFiles []string
	lookup   LookupFunc
	logger   logging.Logger
}

// WithFile reads the YAML file at path. A missing file is an error.
func WithFile(path string) Option {
	return func(l *loader) {
		l.file = strings.TrimSpace(path)
	}
}

// WithEnvFiles replaces the default ".env" list. Missing files are skipped.
func WithEnvFiles(paths ...string) Option {
	return func(l *loader) {
		l.envFiles = append([]string(nil), paths...)
	}
}

// WithLookupEnv overrides os.LookupEnv.
func WithLookupEnv(fn LookupFunc) Option {
	return func(l *loader) {
		if fn != nil {
			l.lookup = fn
		}
	}
}

// WithLogger sets the logger for skipped sources.
func WithLogger(logger logging.Logger) Option {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Load resolves the configuration.
func Load(opts ...Option) (Config, error) {
	l := &loader{
		envFiles: []string{".env"},
		lookup:   os.LookupEnv,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	dotenv, err := l.readDotenv()
	if err != nil {
		return Config{}, err
	}
	env := func(key string) (string, bool) {
		if value, ok := l.lookup(EnvPrefix + key); ok {
			return value, true
		}
		value, ok := dotenv[EnvPrefix+key]
		return value, ok
	}

	cfg := Defaults()
	file := l.file
	if file == "" {
		file, _ = env(KeyConfig)
	}
	if file != "" {
		if err := readFile(file, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, env); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l *loader) readDotenv() (map[string]string, error) {
	merged := map[string]string{}
	for _, path := range l.envFiles {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				l.logger.Printf("config: no %s file found, continuing", path)
				continue
			}
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		for key, value := range values {
			if _, seen := merged[key]; !seen {
				merged[key] = value
			}
		}
	}
	return merged, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, env LookupFunc) error {
	strs := []struct {
		key string
		dst *string
	}{
		{KeyBaseURL, &cfg.BaseURL},
		{KeyTheme, &cfg.Theme.Name},
		{KeyThemeVariant, &cfg.Theme.Variant},
		{KeyCatalog, &cfg.Catalog},
		{KeyListen, &cfg.Listen},
	}
	for _, s := range strs {
		if value, ok := env(s.key); ok {
			*s.dst = strings.TrimSpace(value)
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{KeyTimeout, &cfg.Timeout},
		{KeyCacheTTL, &cfg.CacheTTL},
	}
	for _, d := range durations {
		value, ok := env(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Validate checks the resolved settings.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative, got %s", c.Timeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("config: cache ttl must not be negative, got %s", c.CacheTTL)
	}
	if c.BaseURL != "" {
		parsed, err := url.Parse(c.BaseURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("config: base url %q must be an absolute http(s) url", c.BaseURL)
		}
	}
	return nil
}
