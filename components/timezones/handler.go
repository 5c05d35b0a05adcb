package timezones

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// DefaultPath is where Register mounts the handler.
const DefaultPath = "/api/timezones"

// Config tunes the handler.
type Config struct {
	Path         string
	SearchParam  string
	LimitParam   string
	DefaultLimit int
	MaxLimit     int
	Empty        EmptyMode
	// Zones overrides the embedded list.
	Zones []string
}

// Option configures the handler.
type Option func(*Config)

func WithPath(path string) Option {
	return func(c *Config) { c.Path = path }
}

func WithSearchParam(name string) Option {
	return func(c *Config) { c.SearchParam = name }
}

func WithLimitParam(name string) Option {
	return func(c *Config) { c.LimitParam = name }
}

func WithLimits(def, maxLimit int) Option {
	return func(c *Config) {
		c.DefaultLimit = def
		c.MaxLimit = maxLimit
	}
}

func WithEmptyMode(mode EmptyMode) Option {
	return func(c *Config) { c.Empty = mode }
}

func WithZones(zones []string) Option {
	return func(c *Config) { c.Zones = append([]string(nil), zones...) }
}

// NewConfig applies opts over the defaults: q and limit parameters, 50
// results by default, 200 at most, nothing for an empty query.
func NewConfig(opts ...Option) Config {
	cfg := Config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.SearchParam == "" {
		cfg.SearchParam = "q"
	}
	if cfg.LimitParam == "" {
		cfg.LimitParam = "limit"
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 200
	}
	if cfg.Empty == "" {
		cfg.Empty = EmptyNone
	}
	return cfg
}

// Limit resolves the raw limit parameter. Missing or unparsable values use
// the default; negative values yield zero.
func (c Config) Limit(raw string) int {
	limit, err := strconv.Atoi(raw)
	switch {
	case err != nil || limit == 0:
		limit = c.DefaultLimit
	case limit < 0:
		return 0
	}
	return min(limit, c.MaxLimit)
}

// Handler answers GET requests with {"data": [{label, value}]}.
func Handler(opts ...Option) (gin.HandlerFunc, error) {
	cfg := NewConfig(opts...)
	zones := cfg.Zones
	if zones == nil {
		var err error
		if zones, err = Embedded(); err != nil {
			return nil, err
		}
	}
	return func(c *gin.Context) {
		found := Search(zones, c.Query(cfg.SearchParam), cfg.Limit(c.Query(cfg.LimitParam)), cfg.Empty)
		c.JSON(http.StatusOK, gin.H{"data": AsOptions(found)})
	}, nil
}

// Register mounts the handler on r at the configured path.
func Register(r gin.IRoutes, opts ...Option) (string, error) {
	h, err := Handler(opts...)
	if err != nil {
		return "", err
	}
	path := NewConfig(opts...).Path
	r.GET(path, h)
	return path, nil
}
