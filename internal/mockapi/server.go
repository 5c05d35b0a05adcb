// Package mockapi serves a catalog over HTTP in the shape the entity client
// expects: entity metadata, per-entity rows and the option endpoints
// referenced by dynamic selects.
package mockapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-crudmeta/components/timezones"
	"github.com/goliatone/go-crudmeta/pkg/catalog"
	"github.com/goliatone/go-crudmeta/pkg/client"
	"github.com/goliatone/go-crudmeta/pkg/logging"
	"github.com/goliatone/go-crudmeta/pkg/model"
)

// DataPrefix is where entity rows are served.
const DataPrefix = "/api/data/"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDelay holds every option response for d, imitating slow lookups.
func WithDelay(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithTimezones tunes the timezone search endpoint.
func WithTimezones(opts ...timezones.Option) Option {
	return func(s *Server) {
		s.timezones = append(s.timezones, opts...)
	}
}

// WithoutTimezones disables the timezone search endpoint.
func WithoutTimezones() Option {
	return func(s *Server) {
		s.noTimezones = true
	}
}

// Server is the reference entity API.
type Server struct {
	catalog     *catalog.Catalog
	logger      logging.Logger
	delay       time.Duration
	timezones   []timezones.Option
	noTimezones bool
	engine      *gin.Engine
}

// New builds the router over cat. Unless disabled, a timezone search is
// mounted at timezones.DefaultPath listing the first zones for an empty
// query.
func New(cat *catalog.Catalog, opts ...Option) *Server {
	s := &Server{
		catalog:   cat,
		logger:    logging.Default(),
		timezones: []timezones.Option{timezones.WithEmptyMode(timezones.EmptyTop)},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.correlate())

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.GET("/entity/", s.listEntities)
		api.GET("/entity/:id", s.getEntity)

		api.GET("/data/:entity", s.listRows)
		api.POST("/data/:entity", s.createRow)
		api.PUT("/data/:entity/:id", s.updateRow)
		api.DELETE("/data/:entity/:id", s.deleteRow)
	}

	mounted := map[string]bool{}
	for _, path := range s.optionPaths() {
		r.GET(path, s.options)
		mounted[path] = true
	}
	s.mountTimezones(r, mounted)
	return r
}

func (s *Server) mountTimezones(r *gin.Engine, mounted map[string]bool) {
	if s.noTimezones {
		return
	}
	path := timezones.NewConfig(s.timezones...).Path
	if mounted[path] {
		s.logger.Printf("mockapi: option set at %s replaces the timezone search", path)
		return
	}
	if _, err := timezones.Register(r, s.timezones...); err != nil {
		s.logger.Printf("mockapi: timezone search disabled: %v", err)
	}
}

// correlate echoes the client's correlation id and logs the request.
func (s *Server) correlate() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		if id := c.GetHeader(client.CorrelationHeader); id != "" {
			c.Header(client.CorrelationHeader, id)
		}
		c.Next()
		s.logger.Printf("mockapi: %s %s %d %s", c.Request.Method, c.Request.URL.RequestURI(), c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) optionPaths() []string {
	seen := map[string]bool{}
	var paths []string
	for _, uri := range s.catalog.OptionURIs() {
		parsed, err := url.Parse(uri)
		if err != nil || parsed.Path == "" || seen[parsed.Path] {
			continue
		}
		if strings.HasPrefix(parsed.Path, "/api/entity/") || strings.HasPrefix(parsed.Path, DataPrefix) {
			s.logger.Printf("mockapi: option set %s shadows entity routes, skipped", uri)
			continue
		}
		seen[parsed.Path] = true
		paths = append(paths, parsed.Path)
	}
	sort.Strings(paths)
	return paths
}

func (s *Server) listEntities(c *gin.Context) {
	entities, err := s.catalog.ListEntities(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entities)
}

func (s *Server) getEntity(c *gin.Context) {
	cfg, err := s.catalog.GetEntity(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) listRows(c *gin.Context) {
	rows, err := s.catalog.ListRows(c.Request.Context(), dataPath(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) createRow(c *gin.Context) {
	var payload model.Row
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	row, err := s.catalog.CreateRow(c.Request.Context(), dataPath(c), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (s *Server) updateRow(c *gin.Context) {
	var payload model.Row
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	row, err := s.catalog.UpdateRow(c.Request.Context(), dataPath(c), c.Param("id"), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) deleteRow(c *gin.Context) {
	if err := s.catalog.DeleteRow(c.Request.Context(), dataPath(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// options serves the option set registered for the request URI. A known
// path with an unknown query yields an empty list.
func (s *Server) options(c *gin.Context) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-c.Request.Context().Done():
			return
		}
	}
	set, ok := s.catalog.OptionSet(c.Request.URL.RequestURI())
	if !ok {
		set = []any{}
	}
	c.JSON(http.StatusOK, set)
}

func dataPath(c *gin.Context) string {
	return DataPrefix + c.Param("entity")
}

func respondError(c *gin.Context, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
