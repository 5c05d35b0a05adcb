package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	crudmeta "github.com/goliatone/go-crudmeta"
	"github.com/goliatone/go-crudmeta/internal/config"
	"github.com/goliatone/go-crudmeta/internal/mockapi"
	"github.com/goliatone/go-crudmeta/pkg/catalog"
	"github.com/goliatone/go-crudmeta/pkg/client"
	"github.com/goliatone/go-crudmeta/pkg/logging"
	"github.com/goliatone/go-crudmeta/pkg/renderers/tui"
)

// offlineBaseURL addresses the in-process reference API.
const offlineBaseURL = "http://crudctl.offline"

type app struct {
	out    io.Writer
	errOut io.Writer
	driver tui.PromptDriver
	lookup config.LookupFunc

	configFile string
	baseURL    string
	timeout    time.Duration
	catalog    string
	themeName  string
	variant    string
	offline    bool
	verbose    bool
	noColor    bool

	cfg    config.Config
	logger logging.Logger
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut}
}

// resolve loads the configuration and applies the flags set on cmd.
func (a *app) resolve(cmd *cobra.Command) error {
	opts := []config.Option{config.WithFile(a.configFile), config.WithLogger(logging.Discard())}
	if a.lookup != nil {
		opts = append(opts, config.WithLookupEnv(a.lookup), config.WithEnvFiles())
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = a.baseURL
	}
	if flags.Changed("timeout") {
		cfg.Timeout = a.timeout
	}
	if flags.Changed("catalog") {
		cfg.Catalog = a.catalog
	}
	if flags.Changed("theme") {
		cfg.Theme.Name = a.themeName
	}
	if flags.Changed("variant") {
		cfg.Theme.Variant = a.variant
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if a.noColor {
		color.NoColor = true
	}
	a.logger = logging.Discard()
	if a.verbose {
		a.logger = log.New(a.errOut, "crudctl: ", log.LstdFlags)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return nil
}

// httpClient returns the JSON client for the configured backend. Offline it
// talks to the reference API in process.
func (a *app) httpClient() (*client.Client, error) {
	opts := []client.Option{client.WithCacheTTL(a.cfg.CacheTTL)}
	if !a.offline {
		opts = append(opts,
			client.WithBaseURL(a.cfg.BaseURL),
			client.WithHTTPClient(&http.Client{Timeout: a.cfg.Timeout}),
		)
		return client.New(opts...), nil
	}

	cat, err := catalog.Load(a.cfg.Catalog)
	if err != nil {
		return nil, err
	}
	handler := mockapi.New(cat, mockapi.WithLogger(a.logger)).Handler()
	opts = append(opts,
		client.WithBaseURL(offlineBaseURL),
		client.WithHTTPClient(&http.Client{Transport: handlerTransport{handler: handler}}),
	)
	return client.New(opts...), nil
}

// admin connects to the backend and selects entityID, or the first entity
// when entityID is empty.
func (a *app) admin(ctx context.Context, entityID string, opts ...crudmeta.Option) (*crudmeta.Admin, error) {
	c, err := a.httpClient()
	if err != nil {
		return nil, err
	}
	base := []crudmeta.Option{
		crudmeta.WithLogger(a.logger),
		crudmeta.WithOutput(a.out),
		crudmeta.WithThemeSelector(a.cfg.Theme.Selector(), a.cfg.Theme.Name, a.cfg.Theme.Variant),
	}
	admin, err := crudmeta.NewRemote(c, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := admin.Load(ctx); err != nil {
		return nil, err
	}
	if entityID != "" {
		if err := admin.Select(ctx, entityID); err != nil {
			return nil, err
		}
	}
	return admin, nil
}

func (a *app) filler() *tui.Filler {
	opts := []tui.Option{tui.WithTheme(tui.Theme{InfoPrefix: "» ", ErrorPrefix: "✗ "})}
	if a.driver != nil {
		opts = append(opts, tui.WithPromptDriver(a.driver))
	} else {
		opts = append(opts, tui.WithPromptDriver(tui.NewSurveyDriver(a.out)))
	}
	return tui.New(opts...)
}

func (a *app) success(format string, args ...any) {
	color.New(color.FgGreen, color.Bold).Fprintf(a.out, "✓ "+format+"\n", args...)
}

func (a *app) warn(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(a.out, "! "+format+"\n", args...)
}

func (a *app) heading(format string, args ...any) {
	color.New(color.FgCyan, color.Bold).Fprintf(a.out, format+"\n", args...)
}

// handlerTransport serves requests with an in-process handler.
type handlerTransport struct {
	handler http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, fmt.Errorf("crudctl: %w", err)
	}
	rec := httptest.NewRecorder()
	t.handler.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}
