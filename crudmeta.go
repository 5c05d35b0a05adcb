// Package crudmeta wires the metadata driven admin engine: an entity
// controller over a remote API, an action dispatcher and a column builder
// sharing one form component registry, handler registry and palette.
package crudmeta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-crudmeta/pkg/actions"
	"github.com/goliatone/go-crudmeta/pkg/client"
	"github.com/goliatone/go-crudmeta/pkg/columns"
	"github.com/goliatone/go-crudmeta/pkg/entity"
	"github.com/goliatone/go-crudmeta/pkg/form"
	"github.com/goliatone/go-crudmeta/pkg/logging"
	"github.com/goliatone/go-crudmeta/pkg/model"
	"github.com/goliatone/go-crudmeta/pkg/options"
)

var (
	// ErrRowNotFound is returned when a row id is not among the loaded rows.
	ErrRowNotFound = errors.New("crudmeta: row not found")
	// ErrActionNotFound is returned when the active entity has no such action.
	ErrActionNotFound = errors.New("crudmeta: action not found")
)

// Option configures an Admin.
type Option func(*settings)

type settings struct {
	logger      logging.Logger
	output      io.Writer
	components  *form.Components
	handlers    *actions.Handlers
	renderers   *columns.Registry
	palette     columns.Palette
	selector    theme.ThemeSelector
	themeName   string
	variant     string
	fetcher     options.Fetcher
	content     actions.ContentRenderer
	afterAction actions.AfterActionFunc
	formSubmit  actions.FormSubmitFunc
	onChange    func(entity.State)
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger logging.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOutput sets where the default exportRow handler writes. Defaults to
// os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		s.output = w
	}
}

// WithComponents replaces the form component registry. The default holds
// FormA, FormB and FormC.
func WithComponents(components *form.Components) Option {
	return func(s *settings) {
		if components != nil {
			s.components = components
		}
	}
}

// WithHandlers replaces the custom action handlers.
func WithHandlers(handlers *actions.Handlers) Option {
	return func(s *settings) {
		if handlers != nil {
			s.handlers = handlers
		}
	}
}

// WithRenderers replaces the cell renderer registry.
func WithRenderers(registry *columns.Registry) Option {
	return func(s *settings) {
		if registry != nil {
			s.renderers = registry
		}
	}
}

// WithPalette sets the action icon palette directly.
func WithPalette(palette columns.Palette) Option {
	return func(s *settings) {
		s.palette = palette
	}
}

// WithThemeSelector resolves the action icon palette from a go-theme
// selection of name and variant. It takes precedence over WithPalette.
func WithThemeSelector(selector theme.ThemeSelector, name, variant string) Option {
	return func(s *settings) {
		s.selector = selector
		s.themeName = name
		s.variant = variant
	}
}

// WithFetcher sets the option fetcher for dynamic selects.
func WithFetcher(fetcher options.Fetcher) Option {
	return func(s *settings) {
		s.fetcher = fetcher
	}
}

// WithContentRenderer replaces the confirmation dialog renderer.
func WithContentRenderer(renderer actions.ContentRenderer) Option {
	return func(s *settings) {
		s.content = renderer
	}
}

// WithAfterAction registers a callback run after an action completes and
// the rows were refreshed.
func WithAfterAction(fn actions.AfterActionFunc) Option {
	return func(s *settings) {
		s.afterAction = fn
	}
}

// WithFormSubmit sets the submit of form action dialogs.
func WithFormSubmit(fn actions.FormSubmitFunc) Option {
	return func(s *settings) {
		s.formSubmit = fn
	}
}

// WithOnChange observes every controller state change.
func WithOnChange(fn func(entity.State)) Option {
	return func(s *settings) {
		s.onChange = fn
	}
}

// Admin is a ready to use entity admin.
type Admin struct {
	Controller *entity.Controller
	Dispatcher *actions.Dispatcher
	Builder    *columns.Builder

	logger logging.Logger
}

// New wires an Admin reading entities through api and issuing action
// requests through requester.
func New(api entity.API, requester actions.Requester, opts ...Option) (*Admin, error) {
	if api == nil {
		return nil, errors.New("crudmeta: entity api is required")
	}
	s := &settings{logger: logging.Default(), output: os.Stdout}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.components == nil {
		s.components = form.NewComponents()
		form.RegisterBuiltins(s.components)
	}
	if s.handlers == nil {
		s.handlers = actions.DefaultHandlers(s.output, s.logger)
	}
	if s.renderers == nil {
		s.renderers = columns.DefaultRegistry()
	}
	if s.selector != nil {
		palette, err := columns.SelectPalette(s.selector, s.themeName, s.variant)
		if err != nil {
			return nil, fmt.Errorf("crudmeta: theme: %w", err)
		}
		s.palette = palette
	}

	a := &Admin{logger: s.logger}

	ctlOpts := []entity.Option{
		entity.WithLogger(s.logger),
		entity.WithComponents(s.components),
	}
	if s.fetcher != nil {
		ctlOpts = append(ctlOpts, entity.WithFetcher(s.fetcher))
	}
	ctlOpts = append(ctlOpts, entity.WithOnChange(a.onChange(s.onChange)))
	a.Controller = entity.NewController(api, ctlOpts...)

	dispOpts := []actions.Option{
		actions.WithLogger(s.logger),
		actions.WithComponents(s.components),
		actions.WithHandlers(s.handlers),
		actions.WithAfterAction(a.afterAction(s.afterAction)),
	}
	if s.fetcher != nil {
		dispOpts = append(dispOpts, actions.WithOptionsFetcher(s.fetcher))
	}
	if s.content != nil {
		dispOpts = append(dispOpts, actions.WithContentRenderer(s.content))
	}
	if s.formSubmit != nil {
		dispOpts = append(dispOpts, actions.WithFormSubmit(s.formSubmit))
	}
	a.Dispatcher = actions.NewDispatcher(requester, dispOpts...)

	a.Builder = columns.NewBuilder(
		columns.WithRegistry(s.renderers),
		columns.WithLogger(s.logger),
		columns.WithPalette(s.palette),
	)
	return a, nil
}

// NewRemote wires an Admin over a JSON client: entities, rows, actions and
// option lookups all go through c.
func NewRemote(c *client.Client, opts ...Option) (*Admin, error) {
	base := []Option{WithFetcher(c)}
	return New(client.NewEntityAPI(c), c, append(base, opts...)...)
}

// onChange drops the action cells of rows that are gone once rows reload.
func (a *Admin) onChange(next func(entity.State)) func(entity.State) {
	return func(state entity.State) {
		if state.RowsStatus == entity.StatusLoaded && a.Dispatcher != nil {
			a.Dispatcher.Prune(state.Rows)
		}
		if next != nil {
			next(state)
		}
	}
}

// afterAction refreshes the active rows before handing over to next.
func (a *Admin) afterAction(next actions.AfterActionFunc) actions.AfterActionFunc {
	return func(ctx context.Context, action model.ActionConfig, result any) {
		if err := a.Controller.Refresh(ctx); err != nil && !errors.Is(err, entity.ErrSuperseded) {
			a.logger.Printf("crudmeta: refresh after %q: %v", action.ID, err)
		}
		if next != nil {
			next(ctx, action, result)
		}
	}
}

// Load fetches the entity list and selects the first entity.
func (a *Admin) Load(ctx context.Context) error {
	return a.Controller.Load(ctx)
}

// Select makes entity id active, loading its config and rows.
func (a *Admin) Select(ctx context.Context, id string) error {
	meta := model.EntityConfig{ID: id}
	for _, known := range a.Controller.State().Entities {
		if known.ID == id {
			meta = known
			break
		}
	}
	return a.Controller.Select(ctx, meta)
}

// Columns returns the grid columns of the active entity.
func (a *Admin) Columns() []columns.ColumnDef {
	return a.Controller.Columns(a.Builder, a.Dispatcher)
}

// Row returns the loaded row with id.
func (a *Admin) Row(id string) (model.Row, bool) {
	for _, row := range a.Controller.State().Rows {
		if model.Stringify(row["id"]) == id {
			return row, true
		}
	}
	return nil, false
}

// NewForm builds the create or edit form of the active entity.
func (a *Admin) NewForm(mode form.Mode, initial model.FormState) (form.Form, error) {
	return a.Controller.NewForm(mode, initial)
}

// Trigger clicks action actionID on row rowID of the active entity and
// returns the row's action cell, whose dialog may now be open.
func (a *Admin) Trigger(ctx context.Context, rowID, actionID string) (*actions.Cell, error) {
	row, ok := a.Row(rowID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRowNotFound, rowID)
	}
	for _, def := range a.Columns() {
		if def.Actions == nil {
			continue
		}
		ctl, ok := def.Actions.Control(row, actionID)
		if !ok {
			break
		}
		// Held before the click: a refresh may prune the cell of a removed row.
		cell := a.Dispatcher.Cell(row)
		return cell, ctl.Click(ctx)
	}
	return nil, fmt.Errorf("%w: %q", ErrActionNotFound, actionID)
}
