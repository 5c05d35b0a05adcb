// Package entity drives the entity lifecycle: list entity metadata, select
// one, load its full config and then its rows, and submit create or edit
// payloads followed by a full row refetch.
package entity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-crudmeta/pkg/columns"
	"github.com/goliatone/go-crudmeta/pkg/form"
	"github.com/goliatone/go-crudmeta/pkg/logging"
	"github.com/goliatone/go-crudmeta/pkg/model"
	"github.com/goliatone/go-crudmeta/pkg/options"
)

var (
	// ErrSuperseded is returned when a newer selection replaced the one a
	// response belonged to. The response is discarded.
	ErrSuperseded = errors.New("entity: selection superseded")
	// ErrNoActiveEntity is returned by operations that need a loaded entity.
	ErrNoActiveEntity = errors.New("entity: no active entity")
	// ErrMissingRowID is returned when an edit payload carries no id.
	ErrMissingRowID = errors.New("entity: edit requires an id")
)

// API is the remote entity API. client.EntityAPI and catalog.Catalog
// implement it.
type API interface {
	ListEntities(ctx context.Context) ([]model.EntityConfig, error)
	GetEntity(ctx context.Context, id string) (model.EntityConfig, error)
	ListRows(ctx context.Context, api string) ([]model.Row, error)
	CreateRow(ctx context.Context, api string, data model.Row) (model.Row, error)
	UpdateRow(ctx context.Context, api, id string, data model.Row) (model.Row, error)
}

// Status is the load state of one resource.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// State is a snapshot of the controller.
type State struct {
	Entities       []model.EntityConfig
	EntitiesStatus Status
	ActiveMeta     *model.EntityConfig
	Active         *model.EntityConfig
	EntityStatus   Status
	Rows           []model.Row
	RowsStatus     Status
	LastError      error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger for swallowed failures.
func WithLogger(logger logging.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithComponents sets the registry for component forms.
func WithComponents(components *form.Components) Option {
	return func(c *Controller) {
		c.components = components
	}
}

// WithFetcher sets the option fetcher for dynamic selects of entity forms.
func WithFetcher(fetcher options.Fetcher) Option {
	return func(c *Controller) {
		c.fetcher = fetcher
	}
}

// WithOnChange registers a callback receiving a snapshot after every state
// transition.
func WithOnChange(fn func(State)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// Controller owns the entity state.
type Controller struct {
	api        API
	logger     logging.Logger
	components *form.Components
	fetcher    options.Fetcher
	onChange   func(State)

	mu    sync.Mutex
	state State
	gen   uint64
	// activeGen is the selection generation that produced state.Active.
	activeGen uint64
}

// NewController creates a Controller over api.
func NewController(api API, opts ...Option) *Controller {
	c := &Controller{
		api:    api,
		logger: logging.Default(),
		state: State{
			EntitiesStatus: StatusIdle,
			EntityStatus:   StatusIdle,
			RowsStatus:     StatusIdle,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// State returns a snapshot of the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Load fetches the entity list and selects the first entity.
func (c *Controller) Load(ctx context.Context) error {
	c.update(func(s *State) { s.EntitiesStatus = StatusLoading })

	entities, err := c.api.ListEntities(ctx)
	if err != nil {
		c.fail(func(s *State) { s.EntitiesStatus = StatusFailed }, "list entities", err)
		return fmt.Errorf("entity: list entities: %w", err)
	}

	c.update(func(s *State) {
		s.Entities = entities
		s.EntitiesStatus = StatusLoaded
	})
	if len(entities) == 0 {
		return nil
	}
	return c.Select(ctx, entities[0])
}

// Select makes meta the active entity: its full config is loaded, then its
// rows. Responses for a selection replaced in the meantime are discarded
// and ErrSuperseded is returned.
func (c *Controller) Select(ctx context.Context, meta model.EntityConfig) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	selected := meta
	c.state.ActiveMeta = &selected
	c.state.EntityStatus = StatusLoading
	c.mu.Unlock()
	c.notify()

	full, err := c.api.GetEntity(ctx, meta.ID)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		c.state.EntityStatus = StatusFailed
		c.state.LastError = err
		// The previous entity stays active and owns the current generation.
		c.activeGen = gen
		c.mu.Unlock()
		c.logger.Printf("entity: get entity %q: %v", meta.ID, err)
		c.notify()
		return fmt.Errorf("entity: get entity %q: %w", meta.ID, err)
	}
	full.Rows = nil
	c.state.Active = &full
	c.activeGen = gen
	c.state.EntityStatus = StatusLoaded
	c.state.Rows = nil
	c.state.RowsStatus = StatusLoading
	c.mu.Unlock()
	c.notify()

	return c.loadRows(ctx, gen, full.API)
}

// Refresh refetches the rows of the active entity. While a newer selection
// is loading the response is discarded and ErrSuperseded is returned.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Active == nil {
		c.mu.Unlock()
		return ErrNoActiveEntity
	}
	gen := c.activeGen
	api := c.state.Active.API
	c.state.RowsStatus = StatusLoading
	c.mu.Unlock()
	c.notify()

	return c.loadRows(ctx, gen, api)
}

// SubmitEntityData creates (POST api) or updates (PUT api/id) a row of the
// active entity and then refetches the whole row list.
func (c *Controller) SubmitEntityData(ctx context.Context, data model.FormState, mode form.Mode) error {
	c.mu.Lock()
	if c.state.Active == nil {
		c.mu.Unlock()
		return ErrNoActiveEntity
	}
	gen := c.activeGen
	api := c.state.Active.API
	c.mu.Unlock()

	payload := model.CloneState(data)
	var err error
	switch mode {
	case form.ModeEdit:
		id, ok := payload["id"]
		if !ok || model.IsEmpty(id) {
			return ErrMissingRowID
		}
		_, err = c.api.UpdateRow(ctx, api, model.Stringify(id), payload)
	default:
		_, err = c.api.CreateRow(ctx, api, payload)
	}
	if err != nil {
		c.fail(nil, "submit "+string(mode), err)
		return fmt.Errorf("entity: submit %s: %w", mode, err)
	}

	return c.loadRows(ctx, gen, api)
}

// NewForm builds the form of the active entity. Its submit calls
// SubmitEntityData with mode.
func (c *Controller) NewForm(mode form.Mode, initial model.FormState) (form.Form, error) {
	c.mu.Lock()
	active := c.state.Active
	c.mu.Unlock()
	if active == nil {
		return nil, ErrNoActiveEntity
	}

	props := form.Props{
		Mode:        mode,
		InitialData: initial,
		OnSubmit: func(ctx context.Context, data model.FormState) error {
			return c.SubmitEntityData(ctx, data, mode)
		},
	}
	opts := []form.Option{form.WithLogger(c.logger)}
	if c.fetcher != nil {
		opts = append(opts, form.WithFetcher(c.fetcher))
	}
	return form.Build(active.Form(), c.components, props, opts...), nil
}

// Columns builds the grid columns of the active entity.
func (c *Controller) Columns(builder *columns.Builder, handler columns.ActionHandler) []columns.ColumnDef {
	c.mu.Lock()
	active := c.state.Active
	c.mu.Unlock()
	if active == nil {
		return nil
	}
	if builder == nil {
		builder = columns.NewBuilder(columns.WithLogger(c.logger))
	}
	return builder.Build(active.Columns, active.Actions, handler)
}

func (c *Controller) loadRows(ctx context.Context, gen uint64, api string) error {
	rows, err := c.api.ListRows(ctx, api)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		c.state.RowsStatus = StatusFailed
		c.state.LastError = err
		c.mu.Unlock()
		c.logger.Printf("entity: list rows %q: %v", api, err)
		c.notify()
		return fmt.Errorf("entity: list rows: %w", err)
	}
	c.state.Rows = rows
	c.state.RowsStatus = StatusLoaded
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) fail(fn func(*State), op string, err error) {
	c.logger.Printf("entity: %s: %v", op, err)
	c.update(func(s *State) {
		if fn != nil {
			fn(s)
		}
		s.LastError = err
	})
}

func (c *Controller) notify() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.State())
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Entities = append([]model.EntityConfig(nil), c.state.Entities...)
	s.Rows = append([]model.Row(nil), c.state.Rows...)
	if c.state.ActiveMeta != nil {
		meta := *c.state.ActiveMeta
		s.ActiveMeta = &meta
	}
	if c.state.Active != nil {
		active := *c.state.Active
		active.Rows = s.Rows
		s.Active = &active
	}
	return s
}
