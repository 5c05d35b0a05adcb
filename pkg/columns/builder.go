// Package columns maps column and action descriptors to grid column
// definitions. Renderers are looked up by name in a Registry; a row action
// column is prepended when the entity declares actions.
package columns

import (
	"context"
	"errors"

	"github.com/goliatone/go-crudmeta/pkg/logging"
	"github.com/goliatone/go-crudmeta/pkg/model"
)

const (
	// ActionsField is the field key of the actions column.
	ActionsField = "__actions__"
	// ActionsHeader is the header of the actions column.
	ActionsHeader = "Actions"
	// ActionsWidth is the fixed width of the actions column.
	ActionsWidth = 160
	// PinnedLeft pins a column to the left edge.
	PinnedLeft = "left"
)

// ErrNoHandler is returned when an action control has nothing to dispatch to.
var ErrNoHandler = errors.New("columns: no action handler")

// ActionHandler executes row actions. The action dispatcher implements it.
type ActionHandler interface {
	Trigger(ctx context.Context, action model.ActionConfig, row model.Row) error
	Busy(row model.Row) bool
}

// ColumnDef is a grid column definition.
type ColumnDef struct {
	HeaderName         string
	Field              string
	Sortable           bool
	Filterable         bool
	Flex               int
	Width              int
	Hide               bool
	Pinned             string
	SuppressHeaderMenu bool
	Renderer           CellRenderer
	RendererName       string
	RendererParams     map[string]any
	Actions            *ActionsColumn
}

// Cell returns the display value of the column for row.
func (c ColumnDef) Cell(row model.Row) any {
	value := row[c.Field]
	if c.Renderer == nil {
		return value
	}
	return c.Renderer(CellContext{Value: value, Row: row, Params: c.RendererParams})
}

// Option configures a Builder.
type Option func(*Builder)

// WithRegistry sets the renderer registry.
func WithRegistry(registry *Registry) Option {
	return func(b *Builder) {
		if registry != nil {
			b.registry = registry
		}
	}
}

// WithLogger sets the logger used for renderer warnings.
func WithLogger(logger logging.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithPalette sets the palette used to resolve action icon colours.
func WithPalette(palette Palette) Option {
	return func(b *Builder) {
		b.palette = palette
	}
}

// Builder builds column definitions.
type Builder struct {
	registry *Registry
	logger   logging.Logger
	palette  Palette
}

// NewBuilder creates a Builder using DefaultRegistry unless overridden.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		registry: DefaultRegistry(),
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Build maps columns to definitions and prepends the actions column when
// actions is non-empty. Unknown renderers are logged and left unset.
func (b *Builder) Build(columns []model.ColumnConfig, actions []model.ActionConfig, handler ActionHandler) []ColumnDef {
	defs := make([]ColumnDef, 0, len(columns)+1)
	if len(actions) > 0 {
		defs = append(defs, ColumnDef{
			HeaderName:         ActionsHeader,
			Field:              ActionsField,
			Width:              ActionsWidth,
			Pinned:             PinnedLeft,
			SuppressHeaderMenu: true,
			Actions: &ActionsColumn{
				actions: append([]model.ActionConfig(nil), actions...),
				handler: handler,
				palette: b.palette,
			},
		})
	}

	for _, column := range columns {
		def := ColumnDef{
			HeaderName:     column.HeaderName,
			Field:          column.Field,
			Sortable:       true,
			Filterable:     true,
			Flex:           1,
			Hide:           column.Hide,
			RendererParams: column.RendererParams,
		}
		if column.Renderer != "" {
			def.Renderer = b.resolve(column)
			if def.Renderer != nil {
				def.RendererName = column.Renderer
			}
		}
		defs = append(defs, def)
	}
	return defs
}

func (b *Builder) resolve(column model.ColumnConfig) CellRenderer {
	factory, err := b.registry.Get(column.Renderer)
	if err != nil {
		b.logger.Printf("columns: column %q: %v, using default rendering", column.Field, err)
		return nil
	}
	renderer, err := factory(column.RendererParams)
	if err != nil || renderer == nil {
		b.logger.Printf("columns: column %q: renderer %q: %v, using default rendering", column.Field, column.Renderer, err)
		return nil
	}
	return renderer
}

// ActionsColumn renders the row action controls.
type ActionsColumn struct {
	actions []model.ActionConfig
	handler ActionHandler
	palette Palette
}

// ActionControl is one action button of a row.
type ActionControl struct {
	ActionID   string
	Label      string
	Icon       string
	Color      string
	Tooltip    string
	IconButton bool
	Disabled   bool

	action  model.ActionConfig
	row     model.Row
	handler ActionHandler
}

// Controls returns one control per action for row. Controls are disabled
// while the handler reports the row busy.
func (c *ActionsColumn) Controls(row model.Row) []ActionControl {
	busy := c.handler != nil && c.handler.Busy(row)
	controls := make([]ActionControl, 0, len(c.actions))
	for _, action := range c.actions {
		controls = append(controls, ActionControl{
			ActionID:   action.ID,
			Label:      action.Label,
			Icon:       action.Icon,
			Color:      c.palette.Resolve(action.IconColor),
			Tooltip:    action.Tooltip,
			IconButton: action.Icon != "",
			Disabled:   busy,
			action:     action,
			row:        row,
			handler:    c.handler,
		})
	}
	return controls
}

// Control returns the control of action id for row.
func (c *ActionsColumn) Control(row model.Row, id string) (ActionControl, bool) {
	for _, ctl := range c.Controls(row) {
		if ctl.ActionID == id {
			return ctl, true
		}
	}
	return ActionControl{}, false
}

// Click dispatches the action for the control's row.
func (c ActionControl) Click(ctx context.Context) error {
	if c.handler == nil {
		return ErrNoHandler
	}
	return c.handler.Trigger(ctx, c.action, c.row)
}
