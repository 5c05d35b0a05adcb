// Package actions executes row actions. A form action opens a sub-form
// dialog seeded with the row, an api action calls an endpoint (optionally
// after confirmation) and a custom action runs a named handler. Each row has
// its own Cell holding the dialog and loading state; a row runs one action
// at a time.
package actions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/goliatone/go-crudmeta/pkg/columns"
	"github.com/goliatone/go-crudmeta/pkg/form"
	"github.com/goliatone/go-crudmeta/pkg/logging"
	"github.com/goliatone/go-crudmeta/pkg/model"
	"github.com/goliatone/go-crudmeta/pkg/options"
)

// Requester performs JSON requests. client.Client implements it.
type Requester interface {
	Do(ctx context.Context, method, url string, body, out any) error
}

// AfterActionFunc receives the outcome of a completed action: the parsed
// response of an api action or the submitted values of a form action.
type AfterActionFunc func(ctx context.Context, action model.ActionConfig, result any)

// FormSubmitFunc is the submit behaviour of sub-forms opened by form actions.
type FormSubmitFunc func(ctx context.Context, action model.ActionConfig, data model.FormState) error

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHandlers sets the custom handler registry.
func WithHandlers(handlers *Handlers) Option {
	return func(d *Dispatcher) {
		d.handlers = handlers
	}
}

// WithComponents sets the registry used for component sub-forms.
func WithComponents(components *form.Components) Option {
	return func(d *Dispatcher) {
		d.components = components
	}
}

// WithOptionsFetcher sets the fetcher used by dynamic selects of schema
// sub-forms.
func WithOptionsFetcher(fetcher options.Fetcher) Option {
	return func(d *Dispatcher) {
		d.fetcher = fetcher
	}
}

// WithLogger sets the logger for swallowed failures.
func WithLogger(logger logging.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithAfterAction sets the completion callback.
func WithAfterAction(fn AfterActionFunc) Option {
	return func(d *Dispatcher) {
		d.afterAction = fn
	}
}

// WithFormSubmit sets the submit behaviour of sub-forms.
func WithFormSubmit(fn FormSubmitFunc) Option {
	return func(d *Dispatcher) {
		d.formSubmit = fn
	}
}

// WithContentRenderer overrides the dialog content renderer.
func WithContentRenderer(renderer ContentRenderer) Option {
	return func(d *Dispatcher) {
		if renderer != nil {
			d.content = renderer
		}
	}
}

// Dispatcher routes actions to their execution strategy.
type Dispatcher struct {
	requester   Requester
	handlers    *Handlers
	components  *form.Components
	fetcher     options.Fetcher
	logger      logging.Logger
	afterAction AfterActionFunc
	formSubmit  FormSubmitFunc
	content     ContentRenderer

	mu    sync.Mutex
	cells map[string]*Cell
}

var _ columns.ActionHandler = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher issuing api calls through requester.
func NewDispatcher(requester Requester, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		requester: requester,
		logger:    logging.Default(),
		content:   NewTemplateContent(),
		cells:     make(map[string]*Cell),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Cell returns the action state of row, creating it on first use.
func (d *Dispatcher) Cell(row model.Row) *Cell {
	key := rowKey(row)

	d.mu.Lock()
	defer d.mu.Unlock()

	cell, ok := d.cells[key]
	if !ok {
		cell = &Cell{dispatcher: d}
		d.cells[key] = cell
	}
	cell.mu.Lock()
	cell.row = row
	cell.mu.Unlock()
	return cell
}

// Trigger starts action for row.
func (d *Dispatcher) Trigger(ctx context.Context, action model.ActionConfig, row model.Row) error {
	return d.Cell(row).Trigger(ctx, action)
}

// Busy reports whether row has an action in flight.
func (d *Dispatcher) Busy(row model.Row) bool {
	d.mu.Lock()
	cell, ok := d.cells[rowKey(row)]
	d.mu.Unlock()
	return ok && cell.Loading()
}

// Prune drops the idle cells of rows missing from rows and returns how many
// were dropped. Busy cells and cells with an open dialog are kept.
func (d *Dispatcher) Prune(rows []model.Row) int {
	keep := make(map[string]bool, len(rows))
	for _, row := range rows {
		keep[rowKey(row)] = true
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	dropped := 0
	for key, cell := range d.cells {
		if keep[key] {
			continue
		}
		cell.mu.Lock()
		idle := !cell.loading && !cell.dialog.Open
		cell.mu.Unlock()
		if idle {
			delete(d.cells, key)
			dropped++
		}
	}
	return dropped
}

func rowKey(row model.Row) string {
	if id, ok := row["id"]; ok && !model.IsEmpty(id) {
		return "id:" + model.Stringify(id)
	}
	return fmt.Sprintf("ptr:%p", row)
}

// DialogKind identifies what an open dialog shows.
type DialogKind string

const (
	DialogForm    DialogKind = "form"
	DialogConfirm DialogKind = "confirm"
	DialogWaiting DialogKind = "waiting"
)

// Dialog is the dialog state of a row.
type Dialog struct {
	Open     bool
	Kind     DialogKind
	ActionID string
	Title    string
	Content  string
	Form     form.Form
	Loading  bool
}

// Cell holds the action state of one row.
type Cell struct {
	dispatcher *Dispatcher

	mu      sync.Mutex
	row     model.Row
	dialog  Dialog
	pending *model.ActionConfig
	loading bool
	lastErr error
}

// Dialog returns a snapshot of the dialog.
func (c *Cell) Dialog() Dialog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialog
}

// Loading reports whether an action is in flight.
func (c *Cell) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the last swallowed failure of the row, if any.
func (c *Cell) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Trigger starts action. Form actions and confirmed api actions open a
// dialog and return; other api and custom actions run to completion.
// Configuration errors are returned. Network and handler failures are
// logged, recorded in Err and not returned.
func (c *Cell) Trigger(ctx context.Context, action model.ActionConfig) error {
	c.mu.Lock()
	if c.loading || c.dialog.Open {
		c.mu.Unlock()
		return ErrBusy
	}
	c.lastErr = nil

	switch action.Type {
	case model.ActionForm:
		defer c.mu.Unlock()
		return c.openForm(action)
	case model.ActionAPI:
		if action.API == nil {
			c.mu.Unlock()
			return fmt.Errorf("actions: action %q has no endpoint", action.ID)
		}
		if action.API.Confirm || action.API.DialogOptions != nil {
			defer c.mu.Unlock()
			c.openConfirm(action)
			return nil
		}
		row := c.beginLocked()
		c.mu.Unlock()
		return c.call(ctx, action, row)
	case model.ActionCustom:
		row := c.beginLocked()
		c.mu.Unlock()
		return c.runCustom(ctx, action, row)
	default:
		c.mu.Unlock()
		return fmt.Errorf("actions: action %q has unsupported type %q", action.ID, action.Type)
	}
}

// Confirm runs the api action awaiting confirmation.
func (c *Cell) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return ErrNoPendingAction
	}
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	action := *c.pending
	c.pending = nil
	row := c.beginLocked()
	c.mu.Unlock()
	return c.call(ctx, action, row)
}

// beginLocked marks the row busy and returns a copy of it. The busy check
// and this call share one critical section.
func (c *Cell) beginLocked() model.Row {
	c.loading = true
	c.dialog.Loading = true
	return model.CloneState(c.row)
}

// failLocked releases the row after an action that never started.
func (c *Cell) failLocked(err error) {
	c.loading = false
	c.lastErr = err
	c.closeLocked()
}

// Cancel closes the dialog without running anything.
func (c *Cell) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return ErrBusy
	}
	c.closeLocked()
	return nil
}

// SubmitForm submits the sub-form of an open form dialog. ok is false when
// validation blocked the submission; the dialog then stays open.
func (c *Cell) SubmitForm(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.dialog.Kind != DialogForm || c.dialog.Form == nil || !c.dialog.Open {
		c.mu.Unlock()
		return false, ErrNoPendingAction
	}
	if c.loading {
		c.mu.Unlock()
		return false, ErrBusy
	}
	sub := c.dialog.Form
	actionID := c.dialog.ActionID
	c.loading = true
	c.dialog.Loading = true
	c.mu.Unlock()

	ok, err := sub.Submit(ctx)

	c.mu.Lock()
	c.loading = false
	c.dialog.Loading = false
	if err != nil {
		c.dispatcher.logger.Printf("actions: action %q: %v", actionID, err)
		c.lastErr = err
		c.closeLocked()
	}
	c.mu.Unlock()
	return ok, err
}

func (c *Cell) openForm(action model.ActionConfig) error {
	d := c.dispatcher
	if action.Form == nil {
		return fmt.Errorf("actions: action %q has no form", action.ID)
	}

	props := form.Props{
		Mode:        form.ModeEdit,
		InitialData: model.CloneState(c.row),
		OnSubmit: func(ctx context.Context, data model.FormState) error {
			return c.completeForm(ctx, action, data)
		},
	}
	var opts []form.Option
	if d.fetcher != nil {
		opts = append(opts, form.WithFetcher(d.fetcher))
	}
	opts = append(opts, form.WithLogger(d.logger))

	sub := form.Build(*action.Form, d.components, props, opts...)
	content := ""
	if placeholder, ok := sub.(*form.Placeholder); ok {
		d.logger.Printf("actions: action %q: %s", action.ID, placeholder.Message())
		content = placeholder.Message()
	}

	c.dialog = Dialog{
		Open:     true,
		Kind:     DialogForm,
		ActionID: action.ID,
		Title:    action.Label,
		Content:  content,
		Form:     sub,
	}
	return nil
}

// completeForm runs when the sub-form submits valid data.
func (c *Cell) completeForm(ctx context.Context, action model.ActionConfig, data model.FormState) error {
	d := c.dispatcher
	if d.formSubmit != nil {
		if err := d.formSubmit(ctx, action, data); err != nil {
			c.mu.Lock()
			c.closeLocked()
			c.mu.Unlock()
			return err
		}
	}

	c.mu.Lock()
	c.closeLocked()
	c.mu.Unlock()

	if d.afterAction != nil {
		d.afterAction(ctx, action, data)
	}
	return nil
}

func (c *Cell) openConfirm(action model.ActionConfig) {
	title, content := action.Label, ""
	if opts := action.API.DialogOptions; opts != nil {
		if opts.Title != "" {
			title = c.render(action.ID, opts.Title)
		}
		content = c.render(action.ID, opts.Content)
	}
	pending := action
	c.pending = &pending
	c.dialog = Dialog{
		Open:     true,
		Kind:     DialogConfirm,
		ActionID: action.ID,
		Title:    title,
		Content:  content,
	}
}

func (c *Cell) render(actionID, source string) string {
	out, err := c.dispatcher.content.Render(source, c.row)
	if err != nil {
		c.dispatcher.logger.Printf("actions: action %q: %v", actionID, err)
		return sanitizeContent(source)
	}
	return out
}

// call issues the api request of action. The cell is already busy.
func (c *Cell) call(ctx context.Context, action model.ActionConfig, row model.Row) error {
	d := c.dispatcher

	endpoint, err := BuildActionURL(action.API.Endpoint, action.API.IDField, row)
	if err == nil && d.requester == nil {
		err = ErrNoRequester
	}
	if err != nil {
		d.logger.Printf("actions: action %q: %v", action.ID, err)
		c.mu.Lock()
		c.failLocked(err)
		c.mu.Unlock()
		return err
	}

	method := action.API.HTTPMethod()
	var body any
	if method == http.MethodPost || method == http.MethodPut {
		body = row
	}
	var result any
	err = d.requester.Do(ctx, method, endpoint, body, &result)

	c.mu.Lock()
	c.loading = false
	c.closeLocked()
	if err != nil {
		c.lastErr = err
	}
	c.mu.Unlock()

	if err != nil {
		d.logger.Printf("actions: action %q: %s %s: %v", action.ID, method, endpoint, err)
		return nil
	}
	if d.afterAction != nil {
		d.afterAction(ctx, action, result)
	}
	return nil
}

// runCustom runs the handler of action. The cell is already busy.
func (c *Cell) runCustom(ctx context.Context, action model.ActionConfig, row model.Row) error {
	d := c.dispatcher
	name := ""
	if action.Custom != nil {
		name = action.Custom.Handler
	}

	handler, ok := d.handlers.Lookup(name)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrHandlerNotFound, name)
		d.logger.Printf("actions: action %q: %v", action.ID, err)
		c.mu.Lock()
		c.failLocked(err)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.dialog = Dialog{
		Open:     true,
		Kind:     DialogWaiting,
		ActionID: action.ID,
		Title:    action.Label,
		Content:  waitingMessage(action.Label),
		Loading:  true,
	}
	c.mu.Unlock()

	err := handler(ctx, row)

	c.mu.Lock()
	c.loading = false
	c.closeLocked()
	if err != nil {
		c.lastErr = err
	}
	c.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Printf("actions: action %q: handler %q: %v", action.ID, name, err)
	}
	return nil
}

func waitingMessage(label string) string {
	if label == "" {
		return "Please wait while we execute action..."
	}
	return fmt.Sprintf("Please wait while we execute %q...", label)
}

func (c *Cell) closeLocked() {
	c.dialog = Dialog{}
	c.pending = nil
}
