package form

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/goliatone/go-crudmeta/pkg/fields"
	"github.com/goliatone/go-crudmeta/pkg/logging"
	"github.com/goliatone/go-crudmeta/pkg/model"
	"github.com/goliatone/go-crudmeta/pkg/options"
)

// Option configures an Engine.
type Option func(*Engine)

// WithInitialData seeds the form state. When absent the state comes from
// model.BuildDefaultData.
func WithInitialData(data model.FormState) Option {
	return func(e *Engine) {
		if data != nil {
			e.initial = model.CloneState(data)
		}
	}
}

// WithMode sets the form mode.
func WithMode(mode Mode) Option {
	return func(e *Engine) {
		if mode != "" {
			e.mode = mode
		}
	}
}

// WithOnSubmit sets the submit callback.
func WithOnSubmit(fn SubmitFunc) Option {
	return func(e *Engine) {
		e.onSubmit = fn
	}
}

// WithResolver sets the option resolver used for dynamic selects.
func WithResolver(resolver *options.Resolver) Option {
	return func(e *Engine) {
		e.resolver = resolver
	}
}

// WithFetcher creates a resolver backed by fetcher. WithResolver wins when
// both are supplied.
func WithFetcher(fetcher options.Fetcher) Option {
	return func(e *Engine) {
		e.fetcher = fetcher
	}
}

// WithLogger sets the logger handed to the resolver.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine is a schema driven form.
type Engine struct {
	fields   []model.FieldConfig
	mode     Mode
	onSubmit SubmitFunc
	resolver *options.Resolver
	fetcher  options.Fetcher
	logger   logging.Logger
	initial  model.FormState

	// changeMu orders state updates with their option resolution so the
	// resolver sees changes in the order they were applied.
	changeMu sync.Mutex

	mu     sync.RWMutex
	state  model.FormState
	errors map[string]string
}

var _ Form = (*Engine)(nil)

// New creates an Engine over fieldset. No fetch happens until Refresh or
// HandleChange is called.
func New(fieldset []model.FieldConfig, opts ...Option) *Engine {
	e := &Engine{
		fields: append([]model.FieldConfig(nil), fieldset...),
		mode:   ModeCreate,
		logger: logging.Default(),
		errors: make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.resolver == nil {
		e.resolver = options.NewResolver(e.fetcher, options.WithLogger(e.logger))
	}
	if e.initial != nil {
		e.state = e.initial
	} else {
		e.state = model.BuildDefaultData(e.fields)
	}
	e.initial = nil
	return e
}

// Mode implements Form.
func (e *Engine) Mode() Mode { return e.mode }

// Fields returns the field descriptors of the form.
func (e *Engine) Fields() []model.FieldConfig {
	return append([]model.FieldConfig(nil), e.fields...)
}

// Values returns a copy of the form state.
func (e *Engine) Values() model.FormState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return model.CloneState(e.state)
}

// Value returns the current value of name.
func (e *Engine) Value(name string) any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state[name]
}

// Refresh runs option resolution against the current state.
func (e *Engine) Refresh(ctx context.Context) options.OptionsMap {
	e.changeMu.Lock()
	defer e.changeMu.Unlock()
	return e.resolver.Resolve(ctx, e.fields, e.Values())
}

// HandleChange sets name to value. Fields that depend directly on name are
// reset to "" and their options cleared; dependents of those fields are not
// touched. Setting a field to its current value is a no-op. Concurrent
// changes resolve options in the order their values were applied.
func (e *Engine) HandleChange(ctx context.Context, name string, value any) {
	e.changeMu.Lock()
	defer e.changeMu.Unlock()

	e.mu.Lock()
	if current, ok := e.state[name]; ok && reflect.DeepEqual(current, value) {
		e.mu.Unlock()
		return
	}
	e.state[name] = value
	var dependents []string
	for _, field := range e.fields {
		if field.DependsOn == name && field.Name != name {
			e.state[field.Name] = ""
			dependents = append(dependents, field.Name)
		}
	}
	snapshot := model.CloneState(e.state)
	e.mu.Unlock()

	for _, dependent := range dependents {
		e.resolver.ResetOptionsForField(dependent)
	}
	e.resolver.Resolve(ctx, e.fields, snapshot)
}

// Validate records a "{label} is required" error for every effectively
// required field whose value is empty and reports whether none was found.
func (e *Engine) Validate() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	errs := make(map[string]string)
	for _, field := range e.fields {
		if !field.EffectiveRequired(e.state) {
			continue
		}
		if model.IsEmpty(e.state[field.Name]) {
			errs[field.Name] = fmt.Sprintf("%s is required", field.DisplayLabel())
		}
	}
	e.errors = errs
	return len(errs) == 0
}

// Errors returns the errors recorded by the last validation.
func (e *Engine) Errors() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.errors))
	for key, value := range e.errors {
		out[key] = value
	}
	return out
}

// Submit validates the form and, on success, hands the state to the submit
// callback.
func (e *Engine) Submit(ctx context.Context) (bool, error) {
	if !e.Validate() {
		return false, nil
	}
	if e.onSubmit == nil {
		return true, nil
	}
	if err := e.onSubmit(ctx, e.Values()); err != nil {
		return true, fmt.Errorf("form: submit: %w", err)
	}
	return true, nil
}

// Options returns the option state of name.
func (e *Engine) Options(name string) options.FieldOptions {
	return e.resolver.Options(name)
}

// Wait blocks until in-flight option fetches settle.
func (e *Engine) Wait() {
	e.resolver.Wait()
}

// Controls renders every field with its current value, options and error.
// Control changes are routed back through HandleChange with ctx.
func (e *Engine) Controls(ctx context.Context) []fields.Control {
	state := e.Values()
	errs := e.Errors()
	onChange := func(name string, value any) {
		e.HandleChange(ctx, name, value)
	}

	controls := make([]fields.Control, 0, len(e.fields))
	for _, field := range e.fields {
		ctl := fields.Render(field, state[field.Name], state, e.resolver.Options(field.Name), onChange)
		ctl.Error = errs[field.Name]
		controls = append(controls, ctl)
	}
	return controls
}

// Control renders the single field name.
func (e *Engine) Control(ctx context.Context, name string) (fields.Control, bool) {
	for _, ctl := range e.Controls(ctx) {
		if ctl.Name == name {
			return ctl, true
		}
	}
	return fields.Control{}, false
}
