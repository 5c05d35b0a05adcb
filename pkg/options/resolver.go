// Package options resolves remote option lists for dynamic-select fields.
package options

import (
	"context"
	"sync"

	"github.com/goliatone/go-crudmeta/pkg/logging"
	"github.com/goliatone/go-crudmeta/pkg/model"
)

// FieldOptions is the option state of a single field.
type FieldOptions struct {
	Loading bool
	Options []any
}

// OptionsMap maps field names to their option state.
type OptionsMap map[string]FieldOptions

// Fetcher retrieves the option array served at url.
type Fetcher interface {
	FetchOptions(ctx context.Context, url string) ([]any, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]any, error)

// FetchOptions implements Fetcher.
func (fn FetcherFunc) FetchOptions(ctx context.Context, url string) ([]any, error) {
	return fn(ctx, url)
}

// UpdateFunc observes option state transitions.
type UpdateFunc func(name string, options FieldOptions)

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for failed fetches.
func WithLogger(logger logging.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithOnUpdate registers a callback invoked after every state transition.
// The callback runs outside the resolver lock.
func WithOnUpdate(fn UpdateFunc) Option {
	return func(r *Resolver) {
		r.onUpdate = fn
	}
}

type tracker struct {
	observed any
	seen     bool
	gen      uint64
}

// Resolver tracks the option state of every dynamic-select field of a form.
// Each field carries its own generation counter: a response is applied only
// when no newer request or reset happened for that field since it was issued.
type Resolver struct {
	fetcher  Fetcher
	logger   logging.Logger
	onUpdate UpdateFunc

	mu       sync.Mutex
	state    OptionsMap
	trackers map[string]*tracker
	inflight sync.WaitGroup
}

// NewResolver creates a Resolver that fetches through fetcher. A nil fetcher
// leaves every dynamic field with empty options.
func NewResolver(fetcher Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:  fetcher,
		logger:   logging.Default(),
		state:    make(OptionsMap),
		trackers: make(map[string]*tracker),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

type update struct {
	name    string
	options FieldOptions
}

// Resolve brings the option state of fields in line with state, starting
// fetches where the dependency value changed. Fetches complete in the
// background; the returned map is a snapshot taken before they settle.
func (r *Resolver) Resolve(ctx context.Context, fields []model.FieldConfig, state model.FormState) OptionsMap {
	var updates []update
	for _, field := range fields {
		if !field.IsDynamic() {
			continue
		}
		if u, ok := r.resolveField(ctx, field, state); ok {
			updates = append(updates, u)
		}
	}
	r.notify(updates...)
	return r.Snapshot()
}

func (r *Resolver) resolveField(ctx context.Context, field model.FieldConfig, state model.FormState) (update, bool) {
	var dependency any = true
	if field.DependsOn != "" {
		dependency = state[field.DependsOn]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	track := r.tracker(field.Name)

	if field.DependsOn != "" && !model.Truthy(dependency) {
		if !track.seen || !sameValue(track.observed, dependency) {
			track.gen++
		}
		track.observed, track.seen = dependency, true
		cleared := FieldOptions{Options: []any{}}
		r.state[field.Name] = cleared
		return update{name: field.Name, options: cleared}, true
	}

	if track.seen && sameValue(track.observed, dependency) {
		return update{}, false
	}

	track.observed, track.seen = dependency, true
	track.gen++
	loading := FieldOptions{Loading: true, Options: []any{}}
	r.state[field.Name] = loading

	endpoint := ResolveURL(field.OptionsAPI, state)
	r.inflight.Add(1)
	go r.fetch(ctx, field.Name, endpoint, track.gen)

	return update{name: field.Name, options: loading}, true
}

func (r *Resolver) fetch(ctx context.Context, name, endpoint string, gen uint64) {
	defer r.inflight.Done()

	var (
		items []any
		err   error
	)
	if r.fetcher != nil {
		items, err = r.fetcher.FetchOptions(ctx, endpoint)
	}
	if err != nil {
		r.logger.Printf("options: fetch %s for field %q: %v", endpoint, name, err)
		items = nil
	}
	if items == nil {
		items = []any{}
	}

	r.mu.Lock()
	if r.tracker(name).gen != gen {
		r.mu.Unlock()
		return
	}
	settled := FieldOptions{Options: items}
	r.state[name] = settled
	r.mu.Unlock()

	r.notify(update{name: name, options: settled})
}

// ResetOptionsForField clears the options of name and drops any in-flight
// response for it. The next Resolve refetches for the current dependency.
func (r *Resolver) ResetOptionsForField(name string) {
	r.mu.Lock()
	track := r.tracker(name)
	track.gen++
	track.seen = false
	track.observed = nil
	cleared := FieldOptions{Options: []any{}}
	r.state[name] = cleared
	r.mu.Unlock()

	r.notify(update{name: name, options: cleared})
}

// Options returns the current option state of name.
func (r *Resolver) Options(name string) FieldOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneFieldOptions(r.state[name])
}

// Snapshot returns a copy of the option state of every tracked field.
func (r *Resolver) Snapshot() OptionsMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(OptionsMap, len(r.state))
	for name, fo := range r.state {
		out[name] = cloneFieldOptions(fo)
	}
	return out
}

// Wait blocks until every fetch started so far has settled.
func (r *Resolver) Wait() {
	r.inflight.Wait()
}

func (r *Resolver) tracker(name string) *tracker {
	track, ok := r.trackers[name]
	if !ok {
		track = &tracker{}
		r.trackers[name] = track
	}
	return track
}

func (r *Resolver) notify(updates ...update) {
	if r.onUpdate == nil {
		return
	}
	for _, u := range updates {
		r.onUpdate(u.name, cloneFieldOptions(u.options))
	}
}

func cloneFieldOptions(fo FieldOptions) FieldOptions {
	out := FieldOptions{Loading: fo.Loading, Options: make([]any, len(fo.Options))}
	copy(out.Options, fo.Options)
	return out
}

func sameValue(a, b any) bool {
	return model.Stringify(a) == model.Stringify(b)
}
