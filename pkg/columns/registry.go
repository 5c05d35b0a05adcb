package columns

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-crudmeta/pkg/model"
)

// CellContext is what a cell renderer receives.
type CellContext struct {
	Value  any
	Row    model.Row
	Params map[string]any
}

// CellRenderer turns a cell into its display value.
type CellRenderer func(CellContext) any

// RendererFactory builds a CellRenderer from column rendererParams.
type RendererFactory func(params map[string]any) (CellRenderer, error)

// Registry stores cell renderer factories by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]RendererFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]RendererFactory)}
}

// DefaultRegistry returns a registry holding the built-in price and checkbox
// renderers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("price", NewPriceRenderer)
	r.MustRegister("checkbox", NewCheckboxRenderer)
	return r
}

// Register adds a factory. Duplicate names return an error.
func (r *Registry) Register(name string, factory RendererFactory) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("columns: renderer name is required")
	}
	if factory == nil {
		return fmt.Errorf("columns: renderer %q factory is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("columns: renderer %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(name string, factory RendererFactory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Get retrieves a factory by name.
func (r *Registry) Get(name string) (RendererFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("columns: renderer %q not found", name)
	}
	return factory, nil
}

// List returns the sorted registered names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.factories[strings.TrimSpace(name)]
	return ok
}
