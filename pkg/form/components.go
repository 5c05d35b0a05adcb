package form

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/goliatone/go-crudmeta/pkg/model"
)

// Props is what a component receives when it is instantiated.
type Props struct {
	Mode        Mode
	InitialData model.FormState
	OnSubmit    SubmitFunc
}

// ComponentFactory builds a component form.
type ComponentFactory func(Props) Form

// Components maps component names to factories. Lookups are case
// insensitive.
type Components struct {
	mu        sync.RWMutex
	factories map[string]ComponentFactory
}

// NewComponents creates an empty registry.
func NewComponents() *Components {
	return &Components{factories: make(map[string]ComponentFactory)}
}

// Clone returns a copy of the registry to allow isolated registrations.
func (c *Components) Clone() *Components {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cloned := NewComponents()
	for name, factory := range c.factories {
		cloned.factories[name] = factory
	}
	return cloned
}

// Register associates factory with name, replacing any previous entry.
func (c *Components) Register(name string, factory ComponentFactory) error {
	if name = normalizeName(name); name == "" {
		return fmt.Errorf("form: component name is required")
	}
	if factory == nil {
		return fmt.Errorf("form: factory for component %q is nil", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
	return nil
}

// MustRegister panics when Register fails. Useful for init-time wiring.
func (c *Components) MustRegister(name string, factory ComponentFactory) {
	if err := c.Register(name, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered under name.
func (c *Components) Lookup(name string) (ComponentFactory, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	factory, ok := c.factories[normalizeName(name)]
	return factory, ok
}

// Names returns the sorted registered names.
func (c *Components) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Build instantiates the form described by def. Schema definitions become an
// Engine configured with props and opts. Component definitions are looked up
// in components; an unknown name yields a *Placeholder.
func Build(def model.FormDefinition, components *Components, props Props, opts ...Option) Form {
	switch def.Type {
	case model.FormComponent:
		factory, ok := components.Lookup(def.Component)
		if !ok {
			return NewPlaceholder(def.Component, props)
		}
		return factory(props)
	default:
		base := []Option{
			WithMode(props.Mode),
			WithInitialData(props.InitialData),
			WithOnSubmit(props.OnSubmit),
		}
		return New(def.Fields, append(base, opts...)...)
	}
}
