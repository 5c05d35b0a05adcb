package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-crudmeta/pkg/logging"
	"github.com/goliatone/go-crudmeta/pkg/model"
)

// Handler runs a custom action for a row.
type Handler func(ctx context.Context, row model.Row) error

// Handlers maps handler names to custom action handlers.
type Handlers struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewHandlers creates an empty handler registry.
func NewHandlers() *Handlers {
	return &Handlers{handlers: make(map[string]Handler)}
}

// DefaultHandlers returns a registry with exportRow, which writes the row to
// w as indented JSON, and openAuditLog, which logs the row identifier.
func DefaultHandlers(w io.Writer, logger logging.Logger) *Handlers {
	logger = logging.Or(logger)
	h := NewHandlers()
	h.MustRegister("exportRow", func(_ context.Context, row model.Row) error {
		if w == nil {
			return nil
		}
		payload, err := json.MarshalIndent(row, "", "  ")
		if err != nil {
			return fmt.Errorf("actions: export row: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", payload)
		return err
	})
	h.MustRegister("openAuditLog", func(_ context.Context, row model.Row) error {
		logger.Printf("actions: audit log for row %s", model.Stringify(row["id"]))
		return nil
	})
	return h
}

// Register adds a handler, replacing an existing one with the same name.
func (h *Handlers) Register(name string, handler Handler) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("actions: handler name is required")
	}
	if handler == nil {
		return fmt.Errorf("actions: handler %q is nil", name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[name] = handler
	return nil
}

// MustRegister panics when Register fails.
func (h *Handlers) MustRegister(name string, handler Handler) {
	if err := h.Register(name, handler); err != nil {
		panic(err)
	}
}

// Lookup returns the handler registered under name. A nil registry holds
// nothing.
func (h *Handlers) Lookup(name string) (Handler, bool) {
	if h == nil {
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	handler, ok := h.handlers[strings.TrimSpace(name)]
	return handler, ok
}

// Names returns the sorted handler names.
func (h *Handlers) Names() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.handlers))
	for name := range h.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
