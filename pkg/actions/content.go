package actions

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-crudmeta/pkg/model"
)

// ContentRenderer renders dialog text for a row.
type ContentRenderer interface {
	Render(source string, row model.Row) (string, error)
}

// TemplateContent renders dialog text as pongo2 templates with the row bound
// to "row", then sanitises the output. Compiled templates are cached by
// source.
type TemplateContent struct {
	mu        sync.RWMutex
	templates map[string]*pongo2.Template
}

// NewTemplateContent creates a TemplateContent.
func NewTemplateContent() *TemplateContent {
	return &TemplateContent{templates: make(map[string]*pongo2.Template)}
}

// Render executes source against row.
func (c *TemplateContent) Render(source string, row model.Row) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", nil
	}
	if !strings.Contains(source, "{{") && !strings.Contains(source, "{%") {
		return sanitizeContent(source), nil
	}

	tpl, err := c.template(source)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tpl.ExecuteWriter(pongo2.Context{"row": map[string]any(row)}, &buf); err != nil {
		return "", fmt.Errorf("actions: execute dialog template: %w", err)
	}
	return sanitizeContent(buf.String()), nil
}

func (c *TemplateContent) template(source string) (*pongo2.Template, error) {
	c.mu.RLock()
	tpl, ok := c.templates[source]
	c.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	tpl, err := pongo2.FromString(source)
	if err != nil {
		return nil, fmt.Errorf("actions: parse dialog template: %w", err)
	}

	c.mu.Lock()
	c.templates[source] = tpl
	c.mu.Unlock()
	return tpl, nil
}

var (
	contentPolicyOnce sync.Once
	contentPolicy     *bluemonday.Policy
)

func sanitizeContent(raw string) string {
	return strings.TrimSpace(contentSanitizer().Sanitize(strings.TrimSpace(raw)))
}

func contentSanitizer() *bluemonday.Policy {
	contentPolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements("b", "strong", "i", "em", "br", "p", "code")
		contentPolicy = policy
	})
	return contentPolicy
}
