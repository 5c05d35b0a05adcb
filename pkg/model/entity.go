package model

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Row is a single record of entity data.
type Row = map[string]any

// FormState holds form values keyed by field name.
type FormState = map[string]any

// EntityConfig describes an entity: its grid, its form and its row actions.
// Rows is transient and never part of the persisted metadata.
type EntityConfig struct {
	ID        string         `json:"id" yaml:"id"`
	Title     string         `json:"title" yaml:"title"`
	API       string         `json:"api" yaml:"api"`
	FormType  FormType       `json:"formType" yaml:"formType"`
	Component string         `json:"component,omitempty" yaml:"component,omitempty"`
	Columns   []ColumnConfig `json:"columns,omitempty" yaml:"columns,omitempty"`
	Fields    []FieldConfig  `json:"fields,omitempty" yaml:"fields,omitempty"`
	Actions   []ActionConfig `json:"actions,omitempty" yaml:"actions,omitempty"`
	Rows      []Row          `json:"rows,omitempty" yaml:"rows,omitempty"`
}

// Form returns the entity's form definition.
func (e EntityConfig) Form() FormDefinition {
	if e.FormType == FormComponent {
		return FormDefinition{Type: FormComponent, Component: e.Component}
	}
	return FormDefinition{Type: FormSchema, Fields: e.Fields}
}

// Meta returns the list view of the entity, without fields, columns,
// actions or rows.
func (e EntityConfig) Meta() EntityConfig {
	return EntityConfig{
		ID:        e.ID,
		Title:     e.Title,
		API:       e.API,
		FormType:  e.FormType,
		Component: e.Component,
	}
}

// Validate checks the structural invariants of the entity.
func (e EntityConfig) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errorf("entity id is required")
	}
	switch e.FormType {
	case FormComponent:
		if strings.TrimSpace(e.Component) == "" {
			return errorf("entity %q: component is required for component forms", e.ID)
		}
	case FormSchema:
		if len(e.Fields) == 0 {
			return errorf("entity %q: fields are required for schema forms", e.ID)
		}
	default:
		return errorf("entity %q: unsupported form type %q", e.ID, e.FormType)
	}
	if err := e.Form().Validate(); err != nil {
		return errorf("entity %q: %v", e.ID, err)
	}
	seen := make(map[string]struct{}, len(e.Actions))
	for _, action := range e.Actions {
		if err := action.Validate(); err != nil {
			return errorf("entity %q: %v", e.ID, err)
		}
		if _, dup := seen[action.ID]; dup {
			return errorf("entity %q: duplicate action %q", e.ID, action.ID)
		}
		seen[action.ID] = struct{}{}
	}
	return nil
}

// entityWire accepts the persisted form_type alias.
type entityWire struct {
	ID        string         `json:"id" yaml:"id"`
	Title     string         `json:"title" yaml:"title"`
	API       string         `json:"api" yaml:"api"`
	FormType  FormType       `json:"formType" yaml:"formType"`
	FormTypeS FormType       `json:"form_type" yaml:"form_type"`
	Component string         `json:"component" yaml:"component"`
	Columns   []ColumnConfig `json:"columns" yaml:"columns"`
	Fields    []FieldConfig  `json:"fields" yaml:"fields"`
	Actions   []ActionConfig `json:"actions" yaml:"actions"`
	Rows      []Row          `json:"rows" yaml:"rows"`
}

func (w entityWire) config() EntityConfig {
	formType := w.FormType
	if formType == "" {
		formType = w.FormTypeS
	}
	if formType == "" {
		formType = FormSchema
		if w.Component != "" {
			formType = FormComponent
		}
	}
	return EntityConfig{
		ID:        w.ID,
		Title:     w.Title,
		API:       w.API,
		FormType:  formType,
		Component: w.Component,
		Columns:   w.Columns,
		Fields:    w.Fields,
		Actions:   w.Actions,
		Rows:      w.Rows,
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *EntityConfig) UnmarshalJSON(data []byte) error {
	var wire entityWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*e = wire.config()
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *EntityConfig) UnmarshalYAML(node *yaml.Node) error {
	var wire entityWire
	if err := node.Decode(&wire); err != nil {
		return err
	}
	*e = wire.config()
	return nil
}
