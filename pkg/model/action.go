package model

import (
	"encoding/json"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"
)

// ActionType discriminates the ActionConfig union.
type ActionType string

const (
	ActionForm   ActionType = "form"
	ActionAPI    ActionType = "api"
	ActionCustom ActionType = "custom"
)

// FormType discriminates the FormDefinition union.
type FormType string

const (
	FormSchema    FormType = "schema"
	FormComponent FormType = "component"
)

// FormDefinition is either a schema form (Fields) or a named component.
type FormDefinition struct {
	Type      FormType      `json:"type" yaml:"type"`
	Fields    []FieldConfig `json:"fields,omitempty" yaml:"fields,omitempty"`
	Component string        `json:"component,omitempty" yaml:"component,omitempty"`
}

// Validate enforces the schema/component exclusivity.
func (d FormDefinition) Validate() error {
	switch d.Type {
	case FormSchema:
		if d.Component != "" {
			return errorf("schema form must not name a component")
		}
		seen := make(map[string]struct{}, len(d.Fields))
		for _, field := range d.Fields {
			if err := field.Validate(); err != nil {
				return err
			}
			if _, dup := seen[field.Name]; dup {
				return errorf("duplicate field %q", field.Name)
			}
			seen[field.Name] = struct{}{}
		}
		return nil
	case FormComponent:
		if strings.TrimSpace(d.Component) == "" {
			return errorf("component form requires a component name")
		}
		if len(d.Fields) > 0 {
			return errorf("component form %q must not declare fields", d.Component)
		}
		return nil
	default:
		return errorf("unsupported form type %q", d.Type)
	}
}

// DialogOptions configures the confirmation dialog of an api action.
type DialogOptions struct {
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
}

// APIAction calls a remote endpoint for the row.
type APIAction struct {
	// Endpoint is a URL template that may contain "{id}".
	Endpoint      string
	IDField       string
	Method        string
	Confirm       bool
	DialogOptions *DialogOptions
}

// HTTPMethod returns the upper-cased method, POST when unset.
func (a APIAction) HTTPMethod() string {
	method := strings.ToUpper(strings.TrimSpace(a.Method))
	if method == "" {
		return http.MethodPost
	}
	return method
}

// IdentifierField returns IDField, "id" when unset.
func (a APIAction) IdentifierField() string {
	if field := strings.TrimSpace(a.IDField); field != "" {
		return field
	}
	return "id"
}

// CustomAction invokes a handler registered under Handler.
type CustomAction struct {
	Handler string
}

// ActionConfig is a row action. Exactly one of Form, API or Custom is set,
// matching Type.
type ActionConfig struct {
	ID        string
	Label     string
	Icon      string
	IconColor string
	Tooltip   string
	Type      ActionType

	Form   *FormDefinition
	API    *APIAction
	Custom *CustomAction
}

// Validate enforces the tagged union invariant.
func (a ActionConfig) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errorf("action id is required")
	}
	populated := 0
	for _, set := range []bool{a.Form != nil, a.API != nil, a.Custom != nil} {
		if set {
			populated++
		}
	}
	if populated != 1 {
		return errorf("action %q must populate exactly one shape, got %d", a.ID, populated)
	}
	switch a.Type {
	case ActionForm:
		if a.Form == nil {
			return errorf("action %q: form action requires a form", a.ID)
		}
		if err := a.Form.Validate(); err != nil {
			return errorf("action %q: %v", a.ID, err)
		}
	case ActionAPI:
		if a.API == nil || strings.TrimSpace(a.API.Endpoint) == "" {
			return errorf("action %q: api action requires an endpoint", a.ID)
		}
		switch a.API.HTTPMethod() {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
		default:
			return errorf("action %q: unsupported method %q", a.ID, a.API.Method)
		}
	case ActionCustom:
		if a.Custom == nil || strings.TrimSpace(a.Custom.Handler) == "" {
			return errorf("action %q: custom action requires a handler", a.ID)
		}
	default:
		return errorf("action %q: unsupported type %q", a.ID, a.Type)
	}
	return nil
}

// actionWire is the flat representation used on the wire.
type actionWire struct {
	ID            string          `json:"id" yaml:"id"`
	Label         string          `json:"label" yaml:"label"`
	Type          ActionType      `json:"type" yaml:"type"`
	Icon          string          `json:"icon,omitempty" yaml:"icon,omitempty"`
	IconColor     string          `json:"iconColor,omitempty" yaml:"iconColor,omitempty"`
	Tooltip       string          `json:"tooltip,omitempty" yaml:"tooltip,omitempty"`
	Form          *FormDefinition `json:"form,omitempty" yaml:"form,omitempty"`
	API           string          `json:"api,omitempty" yaml:"api,omitempty"`
	IDField       string          `json:"idField,omitempty" yaml:"idField,omitempty"`
	Method        string          `json:"method,omitempty" yaml:"method,omitempty"`
	Confirm       bool            `json:"confirm,omitempty" yaml:"confirm,omitempty"`
	DialogOptions *DialogOptions  `json:"dialogOptions,omitempty" yaml:"dialogOptions,omitempty"`
	Handler       string          `json:"handler,omitempty" yaml:"handler,omitempty"`
}

func (w actionWire) config() (ActionConfig, error) {
	cfg := ActionConfig{
		ID:        w.ID,
		Label:     w.Label,
		Icon:      w.Icon,
		IconColor: w.IconColor,
		Tooltip:   w.Tooltip,
		Type:      w.Type,
	}
	apiKeys := w.API != "" || w.IDField != "" || w.Method != "" || w.Confirm || w.DialogOptions != nil
	switch w.Type {
	case ActionForm:
		if apiKeys || w.Handler != "" {
			return ActionConfig{}, errorf("action %q: form action mixes api or custom keys", w.ID)
		}
		cfg.Form = w.Form
	case ActionAPI:
		if w.Form != nil || w.Handler != "" {
			return ActionConfig{}, errorf("action %q: api action mixes form or custom keys", w.ID)
		}
		cfg.API = &APIAction{
			Endpoint:      w.API,
			IDField:       w.IDField,
			Method:        w.Method,
			Confirm:       w.Confirm,
			DialogOptions: w.DialogOptions,
		}
	case ActionCustom:
		if apiKeys || w.Form != nil {
			return ActionConfig{}, errorf("action %q: custom action mixes form or api keys", w.ID)
		}
		cfg.Custom = &CustomAction{Handler: w.Handler}
	default:
		return ActionConfig{}, errorf("action %q: unsupported type %q", w.ID, w.Type)
	}
	return cfg, nil
}

func (a ActionConfig) wire() actionWire {
	w := actionWire{
		ID:        a.ID,
		Label:     a.Label,
		Type:      a.Type,
		Icon:      a.Icon,
		IconColor: a.IconColor,
		Tooltip:   a.Tooltip,
		Form:      a.Form,
	}
	if a.API != nil {
		w.API = a.API.Endpoint
		w.IDField = a.API.IDField
		w.Method = a.API.Method
		w.Confirm = a.API.Confirm
		w.DialogOptions = a.API.DialogOptions
	}
	if a.Custom != nil {
		w.Handler = a.Custom.Handler
	}
	return w
}

// MarshalJSON implements json.Marshaler.
func (a ActionConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.wire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *ActionConfig) UnmarshalJSON(data []byte) error {
	var wire actionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	cfg, err := wire.config()
	if err != nil {
		return err
	}
	*a = cfg
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (a ActionConfig) MarshalYAML() (any, error) {
	return a.wire(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *ActionConfig) UnmarshalYAML(node *yaml.Node) error {
	var wire actionWire
	if err := node.Decode(&wire); err != nil {
		return err
	}
	cfg, err := wire.config()
	if err != nil {
		return err
	}
	*a = cfg
	return nil
}
