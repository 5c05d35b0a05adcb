package model

import "strings"

// FieldType enumerates the supported form controls.
type FieldType string

const (
	FieldText          FieldType = "text"
	FieldNumber        FieldType = "number"
	FieldSelect        FieldType = "select"
	FieldCheckbox      FieldType = "checkbox"
	FieldDate          FieldType = "date"
	FieldDynamicSelect FieldType = "dynamic-select"
	// FieldBoolean is accepted as an alias of FieldCheckbox.
	FieldBoolean FieldType = "boolean"
)

// Operator selects how a RequiredIf condition compares the referenced value.
type Operator string

const (
	OperatorEquals  Operator = "equals"
	OperatorPresent Operator = "present"
)

const (
	defaultOptionLabel = "label"
	defaultOptionValue = "value"
)

// Option is a static select choice.
type Option struct {
	Label string `json:"label" yaml:"label"`
	Value any    `json:"value" yaml:"value"`
}

// RequiredIf makes a field required based on another field's value.
type RequiredIf struct {
	Field    string   `json:"field" yaml:"field"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`
	Operator Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
}

// Holds reports whether the condition is met for state. The equals operator
// is the default and compares stringwise; an absent Value never matches.
func (r RequiredIf) Holds(state FormState) bool {
	if strings.TrimSpace(r.Field) == "" {
		return false
	}
	current := state[r.Field]
	switch r.Operator {
	case OperatorPresent:
		return !IsEmpty(current)
	case OperatorEquals, "":
		if r.Value == nil {
			return false
		}
		return Stringify(current) == Stringify(r.Value)
	default:
		return false
	}
}

// FieldConfig describes a single form field.
type FieldConfig struct {
	Name        string      `json:"name" yaml:"name"`
	Label       string      `json:"label,omitempty" yaml:"label,omitempty"`
	Type        FieldType   `json:"type" yaml:"type"`
	Required    bool        `json:"required,omitempty" yaml:"required,omitempty"`
	RequiredIf  *RequiredIf `json:"requiredIf,omitempty" yaml:"requiredIf,omitempty"`
	ReadOnly    bool        `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`
	Options     []Option    `json:"options,omitempty" yaml:"options,omitempty"`
	OptionsAPI  string      `json:"optionsAPI,omitempty" yaml:"optionsAPI,omitempty"`
	OptionLabel string      `json:"optionLabel,omitempty" yaml:"optionLabel,omitempty"`
	OptionValue string      `json:"optionValue,omitempty" yaml:"optionValue,omitempty"`
	DependsOn   string      `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
}

// DisplayLabel returns Label, deriving one from Name when it is blank.
func (f FieldConfig) DisplayLabel() string {
	if label := strings.TrimSpace(f.Label); label != "" {
		return label
	}
	return DefaultLabeler(f.Name)
}

// LabelKey is the key used to read an option label from fetched objects.
func (f FieldConfig) LabelKey() string {
	if key := strings.TrimSpace(f.OptionLabel); key != "" {
		return key
	}
	return defaultOptionLabel
}

// ValueKey is the key used to read an option value from fetched objects.
func (f FieldConfig) ValueKey() string {
	if key := strings.TrimSpace(f.OptionValue); key != "" {
		return key
	}
	return defaultOptionValue
}

// IsDynamic reports whether the field fetches its options remotely.
func (f FieldConfig) IsDynamic() bool {
	return f.Type == FieldDynamicSelect && strings.TrimSpace(f.OptionsAPI) != ""
}

// EffectiveRequired combines Required with the RequiredIf condition.
func (f FieldConfig) EffectiveRequired(state FormState) bool {
	if f.Required {
		return true
	}
	return f.RequiredIf != nil && f.RequiredIf.Holds(state)
}

// Validate checks the descriptor in isolation.
func (f FieldConfig) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errorf("field name is required")
	}
	switch f.Type {
	case FieldText, FieldNumber, FieldSelect, FieldCheckbox, FieldBoolean, FieldDate, FieldDynamicSelect:
	case "":
		return errorf("field %q: type is required", f.Name)
	default:
		return errorf("field %q: unsupported type %q", f.Name, f.Type)
	}
	if f.RequiredIf != nil {
		switch f.RequiredIf.Operator {
		case "", OperatorEquals, OperatorPresent:
		default:
			return errorf("field %q: unsupported requiredIf operator %q", f.Name, f.RequiredIf.Operator)
		}
		if strings.TrimSpace(f.RequiredIf.Field) == "" {
			return errorf("field %q: requiredIf.field is required", f.Name)
		}
	}
	if f.DependsOn == f.Name && f.Name != "" {
		return errorf("field %q depends on itself", f.Name)
	}
	return nil
}

// BuildDefaultData returns the empty state for fields: numbers start at 0,
// checkboxes at false and everything else at "".
func BuildDefaultData(fields []FieldConfig) FormState {
	state := make(FormState, len(fields))
	for _, field := range fields {
		switch field.Type {
		case FieldNumber:
			state[field.Name] = float64(0)
		case FieldCheckbox, FieldBoolean:
			state[field.Name] = false
		default:
			state[field.Name] = ""
		}
	}
	return state
}
