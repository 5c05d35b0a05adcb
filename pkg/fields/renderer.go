// Package fields maps a field descriptor, its current value and its resolved
// options to a control descriptor. Rendering is pure: controls never fetch
// or store state, every mutation flows out through the ChangeFunc.
package fields

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-crudmeta/pkg/model"
	"github.com/goliatone/go-crudmeta/pkg/options"
)

// DateLayout is the wire format of date fields.
const DateLayout = "2006-01-02"

// Kind identifies the control a field renders to.
type Kind string

const (
	KindText          Kind = "text"
	KindNumber        Kind = "number"
	KindCheckbox      Kind = "checkbox"
	KindSelect        Kind = "select"
	KindDate          Kind = "date"
	KindDynamicSelect Kind = "dynamic-select"
)

var (
	ErrReadOnly      = errors.New("fields: control is read only")
	ErrLoading       = errors.New("fields: options are loading")
	ErrInvalidNumber = errors.New("fields: invalid number")
	ErrInvalidBool   = errors.New("fields: invalid boolean")
	ErrInvalidDate   = errors.New("fields: invalid date")
	ErrUnknownOption = errors.New("fields: unknown option")
)

// ChangeFunc receives the coerced value of a control change.
type ChangeFunc func(name string, value any)

// Choice is a selectable option of a select control.
type Choice struct {
	Label string
	Value any
}

// Control describes a rendered field.
type Control struct {
	Name     string
	Label    string
	Kind     Kind
	Value    any
	Required bool
	ReadOnly bool
	Disabled bool
	Loading  bool
	Error    string
	Options  []Choice

	onChange ChangeFunc
}

// Render builds the control for field.
func Render(field model.FieldConfig, value any, state model.FormState, dynamic options.FieldOptions, onChange ChangeFunc) Control {
	ctl := Control{
		Name:     field.Name,
		Label:    field.DisplayLabel(),
		Required: field.EffectiveRequired(state),
		ReadOnly: field.ReadOnly,
		onChange: onChange,
	}

	switch field.Type {
	case model.FieldNumber:
		ctl.Kind = KindNumber
		ctl.Value = value
		if value == nil {
			ctl.Value = ""
		}
	case model.FieldCheckbox, model.FieldBoolean:
		ctl.Kind = KindCheckbox
		ctl.Value = model.Truthy(value)
		ctl.Disabled = field.ReadOnly
	case model.FieldSelect:
		ctl.Kind = KindSelect
		ctl.Options = make([]Choice, 0, len(field.Options))
		for _, opt := range field.Options {
			ctl.Options = append(ctl.Options, Choice{Label: opt.Label, Value: opt.Value})
		}
		ctl.Value = valueOrEmpty(value)
	case model.FieldDynamicSelect:
		ctl.Kind = KindDynamicSelect
		ctl.Loading = dynamic.Loading
		ctl.Disabled = dynamic.Loading
		if !dynamic.Loading {
			ctl.Options = extractChoices(field, dynamic.Options)
		}
		ctl.Value = ""
		if len(ctl.Options) > 0 && hasChoice(ctl.Options, value) {
			ctl.Value = value
		}
	case model.FieldDate:
		ctl.Kind = KindDate
		ctl.Value = ""
		if date, err := normaliseDate(value); err == nil {
			ctl.Value = date
		}
	default:
		ctl.Kind = KindText
		ctl.Value = model.Stringify(value)
	}
	return ctl
}

// Change applies raw input to the control, coercing it per kind before
// forwarding it to the ChangeFunc.
func (c Control) Change(raw any) error {
	if c.onChange == nil {
		return nil
	}
	if c.Disabled {
		if c.Loading {
			return fmt.Errorf("%w: %s", ErrLoading, c.Name)
		}
		return fmt.Errorf("%w: %s", ErrReadOnly, c.Name)
	}

	var value any
	switch c.Kind {
	case KindNumber:
		number, err := coerceNumber(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidNumber, c.Name, raw)
		}
		value = number
	case KindCheckbox:
		checked, err := coerceBool(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidBool, c.Name, raw)
		}
		value = checked
	case KindSelect, KindDynamicSelect:
		if model.IsEmpty(raw) {
			value = ""
			break
		}
		choice, ok := findChoice(c.Options, raw)
		if !ok {
			return fmt.Errorf("%w: %s: %v", ErrUnknownOption, c.Name, raw)
		}
		value = choice.Value
	case KindDate:
		date, err := normaliseDate(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidDate, c.Name, raw)
		}
		value = date
	default:
		value = model.Stringify(raw)
	}

	c.onChange(c.Name, value)
	return nil
}

func valueOrEmpty(value any) any {
	if value == nil {
		return ""
	}
	return value
}

func extractChoices(field model.FieldConfig, items []any) []Choice {
	labelKey, valueKey := field.LabelKey(), field.ValueKey()
	choices := make([]Choice, 0, len(items))
	for _, item := range items {
		switch entry := item.(type) {
		case map[string]any:
			choices = append(choices, Choice{
				Label: model.Stringify(entry[labelKey]),
				Value: entry[valueKey],
			})
		default:
			choices = append(choices, Choice{Label: model.Stringify(entry), Value: entry})
		}
	}
	return choices
}

func hasChoice(choices []Choice, value any) bool {
	if model.IsEmpty(value) {
		return false
	}
	_, ok := findChoice(choices, value)
	return ok
}

func findChoice(choices []Choice, raw any) (Choice, bool) {
	want := model.Stringify(raw)
	for _, choice := range choices {
		if model.Stringify(choice.Value) == want {
			return choice, true
		}
	}
	return Choice{}, false
}

func coerceNumber(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, nil
		}
		return strconv.ParseFloat(trimmed, 64)
	}
	return 0, fmt.Errorf("unsupported type %T", raw)
}

func coerceBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	}
	return false, fmt.Errorf("unsupported type %T", raw)
}

// normaliseDate returns value as YYYY-MM-DD. Timestamps keep their date part.
func normaliseDate(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case time.Time:
		if v.IsZero() {
			return "", nil
		}
		return v.Format(DateLayout), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return "", nil
		}
		if len(trimmed) > len(DateLayout) && trimmed[len(DateLayout)] == 'T' {
			trimmed = trimmed[:len(DateLayout)]
		}
		parsed, err := time.Parse(DateLayout, trimmed)
		if err != nil {
			return "", err
		}
		return parsed.Format(DateLayout), nil
	}
	return "", fmt.Errorf("unsupported type %T", value)
}
