package form

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-crudmeta/pkg/model"
)

// RegisterBuiltins registers the bundled components: FormA (name, age),
// FormB (title, isActive) and FormC (description, quantity).
func RegisterBuiltins(components *Components) {
	components.MustRegister("FormA", func(props Props) Form {
		return newRecordForm(props, []recordField{
			{name: "name", label: "Name", kind: recordText, required: true},
			{name: "age", label: "Age", kind: recordNumber, check: nonNegative},
		})
	})
	components.MustRegister("FormB", func(props Props) Form {
		return newRecordForm(props, []recordField{
			{name: "title", label: "Title", kind: recordText, required: true},
			{name: "isActive", label: "Active", kind: recordBool},
		})
	})
	components.MustRegister("FormC", func(props Props) Form {
		return newRecordForm(props, []recordField{
			{name: "description", label: "Description", kind: recordText, required: true},
			{name: "quantity", label: "Quantity", kind: recordNumber, check: positive},
		})
	})
}

type recordKind int

const (
	recordText recordKind = iota
	recordNumber
	recordBool
)

type recordField struct {
	name     string
	label    string
	kind     recordKind
	required bool
	check    func(float64) string
}

func nonNegative(v float64) string {
	if v < 0 {
		return "must not be negative"
	}
	return ""
}

func positive(v float64) string {
	if v <= 0 {
		return "must be greater than zero"
	}
	return ""
}

// recordForm is a hand-built form over a fixed set of typed fields. Unlike
// the schema Engine it keeps values coerced to their Go types and applies
// per-field checks beyond requiredness.
type recordForm struct {
	mode     Mode
	onSubmit SubmitFunc
	fields   []recordField

	mu     sync.Mutex
	values model.FormState
	errors map[string]string
}

func newRecordForm(props Props, recordFields []recordField) *recordForm {
	f := &recordForm{
		mode:     props.Mode,
		onSubmit: props.OnSubmit,
		fields:   recordFields,
		values:   make(model.FormState, len(recordFields)),
		errors:   map[string]string{},
	}
	if f.mode == "" {
		f.mode = ModeCreate
	}
	for _, field := range recordFields {
		f.values[field.name] = field.coerce(props.InitialData[field.name])
	}
	for key, value := range props.InitialData {
		if _, known := f.values[key]; !known {
			f.values[key] = value
		}
	}
	return f
}

func (f recordField) coerce(raw any) any {
	switch f.kind {
	case recordNumber:
		switch v := raw.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case string:
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return parsed
			}
		}
		return float64(0)
	case recordBool:
		return model.Truthy(raw)
	default:
		return model.Stringify(raw)
	}
}

func (f *recordForm) Mode() Mode { return f.mode }

func (f *recordForm) Values() model.FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.CloneState(f.values)
}

func (f *recordForm) HandleChange(_ context.Context, name string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, field := range f.fields {
		if field.name == name {
			f.values[name] = field.coerce(value)
			return
		}
	}
}

func (f *recordForm) Validate() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	errs := map[string]string{}
	for _, field := range f.fields {
		value := f.values[field.name]
		if field.required && model.IsEmpty(value) {
			errs[field.name] = fmt.Sprintf("%s is required", field.label)
			continue
		}
		if field.check != nil {
			if number, ok := value.(float64); ok {
				if msg := field.check(number); msg != "" {
					errs[field.name] = fmt.Sprintf("%s %s", field.label, msg)
				}
			}
		}
	}
	f.errors = errs
	return len(errs) == 0
}

func (f *recordForm) Errors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.errors))
	for key, value := range f.errors {
		out[key] = value
	}
	return out
}

func (f *recordForm) Submit(ctx context.Context) (bool, error) {
	if !f.Validate() {
		return false, nil
	}
	if f.onSubmit == nil {
		return true, nil
	}
	if err := f.onSubmit(ctx, f.Values()); err != nil {
		return true, fmt.Errorf("form: submit: %w", err)
	}
	return true, nil
}
