package form

import (
	"context"
	"fmt"

	"github.com/goliatone/go-crudmeta/pkg/model"
)

// Placeholder stands in for a component that is not registered. It keeps
// the initial data so nothing is lost, and refuses to submit.
type Placeholder struct {
	name   string
	mode   Mode
	values model.FormState
}

var _ Form = (*Placeholder)(nil)

// NewPlaceholder creates the stand-in for component name.
func NewPlaceholder(name string, props Props) *Placeholder {
	values := model.FormState{}
	if props.InitialData != nil {
		values = model.CloneState(props.InitialData)
	}
	return &Placeholder{name: name, mode: props.Mode, values: values}
}

// Component returns the missing component name.
func (p *Placeholder) Component() string { return p.name }

// Message is the text shown in place of the form.
func (p *Placeholder) Message() string {
	return fmt.Sprintf("Form component %q not found", p.name)
}

func (p *Placeholder) Mode() Mode { return p.mode }
func (p *Placeholder) Values() model.FormState { return model.CloneState(p.values) }
func (p *Placeholder) HandleChange(context.Context, string, any) {}
func (p *Placeholder) Validate() bool { return false }
func (p *Placeholder) Errors() map[string]string { return map[string]string{} }

// Submit always fails with ErrComponentNotFound.
func (p *Placeholder) Submit(context.Context) (bool, error) {
	return false, fmt.Errorf("%w: %q", ErrComponentNotFound, p.name)
}
