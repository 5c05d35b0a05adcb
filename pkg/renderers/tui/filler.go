// Package tui fills forms and confirms action dialogs from a terminal.
// Schema forms are prompted control by control so dynamic selects see the
// options resolved for the values entered before them; component forms are
// prompted value by value.
package tui

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-crudmeta/pkg/actions"
	"github.com/goliatone/go-crudmeta/pkg/fields"
	"github.com/goliatone/go-crudmeta/pkg/form"
	"github.com/goliatone/go-crudmeta/pkg/model"
	"github.com/goliatone/go-crudmeta/pkg/options"
)

// controlled is implemented by forms that expose rendered controls.
type controlled interface {
	Fields() []model.FieldConfig
	Control(ctx context.Context, name string) (fields.Control, bool)
	Refresh(ctx context.Context) options.OptionsMap
	Wait()
}

var _ controlled = (*form.Engine)(nil)

// Filler prompts for form values.
type Filler struct {
	driver      PromptDriver
	theme       Theme
	maxAttempts int
}

// New constructs a Filler using the survey driver unless overridden.
func New(opts ...Option) *Filler {
	f := &Filler{
		driver:      NewSurveyDriver(nil),
		maxAttempts: 3,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Fill prompts for the named fields of target, or every field when names is
// empty.
func (f *Filler) Fill(ctx context.Context, target form.Form, names ...string) error {
	if ctx == nil {
		return errors.New("tui: context is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c, ok := target.(controlled); ok {
		return f.fillControlled(ctx, c, names)
	}
	return f.fillValues(ctx, target, names)
}

// Submit fills target and submits it. Fields failing validation are shown
// and prompted again, up to the configured number of attempts. The
// submitted values are returned.
func (f *Filler) Submit(ctx context.Context, target form.Form) (model.FormState, error) {
	return f.submit(ctx, target, target.Submit)
}

// SubmitDialog fills the form of cell's open form dialog and submits it
// through the cell, which closes the dialog on completion.
func (f *Filler) SubmitDialog(ctx context.Context, cell *actions.Cell) (model.FormState, error) {
	dialog := cell.Dialog()
	if !dialog.Open || dialog.Kind != actions.DialogForm || dialog.Form == nil {
		return nil, actions.ErrNoPendingAction
	}
	if title := plainText(dialog.Title); title != "" {
		if err := f.driver.Info(ctx, f.theme.InfoPrefix+title); err != nil {
			return nil, err
		}
	}
	values, err := f.submit(ctx, dialog.Form, cell.SubmitForm)
	if err != nil && cell.Dialog().Open {
		_ = cell.Cancel()
	}
	return values, err
}

func (f *Filler) submit(ctx context.Context, target form.Form, send func(context.Context) (bool, error)) (model.FormState, error) {
	if placeholder, ok := target.(*form.Placeholder); ok {
		_ = f.driver.Info(ctx, f.theme.ErrorPrefix+placeholder.Message())
		_, err := placeholder.Submit(ctx)
		return nil, err
	}
	if err := f.Fill(ctx, target); err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		ok, err := send(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return target.Values(), nil
		}

		errs := target.Errors()
		names := make([]string, 0, len(errs))
		for name := range errs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			_ = f.driver.Info(ctx, f.theme.ErrorPrefix+errs[name])
		}
		if attempt >= f.maxAttempts {
			return nil, ErrTooManyAttempts
		}
		if err := f.Fill(ctx, target, names...); err != nil {
			return nil, err
		}
	}
}

// Confirm shows an action dialog and asks whether to proceed.
func (f *Filler) Confirm(ctx context.Context, dialog actions.Dialog) (bool, error) {
	if title := plainText(dialog.Title); title != "" {
		if err := f.driver.Info(ctx, f.theme.InfoPrefix+title); err != nil {
			return false, err
		}
	}
	if content := plainText(dialog.Content); content != "" {
		if err := f.driver.Info(ctx, content); err != nil {
			return false, err
		}
	}
	return f.driver.Confirm(ctx, ConfirmConfig{Message: "Proceed?"})
}

func (f *Filler) fillControlled(ctx context.Context, c controlled, names []string) error {
	c.Refresh(ctx)
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	for _, field := range c.Fields() {
		if len(wanted) > 0 && !wanted[field.Name] {
			continue
		}
		c.Wait()
		ctl, ok := c.Control(ctx, field.Name)
		if !ok {
			continue
		}
		if err := f.promptControl(ctx, ctl); err != nil {
			return err
		}
	}
	c.Wait()
	return nil
}

func (f *Filler) promptControl(ctx context.Context, ctl fields.Control) error {
	if ctl.ReadOnly || ctl.Disabled {
		return f.driver.Info(ctx, fmt.Sprintf("%s%s: %s", f.theme.InfoPrefix, ctl.Label, model.Stringify(ctl.Value)))
	}
	message := ctl.Label
	if ctl.Required {
		message += " *"
	}

	for {
		var raw any
		var err error
		switch ctl.Kind {
		case fields.KindCheckbox:
			raw, err = f.driver.Confirm(ctx, ConfirmConfig{Message: message, Default: model.Truthy(ctl.Value)})
		case fields.KindSelect, fields.KindDynamicSelect:
			if len(ctl.Options) == 0 {
				return f.driver.Info(ctx, fmt.Sprintf("%s%s: no options available", f.theme.InfoPrefix, ctl.Label))
			}
			labels := make([]string, len(ctl.Options))
			current := -1
			for i, choice := range ctl.Options {
				labels[i] = choice.Label
				if model.Stringify(choice.Value) == model.Stringify(ctl.Value) {
					current = i
				}
			}
			var idx int
			idx, err = f.driver.Select(ctx, SelectConfig{Message: message, Options: labels, DefaultIndex: current})
			if err == nil {
				if idx < 0 || idx >= len(ctl.Options) {
					_ = f.driver.Info(ctx, fmt.Sprintf("%sInvalid %s selection", f.theme.ErrorPrefix, ctl.Label))
					continue
				}
				raw = ctl.Options[idx].Value
			}
		default:
			raw, err = f.driver.Input(ctx, InputConfig{Message: message, Default: model.Stringify(ctl.Value)})
		}
		if err != nil {
			return err
		}

		if err := ctl.Change(raw); err != nil {
			_ = f.driver.Info(ctx, fmt.Sprintf("%sInvalid %s: %v", f.theme.ErrorPrefix, ctl.Label, err))
			continue
		}
		return nil
	}
}

func (f *Filler) fillValues(ctx context.Context, target form.Form, names []string) error {
	values := target.Values()
	if len(names) == 0 {
		for name := range values {
			if name != "id" {
				names = append(names, name)
			}
		}
		sort.Strings(names)
	}

	for _, name := range names {
		label := model.DefaultLabeler(name)
		switch current := values[name].(type) {
		case bool:
			answer, err := f.driver.Confirm(ctx, ConfirmConfig{Message: label, Default: current})
			if err != nil {
				return err
			}
			target.HandleChange(ctx, name, answer)
		default:
			answer, err := f.driver.Input(ctx, InputConfig{Message: label, Default: model.Stringify(current)})
			if err != nil {
				return err
			}
			target.HandleChange(ctx, name, answer)
		}
	}
	return nil
}

func plainText(markup string) string {
	return strings.TrimSpace(html.UnescapeString(bluemonday.StrictPolicy().Sanitize(markup)))
}
