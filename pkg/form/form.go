// Package form holds form state for a set of fields, drives option
// resolution for dynamic selects, validates conditional requiredness and
// emits the submit payload. Forms are either schema driven (Engine) or
// hand-built components looked up by name in a Components registry.
package form

import (
	"context"
	"errors"

	"github.com/goliatone/go-crudmeta/pkg/model"
)

// Mode tells a form whether it creates or edits a record.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// SubmitFunc receives the form values after validation passed.
type SubmitFunc func(ctx context.Context, data model.FormState) error

// Form is the contract shared by schema forms and components.
type Form interface {
	Mode() Mode
	Values() model.FormState
	HandleChange(ctx context.Context, name string, value any)
	Validate() bool
	Errors() map[string]string
	// Submit validates and, when validation passes, invokes the submit
	// callback. ok is false when validation blocked the submission.
	Submit(ctx context.Context) (ok bool, err error)
}

var (
	// ErrComponentNotFound is returned by placeholder forms.
	ErrComponentNotFound = errors.New("form: component not found")
)
