package actions

import "errors"

var (
	// ErrBusy is returned when a row already has an action in flight or a
	// dialog open.
	ErrBusy = errors.New("actions: row is busy")
	// ErrMissingIdentifier is returned when an endpoint references {id} and
	// the row has no usable identifier.
	ErrMissingIdentifier = errors.New("actions: row has no identifier")
	// ErrHandlerNotFound is returned for custom actions naming an
	// unregistered handler.
	ErrHandlerNotFound = errors.New("actions: handler not found")
	// ErrNoPendingAction is returned by Confirm when nothing awaits
	// confirmation.
	ErrNoPendingAction = errors.New("actions: no pending action")
	// ErrNoRequester is returned when an api action runs without a requester.
	ErrNoRequester = errors.New("actions: no requester configured")
)
