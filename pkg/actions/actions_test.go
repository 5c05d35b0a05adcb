package actions

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-crudmeta/pkg/form"
	"github.com/goliatone/go-crudmeta/pkg/model"
)

type request struct {
	Method string
	URL    string
	Body   any
}

type stubRequester struct {
	mu       sync.Mutex
	requests []request
	result   any
	err      error
	started  chan struct{}
	release  chan struct{}
}

func (s *stubRequester) Do(ctx context.Context, method, url string, body, out any) error {
	s.mu.Lock()
	s.requests = append(s.requests, request{Method: method, URL: url, Body: body})
	s.mu.Unlock()
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return s.err
	}
	if target, ok := out.(*any); ok {
		*target = s.result
	}
	return nil
}

func (s *stubRequester) calls() []request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]request(nil), s.requests...)
}

type afterCalls struct {
	mu      sync.Mutex
	results []any
}

func (a *afterCalls) record(_ context.Context, _ model.ActionConfig, result any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, result)
}

func (a *afterCalls) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

func quietLogger(buf *bytes.Buffer) *log.Logger {
	return log.New(buf, "", 0)
}

func apiAction(endpoint string, mutate ...func(*model.APIAction)) model.ActionConfig {
	api := &model.APIAction{Endpoint: endpoint}
	for _, fn := range mutate {
		fn(api)
	}
	return model.ActionConfig{ID: "deactivate", Label: "Deactivate", Type: model.ActionAPI, API: api}
}

func TestBuildActionURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		endpoint string
		idField  string
		row      model.Row
		want     string
		wantErr  error
	}{
		{name: "id substituted", endpoint: "/items/{id}/deactivate", row: model.Row{"id": "42"}, want: "/items/42/deactivate"},
		{name: "id field used", endpoint: "/items/{id}", idField: "uuid", row: model.Row{"uuid": "abc", "id": "1"}, want: "/items/abc"},
		{name: "falls back to id", endpoint: "/items/{id}", idField: "uuid", row: model.Row{"id": "7"}, want: "/items/7"},
		{name: "null id field falls back", endpoint: "/items/{id}", idField: "uuid", row: model.Row{"uuid": nil, "id": 8.0}, want: "/items/8"},
		{name: "escaped", endpoint: "/items/{id}", row: model.Row{"id": "a b"}, want: "/items/a%20b"},
		{name: "no placeholder", endpoint: "/items/bulk", row: model.Row{}, want: "/items/bulk"},
		{name: "missing identifier", endpoint: "/items/{id}", idField: "uuid", row: model.Row{"name": "x"}, wantErr: ErrMissingIdentifier},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := BuildActionURL(tc.endpoint, tc.idField, tc.row)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("url: want %q, got %q", tc.want, got)
			}
		})
	}
}

func TestAPIActionWithoutDialogFiresImmediately(t *testing.T) {
	t.Parallel()

	requester := &stubRequester{result: map[string]any{"id": "42", "active": false}}
	after := &afterCalls{}
	d := NewDispatcher(requester, WithAfterAction(after.record), WithLogger(quietLogger(&bytes.Buffer{})))

	row := model.Row{"id": "42", "name": "Alice"}
	if err := d.Trigger(context.Background(), apiAction("/items/{id}/deactivate"), row); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	want := []request{{Method: http.MethodPost, URL: "/items/42/deactivate", Body: model.Row{"id": "42", "name": "Alice"}}}
	if diff := cmp.Diff(want, requester.calls()); diff != "" {
		t.Fatalf("requests mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{map[string]any{"id": "42", "active": false}}, after.results); diff != "" {
		t.Fatalf("afterAction mismatch (-want +got):\n%s", diff)
	}
	if d.Busy(row) {
		t.Fatalf("row must not stay busy")
	}
}

func TestAPIActionMissingIdentifierSkipsNetwork(t *testing.T) {
	t.Parallel()

	requester := &stubRequester{}
	var logs bytes.Buffer
	d := NewDispatcher(requester, WithLogger(quietLogger(&logs)))

	err := d.Trigger(context.Background(), apiAction("/items/{id}/deactivate"), model.Row{"name": "x"})
	if !errors.Is(err, ErrMissingIdentifier) {
		t.Fatalf("expected ErrMissingIdentifier, got %v", err)
	}
	if len(requester.calls()) != 0 {
		t.Fatalf("no request may be issued")
	}
	if logs.Len() == 0 {
		t.Fatalf("expected the configuration error to be logged")
	}
}

func TestAPIActionConfirmFlow(t *testing.T) {
	t.Parallel()

	requester := &stubRequester{result: map[string]any{"ok": true}}
	after := &afterCalls{}
	d := NewDispatcher(requester, WithAfterAction(after.record))

	action := apiAction("/items/{id}/deactivate", func(a *model.APIAction) {
		a.Method = "put"
		a.DialogOptions = &model.DialogOptions{
			Title:   "Deactivate {{ row.name }}",
			Content: "<b>{{ row.name }}</b> will lose access.<script>alert(1)</script>",
		}
	})
	row := model.Row{"id": "42", "name": "Alice"}

	if err := d.Trigger(context.Background(), action, row); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	cell := d.Cell(row)
	dialog := cell.Dialog()
	if !dialog.Open || dialog.Kind != DialogConfirm {
		t.Fatalf("expected open confirm dialog, got %+v", dialog)
	}
	if dialog.Title != "Deactivate Alice" {
		t.Fatalf("title: got %q", dialog.Title)
	}
	if dialog.Content != "<b>Alice</b> will lose access." {
		t.Fatalf("content: got %q", dialog.Content)
	}
	if len(requester.calls()) != 0 {
		t.Fatalf("no request before confirm")
	}

	if err := d.Trigger(context.Background(), action, row); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while dialog is open, got %v", err)
	}

	if err := cell.Confirm(context.Background()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	want := []request{{Method: http.MethodPut, URL: "/items/42/deactivate", Body: model.Row{"id": "42", "name": "Alice"}}}
	if diff := cmp.Diff(want, requester.calls()); diff != "" {
		t.Fatalf("requests mismatch (-want +got):\n%s", diff)
	}
	if cell.Dialog().Open {
		t.Fatalf("dialog must close after completion")
	}
	if after.count() != 1 {
		t.Fatalf("expected afterAction once, got %d", after.count())
	}
	if err := cell.Confirm(context.Background()); !errors.Is(err, ErrNoPendingAction) {
		t.Fatalf("expected ErrNoPendingAction, got %v", err)
	}
}

func TestAPIActionCancel(t *testing.T) {
	t.Parallel()

	requester := &stubRequester{}
	d := NewDispatcher(requester)
	row := model.Row{"id": "1"}
	action := apiAction("/items/{id}", func(a *model.APIAction) { a.Confirm = true; a.Method = http.MethodDelete })

	if err := d.Trigger(context.Background(), action, row); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	cell := d.Cell(row)
	if err := cell.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cell.Dialog().Open {
		t.Fatalf("dialog must be closed")
	}
	if err := cell.Confirm(context.Background()); !errors.Is(err, ErrNoPendingAction) {
		t.Fatalf("expected ErrNoPendingAction after cancel, got %v", err)
	}
	if len(requester.calls()) != 0 {
		t.Fatalf("cancelled action must not call the api")
	}
}

func TestAPIActionDeleteSendsNoBody(t *testing.T) {
	t.Parallel()

	requester := &stubRequester{}
	d := NewDispatcher(requester)
	action := apiAction("/items/{id}", func(a *model.APIAction) { a.Method = http.MethodDelete })
	if err := d.Trigger(context.Background(), action, model.Row{"id": "9"}); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	want := []request{{Method: http.MethodDelete, URL: "/items/9"}}
	if diff := cmp.Diff(want, requester.calls()); diff != "" {
		t.Fatalf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIActionFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	requester := &stubRequester{err: errors.New("boom")}
	after := &afterCalls{}
	var logs bytes.Buffer
	d := NewDispatcher(requester, WithAfterAction(after.record), WithLogger(quietLogger(&logs)))

	row := model.Row{"id": "42", "active": true}
	if err := d.Trigger(context.Background(), apiAction("/items/{id}"), row); err != nil {
		t.Fatalf("failures must not propagate, got %v", err)
	}
	if after.count() != 0 {
		t.Fatalf("afterAction must not run on failure")
	}
	if row["active"] != true {
		t.Fatalf("row must not change on failure")
	}
	cell := d.Cell(row)
	if cell.Loading() || cell.Dialog().Open {
		t.Fatalf("cell must be idle and closed after failure")
	}
	if cell.Err() == nil || !strings.Contains(logs.String(), "boom") {
		t.Fatalf("failure must be recorded and logged")
	}
}

func TestRowIsBusyWhileInFlight(t *testing.T) {
	t.Parallel()

	requester := &stubRequester{started: make(chan struct{}), release: make(chan struct{})}
	d := NewDispatcher(requester)
	row := model.Row{"id": "5"}

	done := make(chan error, 1)
	go func() {
		done <- d.Trigger(context.Background(), apiAction("/items/{id}"), row)
	}()
	<-requester.started

	if !d.Busy(row) {
		t.Fatalf("row must be busy while the call is in flight")
	}
	if err := d.Trigger(context.Background(), apiAction("/items/{id}"), row); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if d.Busy(model.Row{"id": "6"}) {
		t.Fatalf("other rows must stay available")
	}

	close(requester.release)
	if err := <-done; err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if d.Busy(row) {
		t.Fatalf("row must be released")
	}
	if len(requester.calls()) != 1 {
		t.Fatalf("expected exactly one request, got %d", len(requester.calls()))
	}
}

func TestCustomAction(t *testing.T) {
	t.Parallel()

	var seen []string
	handlers := NewHandlers()
	handlers.MustRegister("touch", func(_ context.Context, row model.Row) error {
		seen = append(seen, model.Stringify(row["id"]))
		return nil
	})
	d := NewDispatcher(nil, WithHandlers(handlers))

	action := model.ActionConfig{ID: "touch", Label: "Touch", Type: model.ActionCustom, Custom: &model.CustomAction{Handler: "touch"}}
	row := model.Row{"id": "3"}
	if err := d.Trigger(context.Background(), action, row); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if diff := cmp.Diff([]string{"3"}, seen); diff != "" {
		t.Fatalf("handler calls mismatch (-want +got):\n%s", diff)
	}
	if d.Cell(row).Dialog().Open {
		t.Fatalf("dialog must close after the handler")
	}
}

func TestCustomActionWaitingDialog(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	handlers := NewHandlers()
	handlers.MustRegister("slow", func(context.Context, model.Row) error {
		close(started)
		<-release
		return errors.New("handler failed")
	})
	var logs bytes.Buffer
	d := NewDispatcher(nil, WithHandlers(handlers), WithLogger(quietLogger(&logs)))
	row := model.Row{"id": "3"}

	done := make(chan error, 1)
	go func() {
		done <- d.Trigger(context.Background(), model.ActionConfig{ID: "slow", Label: "Export", Type: model.ActionCustom, Custom: &model.CustomAction{Handler: "slow"}}, row)
	}()
	<-started

	dialog := d.Cell(row).Dialog()
	if dialog.Kind != DialogWaiting || !dialog.Loading {
		t.Fatalf("expected waiting dialog, got %+v", dialog)
	}
	if dialog.Content != `Please wait while we execute "Export"...` {
		t.Fatalf("waiting content: got %q", dialog.Content)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("handler failures must not propagate, got %v", err)
	}
	if d.Cell(row).Dialog().Open || !strings.Contains(logs.String(), "handler failed") {
		t.Fatalf("expected closed dialog and logged failure")
	}
}

func TestCustomActionMissingHandler(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	d := NewDispatcher(nil, WithLogger(quietLogger(&logs)))
	row := model.Row{"id": "3"}
	err := d.Trigger(context.Background(), model.ActionConfig{ID: "x", Type: model.ActionCustom, Custom: &model.CustomAction{Handler: "nope"}}, row)
	if !errors.Is(err, ErrHandlerNotFound) {
		t.Fatalf("expected ErrHandlerNotFound, got %v", err)
	}
	if d.Cell(row).Dialog().Open {
		t.Fatalf("dialog must be closed")
	}
	if !strings.Contains(logs.String(), "nope") {
		t.Fatalf("expected missing handler to be logged, got %q", logs.String())
	}
}

func TestDefaultHandlers(t *testing.T) {
	t.Parallel()

	var out, logs bytes.Buffer
	handlers := DefaultHandlers(&out, quietLogger(&logs))
	if diff := cmp.Diff([]string{"exportRow", "openAuditLog"}, handlers.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}

	exportRow, _ := handlers.Lookup("exportRow")
	if err := exportRow(context.Background(), model.Row{"id": "1"}); err != nil {
		t.Fatalf("exportRow: %v", err)
	}
	if got := out.String(); got != "{\n  \"id\": \"1\"\n}\n" {
		t.Fatalf("export output: got %q", got)
	}

	openAuditLog, _ := handlers.Lookup("openAuditLog")
	if err := openAuditLog(context.Background(), model.Row{"id": "1"}); err != nil {
		t.Fatalf("openAuditLog: %v", err)
	}
	if !strings.Contains(logs.String(), "row 1") {
		t.Fatalf("audit log: got %q", logs.String())
	}
}

func TestFormActionSubmitsThroughSubForm(t *testing.T) {
	t.Parallel()

	after := &afterCalls{}
	var submitted []model.FormState
	d := NewDispatcher(nil,
		WithAfterAction(after.record),
		WithFormSubmit(func(_ context.Context, _ model.ActionConfig, data model.FormState) error {
			submitted = append(submitted, data)
			return nil
		}),
	)
	action := model.ActionConfig{
		ID:    "viewDetails",
		Label: "View Details",
		Type:  model.ActionForm,
		Form: &model.FormDefinition{Type: model.FormSchema, Fields: []model.FieldConfig{
			{Name: "name", Label: "Name", Type: model.FieldText, Required: true},
		}},
	}
	row := model.Row{"id": "1", "name": "Alice"}

	if err := d.Trigger(context.Background(), action, row); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	cell := d.Cell(row)
	dialog := cell.Dialog()
	if dialog.Kind != DialogForm || dialog.Form == nil {
		t.Fatalf("expected form dialog, got %+v", dialog)
	}
	if dialog.Form.Mode() != form.ModeEdit || dialog.Form.Values()["name"] != "Alice" {
		t.Fatalf("sub-form must be seeded with the row, got %v", dialog.Form.Values())
	}

	dialog.Form.HandleChange(context.Background(), "name", "")
	ok, err := cell.SubmitForm(context.Background())
	if ok || err != nil {
		t.Fatalf("expected validation to block, got ok=%v err=%v", ok, err)
	}
	if !cell.Dialog().Open {
		t.Fatalf("dialog stays open on validation failure")
	}

	dialog.Form.HandleChange(context.Background(), "name", "Bob")
	ok, err = cell.SubmitForm(context.Background())
	if !ok || err != nil {
		t.Fatalf("submit: ok=%v err=%v", ok, err)
	}
	if cell.Dialog().Open {
		t.Fatalf("dialog must close after submit")
	}
	if len(submitted) != 1 || submitted[0]["name"] != "Bob" {
		t.Fatalf("unexpected submissions %v", submitted)
	}
	if after.count() != 1 {
		t.Fatalf("expected afterAction once, got %d", after.count())
	}
}

func TestFormActionUnknownComponent(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	after := &afterCalls{}
	d := NewDispatcher(nil, WithComponents(form.NewComponents()), WithAfterAction(after.record), WithLogger(quietLogger(&logs)))
	action := model.ActionConfig{ID: "edit", Type: model.ActionForm, Form: &model.FormDefinition{Type: model.FormComponent, Component: "Missing"}}
	row := model.Row{"id": "1"}

	if err := d.Trigger(context.Background(), action, row); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	cell := d.Cell(row)
	if got := cell.Dialog().Content; got != `Form component "Missing" not found` {
		t.Fatalf("placeholder message: got %q", got)
	}
	if _, err := cell.SubmitForm(context.Background()); !errors.Is(err, form.ErrComponentNotFound) {
		t.Fatalf("expected ErrComponentNotFound, got %v", err)
	}
	if cell.Dialog().Open || after.count() != 0 {
		t.Fatalf("dialog must close without afterAction")
	}
}

func TestConcurrentTriggerRunsOnce(t *testing.T) {
	t.Parallel()

	const callers = 8
	tests := []struct {
		name   string
		action model.ActionConfig
	}{
		{name: "api", action: apiAction("/items/{id}")},
		{name: "custom", action: model.ActionConfig{ID: "slow", Type: model.ActionCustom, Custom: &model.CustomAction{Handler: "slow"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			requester := &stubRequester{started: make(chan struct{}, callers), release: make(chan struct{})}
			var mu sync.Mutex
			runs := 0
			handlers := NewHandlers()
			handlers.MustRegister("slow", func(context.Context, model.Row) error {
				mu.Lock()
				runs++
				mu.Unlock()
				<-requester.release
				return nil
			})
			d := NewDispatcher(requester, WithHandlers(handlers), WithLogger(quietLogger(&bytes.Buffer{})))
			row := model.Row{"id": "5"}

			start := make(chan struct{})
			results := make(chan error, callers)
			for i := 0; i < callers; i++ {
				go func() {
					<-start
					results <- d.Trigger(context.Background(), tt.action, row)
				}()
			}
			close(start)

			for i := 0; i < callers-1; i++ {
				if err := <-results; !errors.Is(err, ErrBusy) {
					t.Fatalf("expected ErrBusy for all but one caller, got %v", err)
				}
			}
			close(requester.release)
			if err := <-results; err != nil {
				t.Fatalf("trigger: %v", err)
			}

			mu.Lock()
			got := runs + len(requester.calls())
			mu.Unlock()
			if got != 1 {
				t.Fatalf("expected exactly one execution, got %d", got)
			}
			if d.Busy(row) {
				t.Fatalf("row must be released")
			}
		})
	}
}

func TestConcurrentConfirmRunsOnce(t *testing.T) {
	t.Parallel()

	const callers = 8
	requester := &stubRequester{started: make(chan struct{}, callers), release: make(chan struct{})}
	d := NewDispatcher(requester)
	row := model.Row{"id": "5"}
	if err := d.Trigger(context.Background(), apiAction("/items/{id}", func(a *model.APIAction) { a.Confirm = true }), row); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	cell := d.Cell(row)

	start := make(chan struct{})
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			<-start
			results <- cell.Confirm(context.Background())
		}()
	}
	close(start)

	for i := 0; i < callers-1; i++ {
		err := <-results
		if !errors.Is(err, ErrBusy) && !errors.Is(err, ErrNoPendingAction) {
			t.Fatalf("expected a rejected confirm, got %v", err)
		}
	}
	close(requester.release)
	if err := <-results; err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(requester.calls()) != 1 {
		t.Fatalf("expected exactly one request, got %d", len(requester.calls()))
	}
}

func TestPruneDropsIdleCellsOfRemovedRows(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(&stubRequester{})
	kept, removed, open := model.Row{"id": "1"}, model.Row{"id": "2"}, model.Row{"id": "3"}
	keptCell, removedCell := d.Cell(kept), d.Cell(removed)
	if err := d.Trigger(context.Background(), apiAction("/items/{id}", func(a *model.APIAction) { a.Confirm = true }), open); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	openCell := d.Cell(open)

	if got := d.Prune([]model.Row{kept}); got != 1 {
		t.Fatalf("expected one dropped cell, got %d", got)
	}
	if d.Cell(kept) != keptCell {
		t.Fatalf("cell of a present row must be kept")
	}
	if d.Cell(open) != openCell || !openCell.Dialog().Open {
		t.Fatalf("cell with an open dialog must be kept")
	}
	if d.Cell(removed) == removedCell {
		t.Fatalf("idle cell of a removed row must be dropped")
	}
}
