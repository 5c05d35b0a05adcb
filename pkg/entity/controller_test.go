package entity

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-crudmeta/pkg/columns"
	"github.com/goliatone/go-crudmeta/pkg/form"
	"github.com/goliatone/go-crudmeta/pkg/model"
)

type call struct {
	Op   string
	Arg  string
	Data model.Row
}

type stubAPI struct {
	mu       sync.Mutex
	entities map[string]model.EntityConfig
	order    []string
	rows     map[string][]model.Row
	gates    map[string]chan struct{}
	started  chan string
	// entityGates hold GetEntity for an id until closed.
	entityGates map[string]chan struct{}
	rowsErr  error
	writeErr error
	calls    []call
}

func newStubAPI() *stubAPI {
	return &stubAPI{
		entities: map[string]model.EntityConfig{
			"E1": {ID: "E1", Title: "People", API: "/api/data/E1", FormType: model.FormSchema,
				Columns: []model.ColumnConfig{{HeaderName: "Name", Field: "name"}},
				Fields:  []model.FieldConfig{{Name: "name", Label: "Name", Type: model.FieldText, Required: true}},
			},
			"E2": {ID: "E2", Title: "Products", API: "/api/data/E2", FormType: model.FormSchema,
				Columns: []model.ColumnConfig{{HeaderName: "Title", Field: "title"}},
				Fields:  []model.FieldConfig{{Name: "title", Label: "Title", Type: model.FieldText}},
				Actions: []model.ActionConfig{{ID: "x", Type: model.ActionCustom, Custom: &model.CustomAction{Handler: "h"}}},
			},
		},
		order: []string{"E1", "E2"},
		rows: map[string][]model.Row{
			"/api/data/E1": {{"id": "1", "name": "Alice"}},
			"/api/data/E2": {{"id": "9", "title": "Lamp"}},
		},
		gates:       map[string]chan struct{}{},
		entityGates: map[string]chan struct{}{},
	}
}

func (s *stubAPI) record(c call) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

func (s *stubAPI) ListEntities(context.Context) ([]model.EntityConfig, error) {
	s.record(call{Op: "list"})
	var out []model.EntityConfig
	for _, id := range s.order {
		out = append(out, s.entities[id].Meta())
	}
	return out, nil
}

func (s *stubAPI) GetEntity(_ context.Context, id string) (model.EntityConfig, error) {
	s.record(call{Op: "get", Arg: id})
	s.mu.Lock()
	gate := s.entityGates[id]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	entity, ok := s.entities[id]
	if !ok {
		return model.EntityConfig{}, errors.New("not found")
	}
	return entity, nil
}

func (s *stubAPI) ListRows(_ context.Context, api string) ([]model.Row, error) {
	s.record(call{Op: "rows", Arg: api})
	s.mu.Lock()
	gate := s.gates[api]
	err := s.rowsErr
	started := s.started
	s.mu.Unlock()
	if started != nil {
		started <- api
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Row(nil), s.rows[api]...), nil
}

func (s *stubAPI) CreateRow(_ context.Context, api string, data model.Row) (model.Row, error) {
	s.record(call{Op: "create", Arg: api, Data: data})
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[api] = append(s.rows[api], data)
	return data, nil
}

func (s *stubAPI) UpdateRow(_ context.Context, api, id string, data model.Row) (model.Row, error) {
	s.record(call{Op: "update", Arg: api + "/" + id, Data: data})
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows[api] {
		if model.Stringify(row["id"]) == id {
			s.rows[api][i] = data
		}
	}
	return data, nil
}

func (s *stubAPI) callLog() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

func quiet() *log.Logger { return log.New(&bytes.Buffer{}, "", 0) }

func TestLoadSelectsFirstEntity(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	var transitions []State
	c := NewController(api, WithLogger(quiet()), WithOnChange(func(s State) { transitions = append(transitions, s) }))

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	state := c.State()
	if state.EntitiesStatus != StatusLoaded || len(state.Entities) != 2 {
		t.Fatalf("unexpected entities state: %+v", state)
	}
	if state.ActiveMeta == nil || state.ActiveMeta.ID != "E1" || state.Active == nil || state.Active.ID != "E1" {
		t.Fatalf("expected E1 active, got %+v", state)
	}
	if diff := cmp.Diff([]model.Row{{"id": "1", "name": "Alice"}}, state.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	want := []call{{Op: "list"}, {Op: "get", Arg: "E1"}, {Op: "rows", Arg: "/api/data/E1"}}
	if diff := cmp.Diff(want, api.callLog()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if len(transitions) == 0 || transitions[0].EntitiesStatus != StatusLoading {
		t.Fatalf("expected a loading transition first")
	}
}

func TestSelectDiscardsSupersededRows(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	gate := make(chan struct{})
	api.gates["/api/data/E1"] = gate
	api.started = make(chan string, 4)
	c := NewController(api, WithLogger(quiet()))

	first := make(chan error, 1)
	go func() {
		first <- c.Select(context.Background(), model.EntityConfig{ID: "E1"})
	}()

	if got := <-api.started; got != "/api/data/E1" {
		t.Fatalf("expected the E1 row fetch first, got %s", got)
	}

	if err := c.Select(context.Background(), model.EntityConfig{ID: "E2"}); err != nil {
		t.Fatalf("select E2: %v", err)
	}
	close(gate)
	if err := <-first; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded for E1, got %v", err)
	}

	state := c.State()
	if state.Active.ID != "E2" {
		t.Fatalf("expected E2 active, got %s", state.Active.ID)
	}
	if diff := cmp.Diff([]model.Row{{"id": "9", "title": "Lamp"}}, state.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshDuringPendingSelection(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	c := NewController(api, WithLogger(quiet()))
	if err := c.Select(context.Background(), model.EntityConfig{ID: "E1"}); err != nil {
		t.Fatalf("select E1: %v", err)
	}

	entityGate := make(chan struct{})
	rowsGate := make(chan struct{})
	api.mu.Lock()
	api.entityGates["E2"] = entityGate
	api.gates["/api/data/E1"] = rowsGate
	api.started = make(chan string, 4)
	api.mu.Unlock()

	selected := make(chan error, 1)
	go func() {
		selected <- c.Select(context.Background(), model.EntityConfig{ID: "E2"})
	}()
	waitFor(t, func() bool { return c.State().EntityStatus == StatusLoading })

	refreshed := make(chan error, 1)
	go func() {
		refreshed <- c.Refresh(context.Background())
	}()
	if got := <-api.started; got != "/api/data/E1" {
		t.Fatalf("expected the E1 refresh first, got %s", got)
	}

	close(entityGate)
	if got := <-api.started; got != "/api/data/E2" {
		t.Fatalf("expected the E2 row fetch, got %s", got)
	}
	if err := <-selected; err != nil {
		t.Fatalf("select E2: %v", err)
	}
	close(rowsGate)
	if err := <-refreshed; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded for the E1 refresh, got %v", err)
	}

	state := c.State()
	if state.Active == nil || state.Active.ID != "E2" {
		t.Fatalf("expected E2 active, got %+v", state.Active)
	}
	if diff := cmp.Diff([]model.Row{{"id": "9", "title": "Lamp"}}, state.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitDuringPendingSelection(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	c := NewController(api, WithLogger(quiet()))
	if err := c.Select(context.Background(), model.EntityConfig{ID: "E1"}); err != nil {
		t.Fatalf("select E1: %v", err)
	}

	entityGate := make(chan struct{})
	api.mu.Lock()
	api.entityGates["E2"] = entityGate
	api.mu.Unlock()

	selected := make(chan error, 1)
	go func() {
		selected <- c.Select(context.Background(), model.EntityConfig{ID: "E2"})
	}()
	waitFor(t, func() bool { return c.State().EntityStatus == StatusLoading })

	err := c.SubmitEntityData(context.Background(), model.FormState{"name": "Bob"}, form.ModeCreate)
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	close(entityGate)
	if err := <-selected; err != nil {
		t.Fatalf("select E2: %v", err)
	}
	if diff := cmp.Diff([]model.Row{{"id": "9", "title": "Lamp"}}, c.State().Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshAfterFailedSelection(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	c := NewController(api, WithLogger(quiet()))
	if err := c.Select(context.Background(), model.EntityConfig{ID: "E1"}); err != nil {
		t.Fatalf("select E1: %v", err)
	}
	if err := c.Select(context.Background(), model.EntityConfig{ID: "missing"}); err == nil {
		t.Fatalf("expected error for missing entity")
	}
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh after failed selection: %v", err)
	}
	if diff := cmp.Diff([]model.Row{{"id": "1", "name": "Alice"}}, c.State().Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFailureKeepsPreviousState(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	c := NewController(api, WithLogger(quiet()))
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := c.Select(context.Background(), model.EntityConfig{ID: "missing"}); err == nil {
		t.Fatalf("expected error for missing entity")
	}
	state := c.State()
	if state.EntityStatus != StatusFailed || state.LastError == nil {
		t.Fatalf("expected failed entity status, got %+v", state)
	}
	if state.Active == nil || state.Active.ID != "E1" || len(state.Rows) != 1 {
		t.Fatalf("previous entity and rows must stay intact, got %+v", state)
	}
}

func TestSubmitEntityData(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	c := NewController(api, WithLogger(quiet()))
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := c.SubmitEntityData(context.Background(), model.FormState{"name": "Bob"}, form.ModeCreate); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.SubmitEntityData(context.Background(), model.FormState{"id": "1", "name": "Alicia"}, form.ModeEdit); err != nil {
		t.Fatalf("edit: %v", err)
	}

	calls := api.callLog()[3:]
	want := []call{
		{Op: "create", Arg: "/api/data/E1", Data: model.Row{"name": "Bob"}},
		{Op: "rows", Arg: "/api/data/E1"},
		{Op: "update", Arg: "/api/data/E1/1", Data: model.Row{"id": "1", "name": "Alicia"}},
		{Op: "rows", Arg: "/api/data/E1"},
	}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	wantRows := []model.Row{{"id": "1", "name": "Alicia"}, {"name": "Bob"}}
	if diff := cmp.Diff(wantRows, c.State().Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitEntityDataErrors(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	c := NewController(api, WithLogger(quiet()))
	if err := c.SubmitEntityData(context.Background(), model.FormState{}, form.ModeCreate); !errors.Is(err, ErrNoActiveEntity) {
		t.Fatalf("expected ErrNoActiveEntity, got %v", err)
	}
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	before := len(api.callLog())
	if err := c.SubmitEntityData(context.Background(), model.FormState{"name": "x"}, form.ModeEdit); !errors.Is(err, ErrMissingRowID) {
		t.Fatalf("expected ErrMissingRowID, got %v", err)
	}
	if len(api.callLog()) != before {
		t.Fatalf("edit without id must not call the api")
	}

	api.writeErr = errors.New("conflict")
	if err := c.SubmitEntityData(context.Background(), model.FormState{"name": "x"}, form.ModeCreate); err == nil {
		t.Fatalf("expected write error")
	}
	state := c.State()
	if state.LastError == nil || len(state.Rows) != 1 || state.RowsStatus != StatusLoaded {
		t.Fatalf("failed submit must keep rows, got %+v", state)
	}
}

func TestRowsFailure(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	api.rowsErr = errors.New("offline")
	c := NewController(api, WithLogger(quiet()))
	if err := c.Load(context.Background()); err == nil {
		t.Fatalf("expected rows error")
	}
	state := c.State()
	if state.RowsStatus != StatusFailed || state.EntityStatus != StatusLoaded || state.Active == nil {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestNewFormSubmitsThroughController(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	c := NewController(api, WithLogger(quiet()))
	if _, err := c.NewForm(form.ModeCreate, nil); !errors.Is(err, ErrNoActiveEntity) {
		t.Fatalf("expected ErrNoActiveEntity, got %v", err)
	}
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	f, err := c.NewForm(form.ModeCreate, nil)
	if err != nil {
		t.Fatalf("new form: %v", err)
	}
	if ok, _ := f.Submit(context.Background()); ok {
		t.Fatalf("empty required name must block submit")
	}
	f.HandleChange(context.Background(), "name", "Carol")
	if ok, err := f.Submit(context.Background()); !ok || err != nil {
		t.Fatalf("submit: ok=%v err=%v", ok, err)
	}
	if got := len(c.State().Rows); got != 2 {
		t.Fatalf("expected refetched rows, got %d", got)
	}
}

func TestColumnsForActiveEntity(t *testing.T) {
	t.Parallel()

	api := newStubAPI()
	c := NewController(api, WithLogger(quiet()))
	if c.Columns(nil, nil) != nil {
		t.Fatalf("no columns without an active entity")
	}
	if err := c.Select(context.Background(), model.EntityConfig{ID: "E2"}); err != nil {
		t.Fatalf("select: %v", err)
	}
	defs := c.Columns(columns.NewBuilder(columns.WithLogger(quiet())), nil)
	var fields []string
	for _, def := range defs {
		fields = append(fields, def.Field)
	}
	if diff := cmp.Diff([]string{columns.ActionsField, "title"}, fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}
