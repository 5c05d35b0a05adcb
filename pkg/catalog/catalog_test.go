package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-crudmeta/pkg/model"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c, err := Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}

	metas, err := c.ListEntities(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, meta := range metas {
		ids = append(ids, meta.ID)
		if len(meta.Fields) > 0 || len(meta.Columns) > 0 || len(meta.Actions) > 0 {
			t.Fatalf("metadata of %s must not carry fields, columns or actions", meta.ID)
		}
	}
	if diff := cmp.Diff([]string{"A", "schemaForm2", "B", "C", "D", "E"}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}

	a, err := c.GetEntity(context.Background(), "A")
	if err != nil {
		t.Fatalf("get A: %v", err)
	}
	var actionIDs []string
	for _, action := range a.Actions {
		actionIDs = append(actionIDs, action.ID)
	}
	if diff := cmp.Diff([]string{"viewDetails", "deactivate", "export", "auditLog"}, actionIDs); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
	if a.Rows != nil {
		t.Fatalf("entity config must not carry rows")
	}
	if !a.Columns[len(a.Columns)-1].Hide {
		t.Fatalf("hidden alias must be honoured")
	}

	b, _ := c.GetEntity(context.Background(), "B")
	if b.FormType != model.FormComponent || b.Component != "FormB" {
		t.Fatalf("unexpected B form: %s %s", b.FormType, b.Component)
	}

	rows, err := c.ListRows(context.Background(), a.API)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 4 || rows[0]["id"] != "1" || rows[0]["name"] != "John Doe" {
		t.Fatalf("unexpected rows %v", rows)
	}

	states, err := c.FetchOptions(context.Background(), "/api/states?country=CA")
	if err != nil || len(states) != 3 {
		t.Fatalf("states: %v %v", states, err)
	}
	if _, err := c.FetchOptions(context.Background(), "/api/states?country="); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRowLifecycle(t *testing.T) {
	t.Parallel()

	c := New()
	c.newID = func() string { return "new-id" }
	if err := c.Put(model.EntityConfig{
		ID: "people", API: "/api/people/", FormType: model.FormSchema,
		Fields: []model.FieldConfig{{Name: "name", Type: model.FieldText}},
		Rows:   []model.Row{{"name": "Alice"}},
	}); err != nil {
		t.Fatalf("put: %v", err)
	}
	ctx := context.Background()

	created, err := c.CreateRow(ctx, "/api/people", model.Row{"name": "Bob"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created["id"] != "new-id" {
		t.Fatalf("expected generated id, got %v", created["id"])
	}

	if _, err := c.UpdateRow(ctx, "/api/people", "1", model.Row{"id": "ignored", "name": "Alicia"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.DeleteRow(ctx, "/api/people", "new-id"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	rows, _ := c.ListRows(ctx, "/api/people")
	if diff := cmp.Diff([]model.Row{{"id": "1", "name": "Alicia"}}, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	if _, err := c.UpdateRow(ctx, "/api/people", "404", model.Row{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.ListRows(ctx, "/api/nothing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if owner, ok := c.OwnerOf("/api/people/"); !ok || owner != "people" {
		t.Fatalf("owner: %q %v", owner, ok)
	}
}

func TestLoadFSRejectsInvalidEntities(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"bad.json": {Data: []byte(`{"entities":[{"id":"x","api":"/api/x","formType":"component"}]}`)},
	}
	if _, err := LoadFS(fsys); err == nil {
		t.Fatalf("expected validation error for component entity without component")
	}
}

func TestLoadFSMergesDocuments(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"a.yaml":      {Data: []byte("entities:\n  - {id: a, api: /api/a, formType: component, component: FormA}\n")},
		"b/b.json":    {Data: []byte(`{"options":{"/api/colors":[{"label":"Red","value":"red"}]}}`)},
		"notes.txt":   {Data: []byte("ignored")},
		"empty/.keep": {Data: nil},
	}
	c, err := LoadFS(fsys)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Entities()) != 1 {
		t.Fatalf("expected one entity")
	}
	if diff := cmp.Diff([]string{"/api/colors"}, c.OptionURIs()); diff != "" {
		t.Fatalf("option uris mismatch (-want +got):\n%s", diff)
	}
}

func TestPutRejectsSharedAPI(t *testing.T) {
	t.Parallel()

	c := New()
	first := model.EntityConfig{ID: "a", API: "/api/x", FormType: model.FormComponent, Component: "FormA"}
	second := model.EntityConfig{ID: "b", API: "/api/x", FormType: model.FormComponent, Component: "FormB"}
	if err := c.Put(first); err != nil {
		t.Fatalf("put a: %v", err)
	}
	if err := c.Put(second); err == nil {
		t.Fatalf("expected api conflict")
	}
}

func TestLoadPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	doc := `{"entities":[{"id":"notes","title":"Notes","api":"/api/data/notes","formType":"component","component":"FormB"}]}`
	file := filepath.Join(dir, "notes.json")
	if err := os.WriteFile(file, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, path := range []string{file, dir} {
		c, err := Load(path)
		if err != nil {
			t.Fatalf("load %s: %v", path, err)
		}
		if _, err := c.GetEntity(context.Background(), "notes"); err != nil {
			t.Fatalf("load %s: %v", path, err)
		}
	}

	if _, err := Load(filepath.Join(dir, "absent")); err == nil {
		t.Fatalf("expected an error for a missing path")
	}
	c, err := Load("")
	if err != nil {
		t.Fatalf("load demo: %v", err)
	}
	if _, ok := c.OwnerOf("/api/data/A"); !ok {
		t.Fatalf("expected the demo catalog")
	}
}
