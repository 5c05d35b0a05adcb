package openapiimport

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const badDoc = `{
  "openapi": "3.0.3",
  "info": {"title": "Orders", "version": "1.0.0"},
  "paths": {
    "/api/orders": {
      "post": {
        "operationId": "createOrder",
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "customer": {"type": "string", "x-crudmeta-widget": "search"},
                  "region": {"type": "string", "x-crudmeta-options-api": "/api/regions", "x-crudmeta-depends-on": "country"},
                  "note": {"type": "string", "x-crudmeta-option-label": "name", "x-crudmeta-hidden": "yes"},
                  "lines": {"type": "array", "items": {"type": "object", "properties": {"qty": {"type": "integer", "x-crudmeta-order": "first"}}}}
                }
              }
            }
          }
        },
        "responses": {"201": {"description": "created"}}
      }
    }
  }
}`

func TestLintCleanDocument(t *testing.T) {
	t.Parallel()

	got, err := Lint(context.Background(), []byte(peopleDoc))
	if err != nil {
		t.Fatalf("Lint() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no violations, got %v", got)
	}
}

func TestLintReportsViolations(t *testing.T) {
	t.Parallel()

	got, err := Lint(context.Background(), []byte(badDoc))
	if err != nil {
		t.Fatalf("Lint() error = %v", err)
	}
	base := "operation createOrder > requestBody > "
	want := []Violation{
		{Location: base + "properties.customer", Message: `unsupported extension "x-crudmeta-widget" (supported: x-crudmeta-depends-on, x-crudmeta-hidden, x-crudmeta-option-label, x-crudmeta-option-value, x-crudmeta-options-api, x-crudmeta-order, x-crudmeta-renderer)`},
		{Location: base + "properties.lines > items > properties.qty", Message: "x-crudmeta-order must be a number, found string"},
		{Location: base + "properties.note", Message: "x-crudmeta-hidden must be a boolean, found string"},
		{Location: base + "properties.note", Message: "x-crudmeta-option-label has no effect without x-crudmeta-options-api"},
		{Location: base + "properties.region", Message: `x-crudmeta-depends-on names unknown property "country"`},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestLintErrors(t *testing.T) {
	t.Parallel()

	for name, data := range map[string]string{"empty": "", "invalid": "{not json"} {
		if _, err := Lint(context.Background(), []byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
