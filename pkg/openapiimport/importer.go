// Package openapiimport bootstraps an entity config from the request body
// schema of an OpenAPI operation.
//
// Scalar properties become fields and columns. Vendor extensions refine the
// mapping:
//
//	x-crudmeta-options-api    makes the field a dynamic-select
//	x-crudmeta-depends-on     sets dependsOn
//	x-crudmeta-option-label   sets optionLabel
//	x-crudmeta-option-value   sets optionValue
//	x-crudmeta-renderer       sets the column renderer
//	x-crudmeta-hidden         hides the column
//	x-crudmeta-order          orders fields (lower first, then by name)
package openapiimport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-crudmeta/pkg/model"
)

const (
	extOptionsAPI  = "x-crudmeta-options-api"
	extDependsOn   = "x-crudmeta-depends-on"
	extOptionLabel = "x-crudmeta-option-label"
	extOptionValue = "x-crudmeta-option-value"
	extRenderer    = "x-crudmeta-renderer"
	extHidden      = "x-crudmeta-hidden"
	extOrder       = "x-crudmeta-order"
)

// ErrOperationNotFound is returned when the document has no operation with
// the requested id.
var ErrOperationNotFound = errors.New("openapiimport: operation not found")

// Option configures an import.
type Option func(*config)

type config struct {
	id    string
	title string
}

// WithEntityID overrides the entity id derived from the operation path.
func WithEntityID(id string) Option {
	return func(c *config) {
		c.id = strings.TrimSpace(id)
	}
}

// WithTitle overrides the title taken from the operation summary.
func WithTitle(title string) Option {
	return func(c *config) {
		c.title = strings.TrimSpace(title)
	}
}

// Entity loads the OpenAPI document in data and builds a schema form entity
// from operationID's JSON request body.
func Entity(ctx context.Context, data []byte, operationID string, opts ...Option) (model.EntityConfig, error) {
	cfg := &config{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if len(data) == 0 {
		return model.EntityConfig{}, errors.New("openapiimport: document payload is empty")
	}

	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return model.EntityConfig{}, fmt.Errorf("openapiimport: load document: %w", err)
	}

	path, op := findOperation(doc, operationID)
	if op == nil {
		return model.EntityConfig{}, fmt.Errorf("%w: %q", ErrOperationNotFound, operationID)
	}

	schema := requestSchema(op)
	if schema == nil {
		return model.EntityConfig{}, fmt.Errorf("openapiimport: operation %q has no JSON request schema", operationID)
	}

	api := collectionPath(path)
	entity := model.EntityConfig{
		ID:       cfg.id,
		Title:    cfg.title,
		API:      api,
		FormType: model.FormSchema,
	}
	if entity.ID == "" {
		entity.ID = entityIDFromPath(api)
	}
	if entity.Title == "" {
		entity.Title = strings.TrimSpace(op.Summary)
	}
	if entity.Title == "" {
		entity.Title = model.DefaultLabeler(entity.ID)
	}

	for _, prop := range orderedProperties(schema) {
		field, ok := fieldFromSchema(prop.name, prop.schema, schema.Required)
		if !ok {
			continue
		}
		entity.Fields = append(entity.Fields, field)
		entity.Columns = append(entity.Columns, model.ColumnConfig{
			HeaderName: field.DisplayLabel(),
			Field:      field.Name,
			Renderer:   stringExt(prop.schema.Extensions, extRenderer),
			Hide:       boolExt(prop.schema.Extensions, extHidden),
		})
	}

	if err := entity.Validate(); err != nil {
		return model.EntityConfig{}, fmt.Errorf("openapiimport: %w", err)
	}
	return entity, nil
}

func findOperation(doc *openapi3.T, operationID string) (string, *openapi3.Operation) {
	if doc.Paths == nil {
		return "", nil
	}
	paths := doc.Paths.Map()
	keys := make([]string, 0, len(paths))
	for key := range paths {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, path := range keys {
		item := paths[path]
		if item == nil {
			continue
		}
		for _, op := range []*openapi3.Operation{item.Post, item.Put, item.Patch, item.Get, item.Delete} {
			if op != nil && op.OperationID == operationID {
				return path, op
			}
		}
	}
	return "", nil
}

func requestSchema(op *openapi3.Operation) *openapi3.Schema {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	content := op.RequestBody.Value.Content
	mt, ok := content["application/json"]
	if !ok || mt == nil || mt.Schema == nil {
		return nil
	}
	return mt.Schema.Value
}

type property struct {
	name   string
	schema *openapi3.Schema
	order  int
}

func orderedProperties(schema *openapi3.Schema) []property {
	props := make([]property, 0, len(schema.Properties))
	for name, ref := range schema.Properties {
		if ref == nil || ref.Value == nil {
			continue
		}
		order, ok := intExt(ref.Value.Extensions, extOrder)
		if !ok {
			order = int(^uint(0) >> 1)
		}
		props = append(props, property{name: name, schema: ref.Value, order: order})
	}
	sort.SliceStable(props, func(i, j int) bool {
		if props[i].order != props[j].order {
			return props[i].order < props[j].order
		}
		return props[i].name < props[j].name
	})
	return props
}

func fieldFromSchema(name string, schema *openapi3.Schema, required []string) (model.FieldConfig, bool) {
	field := model.FieldConfig{
		Name:     name,
		Label:    strings.TrimSpace(schema.Title),
		ReadOnly: schema.ReadOnly,
	}
	for _, req := range required {
		if req == name {
			field.Required = true
		}
	}

	if api := stringExt(schema.Extensions, extOptionsAPI); api != "" {
		field.Type = model.FieldDynamicSelect
		field.OptionsAPI = api
		field.DependsOn = stringExt(schema.Extensions, extDependsOn)
		field.OptionLabel = stringExt(schema.Extensions, extOptionLabel)
		field.OptionValue = stringExt(schema.Extensions, extOptionValue)
		return field, true
	}

	switch schemaType(schema) {
	case openapi3.TypeString:
		switch {
		case len(schema.Enum) > 0:
			field.Type = model.FieldSelect
			for _, value := range schema.Enum {
				label := model.Stringify(value)
				field.Options = append(field.Options, model.Option{Label: label, Value: value})
			}
		case schema.Format == "date" || schema.Format == "date-time":
			field.Type = model.FieldDate
		default:
			field.Type = model.FieldText
		}
	case openapi3.TypeInteger, openapi3.TypeNumber:
		field.Type = model.FieldNumber
	case openapi3.TypeBoolean:
		field.Type = model.FieldCheckbox
	default:
		return model.FieldConfig{}, false
	}
	return field, true
}

func schemaType(schema *openapi3.Schema) string {
	if schema.Type == nil {
		return ""
	}
	for _, t := range schema.Type.Slice() {
		if t != openapi3.TypeNull {
			return t
		}
	}
	return ""
}

// collectionPath strips trailing path parameters: /items/{id} -> /items.
func collectionPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for len(segments) > 0 && strings.HasPrefix(segments[len(segments)-1], "{") {
		segments = segments[:len(segments)-1]
	}
	return "/" + strings.Join(segments, "/")
}

func entityIDFromPath(api string) string {
	segments := strings.Split(strings.Trim(api, "/"), "/")
	return segments[len(segments)-1]
}

func stringExt(ext map[string]any, key string) string {
	switch value := ext[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case json.RawMessage:
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func boolExt(ext map[string]any, key string) bool {
	switch value := ext[key].(type) {
	case bool:
		return value
	case json.RawMessage:
		var b bool
		if err := json.Unmarshal(value, &b); err == nil {
			return b
		}
	}
	return false
}

func intExt(ext map[string]any, key string) (int, bool) {
	switch value := ext[key].(type) {
	case float64:
		return int(value), true
	case int:
		return value, true
	case json.RawMessage:
		n, err := strconv.Atoi(strings.TrimSpace(string(value)))
		return n, err == nil
	}
	return 0, false
}
