package openapiimport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const extPrefix = "x-crudmeta-"

type extKind int

const (
	kindString extKind = iota
	kindBool
	kindNumber
)

var knownExtensions = map[string]extKind{
	extOptionsAPI:  kindString,
	extDependsOn:   kindString,
	extOptionLabel: kindString,
	extOptionValue: kindString,
	extRenderer:    kindString,
	extHidden:      kindBool,
	extOrder:       kindNumber,
}

// Violation is one misuse of an x-crudmeta extension.
type Violation struct {
	Location string
	Message  string
}

func (v Violation) String() string {
	return v.Location + " -> " + v.Message
}

// Lint reports unknown x-crudmeta extensions, values of the wrong type and
// option hints on properties that are not dynamic selects. Request bodies of
// every operation are walked, nested objects and array items included.
func Lint(ctx context.Context, data []byte) ([]Violation, error) {
	if len(data) == 0 {
		return nil, errors.New("openapiimport: document payload is empty")
	}
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapiimport: load document: %w", err)
	}
	if doc.Paths == nil {
		return nil, nil
	}

	paths := doc.Paths.Map()
	keys := make([]string, 0, len(paths))
	for key := range paths {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []Violation
	for _, key := range keys {
		item := paths[key]
		if item == nil {
			continue
		}
		methods := item.Operations()
		names := make([]string, 0, len(methods))
		for method := range methods {
			names = append(names, method)
		}
		sort.Strings(names)
		for _, method := range names {
			op := methods[method]
			name := op.OperationID
			if name == "" {
				name = method + " " + key
			}
			if schema := requestSchema(op); schema != nil {
				out = append(out, lintSchema([]string{"operation " + name, "requestBody"}, schema, nil)...)
			}
		}
	}
	return out, nil
}

func lintSchema(path []string, schema *openapi3.Schema, siblings openapi3.Schemas) []Violation {
	out := lintExtensions(path, schema.Extensions, siblings)

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ref := schema.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		out = append(out, lintSchema(appendPath(path, "properties."+name), ref.Value, schema.Properties)...)
	}
	if schema.Items != nil && schema.Items.Value != nil {
		out = append(out, lintSchema(appendPath(path, "items"), schema.Items.Value, nil)...)
	}
	return out
}

func lintExtensions(path []string, ext map[string]any, siblings openapi3.Schemas) []Violation {
	keys := make([]string, 0, len(ext))
	for key := range ext {
		if strings.HasPrefix(key, extPrefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	location := strings.Join(path, " > ")
	var out []Violation
	report := func(format string, args ...any) {
		out = append(out, Violation{Location: location, Message: fmt.Sprintf(format, args...)})
	}
	for _, key := range keys {
		kind, ok := knownExtensions[key]
		if !ok {
			report("unsupported extension %q (supported: %s)", key, strings.Join(supportedExtensions(), ", "))
			continue
		}
		value := decodeExt(ext[key])
		switch kind {
		case kindString:
			if _, ok := value.(string); !ok {
				report("%s must be a string, found %s", key, describe(value))
			}
		case kindBool:
			if _, ok := value.(bool); !ok {
				report("%s must be a boolean, found %s", key, describe(value))
			}
		case kindNumber:
			if _, ok := value.(float64); !ok {
				report("%s must be a number, found %s", key, describe(value))
			}
		}
	}

	if stringExt(ext, extOptionsAPI) == "" {
		for _, key := range []string{extDependsOn, extOptionLabel, extOptionValue} {
			if _, ok := ext[key]; ok {
				report("%s has no effect without %s", key, extOptionsAPI)
			}
		}
		return out
	}
	if dep := stringExt(ext, extDependsOn); dep != "" && siblings != nil {
		if _, ok := siblings[dep]; !ok {
			report("%s names unknown property %q", extDependsOn, dep)
		}
	}
	return out
}

func decodeExt(value any) any {
	raw, ok := value.(json.RawMessage)
	if !ok {
		return value
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return raw
	}
	return decoded
}

func describe(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", value)
}

func supportedExtensions() []string {
	out := make([]string, 0, len(knownExtensions))
	for key := range knownExtensions {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func appendPath(path []string, segment string) []string {
	return append(append([]string(nil), path...), segment)
}
