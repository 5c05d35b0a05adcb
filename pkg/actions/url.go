package actions

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-crudmeta/pkg/model"
)

const idPlaceholder = "{id}"

// BuildActionURL substitutes {id} in endpoint with row[idField], falling
// back to row["id"] when the named field is absent or empty. Endpoints
// without the placeholder are returned unchanged.
func BuildActionURL(endpoint, idField string, row model.Row) (string, error) {
	if !strings.Contains(endpoint, idPlaceholder) {
		return endpoint, nil
	}
	id, ok := rowIdentifier(idField, row)
	if !ok {
		field := strings.TrimSpace(idField)
		if field == "" {
			field = "id"
		}
		return "", fmt.Errorf("%w: field %q", ErrMissingIdentifier, field)
	}
	return strings.ReplaceAll(endpoint, idPlaceholder, url.PathEscape(id)), nil
}

func rowIdentifier(idField string, row model.Row) (string, bool) {
	if field := strings.TrimSpace(idField); field != "" {
		if value, ok := row[field]; ok && !model.IsEmpty(value) {
			return model.Stringify(value), true
		}
	}
	if value, ok := row["id"]; ok && !model.IsEmpty(value) {
		return model.Stringify(value), true
	}
	return "", false
}
