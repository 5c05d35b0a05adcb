package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/goliatone/go-crudmeta/pkg/model"
)

// DefaultEntitiesPath lists entity metadata; the full entity lives under
// DefaultEntitiesPath + id.
const DefaultEntitiesPath = "/api/entity/"

// EntityAPI talks to the remote entity API.
type EntityAPI struct {
	client       *Client
	entitiesPath string
}

// EntityOption configures an EntityAPI.
type EntityOption func(*EntityAPI)

// WithEntitiesPath overrides DefaultEntitiesPath.
func WithEntitiesPath(path string) EntityOption {
	return func(a *EntityAPI) {
		if path = strings.TrimSpace(path); path != "" {
			a.entitiesPath = strings.TrimRight(path, "/") + "/"
		}
	}
}

// NewEntityAPI creates an EntityAPI over client.
func NewEntityAPI(client *Client, opts ...EntityOption) *EntityAPI {
	a := &EntityAPI{client: client, entitiesPath: DefaultEntitiesPath}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// ListEntities returns entity metadata.
func (a *EntityAPI) ListEntities(ctx context.Context) ([]model.EntityConfig, error) {
	var entities []model.EntityConfig
	if err := a.client.Get(ctx, a.entitiesPath, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// GetEntity returns the full entity config.
func (a *EntityAPI) GetEntity(ctx context.Context, id string) (model.EntityConfig, error) {
	var entity model.EntityConfig
	if err := a.client.Get(ctx, a.entitiesPath+url.PathEscape(id), &entity); err != nil {
		return model.EntityConfig{}, err
	}
	return entity, nil
}

// ListRows returns the rows served at api.
func (a *EntityAPI) ListRows(ctx context.Context, api string) ([]model.Row, error) {
	var rows []model.Row
	if err := a.client.Get(ctx, api, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateRow posts data to api.
func (a *EntityAPI) CreateRow(ctx context.Context, api string, data model.Row) (model.Row, error) {
	var created model.Row
	if err := a.client.Do(ctx, "POST", api, data, &created); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateRow puts data to api/id.
func (a *EntityAPI) UpdateRow(ctx context.Context, api, id string, data model.Row) (model.Row, error) {
	var updated model.Row
	path := strings.TrimRight(api, "/") + "/" + url.PathEscape(id)
	if err := a.client.Do(ctx, "PUT", path, data, &updated); err != nil {
		return nil, err
	}
	return updated, nil
}
