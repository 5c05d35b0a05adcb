// Package catalog is an in-memory entity store loaded from YAML or JSON
// documents. It serves entity metadata, rows and option sets, and backs the
// reference API and offline use of the CLI.
package catalog

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-crudmeta/pkg/entity"
	"github.com/goliatone/go-crudmeta/pkg/model"
)

//go:embed demo.yaml
var demoFS embed.FS

// ErrNotFound is returned for unknown entities, rows and option sets.
var ErrNotFound = errors.New("catalog: not found")

var _ entity.API = (*Catalog)(nil)

type document struct {
	Entities []model.EntityConfig         `json:"entities" yaml:"entities"`
	Options  map[string][]map[string]any `json:"options" yaml:"options"`
}

// Catalog holds entities, their rows and option sets.
type Catalog struct {
	mu       sync.RWMutex
	order    []string
	entities map[string]model.EntityConfig
	byAPI    map[string]string
	rows     map[string][]model.Row
	options  map[string][]any
	newID    func() string
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		entities: make(map[string]model.EntityConfig),
		byAPI:    make(map[string]string),
		rows:     make(map[string][]model.Row),
		options:  make(map[string][]any),
		newID:    uuid.NewString,
	}
}

// Default returns a catalog holding the embedded demo entities.
func Default() (*Catalog, error) {
	return LoadFS(demoFS)
}

// LoadFS walks fsys and loads every .yaml, .yml and .json document. A nil
// fsys yields an empty catalog.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	c := New()
	if fsys == nil {
		return c, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isCatalogFile(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("catalog: read %s: %w", path, err)
		}
		doc, err := parseDocument(data, path)
		if err != nil {
			return err
		}
		return c.add(doc, path)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads the catalog at path, which may be a single document or a
// directory of documents. An empty path selects the embedded demo catalog.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if info.IsDir() {
		return LoadFS(os.DirFS(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	doc, err := parseDocument(data, path)
	if err != nil {
		return nil, err
	}
	c := New()
	if err := c.add(doc, path); err != nil {
		return nil, err
	}
	return c, nil
}

func parseDocument(data []byte, source string) (document, error) {
	var doc document
	if len(strings.TrimSpace(string(data))) == 0 {
		return document{}, fmt.Errorf("catalog: file %s is empty", source)
	}
	if strings.EqualFold(filepath.Ext(source), ".json") {
		if err := json.Unmarshal(data, &doc); err != nil {
			return document{}, fmt.Errorf("catalog: parse %s: %w", source, err)
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("catalog: parse %s: %w", source, err)
	}
	return doc, nil
}

func isCatalogFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func (c *Catalog) add(doc document, source string) error {
	for _, cfg := range doc.Entities {
		if err := c.Put(cfg); err != nil {
			return fmt.Errorf("catalog: %s: %w", source, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for uri, items := range doc.Options {
		set := make([]any, 0, len(items))
		for _, item := range items {
			set = append(set, item)
		}
		c.options[strings.TrimSpace(uri)] = set
	}
	return nil
}

// Put validates cfg and stores it, replacing an entity with the same id.
// Rows carried by cfg become the entity's data; rows without an id get
// their one-based position as id.
func (c *Catalog) Put(cfg model.EntityConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	api := normaliseAPI(cfg.API)
	if api == "" {
		return fmt.Errorf("entity %q: api is required", cfg.ID)
	}

	rows := make([]model.Row, 0, len(cfg.Rows))
	for i, row := range cfg.Rows {
		clone := model.CloneState(row)
		if model.IsEmpty(clone["id"]) {
			clone["id"] = strconv.Itoa(i + 1)
		}
		rows = append(rows, clone)
	}
	cfg.Rows = nil

	c.mu.Lock()
	defer c.mu.Unlock()
	if owner, ok := c.byAPI[api]; ok && owner != cfg.ID {
		return fmt.Errorf("entity %q: api %s already served by %q", cfg.ID, api, owner)
	}
	if previous, ok := c.entities[cfg.ID]; ok {
		delete(c.byAPI, normaliseAPI(previous.API))
	} else {
		c.order = append(c.order, cfg.ID)
	}
	c.entities[cfg.ID] = cfg
	c.byAPI[api] = cfg.ID
	c.rows[api] = rows
	return nil
}

// Entities returns the full entity configs in load order, without rows.
func (c *Catalog) Entities() []model.EntityConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.EntityConfig, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entities[id])
	}
	return out
}

// ListEntities returns entity metadata in load order.
func (c *Catalog) ListEntities(context.Context) ([]model.EntityConfig, error) {
	entities := c.Entities()
	for i := range entities {
		entities[i] = entities[i].Meta()
	}
	return entities, nil
}

// GetEntity returns the full config of id.
func (c *Catalog) GetEntity(_ context.Context, id string) (model.EntityConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg, ok := c.entities[id]
	if !ok {
		return model.EntityConfig{}, fmt.Errorf("%w: entity %q", ErrNotFound, id)
	}
	return cfg, nil
}

// ListRows returns the rows served at api.
func (c *Catalog) ListRows(_ context.Context, api string) ([]model.Row, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows, ok := c.rows[normaliseAPI(api)]
	if !ok {
		return nil, fmt.Errorf("%w: rows at %s", ErrNotFound, api)
	}
	out := make([]model.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.CloneState(row))
	}
	return out, nil
}

// CreateRow appends data to api. A row without id gets a random one.
func (c *Catalog) CreateRow(_ context.Context, api string, data model.Row) (model.Row, error) {
	key := normaliseAPI(api)
	row := model.CloneState(data)

	c.mu.Lock()
	defer c.mu.Unlock()
	rows, ok := c.rows[key]
	if !ok {
		return nil, fmt.Errorf("%w: rows at %s", ErrNotFound, api)
	}
	if model.IsEmpty(row["id"]) {
		row["id"] = c.newID()
	}
	c.rows[key] = append(rows, row)
	return model.CloneState(row), nil
}

// UpdateRow replaces row id at api with data. The id is preserved.
func (c *Catalog) UpdateRow(_ context.Context, api, id string, data model.Row) (model.Row, error) {
	key := normaliseAPI(api)

	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.indexLocked(key, id)
	if err != nil {
		return nil, err
	}
	row := model.CloneState(data)
	row["id"] = c.rows[key][idx]["id"]
	c.rows[key][idx] = row
	return model.CloneState(row), nil
}

// DeleteRow removes row id from api.
func (c *Catalog) DeleteRow(_ context.Context, api, id string) error {
	key := normaliseAPI(api)

	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.indexLocked(key, id)
	if err != nil {
		return err
	}
	rows := c.rows[key]
	c.rows[key] = append(rows[:idx:idx], rows[idx+1:]...)
	return nil
}

func (c *Catalog) indexLocked(api, id string) (int, error) {
	rows, ok := c.rows[api]
	if !ok {
		return -1, fmt.Errorf("%w: rows at %s", ErrNotFound, api)
	}
	for i, row := range rows {
		if model.Stringify(row["id"]) == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: row %q at %s", ErrNotFound, id, api)
}

// OptionSet returns the options registered for the request URI, e.g.
// "/api/states?country=US".
func (c *Catalog) OptionSet(uri string) ([]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.options[strings.TrimSpace(uri)]
	if !ok {
		return nil, false
	}
	return append([]any(nil), set...), true
}

// OptionURIs returns the sorted option set keys.
func (c *Catalog) OptionURIs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	uris := make([]string, 0, len(c.options))
	for uri := range c.options {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// FetchOptions serves option sets to the option resolver.
func (c *Catalog) FetchOptions(_ context.Context, url string) ([]any, error) {
	set, ok := c.OptionSet(url)
	if !ok {
		return nil, fmt.Errorf("%w: options at %s", ErrNotFound, url)
	}
	return set, nil
}

// OwnerOf returns the id of the entity served at api.
func (c *Catalog) OwnerOf(api string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byAPI[normaliseAPI(api)]
	return id, ok
}

func normaliseAPI(api string) string {
	api = strings.TrimSpace(api)
	if api == "/" {
		return api
	}
	return strings.TrimRight(api, "/")
}
