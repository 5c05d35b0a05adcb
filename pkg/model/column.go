package model

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// ColumnConfig describes a grid column.
type ColumnConfig struct {
	HeaderName     string         `json:"headerName" yaml:"headerName"`
	Field          string         `json:"field" yaml:"field"`
	Renderer       string         `json:"renderer,omitempty" yaml:"renderer,omitempty"`
	RendererParams map[string]any `json:"rendererParams,omitempty" yaml:"rendererParams,omitempty"`
	Hide           bool           `json:"hide,omitempty" yaml:"hide,omitempty"`
}

// columnWire accepts the persisted aliases (header, hidden) next to the
// canonical names.
type columnWire struct {
	HeaderName     string         `json:"headerName" yaml:"headerName"`
	Header         string         `json:"header" yaml:"header"`
	Field          string         `json:"field" yaml:"field"`
	Renderer       string         `json:"renderer" yaml:"renderer"`
	RendererParams map[string]any `json:"rendererParams" yaml:"rendererParams"`
	Hide           bool           `json:"hide" yaml:"hide"`
	Hidden         bool           `json:"hidden" yaml:"hidden"`
}

func (w columnWire) config() ColumnConfig {
	header := w.HeaderName
	if header == "" {
		header = w.Header
	}
	return ColumnConfig{
		HeaderName:     header,
		Field:          w.Field,
		Renderer:       w.Renderer,
		RendererParams: w.RendererParams,
		Hide:           w.Hide || w.Hidden,
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ColumnConfig) UnmarshalJSON(data []byte) error {
	var wire columnWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*c = wire.config()
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *ColumnConfig) UnmarshalYAML(node *yaml.Node) error {
	var wire columnWire
	if err := node.Decode(&wire); err != nil {
		return err
	}
	*c = wire.config()
	return nil
}
