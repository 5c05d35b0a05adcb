package config

import (
	"errors"
	"fmt"

	theme "github.com/goliatone/go-theme"
)

var (
	ErrUnknownTheme   = errors.New("config: unknown theme")
	ErrUnknownVariant = errors.New("config: unknown theme variant")
)

// Manifest returns the configured theme as a go-theme manifest.
func (t Theme) Manifest() *theme.Manifest {
	manifest := &theme.Manifest{
		Name:     t.Name,
		Tokens:   copyTokens(t.Tokens),
		Variants: make(map[string]theme.Variant, len(t.Variants)),
	}
	for name, tokens := range t.Variants {
		manifest.Variants[name] = theme.Variant{Tokens: copyTokens(tokens)}
	}
	return manifest
}

// Selector serves the configured theme to go-theme consumers.
func (t Theme) Selector() theme.ThemeSelector {
	return manifestSelector{manifest: t.Manifest(), variant: t.Variant}
}

type manifestSelector struct {
	manifest *theme.Manifest
	variant  string
}

// Select resolves name and variant, falling back to the configured ones
// when blank.
func (s manifestSelector) Select(name, variant string, _ ...theme.QueryOption) (*theme.Selection, error) {
	if name == "" {
		name = s.manifest.Name
	}
	if name != s.manifest.Name {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTheme, name)
	}
	if variant == "" {
		variant = s.variant
	}
	if variant != "" {
		if _, ok := s.manifest.Variants[variant]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
		}
	}
	return &theme.Selection{Theme: name, Variant: variant, Manifest: s.manifest}, nil
}

func copyTokens(tokens map[string]string) map[string]string {
	out := make(map[string]string, len(tokens))
	for key, value := range tokens {
		out[key] = value
	}
	return out
}
