package columns

import (
	"strings"

	theme "github.com/goliatone/go-theme"
)

// Palette maps colour names to concrete values.
type Palette map[string]string

// PaletteFromSelection flattens the tokens of a theme selection. Variant
// tokens override manifest tokens.
func PaletteFromSelection(selection *theme.Selection) Palette {
	palette := Palette{}
	if selection == nil || selection.Manifest == nil {
		return palette
	}
	for key, value := range selection.Manifest.Tokens {
		palette[key] = value
	}
	if variant, ok := selection.Manifest.Variants[selection.Variant]; ok {
		for key, value := range variant.Tokens {
			palette[key] = value
		}
	}
	return palette
}

// SelectPalette asks selector for name/variant and builds its palette.
func SelectPalette(selector theme.ThemeSelector, name, variant string) (Palette, error) {
	selection, err := selector.Select(name, variant)
	if err != nil {
		return nil, err
	}
	return PaletteFromSelection(selection), nil
}

// Resolve returns the token for name, looking up "color.<name>" before
// "<name>". Unknown names resolve to themselves.
func (p Palette) Resolve(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if value, ok := p["color."+name]; ok {
		return value
	}
	if value, ok := p[name]; ok {
		return value
	}
	return name
}
