package columns

import (
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/goliatone/go-crudmeta/pkg/model"
)

// NewPriceRenderer formats the cell as money. The currency code is read from
// the row field named by the currencyField param (default "currency") and
// formatted for the locale param (default "en-US"). Missing or unknown
// currencies fall back to the raw value.
func NewPriceRenderer(params map[string]any) (CellRenderer, error) {
	currencyField := stringParam(params, "currencyField", "currency")
	tag, err := language.Parse(stringParam(params, "locale", "en-US"))
	if err != nil {
		tag = language.AmericanEnglish
	}
	printer := message.NewPrinter(tag)

	return func(cell CellContext) any {
		if cell.Value == nil {
			return nil
		}
		code := strings.TrimSpace(model.Stringify(cell.Row[currencyField]))
		if code == "" {
			return cell.Value
		}
		unit, err := currency.ParseISO(code)
		if err != nil {
			return cell.Value
		}
		amount, ok := toFloat(cell.Value)
		if !ok {
			return cell.Value
		}
		scale, _ := currency.Standard.Rounding(unit)
		return printer.Sprintf("%v %v", currency.Symbol(unit), number.Decimal(amount, number.Scale(scale)))
	}, nil
}

// NewCheckboxRenderer renders the cell as a boolean.
func NewCheckboxRenderer(map[string]any) (CellRenderer, error) {
	return func(cell CellContext) any {
		return model.Truthy(cell.Value)
	}, nil
}

func stringParam(params map[string]any, key, fallback string) string {
	if value, ok := params[key].(string); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return parsed, err == nil
	}
	return 0, false
}
