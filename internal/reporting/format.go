package reporting

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// money renders a currency amount with two decimals.
func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// quantity renders a position size with the lot precision.
func quantity(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(3)
}

// pct renders a percentage with two decimals.
func pct(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// details renders action details as "k=v" pairs sorted by key.
func details(d map[string]float64) string {
	if len(d) == 0 {
		return ""
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+decimal.NewFromFloat(d[k]).Round(4).String())
	}
	return strings.Join(parts, " ")
}
