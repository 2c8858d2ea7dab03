// Package pricing derives cart totals and formats amounts for display.
package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mmynk/posclient/internal/models"
)

// DefaultSymbol matches the backend's formatted_total currency prefix.
const DefaultSymbol = "C$"

// LineTotal is unit price × quantity, rounded to cents.
func LineTotal(item models.CartItem) float64 {
	return round2(item.Product.Price.Float() * float64(item.Quantity))
}

// CartTotal sums price × quantity over all lines.
func CartTotal(items []models.CartItem) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Product.Price.Float() * float64(item.Quantity)
	}
	return round2(total)
}

// ItemCount sums quantities over all lines.
func ItemCount(items []models.CartItem) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

// Format renders an amount as "C$ 1,250.00".
func Format(amount float64, symbol string) string {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	cents := int64(math.Round(amount * 100))
	return fmt.Sprintf("%s%s %s.%02d", sign, symbol, groupThousands(cents/100), cents%100)
}

// OrderTotal prefers the backend's formatted total and falls back to Format.
func OrderTotal(o models.Order) string {
	if o.FormattedTotal != nil && *o.FormattedTotal != "" {
		return *o.FormattedTotal
	}
	return Format(o.Total.Float(), DefaultSymbol)
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	var parts []string
	for i := len(s); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		parts = append([]string{s[start:i]}, parts...)
	}
	return strings.Join(parts, ",")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
