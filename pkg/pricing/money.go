package pricing

import (
	"fmt"
	"strings"
)

// FormatCents renders minor units for display, e.g. FormatCents(12345, "usd") == "123.45 USD".
func FormatCents(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	amount := fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
	if currency == "" {
		return amount
	}
	return amount + " " + strings.ToUpper(currency)
}
