// Package units provides display scales and en-US number formatting for
// chart values and period totals.
package units

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Scale constants
const (
	Raw       = "raw"
	Thousands = "thousands"
	Millions  = "millions"
)

// ValidScales contains all valid scale values
var ValidScales = []string{Raw, Thousands, Millions}

// IsValid checks if the given scale is in the list of valid scales
func IsValid(scale string) bool {
	for _, s := range ValidScales {
		if scale == s {
			return true
		}
	}
	return false
}

// GetValidScalesString returns a comma-separated string of valid scales for error messages
func GetValidScalesString() string {
	return "raw, thousands, millions"
}

// ConvertValue divides a raw value by the target scale.
func ConvertValue(v float64, scale string) float64 {
	switch scale {
	case Thousands:
		return v / 1e3
	case Millions:
		return v / 1e6
	default:
		return v // raw or unknown
	}
}

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatValue formats a chart value with grouping and up to three decimals,
// e.g. 1234567.891 -> "1,234,567.891".
func FormatValue(v float64) string {
	return printer.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
}

// FormatTotal formats a period total: whole numbers above 1000, otherwise up
// to two decimals.
func FormatTotal(v float64) string {
	digits := 2
	if v > 1000 {
		digits = 0
	}
	return printer.Sprint(number.Decimal(v, number.MaxFractionDigits(digits)))
}
