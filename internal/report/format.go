package report

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatCurrency renders an amount in Vietnamese đồng: whole units,
// half away from zero, dot-grouped thousands, e.g. "1.234.568 ₫".
func FormatCurrency(v float64) string {
	return FormatInteger(v) + " ₫"
}

// FormatInteger rounds to a whole number and groups thousands with dots.
func FormatInteger(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	s := decimal.NewFromFloat(v).Round(0).String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	grouped := group(s)
	if neg && grouped != "0" {
		return "-" + grouped
	}
	return grouped
}

// FormatPercent renders v with exactly two decimals and a % suffix.
func FormatPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	s := decimal.NewFromFloat(v).StringFixed(2)
	if s == "-0.00" {
		s = "0.00"
	}
	return s + "%"
}

// FormatDate renders a date as dd/mm/yyyy.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// FormatMonth renders a month as mm/yyyy.
func FormatMonth(t time.Time) string {
	return t.Format("01/2006")
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
