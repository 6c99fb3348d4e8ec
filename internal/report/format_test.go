package report

import (
	"math"
	"testing"
	"time"
)

func TestFormatCurrency(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0 ₫"},
		{999, "999 ₫"},
		{1000, "1.000 ₫"},
		{1234567.49, "1.234.567 ₫"},
		{1234567.5, "1.234.568 ₫"},
		{-1500000, "-1.500.000 ₫"},
		{-0.4, "0 ₫"},
		{-2.5, "-3 ₫"},
	}
	for _, tc := range cases {
		if got := FormatCurrency(tc.in); got != tc.want {
			t.Fatalf("FormatCurrency(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{12.5, "12.50%"},
		{0, "0.00%"},
		{-3, "-3.00%"},
		{33.33333, "33.33%"},
		{-0.001, "0.00%"},
	}
	for _, tc := range cases {
		if got := FormatPercent(tc.in); got != tc.want {
			t.Fatalf("FormatPercent(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if FormatPercent(math.NaN()) != "" || FormatInteger(math.Inf(1)) != "" {
		t.Fatal("non-finite values must render empty")
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC)
	if FormatDate(d) != "09/02/2024" || FormatMonth(d) != "02/2024" {
		t.Fatalf("got %s %s", FormatDate(d), FormatMonth(d))
	}
}
