package cli

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// For any amount, FormatAmount should:
// 1. Have exactly 2 decimal places
// 2. Group the integer part in threes
// 3. Preserve the numeric value when parsed back
func TestProperty_AmountFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	grouped := regexp.MustCompile(`^-?\d{1,3}(,\d{3})*\.\d{2}$`)

	properties.Property("FormatAmount groups thousands", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatAmount(amount)
			if !grouped.MatchString(formatted) {
				t.Logf("Invalid format for %f: %s", amount, formatted)
				return false
			}
			return true
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("FormatAmount preserves value", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatAmount(amount)
			parsed, err := strconv.ParseFloat(strings.ReplaceAll(formatted, ",", ""), 64)
			if err != nil {
				t.Logf("Unparseable %s: %v", formatted, err)
				return false
			}
			if diff := math.Abs(parsed - amount); diff > 0.005+1e-9*math.Abs(amount) {
				t.Logf("Value not preserved: original=%f, formatted=%s", amount, formatted)
				return false
			}
			return true
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.Property("FormatCount matches FormatAmount grouping", prop.ForAll(
		func(n int64) bool {
			return FormatCount(n)+".00" == FormatAmount(float64(n))
		},
		gen.Int64Range(-1e12, 1e12),
	))

	properties.Property("FormatCompact uses correct units", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatCompact(amount)
			abs := math.Abs(amount)
			switch {
			case abs >= 1e9:
				return strings.HasSuffix(formatted, "B")
			case abs >= 1e6:
				return strings.HasSuffix(formatted, "M")
			case abs >= 1e3:
				return strings.HasSuffix(formatted, "K")
			}
			_, err := strconv.ParseFloat(formatted, 64)
			return err == nil
		},
		gen.Float64Range(-1e11, 1e11),
	))

	properties.TestingRun(t)
}

func TestFormatAmountExamples(t *testing.T) {
	testCases := []struct {
		amount   float64
		expected string
	}{
		{0, "0.00"},
		{1, "1.00"},
		{999.999, "1,000.00"},
		{1000, "1,000.00"},
		{1850, "1,850.00"},
		{100000, "100,000.00"},
		{1234567.891, "1,234,567.89"},
		{-1234.56, "-1,234.56"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := FormatAmount(tc.amount); got != tc.expected {
				t.Errorf("FormatAmount(%f) = %s, want %s", tc.amount, got, tc.expected)
			}
		})
	}
}

func TestFormatDurationExamples(t *testing.T) {
	testCases := []struct {
		d        time.Duration
		expected string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := FormatDuration(tc.d); got != tc.expected {
				t.Errorf("FormatDuration(%s) = %s, want %s", tc.d, got, tc.expected)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("Invalid date range", 10); got != "Invalid..." {
		t.Errorf("got %q", got)
	}
	if got := TruncateString("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
}
