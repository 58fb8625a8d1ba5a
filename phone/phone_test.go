package phone

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("ValidUSNumber", func(t *testing.T) {
		res := Validate("(212) 555-1234", "US")
		assert.True(t, res.Valid)
		assert.Equal(t, "(212) 555-1234", res.Formatted)
		assert.Empty(t, res.Error)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		res := Validate("  - ", "US")
		assert.False(t, res.Valid)
		assert.Equal(t, "Phone number is required", res.Error)
	})

	t.Run("TooShortIndia", func(t *testing.T) {
		res := Validate("12345", "IN")
		assert.False(t, res.Valid)
		assert.Equal(t, "Phone number is too short. Expected 10 digits for India", res.Error)
		assert.Equal(t, "Format: XXXXX XXXXX", res.Suggestion)
	})

	t.Run("TooLongUS", func(t *testing.T) {
		res := Validate("21255512345", "US")
		assert.False(t, res.Valid)
		assert.Equal(t, "Phone number is too long. Expected 10 digits for United States", res.Error)
		assert.Equal(t, "Format: (XXX) XXX-XXXX", res.Suggestion)
	})

	t.Run("PatternMismatch", func(t *testing.T) {
		// Correct length but US area codes cannot start with 1.
		res := Validate("1125551234", "US")
		assert.False(t, res.Valid)
		assert.Equal(t, "Invalid phone number format for United States", res.Error)
		assert.Equal(t, "Expected format: (XXX) XXX-XXXX", res.Suggestion)
	})

	t.Run("RangedLengthError", func(t *testing.T) {
		res := Validate("123", "GB")
		assert.False(t, res.Valid)
		assert.Contains(t, res.Error, "Expected 10 digits for United Kingdom")
	})

	t.Run("UnsupportedCountryFallback", func(t *testing.T) {
		cases := []struct {
			name  string
			input string
			valid bool
		}{
			{"SixDigits", "123456", false},
			{"SevenDigits", "1234567", true},
			{"FifteenDigits", "123456789012345", true},
			{"SixteenDigits", "1234567890123456", false},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				res := Validate(tc.input, "XX")
				assert.Equal(t, tc.valid, res.Valid)
				if !tc.valid {
					assert.Equal(t, "Phone number must be between 7-15 digits", res.Error)
				} else {
					assert.Equal(t, Clean(tc.input), res.Formatted)
				}
			})
		}
	})

	t.Run("BoundaryLengths", func(t *testing.T) {
		// At both length boundaries validity is decided by the pattern alone.
		for _, code := range []string{"GB", "BR", "DE", "FI"} {
			rule := RuleFor(code)
			require.NotNil(t, rule)

			short := "7" + strings.Repeat("2", rule.MinLength-1)
			long := "7" + strings.Repeat("2", rule.MaxLength-1)
			assert.Equal(t, patterns[code].MatchString(short), Validate(short, code).Valid, "min boundary for %s", code)
			assert.Equal(t, patterns[code].MatchString(long), Validate(long, code).Valid, "max boundary for %s", code)
		}
	})
}

func TestFormat(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		country string
		want    string
	}{
		{"US", "2125551234", "US", "(212) 555-1234"},
		{"USAlreadyFormatted", "(212) 555-1234", "US", "(212) 555-1234"},
		{"India", "9876543210", "IN", "98765 43210"},
		{"UK", "2071234567", "GB", "2071 234 567"},
		{"UKEleven", "20712345678", "GB", "2071 234 5678"},
		{"Australia", "412345678", "AU", "412 345 678"},
		{"Germany", "3012345678", "DE", "301 2345678"},
		{"France", "612345678 0", "FR", "61 23 45 67 80"},
		{"BrazilMobile", "11987654321", "BR", "(11) 98765-4321"},
		{"BrazilLandline", "1134567890", "BR", "(11) 3456-7890"},
		{"JapanMobile", "09012345678", "JP", "090-1234-5678"},
		{"JapanLandline", "0312345678", "JP", "031-234-5678"},
		{"China", "13912345678", "CN", "139 1234 5678"},
		{"Singapore", "61234567", "SG", "6123 4567"},
		{"Norway", "22334455", "NO", "2233 4455"},
		{"SpainDefaultGrouping", "612345678", "ES", "612345678"},
		{"TurkeyDefaultGrouping", "5321234567", "TR", "532 123 4567"},
		{"WrongLengthReturnsDigits", "123", "US", "123"},
		{"UnsupportedCountry", "12 34 56 78", "XX", "12345678"},
		{"Empty", "", "US", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Format(tc.input, tc.country))
		})
	}

	t.Run("IdempotentOnCleanDigits", func(t *testing.T) {
		// Re-formatting the digits of a formatted number yields the same display string.
		for _, code := range []string{"US", "IN", "JP", "CN", "FR", "BR", "ES", "TR"} {
			for _, sample := range []string{"2125551234", "9876543210", "09012345678", "13912345678"} {
				once := Format(sample, code)
				twice := Format(Clean(once), code)
				assert.Equal(t, once, twice, "country %s input %s", code, sample)
			}
		}
	})
}

func TestCountryInfo(t *testing.T) {
	t.Run("FixedLength", func(t *testing.T) {
		info := CountryInfo("US")
		require.NotNil(t, info)
		assert.Equal(t, "(XXX) XXX-XXXX", info.Format)
		assert.Equal(t, "(000) 000-0000", info.Example)
		assert.Equal(t, "10 digits", info.Length)
	})

	t.Run("RangedLength", func(t *testing.T) {
		info := CountryInfo("GB")
		require.NotNil(t, info)
		assert.Equal(t, "10-11 digits", info.Length)
	})

	t.Run("Unsupported", func(t *testing.T) {
		assert.Nil(t, CountryInfo("XX"))
	})
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "((XXX) XXX-XXXX)", Placeholder("US"))
	assert.Equal(t, "Enter phone number", Placeholder("XX"))
}

func TestSupported(t *testing.T) {
	codes := Supported()
	assert.Len(t, codes, len(rules))
	assert.True(t, sortedStrings(codes))
	assert.True(t, IsSupported("SG"))
	assert.False(t, IsSupported("ZZ"))
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}
