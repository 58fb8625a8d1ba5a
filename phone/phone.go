// Package phone validates and formats phone numbers against per-country dialing rules.
package phone

import (
	"fmt"
	"sort"
	"strings"
)

// Rule describes the national numbering plan of a single country.
type Rule struct {
	Name      string
	Code      string
	DialCode  string
	MinLength int
	MaxLength int
	Pattern   string
	Format    string
}

// Result is the outcome of validating a raw phone number.
type Result struct {
	Valid      bool   `json:"valid"`
	Formatted  string `json:"formatted,omitempty"`
	Error      string `json:"error,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Info describes a country's expected number shape for display purposes.
type Info struct {
	Format  string `json:"format"`
	Example string `json:"example"`
	Length  string `json:"length"`
}

// Clean strips every non-digit character from raw.
func Clean(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

// Validate checks raw against the numbering rules of countryCode.
// Countries without a rule entry fall back to a plain 7-15 digit length check.
func Validate(raw, countryCode string) Result {
	cleaned := Clean(raw)

	if cleaned == "" {
		return Result{Error: "Phone number is required"}
	}

	rule, ok := rules[countryCode]
	if !ok {
		if len(cleaned) < 7 || len(cleaned) > 15 {
			return Result{Error: "Phone number must be between 7-15 digits"}
		}
		return Result{Valid: true, Formatted: cleaned}
	}

	if len(cleaned) < rule.MinLength {
		return Result{
			Error:      fmt.Sprintf("Phone number is too short. Expected %d digits for %s", rule.MinLength, rule.Name),
			Suggestion: fmt.Sprintf("Format: %s", rule.Format),
		}
	}

	if len(cleaned) > rule.MaxLength {
		return Result{
			Error:      fmt.Sprintf("Phone number is too long. Expected %d digits for %s", rule.MaxLength, rule.Name),
			Suggestion: fmt.Sprintf("Format: %s", rule.Format),
		}
	}

	if !patterns[countryCode].MatchString(cleaned) {
		return Result{
			Error:      fmt.Sprintf("Invalid phone number format for %s", rule.Name),
			Suggestion: fmt.Sprintf("Expected format: %s", rule.Format),
		}
	}

	return Result{Valid: true, Formatted: Format(cleaned, countryCode)}
}

// Placeholder returns the input placeholder text for a country.
func Placeholder(countryCode string) string {
	rule, ok := rules[countryCode]
	if !ok {
		return "Enter phone number"
	}
	return "(" + rule.Format + ")"
}

// CountryInfo returns the display info for a supported country, or nil.
func CountryInfo(countryCode string) *Info {
	rule, ok := rules[countryCode]
	if !ok {
		return nil
	}

	length := fmt.Sprintf("%d digits", rule.MinLength)
	if rule.MinLength != rule.MaxLength {
		length = fmt.Sprintf("%d-%d digits", rule.MinLength, rule.MaxLength)
	}

	return &Info{
		Format:  rule.Format,
		Example: strings.ReplaceAll(rule.Format, "X", "0"),
		Length:  length,
	}
}

// RuleFor returns the rule for a country code, or nil when unsupported.
func RuleFor(countryCode string) *Rule {
	rule, ok := rules[countryCode]
	if !ok {
		return nil
	}
	r := rule
	return &r
}

// IsSupported reports whether a country has dedicated validation rules.
func IsSupported(countryCode string) bool {
	_, ok := rules[countryCode]
	return ok
}

// Supported returns all supported country codes in lexical order.
func Supported() []string {
	codes := make([]string, 0, len(rules))
	for code := range rules {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
