// Package contact normalises and validates notification destinations.
package contact

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const DefaultCountryCode = "+91"

var (
	phoneNoise   = regexp.MustCompile(`[^\d+]`)
	phonePattern = regexp.MustCompile(`^\+\d{10,15}$`)
)

// Formatter applies a default country code to numbers without a leading '+'.
type Formatter struct {
	countryCode string
}

func NewFormatter(defaultCountryCode string) *Formatter {
	if defaultCountryCode == "" {
		defaultCountryCode = DefaultCountryCode
	}
	return &Formatter{countryCode: defaultCountryCode}
}

// Normalize strips everything except digits and '+'. Numbers already carrying
// a '+' are returned as is; others get the default country code. Returns ""
// when nothing is left after stripping.
func (f *Formatter) Normalize(raw string) string {
	phone := phoneNoise.ReplaceAllString(raw, "")
	if phone == "" {
		return ""
	}
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	return f.countryCode + phone
}

// Resolve normalises raw and reports whether the result is deliverable.
func (f *Formatter) Resolve(raw string) (string, bool) {
	phone := f.Normalize(raw)
	return phone, ValidPhone(phone)
}

// ValidPhone accepts exactly '+' followed by 10 to 15 digits.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// FirstPhone returns the first non-blank candidate, in the order given.
func FirstPhone(candidates ...string) string {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}

func ValidEmail(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	return validation.Validate(addr, is.EmailFormat) == nil
}

// FirstName returns the first word of a full name, or "Candidate".
func FirstName(fullName string) string {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return "Candidate"
	}
	return parts[0]
}
