package payment

import (
	"regexp"
	"strings"
)

const (
	CountryPrefix = "254"
	phoneLength   = 12
)

var nonDigit = regexp.MustCompile(`\D`)

// FormatPhoneNumber normalizes a Kenyan number (07..., +254 7..., 254-7...) to 2547XXXXXXXX.
// The result is not validated; use ValidatePhoneNumber before calling the gateway.
func FormatPhoneNumber(s string) string {
	s = nonDigit.ReplaceAllString(s, "")
	if strings.HasPrefix(s, "0") {
		s = CountryPrefix + s[1:]
	} else if !strings.HasPrefix(s, CountryPrefix) {
		s = CountryPrefix + s
	}
	return s
}

// ValidatePhoneNumber formats s and rejects anything that is not a 12 digit 254 number.
func ValidatePhoneNumber(s string) (string, error) {
	formatted := FormatPhoneNumber(s)
	if len(formatted) != phoneLength || !strings.HasPrefix(formatted, CountryPrefix) {
		return "", &ValidationError{
			Field:   "phone",
			Message: "Invalid phone number format. Use format: 07XXXXXXXX or 254XXXXXXXXX",
		}
	}
	return formatted, nil
}

// MaskPhone keeps the last four digits for logs.
func MaskPhone(s string) string {
	if len(s) <= 4 {
		return "***"
	}
	return "***" + s[len(s)-4:]
}
