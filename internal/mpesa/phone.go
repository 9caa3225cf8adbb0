package mpesa

import (
	"regexp"
	"strings"
)

// Kenyan mobile numbers: optional 254 country code or 0 trunk prefix,
// subscriber number starting with 1 or 7, nine digits total.
var phonePattern = regexp.MustCompile(`^(254|0)?[17]\d{8}$`)

// ValidPhoneNumber reports whether raw is a valid Kenyan mobile number after
// stripping whitespace.
func ValidPhoneNumber(raw string) bool {
	return phonePattern.MatchString(stripWhitespace(raw))
}

// NormalizePhoneNumber converts a valid Kenyan mobile number to the single
// canonical international form (254XXXXXXXXX). Normalizing an already
// canonical number returns it unchanged.
func NormalizePhoneNumber(raw string) string {
	phone := stripWhitespace(raw)
	if strings.HasPrefix(phone, "254") {
		return phone
	}
	return "254" + strings.TrimPrefix(phone, "0")
}

func stripWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
