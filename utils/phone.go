package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var nonDigitRegex = regexp.MustCompile(`\D`)

// IsValidPhoneNumber accepts any string with 10 or more digits after stripping
// formatting characters and an optional leading +countrycode.
func IsValidPhoneNumber(phoneNumber string) bool {
	if phoneNumber == "" {
		return false
	}
	digits := nonDigitRegex.ReplaceAllString(phoneNumber, "")
	return len(digits) >= 10
}

// NormalizePhoneNumber produces an E.164-like +{countrycode}{digits} string.
// Ten-digit numbers default to country code 1. Re-normalizing a normalized
// number is a no-op.
func NormalizePhoneNumber(phoneNumber, countryCode string) string {
	digits := nonDigitRegex.ReplaceAllString(phoneNumber, "")
	if digits == "" {
		return ""
	}

	cc := nonDigitRegex.ReplaceAllString(countryCode, "")

	if strings.HasPrefix(strings.TrimSpace(phoneNumber), "+") {
		// Country code already embedded in the number
		return "+" + digits
	}

	if len(digits) == 10 {
		if cc == "" {
			cc = "1"
		}
		return "+" + cc + digits
	}

	if cc != "" && !strings.HasPrefix(digits, cc) {
		return "+" + cc + digits
	}

	return "+" + digits
}

// FormatPhoneNumber renders a normalized number as (XXX) XXX-XXXX, prefixed
// with +{cc} when the country code is not 1.
func FormatPhoneNumber(phoneNumber string) string {
	digits := nonDigitRegex.ReplaceAllString(phoneNumber, "")
	if len(digits) < 10 {
		return phoneNumber
	}

	local := digits[len(digits)-10:]
	cc := digits[:len(digits)-10]

	formatted := fmt.Sprintf("(%s) %s-%s", local[0:3], local[3:6], local[6:10])
	if cc == "" || cc == "1" {
		return formatted
	}
	return fmt.Sprintf("+%s %s", cc, formatted)
}
