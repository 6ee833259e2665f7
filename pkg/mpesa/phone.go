package mpesa

import (
	"regexp"
	"strings"
)

var mobilePattern = regexp.MustCompile(`^254[17]\d{8}$`)

// NormalizePhone converts a Kenyan mobile number to the 2547XXXXXXXX / 2541XXXXXXXX
// form required by Daraja. Accepted inputs include 2547..., +2547..., 07..., 01...,
// and bare 7.../1... subscriber numbers; spaces, dashes and brackets are ignored.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.LastIndex(digits, "+") > 0 {
		return "", ErrInvalidPhoneFormat
	}
	digits = strings.TrimPrefix(digits, "+")

	switch {
	case strings.HasPrefix(digits, "254"):
	case strings.HasPrefix(digits, "0"):
		digits = "254" + digits[1:]
	case strings.HasPrefix(digits, "7"), strings.HasPrefix(digits, "1"):
		digits = "254" + digits
	default:
		return "", ErrInvalidPhoneFormat
	}
	if !mobilePattern.MatchString(digits) {
		return "", ErrInvalidPhoneFormat
	}
	return digits, nil
}
