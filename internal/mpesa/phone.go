package mpesa

import (
	"errors"
	"strings"
)

// ErrInvalidPhoneNumber indicates the phone number cannot be normalized to
// the canonical international form.
var ErrInvalidPhoneNumber = errors.New("mpesa: invalid phone number")

// NormalizePhone converts a Kenyan MSISDN into the canonical 254XXXXXXXXX
// form the gateway expects. Accepted inputs: +2547..., 2547..., 07..., 7...
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	cleaned = strings.TrimPrefix(cleaned, "+")
	if strings.HasPrefix(cleaned, "0") {
		cleaned = "254" + cleaned[1:]
	}
	if !strings.HasPrefix(cleaned, "254") {
		cleaned = "254" + cleaned
	}

	if len(cleaned) != 12 {
		return "", ErrInvalidPhoneNumber
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhoneNumber
		}
	}
	return cleaned, nil
}
