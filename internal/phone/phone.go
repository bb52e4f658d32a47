// Package phone normalizes phone numbers to E.164.
//
// The dialer has no foreign-id search, so a normalized phone number is the
// only stable cross-system correlation key. Normalization bugs silently
// create duplicate dialer contacts, which is why the rules live here in one
// place and are unit-tested in isolation.
//
// Assumptions: bare 10-digit numbers follow the North American numbering
// plan and get a +1 country code prepended.
package phone

import (
	"fmt"
	"strings"
)

// Normalize converts a raw phone string to E.164 form.
// "  (555) 123-4567 " → "+15551234567"
// "15551234567"       → "+15551234567"
// "+447911123456"     → "+447911123456" (already E.164, kept as-is)
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("no phone number")
	}

	hasPlus := strings.HasPrefix(trimmed, "+")

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case hasPlus && len(d) >= 8 && len(d) <= 15:
		return "+" + d, nil
	case len(d) == 10:
		// Local NANP number, prepend country code
		return "+1" + d, nil
	case len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	case d == "":
		return "", fmt.Errorf("no phone number")
	default:
		return "", fmt.Errorf("unrecognized phone number format: %q", raw)
	}
}
