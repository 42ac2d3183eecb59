package session

import (
	"fmt"
	"strings"
)

// addressSuffix is the engine addressing domain for direct chats.
const addressSuffix = "@s.whatsapp.net"

// minAddressDigits is a cheap validity heuristic, not E.164 validation:
// anything shorter cannot carry a country code plus subscriber number.
const minAddressDigits = 10

// NormalizeAddress maps a human-entered phone number onto the engine's
// addressing format: digits only, no leading zeros, suffixed with the
// direct-chat domain.
func NormalizeAddress(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	cleaned := strings.TrimLeft(digits.String(), "0")
	if len(cleaned) < minAddressDigits {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	return cleaned + addressSuffix, nil
}

// phoneFromIdentity extracts the phone-number prefix from an engine identity
// of the form "<digits>:<agent>@<server>". Falls back to "unknown" when the
// identity carries no number.
func phoneFromIdentity(identity string) string {
	number, _, _ := strings.Cut(identity, ":")
	number, _, _ = strings.Cut(number, "@")
	number = strings.TrimSpace(number)
	if number == "" {
		return "unknown"
	}
	return number
}
