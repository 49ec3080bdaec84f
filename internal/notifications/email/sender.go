package email

import (
	"strings"

	"github.com/gosimple/unidecode"
)

// SenderLocalPart turns an athlete's display name into a mailbox name:
// transliterated to ASCII, lower-cased, whitespace-separated parts joined
// with dots. Characters outside [a-z0-9._-] are dropped. An empty result
// means the name cannot be used.
func SenderLocalPart(fullName string) string {
	parts := strings.Fields(strings.ToLower(unidecode.Unidecode(fullName)))
	kept := parts[:0]
	for _, p := range parts {
		if clean := strings.Trim(keepLocalPartChars(p), "."); clean != "" {
			kept = append(kept, clean)
		}
	}
	return strings.Join(kept, ".")
}

// SenderAddress returns <local>@domain for the athlete, or fallback when the
// name yields nothing usable.
func SenderAddress(fullName, domain, fallback string) string {
	local := SenderLocalPart(fullName)
	if local == "" || domain == "" {
		return fallback
	}
	return local + "@" + domain
}

func keepLocalPartChars(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
