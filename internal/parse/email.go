// Package parse splits raw address strings into their parts.
package parse

import (
	"strings"

	"golang.org/x/net/idna"
)

// Address is the split form of a raw address string.
// The check/ packages and the pipeline receive this as parameter.
type Address struct {
	Raw         string // the input, untouched
	Local       string // the part before the last @
	Domain      string // the part after the last @, as submitted
	ASCIIDomain string // Domain in ASCII/Punycode form (for DNS/SMTP), "" if not convertible
	Valid       bool   // false if Raw has no non-empty local and domain part
}

// Split splits raw at its last '@'. It does not trim or lower-case the input:
// callers that key on the address rely on seeing it exactly as submitted.
func Split(raw string) Address {
	atIdx := strings.LastIndex(raw, "@")
	if atIdx < 1 || atIdx >= len(raw)-1 {
		return Address{Raw: raw}
	}

	a := Address{
		Raw:    raw,
		Local:  raw[:atIdx],
		Domain: raw[atIdx+1:],
		Valid:  true,
	}
	if ascii, ok := ToASCII(a.Domain); ok {
		a.ASCIIDomain = ascii
	}
	return a
}

// ToASCII converts a domain to its lower-case ASCII/Punycode form.
// Pure ASCII domains are only lower-cased. ok is false if the domain contains
// non-ASCII characters that fail IDNA2008 validation.
func ToASCII(domain string) (string, bool) {
	lower := strings.ToLower(domain)
	for _, r := range lower {
		if r > 127 {
			a, err := idna.Lookup.ToASCII(lower)
			if err != nil {
				return "", false
			}
			return a, true
		}
	}
	return lower, true
}
