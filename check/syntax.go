package check

import (
	"regexp"
	"strings"

	"github.com/badoux/checkmail"

	"github.com/optimode/mxverify/internal/parse"
	"github.com/optimode/mxverify/types"
)

// RFC 5321 limits.
const (
	MaxAddressLength = 254
	MaxLocalLength   = 64
	maxLabelLength   = 63
)

// shapeRe is the coarse local@domain.tld shape: no whitespace, exactly one
// '@', at least one dot after it.
var shapeRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CheckSyntax reports whether addr has the coarse shape local@domain.tld.
func CheckSyntax(addr string) bool {
	return shapeRe.MatchString(addr)
}

// CheckLength reports whether addr is within the RFC 5321 length limits:
// 254 bytes in total and 64 bytes for the local part.
func CheckLength(addr string) bool {
	if len(addr) > MaxAddressLength {
		return false
	}
	a := parse.Split(addr)
	return a.Valid && len(a.Local) <= MaxLocalLength
}

// CheckCharacters reports whether the local part and the domain labels only
// use the allowed character set and structure. Internationalized domains are
// checked in their Punycode form.
func CheckCharacters(addr string) bool {
	a := parse.Split(addr)
	if !a.Valid || a.ASCIIDomain == "" {
		return false
	}
	if err := checkmail.ValidateFormat(a.Local + "@" + a.ASCIIDomain); err != nil {
		return false
	}
	return validateLocal(a.Local) == "" && validateDomain(a.ASCIIDomain) == ""
}

// ValidateFormat runs the three local checks in order and stops at the first
// failure. It returns the flags of the checks that passed and, on failure,
// the reason to report.
func ValidateFormat(addr string) (flags types.CheckFlags, reason string, ok bool) {
	if !CheckSyntax(addr) {
		return flags, types.ReasonInvalidFormat, false
	}
	flags.Syntax = true

	if !CheckLength(addr) {
		return flags, types.ReasonInvalidLength, false
	}
	flags.Length = true

	if !CheckCharacters(addr) {
		return flags, types.ReasonInvalidCharacters, false
	}
	flags.Characters = true
	return flags, "", true
}

// validateLocal checks the dot placement rules of the local part.
// Returns error text, or "" if ok.
func validateLocal(local string) string {
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return "local part cannot start or end with a dot"
	}
	if strings.Contains(local, "..") {
		return "local part cannot contain consecutive dots"
	}
	return ""
}

// validateDomain validates the ASCII domain labels.
// Returns error text, or "" if ok.
func validateDomain(domain string) string {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return "domain must have at least two labels"
	}

	for _, label := range labels {
		if label == "" {
			return "domain contains empty label"
		}
		if len(label) > maxLabelLength {
			return "domain label exceeds 63 characters"
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return "domain label cannot start or end with a hyphen"
		}
		for _, ch := range label {
			if !isAlnum(ch) && ch != '-' {
				return "domain label contains invalid character: " + string(ch)
			}
		}
	}

	tld := labels[len(labels)-1]
	if strings.Trim(tld, "0123456789") == "" {
		return "TLD cannot be all digits"
	}
	return ""
}

func isAlnum(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
