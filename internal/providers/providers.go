// Package providers lists the large mailbox providers whose domains are
// accepted once their MX records resolve, without an SMTP probe.
package providers

// Set is a set of provider domains. Lookups are exact: callers that want
// case folding lower-case the domain first.
type Set map[string]struct{}

// New returns a Set of the given domains.
func New(domains ...string) Set {
	s := make(Set, len(domains))
	for _, d := range domains {
		s[d] = struct{}{}
	}
	return s
}

// IsKnown returns whether domain is in the set.
func (s Set) IsKnown(domain string) bool {
	_, ok := s[domain]
	return ok
}
