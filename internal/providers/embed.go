package providers

import (
	_ "embed"
	"strings"
)

//go:embed list.txt
var rawList string

// Default is the embedded provider list.
var Default = Parse(rawList)

// Parse builds a Set from newline-separated domains. Blank lines and lines
// starting with '#' are ignored.
func Parse(raw string) Set {
	s := make(Set)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			s[line] = struct{}{}
		}
	}
	return s
}
