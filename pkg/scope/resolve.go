package scope

import (
	"strings"
)

// Resolve returns the scope names of a stack from outermost to innermost.
// A frame may carry several space separated names; empty names are skipped.
func Resolve(s *Stack) []string {
	if s == nil {
		return nil
	}

	frames := make([]*Stack, s.depth+1)
	for f := s; f != nil; f = f.parent {
		frames[f.depth] = f
	}

	var out []string
	for _, f := range frames {
		if f == nil || f.name == "" {
			continue
		}
		out = append(out, strings.Fields(f.name)...)
	}
	return out
}
