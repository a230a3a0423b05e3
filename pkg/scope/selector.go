package scope

import (
	"strings"

	"gitlab.com/tozd/go/errors"
)

var ErrInvalidSelector = errors.Base("invalid scope selector")

// Selector is a descendant path of scope patterns such as
// "source.go keyword.control", optionally with exclusions written
// "string - string.template".
type Selector struct {
	Path    []string
	Exclude [][]string
}

// Specificity records where one selector pattern matched: the 1-based
// position of the scope it matched and the number of dotted segments the
// pattern spelled out.
type Specificity struct {
	Depth    int
	Segments int
}

// Score ranks a selector match, innermost pattern first.
type Score []Specificity

// ParseSelector parses a comma separated list of selectors. Empty
// alternatives are skipped.
func ParseSelector(text string) ([]Selector, error) {
	var out []Selector
	for _, alt := range strings.Split(text, ",") {
		parts := strings.Split(alt, " - ")
		path := fields(parts[0])
		if len(path) == 0 {
			if len(parts) > 1 {
				return nil, errors.Errorf("%w: exclusion without a path in %q", ErrInvalidSelector, text)
			}
			continue
		}
		sel := Selector{Path: path}
		for _, ex := range parts[1:] {
			if p := fields(ex); len(p) > 0 {
				sel.Exclude = append(sel.Exclude, p)
			}
		}
		out = append(out, sel)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("%w: %q", ErrInvalidSelector, text)
	}
	return out, nil
}

// fields splits a path, dropping the ">" child combinator; a child match is
// treated as a descendant match.
func fields(s string) []string {
	var out []string
	for _, f := range strings.Fields(s) {
		if f != ">" {
			out = append(out, f)
		}
	}
	return out
}

// Match reports whether the selector applies to scopes (outermost first)
// and how specific the match is.
func (sel Selector) Match(scopes []string) (Score, bool) {
	score, ok := matchPath(sel.Path, scopes)
	if !ok {
		return nil, false
	}
	for _, ex := range sel.Exclude {
		if _, hit := matchPath(ex, scopes); hit {
			return nil, false
		}
	}
	return score, true
}

func (sel Selector) String() string {
	s := strings.Join(sel.Path, " ")
	for _, ex := range sel.Exclude {
		s += " - " + strings.Join(ex, " ")
	}
	return s
}

// matchPath matches each pattern against the deepest scope still available,
// walking from the innermost pattern outwards. Taking the deepest candidate
// both finds a match whenever one exists and yields the best score.
func matchPath(path, scopes []string) (Score, bool) {
	score := make(Score, 0, len(path))
	j := len(scopes) - 1
	for i := len(path) - 1; i >= 0; i-- {
		found := false
		for ; j >= 0; j-- {
			if segs, ok := matchScope(path[i], scopes[j]); ok {
				score = append(score, Specificity{Depth: j + 1, Segments: segs})
				j--
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return score, true
}

// matchScope matches a pattern against one scope by dotted prefix:
// "keyword" matches "keyword" and "keyword.control.go" but not "keywords".
func matchScope(pattern, scope string) (int, bool) {
	if pattern == scope || strings.HasPrefix(scope, pattern+".") {
		return strings.Count(pattern, ".") + 1, true
	}
	return 0, false
}

// Compare returns 1 when a is more specific than b, -1 when less, 0 when equal.
func (a Score) Compare(b Score) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i].Depth != b[i].Depth:
			return sign(a[i].Depth - b[i].Depth)
		case a[i].Segments != b[i].Segments:
			return sign(a[i].Segments - b[i].Segments)
		}
	}
	return sign(len(a) - len(b))
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}
