package scanner

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/apparentlymart/go-textseg/v13/textseg"
	"github.com/dlclark/regexp2"
	gocache "github.com/patrickmn/go-cache"

	"github.com/walteh/tmscope/pkg/grammar"
	"github.com/walteh/tmscope/pkg/scope"
)

type capture struct {
	start, end int
	group      int
	name       string
}

// captures emits the matched range under node with its named capture groups
// nested inside it. A group that overlaps an earlier sibling or reaches past
// its enclosing group is dropped.
func (s *Scanner) captures(node *scope.Stack, rule grammar.RuleID, m *regexp2.Match, names []string) {
	start, end := m.Index, m.Index+m.Length
	var caps []capture
	for i, name := range names {
		if name == "" {
			continue
		}
		g := m.GroupByNumber(i)
		if g == nil || len(g.Captures) == 0 || g.Length == 0 {
			continue
		}
		caps = append(caps, capture{start: g.Index, end: g.Index + g.Length, group: i, name: name})
	}
	slices.SortStableFunc(caps, func(a, b capture) int {
		if a.start != b.start {
			return a.start - b.start
		}
		if la, lb := a.end-a.start, b.end-b.start; la != lb {
			return lb - la
		}
		return a.group - b.group
	})
	s.nest(node, rule, start, end, caps)
}

func (s *Scanner) nest(node *scope.Stack, rule grammar.RuleID, start, end int, caps []capture) []capture {
	pos := start
	for len(caps) > 0 {
		c := caps[0]
		if c.start >= end {
			break
		}
		caps = caps[1:]
		if c.start < pos || c.end > end {
			continue
		}
		s.emit(pos, c.start, node)
		caps = s.nest(node.Push(rule, c.name), rule, c.start, c.end, caps)
		pos = c.end
	}
	s.emit(pos, end, node)
	return caps
}

var endPatterns = gocache.New(10*time.Minute, 30*time.Minute)

// compileBackrefs substitutes the begin captures referenced by \1 to \9 into
// an end pattern and compiles the result.
func compileBackrefs(src string, begin *regexp2.Match, timeout time.Duration) (*regexp2.Regexp, error) {
	var b strings.Builder
	for i := 0; i < len(src); i++ {
		ch := src[i]
		if ch != '\\' || i+1 == len(src) {
			b.WriteByte(ch)
			continue
		}
		next := src[i+1]
		i++
		if next < '1' || next > '9' {
			b.WriteByte(ch)
			b.WriteByte(next)
			continue
		}
		if g := begin.GroupByNumber(int(next - '0')); g != nil && len(g.Captures) > 0 {
			b.WriteString(regexp2.Escape(g.String()))
		}
	}

	key := fmt.Sprintf("%d\x00%s", timeout, b.String())
	if re, ok := endPatterns.Get(key); ok {
		return re.(*regexp2.Regexp), nil
	}
	re, err := regexp2.Compile(b.String(), regexp2.None)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		re.MatchTimeout = timeout
	}
	endPatterns.SetDefault(key, re)
	return re, nil
}

// graphemeRunes reports the number of runes in the first grapheme cluster of
// text, at least one.
func graphemeRunes(text string) int {
	adv, _, err := textseg.ScanGraphemeClusters([]byte(text), true)
	if err != nil || adv <= 0 {
		return 1
	}
	return max(utf8.RuneCountInString(text[:adv]), 1)
}
