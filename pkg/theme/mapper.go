package theme

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/walteh/tmscope/pkg/scope"
)

// Mapper resolves scope lists against a theme. Results are memoised, so a
// Mapper should be shared by every scan using the same theme. It is safe for
// concurrent use.
type Mapper struct {
	theme *Theme
	memo  *gocache.Cache
}

func NewMapper(t *Theme) *Mapper {
	return &Mapper{
		theme: t,
		memo:  gocache.New(10*time.Minute, 30*time.Minute),
	}
}

func (m *Mapper) Theme() *Theme {
	return m.theme
}

type candidate struct {
	score scope.Score
	index int
	set   bool
}

// beats reports whether a rule with score and index takes over from c.
func (c *candidate) beats(score scope.Score, index int) bool {
	if !c.set {
		return true
	}
	switch score.Compare(c.score) {
	case 1:
		return true
	case 0:
		return index > c.index
	}
	return false
}

func (c *candidate) take(score scope.Score, index int) {
	c.score, c.index, c.set = score, index, true
}

// Match returns the style for scopes, given outermost first. Each property
// is decided on its own: the most specific rule setting it wins, a later rule
// wins a tie, and the theme default applies when no rule sets it.
func (m *Mapper) Match(scopes []string) Style {
	key := strings.Join(scopes, " ")
	if v, ok := m.memo.Get(key); ok {
		return v.(Style)
	}

	style := m.theme.Default
	var fg, bg, fs candidate
	for _, r := range m.theme.Rules {
		score, ok := bestScore(r.Selectors, scopes)
		if !ok {
			continue
		}
		if r.Settings.Foreground != "" && fg.beats(score, r.Index) {
			fg.take(score, r.Index)
			style.Foreground = r.Settings.Foreground
		}
		if r.Settings.Background != "" && bg.beats(score, r.Index) {
			bg.take(score, r.Index)
			style.Background = r.Settings.Background
		}
		if r.Settings.HasFontStyle && fs.beats(score, r.Index) {
			fs.take(score, r.Index)
			style.FontStyle = r.Settings.FontStyle
		}
	}

	m.memo.SetDefault(key, style)
	return style
}

func bestScore(sels []scope.Selector, scopes []string) (scope.Score, bool) {
	var (
		best  scope.Score
		found bool
	)
	for _, sel := range sels {
		score, ok := sel.Match(scopes)
		if !ok {
			continue
		}
		if !found || score.Compare(best) > 0 {
			best, found = score, true
		}
	}
	return best, found
}
