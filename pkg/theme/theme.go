// Package theme maps scope lists to display styles.
package theme

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/pkg/scope"
)

var ErrMalformedTheme = errors.Base("malformed theme")

// FontStyle is a set of font style flags.
type FontStyle uint8

const (
	Italic FontStyle = 1 << iota
	Bold
	Underline
	Strikethrough
)

var fontStyleNames = []struct {
	flag FontStyle
	name string
}{
	{Italic, "italic"},
	{Bold, "bold"},
	{Underline, "underline"},
	{Strikethrough, "strikethrough"},
}

// ParseFontStyle parses a space separated list such as "bold italic".
// The empty string and "normal" yield no flags.
func ParseFontStyle(s string) (FontStyle, error) {
	var fs FontStyle
	for _, f := range strings.Fields(strings.ToLower(s)) {
		if f == "normal" {
			continue
		}
		found := false
		for _, n := range fontStyleNames {
			if n.name == f {
				fs |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, errors.Errorf("%w: unknown font style %q", ErrMalformedTheme, f)
		}
	}
	return fs, nil
}

func (f FontStyle) Has(flag FontStyle) bool {
	return f&flag != 0
}

func (f FontStyle) String() string {
	var parts []string
	for _, n := range fontStyleNames {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}

func (f FontStyle) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *FontStyle) UnmarshalText(text []byte) error {
	v, err := ParseFontStyle(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Style is a fully resolved display style. Colors are normalised
// lowercase "#rrggbb" or "#rrggbbaa" strings, empty when unset.
type Style struct {
	Foreground string    `json:"foreground,omitempty"`
	Background string    `json:"background,omitempty"`
	FontStyle  FontStyle `json:"fontStyle,omitempty"`
}

func (s Style) String() string {
	return fmt.Sprintf("fg=%s bg=%s font=%q", s.Foreground, s.Background, s.FontStyle)
}

// Settings are the properties a single rule assigns. Empty colors and a
// false HasFontStyle leave the property to other rules.
type Settings struct {
	Foreground   string
	Background   string
	FontStyle    FontStyle
	HasFontStyle bool
}

// Rule is one theme entry.
type Rule struct {
	Selector  string
	Selectors []scope.Selector
	Settings  Settings
	// Index is the declaration position; later rules win ties.
	Index int
}

// Theme is an immutable parsed theme.
type Theme struct {
	Name    string
	Type    string
	Default Style
	Rules   []Rule
}

// NewRule parses selector and normalises the settings' colors.
func NewRule(index int, selector string, fg, bg, fontStyle string, hasFontStyle bool) (Rule, error) {
	sels, err := scope.ParseSelector(selector)
	if err != nil {
		return Rule{}, errors.Errorf("%w: %v", ErrMalformedTheme, err)
	}
	r := Rule{Selector: selector, Selectors: sels, Index: index}
	if r.Settings.Foreground, err = NormalizeColor(fg); err != nil {
		return Rule{}, err
	}
	if r.Settings.Background, err = NormalizeColor(bg); err != nil {
		return Rule{}, err
	}
	if hasFontStyle {
		if r.Settings.FontStyle, err = ParseFontStyle(fontStyle); err != nil {
			return Rule{}, err
		}
		r.Settings.HasFontStyle = true
	}
	return r, nil
}

// NormalizeColor validates a "#rgb", "#rgba", "#rrggbb" or "#rrggbbaa" color
// and returns it in lowercase long form. The empty string is returned as is.
func NormalizeColor(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	var rgb, alpha string
	switch len(s) {
	case 4, 7:
		rgb = s
	case 5:
		rgb, alpha = s[:4], strings.Repeat(s[4:], 2)
	case 9:
		rgb, alpha = s[:7], s[7:]
	default:
		return "", errors.Errorf("%w: invalid color %q", ErrMalformedTheme, s)
	}
	c, err := colorful.Hex(rgb)
	if err != nil {
		return "", errors.Errorf("%w: invalid color %q: %v", ErrMalformedTheme, s, err)
	}
	if alpha != "" {
		if _, err := strconv.ParseUint(alpha, 16, 8); err != nil {
			return "", errors.Errorf("%w: invalid alpha in color %q", ErrMalformedTheme, s)
		}
		return c.Hex() + strings.ToLower(alpha), nil
	}
	return c.Hex(), nil
}
