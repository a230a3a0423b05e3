// Package emitter folds scanned spans into styled tokens.
package emitter

import (
	"iter"
	"slices"

	"github.com/walteh/tmscope/pkg/scanner"
	"github.com/walteh/tmscope/pkg/theme"
)

// Token is a byte range of the input with its resolved style.
type Token struct {
	Start int         `json:"start"`
	End   int         `json:"end"`
	Style theme.Style `json:"style"`
	// Scopes is only set when emitting WithScopes.
	Scopes []string `json:"scopes,omitempty"`
}

type Option func(*options)

type options struct {
	scopes bool
}

// WithScopes keeps the scope list on every token. Adjacent spans are then
// only merged when their scopes are identical too.
func WithScopes() Option {
	return func(o *options) { o.scopes = true }
}

// Emit styles each span with m and merges adjacent spans that end up with an
// identical style. Order is preserved.
func Emit(spans iter.Seq[scanner.Span], m *theme.Mapper, opts ...Option) iter.Seq[Token] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return func(yield func(Token) bool) {
		var (
			cur  Token
			have bool
		)
		for span := range spans {
			scopes := span.Scopes()
			tok := Token{Start: span.Start, End: span.End, Style: m.Match(scopes)}
			if o.scopes {
				tok.Scopes = scopes
			}
			if have && cur.End == tok.Start && cur.Style == tok.Style && (!o.scopes || slices.Equal(cur.Scopes, tok.Scopes)) {
				cur.End = tok.End
				continue
			}
			if have && !yield(cur) {
				return
			}
			cur, have = tok, true
		}
		if have {
			yield(cur)
		}
	}
}

func Collect(spans iter.Seq[scanner.Span], m *theme.Mapper, opts ...Option) []Token {
	return slices.Collect(Emit(spans, m, opts...))
}
