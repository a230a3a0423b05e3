/*
Package semtok turns scanned spans into editor semantic tokens.

	  +------------+
	  |   Spans    |  scope list per byte range
	  +------------+
	         |
	     Classify      best matching selector rule
	         |
	         v
	  +------------+
	  |   Tokens   |  type + modifiers per byte range
	  +------------+
	         |
	      Encode       relative line/char, UTF-16 lengths
	         |
	         v
	  +------------+
	  |  []uint32  |
	  +------------+
*/
package semtok

import (
	"iter"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/pkg/scanner"
	"github.com/walteh/tmscope/pkg/scope"
)

// Rule assigns a token type to the scopes its selector matches.
type Rule struct {
	Selector string
	Type     TokenType
	Modifier TokenModifier
}

// DefaultRules follow the scope naming conventions shared by the common
// TextMate grammars.
var DefaultRules = []Rule{
	{Selector: "comment", Type: TokenComment},
	{Selector: "string", Type: TokenString},
	{Selector: "string.regexp", Type: TokenRegexp},
	{Selector: "constant.numeric", Type: TokenNumber},
	{Selector: "keyword, storage.type, storage.modifier", Type: TokenKeyword},
	{Selector: "keyword.operator", Type: TokenOperator},
	{Selector: "entity.name.namespace, entity.name.package", Type: TokenNamespace},
	{Selector: "entity.name.type, entity.name.class", Type: TokenType_, Modifier: ModifierDeclaration},
	{Selector: "support.type, support.class", Type: TokenType_, Modifier: ModifierDefaultLibrary},
	{Selector: "entity.name.function", Type: TokenFunction, Modifier: ModifierDeclaration},
	{Selector: "meta.function-call entity.name.function", Type: TokenFunction},
	{Selector: "support.function", Type: TokenFunction, Modifier: ModifierDefaultLibrary},
	{Selector: "variable", Type: TokenVariable},
	{Selector: "variable.parameter", Type: TokenParameter},
	{Selector: "variable.other.property, variable.other.member", Type: TokenProperty},
	{Selector: "variable.other.constant, constant.language", Type: TokenVariable, Modifier: ModifierReadonly},
}

type compiled struct {
	rule      Rule
	selectors []scope.Selector
}

// Classifier picks the token type of a scope list. It is safe for
// concurrent use.
type Classifier struct {
	rules []compiled
}

func NewClassifier(rules []Rule) (*Classifier, error) {
	c := &Classifier{rules: make([]compiled, 0, len(rules))}
	for _, r := range rules {
		sels, err := scope.ParseSelector(r.Selector)
		if err != nil {
			return nil, errors.Errorf("semantic token rule %q: %w", r.Selector, err)
		}
		c.rules = append(c.rules, compiled{rule: r, selectors: sels})
	}
	return c, nil
}

// Default returns a classifier over DefaultRules.
func Default() *Classifier {
	c, err := NewClassifier(DefaultRules)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the type of the most specific matching rule; a later rule
// wins a tie. ok is false when no rule matches.
func (c *Classifier) Classify(scopes []string) (TokenType, TokenModifier, bool) {
	var (
		best  scope.Score
		match *Rule
	)
	for i := range c.rules {
		r := &c.rules[i]
		for _, sel := range r.selectors {
			score, ok := sel.Match(scopes)
			if !ok {
				continue
			}
			if match == nil || score.Compare(best) >= 0 {
				best, match = score, &r.rule
			}
		}
	}
	if match == nil {
		return 0, ModifierNone, false
	}
	return match.Type, match.Modifier, true
}

// Tokens classifies spans, dropping the unclassified ones and merging
// adjacent spans of the same kind.
func (c *Classifier) Tokens(spans iter.Seq[scanner.Span]) []Token {
	var out []Token
	for span := range spans {
		typ, mod, ok := c.Classify(span.Scopes())
		if !ok {
			continue
		}
		if n := len(out); n > 0 && out[n-1].End == span.Start && out[n-1].Type == typ && out[n-1].Modifier == mod {
			out[n-1].End = span.End
			continue
		}
		out = append(out, Token{Start: span.Start, End: span.End, Type: typ, Modifier: mod})
	}
	return out
}
