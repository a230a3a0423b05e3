package emitter_test

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/walteh/tmscope/gen/jsonschema/go/tmlanguage"
	"github.com/walteh/tmscope/pkg/emitter"
	"github.com/walteh/tmscope/pkg/grammar"
	"github.com/walteh/tmscope/pkg/scanner"
	"github.com/walteh/tmscope/pkg/theme"
)

func setup(t testing.TB) (*grammar.Table, *theme.Mapper) {
	t.Helper()
	def, err := tmlanguage.UnmarshalGrammar([]byte(`{
		"scopeName": "",
		"patterns": [
			{"match": "\\bif\\b", "name": "keyword.control"},
			{"match": "\\belse\\b", "name": "keyword.control.else"},
			{"match": "\\bx\\b", "name": "variable"},
			{"match": "\\d+", "name": "constant.numeric"}
		]
	}`))
	require.NoError(t, err)
	table, err := grammar.Load(context.Background(), &def)
	require.NoError(t, err)

	kw, err := theme.NewRule(0, "keyword.control", "#FF0000", "", "", false)
	require.NoError(t, err)
	k, err := theme.NewRule(1, "keyword", "#00FF00", "", "", false)
	require.NoError(t, err)
	m := theme.NewMapper(&theme.Theme{
		Default: theme.Style{Foreground: "#d4d4d4", Background: "#1e1e1e"},
		Rules:   []theme.Rule{kw, k},
	})
	return table, m
}

func TestEmit(t *testing.T) {
	table, m := setup(t)
	ctx := context.Background()

	t.Run("test_keyword_token", func(t *testing.T) {
		text := "if (x) {}"
		tokens := emitter.Collect(scanner.New(table, text).All(ctx), m)

		require.Len(t, tokens, 2, "x has no theme rule and merges with the plain text")
		assert.Equal(t, "if", text[tokens[0].Start:tokens[0].End])
		assert.Equal(t, "#ff0000", tokens[0].Style.Foreground)
		assert.Equal(t, " (x) {}", text[tokens[1].Start:tokens[1].End])
		assert.Equal(t, "#d4d4d4", tokens[1].Style.Foreground)
	})

	t.Run("test_same_style_merges_across_scopes", func(t *testing.T) {
		text := "if else"
		tokens := emitter.Collect(scanner.New(table, text).All(ctx), m)

		require.Len(t, tokens, 3)
		assert.Equal(t, "else", text[tokens[2].Start:tokens[2].End])
		assert.Equal(t, "#ff0000", tokens[2].Style.Foreground)
	})

	t.Run("test_with_scopes", func(t *testing.T) {
		text := "if (x)"
		tokens := emitter.Collect(scanner.New(table, text).All(ctx), m, emitter.WithScopes())

		require.Len(t, tokens, 4)
		assert.Equal(t, []string{"keyword.control"}, tokens[0].Scopes)
		assert.Equal(t, []string{"variable"}, tokens[2].Scopes)
		assert.Equal(t, "x", text[tokens[2].Start:tokens[2].End])
	})

	t.Run("test_early_stop", func(t *testing.T) {
		var got []emitter.Token
		for tok := range emitter.Emit(scanner.New(table, "if 1 if 2").All(ctx), m) {
			got = append(got, tok)
			break
		}
		assert.Len(t, got, 1)
	})

	t.Run("test_empty_input", func(t *testing.T) {
		assert.Empty(t, emitter.Collect(scanner.New(table, "").All(ctx), m))
	})
}

func TestEmitProperties(t *testing.T) {
	table, m := setup(t)

	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringMatching(`(if|else|x|[0-9]| |\(|\)|\n){0,40}`).Draw(rt, "text")

		spans, _, err := scanner.Scan(context.Background(), table, text)
		require.NoError(rt, err)
		tokens := emitter.Collect(slices.Values(spans), m)

		pos := 0
		for i, tok := range tokens {
			require.Equal(rt, pos, tok.Start, "token %d should be contiguous", i)
			require.Greater(rt, tok.End, tok.Start)
			if i > 0 {
				require.NotEqual(rt, tokens[i-1].Style, tok.Style, "adjacent tokens should differ in style")
			}
			pos = tok.End
		}
		require.Equal(rt, len(text), pos)
		require.Equal(rt, tokens, emitter.Collect(slices.Values(spans), m), "emission is deterministic")
	})
}
