package grammar_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/gen/jsonschema/go/tmlanguage"
	"github.com/walteh/tmscope/pkg/grammar"
)

func def(t *testing.T, src string) *tmlanguage.Grammar {
	t.Helper()
	g, err := tmlanguage.UnmarshalGrammar([]byte(src))
	require.NoError(t, err, "grammar json should decode")
	return &g
}

func rootRules(table *grammar.Table) []*grammar.Rule {
	var out []*grammar.Rule
	for _, id := range table.RuleSet(table.Root).Rules {
		out = append(out, table.Rule(id))
	}
	return out
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("test_match_rules_keep_declaration_order", func(t *testing.T) {
		table, err := grammar.Load(ctx, def(t, `{
			"scopeName": "source.demo",
			"patterns": [
				{"match": "\\bif\\b", "name": "keyword.control"},
				{"match": "\\w+", "name": "variable"}
			]
		}`))
		require.NoError(t, err)

		rules := rootRules(table)
		require.Len(t, rules, 2)
		assert.Equal(t, grammar.KindMatch, rules[0].Kind)
		assert.Equal(t, "keyword.control", rules[0].Name)
		assert.Equal(t, "variable", rules[1].Name)
		assert.Equal(t, "source.demo", table.ScopeName)
	})

	t.Run("test_end_rule_is_tried_first", func(t *testing.T) {
		table, err := grammar.Load(ctx, def(t, `{
			"scopeName": "source.demo",
			"patterns": [
				{"begin": "\"", "end": "\"", "name": "string", "patterns": [{"match": "\\\\.", "name": "constant.escape"}]}
			]
		}`))
		require.NoError(t, err)

		begin := rootRules(table)[0]
		require.Equal(t, grammar.KindBegin, begin.Kind)
		children := table.RuleSet(begin.Children).Rules
		require.Len(t, children, 2)
		assert.Equal(t, begin.End, children[0], "end rule should come first")
		end := table.Rule(children[0])
		assert.Equal(t, grammar.KindEnd, end.Kind)
		assert.Equal(t, begin.ID, end.Owner)
	})

	t.Run("test_apply_end_pattern_last", func(t *testing.T) {
		table, err := grammar.Load(ctx, def(t, `{
			"scopeName": "source.demo",
			"patterns": [
				{"begin": "<", "end": ">", "applyEndPatternLast": 1, "patterns": [{"match": ">>"}]}
			]
		}`))
		require.NoError(t, err)

		begin := rootRules(table)[0]
		children := table.RuleSet(begin.Children).Rules
		require.Len(t, children, 2)
		assert.Equal(t, begin.End, children[1], "end rule should come last")
	})

	t.Run("test_self_include_is_recursive", func(t *testing.T) {
		table, err := grammar.Load(ctx, def(t, `{
			"scopeName": "source.demo",
			"patterns": [
				{"begin": "\\(", "end": "\\)", "name": "meta.group", "patterns": [{"include": "$self"}]},
				{"match": "\\d+", "name": "constant.numeric"}
			]
		}`))
		require.NoError(t, err)

		begin := rootRules(table)[0]
		children := table.RuleSet(begin.Children).Rules
		require.Len(t, children, 3)
		assert.Equal(t, begin.ID, children[1], "region should contain itself")
		assert.Equal(t, "constant.numeric", table.Rule(children[2]).Name)
	})

	t.Run("test_repository_include_cycle_terminates", func(t *testing.T) {
		table, err := grammar.Load(ctx, def(t, `{
			"scopeName": "source.demo",
			"patterns": [{"include": "#a"}],
			"repository": {
				"a": {"patterns": [{"include": "#b"}, {"match": "a", "name": "a"}]},
				"b": {"patterns": [{"include": "#a"}, {"match": "b", "name": "b"}]}
			}
		}`))
		require.NoError(t, err)

		var names []string
		for _, r := range rootRules(table) {
			names = append(names, r.Name)
		}
		assert.ElementsMatch(t, []string{"a", "b"}, names)
	})

	t.Run("test_disabled_patterns_are_skipped", func(t *testing.T) {
		table, err := grammar.Load(ctx, def(t, `{
			"scopeName": "source.demo",
			"patterns": [
				{"match": "x", "name": "off", "disabled": 1},
				{"match": "y", "name": "on"}
			]
		}`))
		require.NoError(t, err)

		rules := rootRules(table)
		require.Len(t, rules, 1)
		assert.Equal(t, "on", rules[0].Name)
	})

	t.Run("test_backreference_end_is_deferred", func(t *testing.T) {
		table, err := grammar.Load(ctx, def(t, `{
			"scopeName": "source.demo",
			"patterns": [{"begin": "<<(\\w+)", "end": "^\\1$", "name": "string.heredoc"}]
		}`))
		require.NoError(t, err)

		end := table.Rule(rootRules(table)[0].End)
		assert.True(t, end.Backrefs)
		assert.Nil(t, end.Pattern)
	})

	t.Run("test_while_region", func(t *testing.T) {
		table, err := grammar.Load(ctx, def(t, `{
			"scopeName": "source.demo",
			"patterns": [{"begin": "^>", "while": "^>", "name": "markup.quote"}]
		}`))
		require.NoError(t, err)

		begin := rootRules(table)[0]
		assert.Equal(t, grammar.NoRule, begin.End)
		assert.NotNil(t, begin.While)
	})

	t.Run("test_cross_grammar_include", func(t *testing.T) {
		other := def(t, `{"scopeName": "source.other", "repository": {"num": {"match": "\\d+", "name": "constant.numeric"}}}`)
		resolver := func(scope string) (*tmlanguage.Grammar, bool) {
			return other, scope == "source.other"
		}
		table, err := grammar.Load(ctx, def(t, `{
			"scopeName": "source.demo",
			"patterns": [{"include": "source.other#num"}]
		}`), grammar.WithResolver(resolver))
		require.NoError(t, err)

		rules := rootRules(table)
		require.Len(t, rules, 1)
		assert.Equal(t, "constant.numeric", rules[0].Name)
	})

	t.Run("test_first_line_match", func(t *testing.T) {
		table, err := grammar.Load(ctx, def(t, `{
			"scopeName": "source.shell",
			"firstLineMatch": "^#!.*\\bbash\\b",
			"patterns": []
		}`))
		require.NoError(t, err)

		assert.True(t, table.MatchesFirstLine("#!/usr/bin/env bash"))
		assert.False(t, table.MatchesFirstLine("package main"))
	})
}

func TestLoadMalformed(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		grammar string
		wantMsg string
	}{
		{
			name:    "test_undefined_repository_include",
			grammar: `{"scopeName": "source.demo", "patterns": [{"include": "#missing"}]}`,
			wantMsg: "missing",
		},
		{
			name:    "test_unknown_grammar_include",
			grammar: `{"scopeName": "source.demo", "patterns": [{"include": "source.nowhere"}]}`,
			wantMsg: "source.nowhere",
		},
		{
			name:    "test_begin_without_end",
			grammar: `{"scopeName": "source.demo", "patterns": [{"begin": "/\\*"}]}`,
			wantMsg: "no end or while",
		},
		{
			name:    "test_end_without_begin",
			grammar: `{"scopeName": "source.demo", "patterns": [{"end": "\\*/"}]}`,
			wantMsg: "without begin",
		},
		{
			name:    "test_invalid_regex",
			grammar: `{"scopeName": "source.demo", "patterns": [{"match": "(unclosed"}]}`,
			wantMsg: "invalid pattern",
		},
		{
			name:    "test_capture_beyond_groups",
			grammar: `{"scopeName": "source.demo", "patterns": [{"match": "(a)", "captures": {"2": {"name": "x"}}}]}`,
			wantMsg: "capture 2",
		},
		{
			name:    "test_non_numeric_capture",
			grammar: `{"scopeName": "source.demo", "patterns": [{"match": "(a)", "captures": {"one": {"name": "x"}}}]}`,
			wantMsg: "not a group number",
		},
		{
			name:    "test_unreferenced_repository_entry",
			grammar: `{"scopeName": "source.demo", "patterns": [], "repository": {"bad": {"match": "[z-a]"}}}`,
			wantMsg: "repository.bad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := grammar.Load(ctx, def(t, tt.grammar))
			require.Error(t, err)
			assert.Nil(t, table)
			assert.True(t, errors.Is(err, grammar.ErrMalformedGrammar), "error should wrap ErrMalformedGrammar: %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	t.Run("test_nil_definition", func(t *testing.T) {
		_, err := grammar.Load(ctx, nil)
		require.ErrorIs(t, err, grammar.ErrMalformedGrammar)
	})

	t.Run("test_every_problem_is_reported", func(t *testing.T) {
		_, err := grammar.Load(ctx, def(t, `{
			"scopeName": "source.demo",
			"patterns": [{"include": "#one"}, {"include": "#two"}]
		}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"one"`)
		assert.Contains(t, err.Error(), `"two"`)
	})
}
