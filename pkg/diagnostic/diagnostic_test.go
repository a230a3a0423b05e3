package diagnostic_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/gen/jsonschema/go/tmlanguage"
	"github.com/walteh/tmscope/pkg/diagnostic"
	"github.com/walteh/tmscope/pkg/grammar"
	"github.com/walteh/tmscope/pkg/position"
	"github.com/walteh/tmscope/pkg/scanner"
)

func TestFromWarnings(t *testing.T) {
	def, err := tmlanguage.UnmarshalGrammar([]byte(`{"scopeName": "source.demo", "patterns": [
		{"begin": "/\\*", "end": "\\*/", "name": "comment.block"}
	]}`))
	require.NoError(t, err)
	table, err := grammar.Load(context.Background(), &def)
	require.NoError(t, err)

	text := "x := 1\ny /* open"
	_, warnings, err := scanner.Scan(context.Background(), table, text)
	require.NoError(t, err)

	diags := diagnostic.FromWarnings("demo.txt", text, warnings)
	require.Len(t, diags.Warnings, 1)
	assert.Empty(t, diags.Errors)
	assert.False(t, diags.HasErrors())

	w := diags.Warnings[0]
	assert.Equal(t, "demo.txt", w.Source)
	assert.Equal(t, "unterminated-region", w.Code)
	assert.Equal(t, position.Place{Line: 1, Character: 2}, w.Range.Start)
	assert.Equal(t, diagnostic.Warning, w.Severity)
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "test_nil",
			err:  nil,
			want: nil,
		},
		{
			name: "test_single_error",
			err:  errors.New("boom"),
			want: []string{"boom"},
		},
		{
			name: "test_flattens_files_and_definitions",
			err: multierr.Combine(
				errors.New("reading grammar a.json: missing"),
				errors.Errorf("compiling grammar b: %w", multierror.Append(nil,
					errors.New("first"),
					errors.New("second"),
				)),
			),
			want: []string{
				"reading grammar a.json: missing",
				"compiling grammar b: first",
				"compiling grammar b: second",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := diagnostic.FromError("config.hcl", tt.err)
			var got []string
			for _, d := range diags.Errors {
				assert.Equal(t, diagnostic.Error, d.Severity)
				got = append(got, d.Message)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func sample() *diagnostic.Diagnostics {
	d := &diagnostic.Diagnostics{}
	d.Add(diagnostic.Diagnostic{
		Message:  "unterminated region",
		Source:   "a.go",
		Range:    position.Range{Start: position.Place{Line: 2, Character: 4}, End: position.Place{Line: 2, Character: 4}},
		Code:     "unterminated-region",
		Severity: diagnostic.Warning,
	})
	d.Add(diagnostic.Diagnostic{Message: "bad grammar", Source: "go.json", Severity: diagnostic.Error})
	return d
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&diagnostic.TextFormatter{}).Format(&buf, sample()))
	assert.Equal(t, "go.json: error: bad grammar\na.go:3:5: warning[unterminated-region]: unterminated region\n", buf.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&diagnostic.JSONFormatter{}).Format(&buf, sample()))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.EqualValues(t, 1, got[0]["severity"])
	assert.EqualValues(t, 2, got[1]["severity"])
	assert.EqualValues(t, 2, got[1]["range"].(map[string]any)["start"].(map[string]any)["line"])
}

func TestMerge(t *testing.T) {
	d := &diagnostic.Diagnostics{}
	d.Merge(sample())
	d.Merge(nil)
	assert.Equal(t, 2, d.Len())
	assert.True(t, d.HasErrors())
}
