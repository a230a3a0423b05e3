package detect_test

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/pkg/detect"
	"github.com/walteh/tmscope/pkg/grammar"
)

func store(t *testing.T) *grammar.Store {
	t.Helper()
	ctx := context.Background()
	s := grammar.NewStore(ctx, time.Second)
	grammars := map[string]string{
		"go":     `{"scopeName": "source.go", "fileTypes": ["go"], "patterns": []}`,
		"ts":     `{"scopeName": "source.ts", "fileTypes": ["ts"], "patterns": []}`,
		"dts":    `{"scopeName": "source.dts", "fileTypes": ["d.ts"], "patterns": []}`,
		"make":   `{"scopeName": "source.makefile", "fileTypes": ["Makefile"], "patterns": []}`,
		"python": `{"scopeName": "source.python", "fileTypes": ["py"], "firstLineMatch": "^#!.*\\bpython", "patterns": []}`,
	}
	for id, src := range grammars {
		require.NoError(t, s.LoadCustomGrammar(ctx, id, []byte(src)))
	}
	return s
}

func TestDetect(t *testing.T) {
	ctx := context.Background()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, ".editorconfig", []byte("root = true\n\n[*.tmpl]\ntmscope_language = go\n\n[*.txt]\ntmscope_theme = paper\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "web/.editorconfig", []byte("[legacy/*.tmpl]\ntmscope_language = ts\n"), 0o644))

	d := detect.New(store(t),
		detect.WithFs(fs),
		detect.WithAssociations(
			detect.Association{Pattern: "**/*.gotmpl", Language: "go"},
			detect.Association{Pattern: "scripts/*", Language: "python"},
			detect.Association{Pattern: "*.go", Language: "ts"},
		),
	)

	tests := []struct {
		name string
		file string
		text string
		want string
	}{
		{name: "test_extension", file: "cmd/main.ts", want: "ts"},
		{name: "test_longest_file_type_wins", file: "types/index.d.ts", want: "dts"},
		{name: "test_base_name_file_type", file: "build/Makefile", want: "make"},
		{name: "test_association_beats_file_type", file: "pkg/x.go", want: "ts"},
		{name: "test_recursive_association", file: "a/b/page.gotmpl", want: "go"},
		{name: "test_directory_association", file: "scripts/deploy", want: "python"},
		{name: "test_editorconfig_beats_association", file: "site/page.tmpl", want: "go"},
		{name: "test_nearer_editorconfig_wins", file: "web/legacy/page.tmpl", want: "ts"},
		{name: "test_first_line", file: "bin/run", text: "#!/usr/bin/env python3\nprint(1)\n", want: "python"},
		{name: "test_text_only", text: "#!/usr/bin/python\n", want: "python"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Detect(ctx, tt.file, tt.text)
			require.NoError(t, err, "detection should succeed")
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("test_no_match", func(t *testing.T) {
		_, err := d.Detect(ctx, "notes/readme.md", "hello")
		require.Error(t, err)
		assert.True(t, errors.Is(err, detect.ErrNoMatch))
	})
}

func TestOverrides(t *testing.T) {
	ctx := context.Background()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "repo/.editorconfig", []byte("[*]\ntmscope_theme = alone\n\n[*.md]\ntmscope_theme = paper\ntmscope_language = markdown\n"), 0o644))

	d := detect.New(store(t), detect.WithFs(fs))

	ov, err := d.Overrides(ctx, "repo/docs/guide.md")
	require.NoError(t, err)
	assert.Equal(t, detect.Overrides{Language: "markdown", Theme: "paper"}, ov)

	ov, err = d.Overrides(ctx, "repo/main.go")
	require.NoError(t, err)
	assert.Equal(t, detect.Overrides{Theme: "alone"}, ov)

	ov, err = d.Overrides(ctx, "elsewhere/main.go")
	require.NoError(t, err)
	assert.Equal(t, detect.Overrides{}, ov)

	ov, err = detect.New(store(t)).Overrides(ctx, "repo/main.go")
	require.NoError(t, err)
	assert.Equal(t, detect.Overrides{}, ov, "no filesystem means no editorconfig")
}
