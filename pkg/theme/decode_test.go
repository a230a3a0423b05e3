package theme_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/tmscope/pkg/theme"
)

func TestDecode(t *testing.T) {
	t.Run("test_vscode_json", func(t *testing.T) {
		th, err := theme.Decode("dark-color-theme.json", []byte(`{
			"name": "Dark",
			"type": "dark",
			"colors": {"editor.foreground": "#D4D4D4", "editor.background": "#1E1E1E"},
			"tokenColors": [
				{"scope": "comment", "settings": {"foreground": "#6A9955", "fontStyle": "italic"}},
				{"scope": ["keyword.control", "storage.type"], "settings": {"foreground": "#C586C0"}},
				{"scope": "string, string.template", "settings": {"foreground": "#CE9178"}}
			]
		}`))
		require.NoError(t, err)

		assert.Equal(t, "Dark", th.Name)
		assert.Equal(t, "dark", th.Type)
		assert.Equal(t, theme.Style{Foreground: "#d4d4d4", Background: "#1e1e1e"}, th.Default)
		require.Len(t, th.Rules, 3)
		assert.Len(t, th.Rules[1].Selectors, 2)
		assert.Len(t, th.Rules[2].Selectors, 2)
		assert.True(t, th.Rules[0].Settings.HasFontStyle)
		assert.False(t, th.Rules[1].Settings.HasFontStyle)

		m := theme.NewMapper(th)
		assert.Equal(t, "#c586c0", m.Match([]string{"source.go", "storage.type.go"}).Foreground)
	})

	t.Run("test_global_settings_entry", func(t *testing.T) {
		th, err := theme.Decode("old.theme.json", []byte(`{
			"tokenColors": [
				{"settings": {"foreground": "#eeeeee", "background": "#000000"}},
				{"scope": "keyword", "settings": {"foreground": "#ff0000"}}
			]
		}`))
		require.NoError(t, err)

		assert.Equal(t, theme.Style{Foreground: "#eeeeee", Background: "#000000"}, th.Default)
		assert.Len(t, th.Rules, 1)
	})

	t.Run("test_yaml", func(t *testing.T) {
		th, err := theme.Decode("light.theme.yaml", []byte(`
name: Light
type: light
colors:
  editor.foreground: "#000000"
tokenColors:
  - scope: [comment]
    settings:
      foreground: "#008000"
  - scope: keyword
    settings:
      fontStyle: bold
`))
		require.NoError(t, err)

		assert.Equal(t, "Light", th.Name)
		require.Len(t, th.Rules, 2)
		assert.Equal(t, theme.Bold, theme.NewMapper(th).Match([]string{"keyword.control"}).FontStyle)
	})

	t.Run("test_hcl", func(t *testing.T) {
		th, err := theme.Decode("alone.theme.hcl", []byte(`
name       = "alone"
type       = "dark"
foreground = "#d4d4d4"
background = "#1e1e1e"

rule "keyword.control" {
  foreground = "#FF0000"
  font_style = "bold"
}

rule "keyword" {
  foreground = "#00FF00"
}
`))
		require.NoError(t, err)

		assert.Equal(t, "alone", th.Name)
		require.Len(t, th.Rules, 2)
		got := theme.NewMapper(th).Match([]string{"keyword.control"})
		assert.Equal(t, "#ff0000", got.Foreground)
		assert.Equal(t, theme.Bold, got.FontStyle)
		assert.Equal(t, "#1e1e1e", got.Background)
	})
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
		want string
	}{
		{
			name: "test_invalid_json",
			file: "x.json",
			data: `{"tokenColors": [`,
			want: "parsing JSON",
		},
		{
			name: "test_invalid_color",
			file: "x.json",
			data: `{"tokenColors": [{"scope": "keyword", "settings": {"foreground": "blue"}}]}`,
			want: "tokenColors[0]",
		},
		{
			name: "test_invalid_font_style",
			file: "x.json",
			data: `{"tokenColors": [{"scope": "keyword", "settings": {"fontStyle": "wavy"}}]}`,
			want: "wavy",
		},
		{
			name: "test_invalid_editor_color",
			file: "x.json",
			data: `{"colors": {"editor.background": "#12"}}`,
			want: "editor.background",
		},
		{
			name: "test_invalid_scope_type",
			file: "x.json",
			data: `{"tokenColors": [{"scope": 3, "settings": {}}]}`,
			want: "parsing JSON",
		},
		{
			name: "test_invalid_hcl",
			file: "x.hcl",
			data: `rule "a" {`,
			want: "parsing HCL",
		},
		{
			name: "test_unknown_hcl_attribute",
			file: "x.hcl",
			data: `colour = "#fff"`,
			want: "decoding HCL",
		},
		{
			name: "test_invalid_hcl_rule",
			file: "x.hcl",
			data: "rule \"keyword\" {\n  foreground = \"nope\"\n}\n",
			want: `rule "keyword"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := theme.Decode(tt.file, []byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, theme.ErrMalformedTheme)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
