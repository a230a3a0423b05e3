// Package builtin embeds the grammars and themes that are available
// without any configuration: Go, Python, Rust and TSX grammars and the
// "alone" dark theme.
package builtin

import (
	"embed"

	"github.com/spf13/afero"
)

// DefaultTheme is the theme used when neither the request nor the
// configuration names one.
const DefaultTheme = "alone"

//go:embed grammars/*.tmLanguage.json themes/*-color-theme.json
var assets embed.FS

// FS returns the embedded assets as a read-only filesystem, grammars under
// "grammars/" and themes under "themes/".
func FS() afero.Fs {
	return afero.NewReadOnlyFs(afero.FromIOFS{FS: assets})
}
