// Package detect picks the language of a file.
//
// Sources are consulted in order and the first answer wins:
//
//  1. the tmscope_language key of the nearest .editorconfig sections
//  2. configured associations (doublestar patterns)
//  3. grammar fileTypes, matched against the extension or the base name
//  4. grammar firstLineMatch, applied to the first line of the text
package detect

import (
	"context"
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/editorconfig/editorconfig-core-go/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/pkg/grammar"
)

var ErrNoMatch = errors.Base("no language matches")

const (
	EditorConfigName = ".editorconfig"
	LanguageKey      = "tmscope_language"
	ThemeKey         = "tmscope_theme"
)

// Association maps files matching Pattern to Language. Patterns without a
// slash match the base name anywhere in the tree.
type Association struct {
	Pattern  string
	Language string
}

// Overrides are the per-file settings found in .editorconfig files.
type Overrides struct {
	Language string
	Theme    string
}

type Detector struct {
	grammars     *grammar.Store
	fs           afero.Fs
	associations []Association
}

type Option func(*Detector)

// WithFs enables .editorconfig lookups on fs.
func WithFs(fs afero.Fs) Option {
	return func(d *Detector) {
		d.fs = fs
	}
}

func WithAssociations(a ...Association) Option {
	return func(d *Detector) {
		d.associations = append(d.associations, a...)
	}
}

func New(grammars *grammar.Store, opts ...Option) *Detector {
	d := &Detector{grammars: grammars}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns the language id for file, whose content is text. Either
// may be empty.
func (d *Detector) Detect(ctx context.Context, file, text string) (string, error) {
	logger := zerolog.Ctx(ctx)
	file = filepath.ToSlash(file)

	if file != "" {
		ov, err := d.Overrides(ctx, file)
		if err != nil {
			return "", err
		}
		if ov.Language != "" {
			logger.Debug().Str("file", file).Str("language", ov.Language).Msg("language from editorconfig")
			return ov.Language, nil
		}

		if lang, ok := d.associated(file); ok {
			logger.Debug().Str("file", file).Str("language", lang).Msg("language from association")
			return lang, nil
		}
	}

	tables := d.grammars.All()
	ids := slices.Sorted(maps.Keys(tables))

	if file != "" {
		if lang, ok := byFileType(ids, tables, path.Base(file)); ok {
			logger.Debug().Str("file", file).Str("language", lang).Msg("language from file type")
			return lang, nil
		}
	}

	if text != "" {
		line, _, _ := strings.Cut(text, "\n")
		for _, id := range ids {
			if tables[id].MatchesFirstLine(line) {
				logger.Debug().Str("file", file).Str("language", id).Msg("language from first line")
				return id, nil
			}
		}
	}

	return "", errors.Errorf("%w: %q", ErrNoMatch, file)
}

func (d *Detector) associated(file string) (string, bool) {
	for _, a := range d.associations {
		target := file
		if !strings.Contains(a.Pattern, "/") {
			target = path.Base(file)
		}
		if ok, err := doublestar.Match(a.Pattern, target); err == nil && ok {
			return a.Language, true
		}
	}
	return "", false
}

// byFileType prefers the longest matching file type so "d.ts" beats "ts".
// Equal lengths go to the first id in sorted order.
func byFileType(ids []string, tables map[string]*grammar.Table, base string) (string, bool) {
	best, bestLen := "", 0
	for _, id := range ids {
		for _, ft := range tables[id].FileTypes {
			ft = strings.TrimPrefix(ft, ".")
			if ft == "" || len(ft) <= bestLen {
				continue
			}
			if base == ft || strings.HasSuffix(base, "."+ft) {
				best, bestLen = id, len(ft)
			}
		}
	}
	return best, best != ""
}

// Overrides reads the .editorconfig files from the directory of file up to
// the filesystem root, or the first file declaring root = true. Closer files
// take precedence.
func (d *Detector) Overrides(ctx context.Context, file string) (Overrides, error) {
	var ov Overrides
	if d.fs == nil || file == "" {
		return ov, nil
	}

	file = path.Clean(filepath.ToSlash(file))

	// nearest first
	var defs []map[string]string
	for dir := path.Dir(file); ; dir = path.Dir(dir) {
		name := path.Join(dir, EditorConfigName)
		f, err := d.fs.Open(name)
		if err == nil {
			ec, err := editorconfig.Parse(f)
			f.Close()
			if err != nil {
				return ov, errors.Errorf("parsing %s: %w", name, err)
			}
			rel := strings.TrimPrefix(file, dir+"/")
			if dir == "." {
				rel = file
			}
			def, err := ec.GetDefinitionForFilename(rel)
			if err != nil {
				return ov, errors.Errorf("matching %s against %s: %w", file, name, err)
			}
			defs = append(defs, def.Raw)
			zerolog.Ctx(ctx).Trace().Str("editorconfig", name).Str("file", rel).Msg("editorconfig applied")
			if ec.Root {
				break
			}
		}
		if dir == "." || dir == "/" {
			break
		}
	}

	for _, raw := range slices.Backward(defs) {
		if v := raw[LanguageKey]; v != "" {
			ov.Language = v
		}
		if v := raw[ThemeKey]; v != "" {
			ov.Theme = v
		}
	}
	return ov, nil
}
