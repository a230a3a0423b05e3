package finder

import (
	"context"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// Finder locates grammar, theme and source files
type Finder interface {
	// Find returns every file matching one of the doublestar patterns, sorted
	Find(ctx context.Context, patterns ...string) ([]string, error)
}

// DefaultFinder is the default implementation of Finder, backed by an afero filesystem
type DefaultFinder struct {
	fs afero.Fs
}

// NewDefaultFinder creates a new DefaultFinder
func NewDefaultFinder(fs afero.Fs) *DefaultFinder {
	return &DefaultFinder{fs: fs}
}

// Find implements Finder
func (f *DefaultFinder) Find(ctx context.Context, patterns ...string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string

	for _, pattern := range patterns {
		pattern = strings.TrimPrefix(path.Clean(pattern), "./")
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Errorf("invalid pattern %q", pattern)
		}

		base, rest := doublestar.SplitPattern(pattern)
		fsys := f.fs
		if base != "." {
			fsys = afero.NewBasePathFs(f.fs, base)
		}

		matches, err := doublestar.Glob(afero.NewIOFS(fsys), rest, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Errorf("globbing %q: %w", pattern, err)
		}

		zerolog.Ctx(ctx).Debug().Str("pattern", pattern).Int("matches", len(matches)).Msg("glob")

		for _, m := range matches {
			if base != "." {
				m = path.Join(base, m)
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}

	slices.Sort(out)
	return out, nil
}
