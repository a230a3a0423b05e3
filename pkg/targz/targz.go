// Package targz unpacks grammar and theme bundles distributed as tar.gz
// archives into an in-memory filesystem.
package targz

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// Options configures how a bundle is unpacked.
type Options struct {
	// StripComponents removes leading path components, like tar's --strip-components.
	StripComponents int

	// Filter decides which entries are kept. Nil keeps every regular file.
	Filter func(header *tar.Header) bool
}

// Load unpacks the archive in data into a fresh afero.MemMapFs. Directories are
// implied by the files they hold; links and other special entries are skipped.
func Load(ctx context.Context, data []byte, opts Options) (afero.Fs, error) {
	fs := afero.NewMemMapFs()
	if err := Extract(ctx, bytes.NewReader(data), fs, opts); err != nil {
		return nil, err
	}
	return fs, nil
}

// Extract writes every regular file of the tar.gz stream r into fs.
func Extract(ctx context.Context, r io.Reader, fs afero.Fs, opts Options) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return errors.Errorf("opening gzip stream: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	count := 0

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errors.Errorf("reading tar: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		components := SplitPath(header.Name)
		if len(components) <= opts.StripComponents {
			continue
		}
		name := path.Join(components[opts.StripComponents:]...)

		if opts.Filter != nil && !opts.Filter(header) {
			continue
		}

		if err := fs.MkdirAll(path.Dir(name), 0o755); err != nil {
			return errors.Errorf("creating directory for %s: %w", name, err)
		}

		f, err := fs.Create(name)
		if err != nil {
			return errors.Errorf("creating %s: %w", name, err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return errors.Errorf("writing %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return errors.Errorf("closing %s: %w", name, err)
		}
		count++
	}

	zerolog.Ctx(ctx).Debug().Int("files", count).Msg("bundle unpacked")

	return nil
}

// SplitPath splits an archive path into its components, ignoring "." and
// empty segments. Entries escaping the archive root with ".." are rejected by
// dropping the parent references.
func SplitPath(name string) []string {
	var components []string
	for _, part := range strings.Split(path.Clean("/"+name), "/") {
		if part == "" || part == "." {
			continue
		}
		components = append(components, part)
	}
	return components
}

// ReadFile is a convenience over afero.ReadFile for bundle paths given on the
// command line or in config.
func ReadFile(ctx context.Context, fs afero.Fs, name string, opts Options) (afero.Fs, error) {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, errors.Errorf("reading bundle %s: %w", name, err)
	}
	out, err := Load(ctx, data, opts)
	if err != nil {
		return nil, errors.Errorf("loading bundle %s: %w", name, err)
	}
	return out, nil
}
