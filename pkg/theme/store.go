package theme

import (
	"context"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"

	"github.com/walteh/tmscope/pkg/builtin"
	"github.com/walteh/tmscope/pkg/finder"
)

var ErrUnknownTheme = errors.Base("unknown theme")

// DefaultPatterns are the theme files LoadFS picks up when given no patterns.
var DefaultPatterns = []string{
	"**/*-color-theme.json",
	"**/*.theme.json",
	"**/*.theme.yaml",
	"**/*.theme.yml",
	"**/*.theme.hcl",
}

// Store holds parsed themes keyed by id, each with its shared Mapper.
type Store struct {
	mu      sync.RWMutex
	themes  map[string]*Theme
	mappers map[string]*Mapper
	names   map[string]string
}

func NewStore(ctx context.Context) *Store {
	zerolog.Ctx(ctx).Debug().Msg("creating new theme store")

	return &Store{
		themes:  make(map[string]*Theme),
		mappers: make(map[string]*Mapper),
		names:   make(map[string]string),
	}
}

// LoadFS loads every theme file of fsys matching patterns. Failures are
// collected and returned together; the other themes still load.
func (s *Store) LoadFS(ctx context.Context, fsys afero.Fs, patterns ...string) error {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	files, err := finder.NewDefaultFinder(fsys).Find(ctx, patterns...)
	if err != nil {
		return errors.Errorf("finding themes: %w", err)
	}

	var errs error
	for _, file := range files {
		data, err := afero.ReadFile(fsys, file)
		if err != nil {
			errs = multierr.Append(errs, errors.Errorf("reading theme %s: %w", file, err))
			continue
		}
		if err := s.LoadTheme(ctx, ID(file), file, data); err != nil {
			errs = multierr.Append(errs, errors.Errorf("loading theme %s: %w", file, err))
		}
	}
	return errs
}

// LoadBuiltin loads the themes embedded in the binary.
func (s *Store) LoadBuiltin(ctx context.Context) error {
	return s.LoadFS(ctx, builtin.FS())
}

// LoadTheme decodes data, using file to pick the format, and registers the
// result under id.
func (s *Store) LoadTheme(ctx context.Context, id, file string, data []byte) error {
	t, err := Decode(file, data)
	if err != nil {
		return err
	}
	s.Register(ctx, id, t)
	return nil
}

// Register adds or replaces a theme. A theme without a name is named after id.
func (s *Store) Register(ctx context.Context, id string, t *Theme) {
	if t.Name == "" {
		t.Name = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.themes[id] = t
	s.mappers[id] = NewMapper(t)
	s.names[strings.ToLower(t.Name)] = id

	zerolog.Ctx(ctx).Debug().Str("id", id).Str("name", t.Name).Int("rules", len(t.Rules)).Msg("registered theme")
}

func (s *Store) resolve(name string) (string, error) {
	if _, ok := s.themes[name]; ok {
		return name, nil
	}
	if id, ok := s.names[strings.ToLower(name)]; ok {
		return id, nil
	}
	return "", errors.Errorf("%w: %s", ErrUnknownTheme, name)
}

// Get returns a theme by id or by its (case-insensitive) display name.
func (s *Store) Get(name string) (*Theme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return s.themes[id], nil
}

// Mapper returns the shared mapper of a theme.
func (s *Store) Mapper(name string) (*Mapper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return s.mappers[id], nil
}

// IDs returns the registered theme ids, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Sorted(maps.Keys(s.themes))
}

// ID derives a theme id from a file name: "themes/alone-color-theme.json"
// and "alone.theme.hcl" both become "alone".
func ID(file string) string {
	base := path.Base(file)
	base = strings.TrimSuffix(base, path.Ext(base))
	for _, suffix := range []string{"-color-theme", ".theme"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return base
}
