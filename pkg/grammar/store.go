package grammar

import (
	"context"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"

	"github.com/walteh/tmscope/gen/jsonschema/go/tmlanguage"
	"github.com/walteh/tmscope/pkg/builtin"
	"github.com/walteh/tmscope/pkg/finder"
)

var ErrUnknownGrammar = errors.Base("unknown grammar")

// DefaultPatterns are the grammar files LoadFS picks up when given no patterns.
var DefaultPatterns = []string{"**/*.tmLanguage.json", "**/*.tmLanguage.yaml", "**/*.tmLanguage.yml"}

// Store manages a collection of compiled TextMate grammars keyed by language id
type Store struct {
	mu           sync.RWMutex
	defs         map[string]*tmlanguage.Grammar
	tables       map[string]*Table
	ids          map[string]string
	matchTimeout time.Duration
}

// NewStore creates an empty grammar store
func NewStore(ctx context.Context, matchTimeout time.Duration) *Store {
	zerolog.Ctx(ctx).Debug().Dur("match_timeout", matchTimeout).Msg("creating new grammar store")

	return &Store{
		defs:         make(map[string]*tmlanguage.Grammar),
		tables:       make(map[string]*Table),
		ids:          make(map[string]string),
		matchTimeout: matchTimeout,
	}
}

// LoadFS loads every grammar file of fsys matching patterns. A file that
// fails to parse or compile does not prevent the others from loading; all
// failures are returned together.
func (s *Store) LoadFS(ctx context.Context, fsys afero.Fs, patterns ...string) error {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	files, err := finder.NewDefaultFinder(fsys).Find(ctx, patterns...)
	if err != nil {
		return errors.Errorf("finding grammars: %w", err)
	}

	batch := make(map[string]*tmlanguage.Grammar, len(files))
	var errs error
	for _, file := range files {
		data, err := afero.ReadFile(fsys, file)
		if err != nil {
			errs = multierr.Append(errs, errors.Errorf("reading grammar %s: %w", file, err))
			continue
		}
		def, err := Decode(file, data)
		if err != nil {
			errs = multierr.Append(errs, errors.Errorf("decoding grammar %s: %w", file, err))
			continue
		}
		batch[LanguageID(file)] = def
	}

	return multierr.Append(errs, s.register(ctx, batch))
}

// LoadBuiltin loads the grammars embedded in the binary.
func (s *Store) LoadBuiltin(ctx context.Context) error {
	return s.LoadFS(ctx, builtin.FS())
}

// LoadCustomGrammar loads a custom grammar from JSON or YAML data
func (s *Store) LoadCustomGrammar(ctx context.Context, id string, data []byte) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("id", id).Msg("loading custom grammar")

	def, err := Decode(id+".json", data)
	if err != nil {
		def, err = Decode(id+".yaml", data)
	}
	if err != nil {
		return errors.Errorf("unmarshaling custom grammar: %w", err)
	}

	return s.register(ctx, map[string]*tmlanguage.Grammar{id: def})
}

// register compiles a batch of definitions. Definitions in the batch can
// include each other regardless of order.
func (s *Store) register(ctx context.Context, batch map[string]*tmlanguage.Grammar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byScope := make(map[string]*tmlanguage.Grammar, len(batch))
	for _, def := range batch {
		if def.ScopeName != "" {
			byScope[def.ScopeName] = def
		}
	}
	resolver := func(scope string) (*tmlanguage.Grammar, bool) {
		if def, ok := byScope[scope]; ok {
			return def, true
		}
		if id, ok := s.ids[scope]; ok {
			return s.defs[id], true
		}
		return nil, false
	}

	var errs error
	for _, id := range slices.Sorted(maps.Keys(batch)) {
		def := batch[id]
		table, err := Load(ctx, def, WithResolver(resolver), WithMatchTimeout(s.matchTimeout))
		if err != nil {
			errs = multierr.Append(errs, errors.Errorf("compiling grammar %s: %w", id, err))
			continue
		}
		s.defs[id] = def
		s.tables[id] = table
		if def.ScopeName != "" {
			s.ids[def.ScopeName] = id
		}
		zerolog.Ctx(ctx).Debug().Str("id", id).Str("scope", def.ScopeName).Msg("registered grammar")
	}
	return errs
}

// Check compiles data as a grammar without registering it. Includes of other
// grammars resolve against the store.
func (s *Store) Check(ctx context.Context, file string, data []byte) error {
	def, err := Decode(file, data)
	if err != nil {
		return errors.Errorf("decoding grammar %s: %w", file, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	resolver := func(scope string) (*tmlanguage.Grammar, bool) {
		if scope == def.ScopeName {
			return def, true
		}
		if id, ok := s.ids[scope]; ok {
			return s.defs[id], true
		}
		return nil, false
	}
	if _, err := Load(ctx, def, WithResolver(resolver), WithMatchTimeout(s.matchTimeout)); err != nil {
		return errors.Errorf("compiling grammar %s: %w", file, err)
	}
	return nil
}

// GetGrammar retrieves a grammar by language id or scope name
func (s *Store) GetGrammar(name string) (*Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if table, ok := s.tables[name]; ok {
		return table, nil
	}
	if id, ok := s.ids[name]; ok {
		return s.tables[id], nil
	}
	return nil, errors.Errorf("%w: %s", ErrUnknownGrammar, name)
}

// Languages returns the registered language ids, sorted
func (s *Store) Languages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Sorted(maps.Keys(s.tables))
}

// Decode parses a grammar file, picking the format from its extension
func Decode(name string, data []byte) (*tmlanguage.Grammar, error) {
	var (
		def tmlanguage.Grammar
		err error
	)
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		def, err = tmlanguage.UnmarshalGrammarYAML(data)
	default:
		def, err = tmlanguage.UnmarshalGrammar(data)
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// LanguageID derives a language id from a grammar file name:
// "grammars/go.tmLanguage.json" becomes "go".
func LanguageID(file string) string {
	base := path.Base(file)
	for _, suffix := range []string{".tmLanguage.json", ".tmLanguage.yaml", ".tmLanguage.yml", ".json", ".yaml", ".yml"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// All returns a snapshot of the registered grammars keyed by language id
func (s *Store) All() map[string]*Table {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.tables)
}
