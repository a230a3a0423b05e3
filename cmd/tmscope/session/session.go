// Package session holds what every tmscope subcommand shares: the
// filesystem, the loaded configuration and the highlighting engine.
package session

import (
	"context"
	"io"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/pkg/config"
	"github.com/walteh/tmscope/pkg/debug"
	"github.com/walteh/tmscope/pkg/highlight"
	"github.com/walteh/tmscope/pkg/tracing"
)

var ErrNoSession = errors.Base("no session in context")

type Session struct {
	Fs     afero.Fs
	Config *config.Config
	Engine *highlight.Engine
	Color  bool

	tracing *tracing.Provider
}

// Flags are the persistent flags of the root command.
type Flags struct {
	ConfigPath string
	Debug      bool
	Trace      bool
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func FromContext(ctx context.Context) (*Session, error) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	if !ok || s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}

// Open sets up logging, configuration, tracing and the engine. The returned
// context carries both the logger and the session.
func Open(ctx context.Context, fs afero.Fs, stderr io.Writer, flags Flags) (context.Context, *Session, error) {
	colored := !color.NoColor
	logger := debug.NewLogger(stderr, debug.Options{Debug: flags.Debug, Color: colored})
	ctx = logger.WithContext(ctx)

	var (
		cfg *config.Config
		err error
	)
	if flags.ConfigPath != "" {
		cfg, err = config.Load(fs, flags.ConfigPath)
	} else {
		cfg, err = config.Discover(fs, ".")
	}
	if err != nil {
		return ctx, nil, errors.Errorf("loading config: %w", err)
	}

	topts := tracing.Options{Enabled: flags.Trace || cfg.TracingEnabled(), Exporter: "stderr", Writer: stderr}
	if cfg.Tracing != nil && cfg.Tracing.Exporter != "" {
		topts.Exporter = cfg.Tracing.Exporter
		topts.Writer = nil
	}
	tp, err := tracing.NewProvider(ctx, topts)
	if err != nil {
		return ctx, nil, errors.Errorf("setting up tracing: %w", err)
	}

	engine, err := highlight.NewFromConfig(ctx, fs, cfg)
	if err != nil {
		return ctx, nil, errors.Errorf("building engine: %w", err)
	}
	if lerr := engine.LoadErrors(); lerr != nil {
		zerolog.Ctx(ctx).Warn().Err(lerr).Msg("some grammars or themes failed to load")
	}

	s := &Session{Fs: fs, Config: cfg, Engine: engine, Color: colored, tracing: tp}
	return WithSession(ctx, s), s, nil
}

// Close flushes pending trace spans.
func (s *Session) Close(ctx context.Context) error {
	if s == nil || s.tracing == nil {
		return nil
	}
	return s.tracing.Shutdown(ctx)
}

// ReadInput returns the content of file, or of in when file is "-".
func (s *Session) ReadInput(file string, in io.Reader) (string, error) {
	if file == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", errors.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := afero.ReadFile(s.Fs, file)
	if err != nil {
		return "", errors.Errorf("reading %s: %w", file, err)
	}
	return string(data), nil
}
