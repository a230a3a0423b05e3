// Package highlight ties grammars, themes and language detection together:
// it picks the grammar and theme for a request, scans the text and styles
// the resulting spans.
package highlight

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/pkg/builtin"
	"github.com/walteh/tmscope/pkg/detect"
	"github.com/walteh/tmscope/pkg/emitter"
	"github.com/walteh/tmscope/pkg/grammar"
	"github.com/walteh/tmscope/pkg/scanner"
	"github.com/walteh/tmscope/pkg/theme"
)

const tracerName = "github.com/walteh/tmscope/pkg/highlight"

var (
	ErrUnknownLanguage = errors.Base("unknown language")
	ErrUnknownTheme    = theme.ErrUnknownTheme
)

type Request struct {
	Text string
	// Language is a language id or grammar scope name. Empty detects it
	// from Path and Text.
	Language string
	// Theme is a theme id or name. Empty falls back to the tmscope_theme
	// editorconfig key of Path, then to the engine default.
	Theme string
	Path  string
}

type Result struct {
	ID       uuid.UUID         `json:"id"`
	Language string            `json:"language"`
	Theme    string            `json:"theme"`
	Tokens   []emitter.Token   `json:"tokens"`
	Warnings []scanner.Warning `json:"-"`
}

type Engine struct {
	grammars     *grammar.Store
	themes       *theme.Store
	detector     *detect.Detector
	defaultTheme string
	tracer       trace.Tracer
	loadErr      error
}

type Option func(*Engine)

func WithDetector(d *detect.Detector) Option {
	return func(e *Engine) { e.detector = d }
}

func WithDefaultTheme(name string) Option {
	return func(e *Engine) { e.defaultTheme = name }
}

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func New(grammars *grammar.Store, themes *theme.Store, opts ...Option) *Engine {
	e := &Engine{
		grammars:     grammars,
		themes:       themes,
		defaultTheme: builtin.DefaultTheme,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.detector == nil {
		e.detector = detect.New(grammars)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

func (e *Engine) Grammars() *grammar.Store {
	return e.grammars
}

func (e *Engine) Themes() *theme.Store {
	return e.themes
}

func (e *Engine) DefaultTheme() string {
	return e.defaultTheme
}

// LoadErrors returns the problems found while building the engine from
// configuration. The engine serves whatever did load.
func (e *Engine) LoadErrors() error {
	return e.loadErr
}

// Language resolves the grammar for req.
func (e *Engine) Language(ctx context.Context, req Request) (string, *grammar.Table, error) {
	lang := req.Language
	if lang == "" {
		detected, err := e.detector.Detect(ctx, req.Path, req.Text)
		if err != nil {
			return "", nil, errors.Errorf("%w: %v", ErrUnknownLanguage, err)
		}
		lang = detected
	}
	table, err := e.grammars.GetGrammar(lang)
	if err != nil {
		return "", nil, errors.Errorf("%w: %q: %v", ErrUnknownLanguage, lang, err)
	}
	return lang, table, nil
}

// Theme resolves the theme for req.
func (e *Engine) Theme(ctx context.Context, req Request) (string, *theme.Mapper, error) {
	name := req.Theme
	if name == "" && req.Path != "" {
		ov, err := e.detector.Overrides(ctx, req.Path)
		if err != nil {
			return "", nil, err
		}
		name = ov.Theme
	}
	if name == "" {
		name = e.defaultTheme
	}
	m, err := e.themes.Mapper(name)
	if err != nil {
		return "", nil, err
	}
	return name, m, nil
}

// Scan returns a scanner over req.Text for the resolved grammar.
func (e *Engine) Scan(ctx context.Context, req Request) (*scanner.Scanner, string, error) {
	lang, table, err := e.Language(ctx, req)
	if err != nil {
		return nil, "", err
	}
	return scanner.New(table, req.Text), lang, nil
}

// Stream returns the styled tokens of req lazily. The scanner reports the
// warnings and any cancellation once the sequence is drained.
func (e *Engine) Stream(ctx context.Context, req Request, opts ...emitter.Option) (iter.Seq[emitter.Token], *scanner.Scanner, error) {
	sc, _, err := e.Scan(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	_, m, err := e.Theme(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return emitter.Emit(sc.All(ctx), m, opts...), sc, nil
}

// Highlight tokenizes and styles req.Text in one go.
func (e *Engine) Highlight(ctx context.Context, req Request, opts ...emitter.Option) (res *Result, err error) {
	ctx, span := e.tracer.Start(ctx, "highlight.Highlight", trace.WithAttributes(
		attribute.Int("bytes", len(req.Text)),
		attribute.String("path", req.Path),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sc, lang, err := e.Scan(ctx, req)
	if err != nil {
		return nil, err
	}
	themeName, m, err := e.Theme(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("language", lang), attribute.String("theme", themeName))

	tokens := emitter.Collect(sc.All(ctx), m, opts...)
	if err := sc.Err(); err != nil {
		return nil, errors.Errorf("scanning %s: %w", lang, err)
	}

	res = &Result{
		ID:       uuid.New(),
		Language: lang,
		Theme:    themeName,
		Tokens:   tokens,
		Warnings: sc.Warnings(),
	}

	span.SetAttributes(attribute.Int("tokens", len(tokens)), attribute.Int("warnings", len(res.Warnings)))
	for _, w := range res.Warnings {
		span.AddEvent(w.Kind.String(), trace.WithAttributes(
			attribute.Int("offset", w.Offset),
			attribute.String("scope", w.Scope),
		))
	}

	zerolog.Ctx(ctx).Debug().
		Str("id", res.ID.String()).
		Str("language", lang).
		Str("theme", themeName).
		Int("tokens", len(tokens)).
		Int("warnings", len(res.Warnings)).
		Msg("highlighted")

	return res, nil
}
