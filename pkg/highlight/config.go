package highlight

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"

	"github.com/walteh/tmscope/pkg/config"
	"github.com/walteh/tmscope/pkg/detect"
	"github.com/walteh/tmscope/pkg/grammar"
	"github.com/walteh/tmscope/pkg/targz"
	"github.com/walteh/tmscope/pkg/theme"
)

// NewFromConfig builds an engine from cfg, reading files through fs. Broken
// grammar, theme or bundle files do not fail the engine; they are collected
// in LoadErrors. The error return is reserved for an invalid configuration.
func NewFromConfig(ctx context.Context, fs afero.Fs, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx)
	grammars := grammar.NewStore(ctx, cfg.Timeout())
	themes := theme.NewStore(ctx)

	var errs error
	if cfg.UseBuiltin() {
		errs = multierr.Append(errs, grammars.LoadBuiltin(ctx))
		errs = multierr.Append(errs, themes.LoadBuiltin(ctx))
	}

	for _, b := range cfg.Bundles {
		bundle, err := targz.ReadFile(ctx, fs, cfg.Resolve(b), targz.Options{})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		errs = multierr.Append(errs, grammars.LoadFS(ctx, bundle))
		errs = multierr.Append(errs, themes.LoadFS(ctx, bundle))
		logger.Debug().Str("bundle", b).Msg("bundle loaded")
	}

	if len(cfg.Grammars) > 0 {
		errs = multierr.Append(errs, grammars.LoadFS(ctx, fs, resolveAll(cfg, cfg.Grammars)...))
	}
	if len(cfg.Themes) > 0 {
		errs = multierr.Append(errs, themes.LoadFS(ctx, fs, resolveAll(cfg, cfg.Themes)...))
	}

	assoc := make([]detect.Association, 0, len(cfg.Associations))
	for _, a := range cfg.Associations {
		assoc = append(assoc, detect.Association{Pattern: a.Pattern, Language: a.Language})
	}

	base := []Option{WithDetector(detect.New(grammars, detect.WithFs(fs), detect.WithAssociations(assoc...)))}
	if cfg.DefaultTheme != "" {
		base = append(base, WithDefaultTheme(cfg.DefaultTheme))
	}

	e := New(grammars, themes, append(base, opts...)...)
	e.loadErr = errs

	if _, err := themes.Get(e.defaultTheme); err != nil {
		e.loadErr = multierr.Append(e.loadErr, errors.Errorf("default theme: %w", err))
	}

	logger.Debug().
		Strs("languages", grammars.Languages()).
		Strs("themes", themes.IDs()).
		Int("problems", len(multierr.Errors(e.loadErr))).
		Msg("engine ready")

	return e, nil
}

func resolveAll(cfg *config.Config, patterns []string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = cfg.Resolve(p)
	}
	return out
}
