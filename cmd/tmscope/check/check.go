package check

// `check` loads grammars and themes and scans source files, reporting every
// problem as a diagnostic. Without paths it checks what the configuration loads.

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/cmd/tmscope/session"
	"github.com/walteh/tmscope/pkg/diagnostic"
	"github.com/walteh/tmscope/pkg/finder"
	"github.com/walteh/tmscope/pkg/grammar"
	"github.com/walteh/tmscope/pkg/highlight"
	"github.com/walteh/tmscope/pkg/theme"
)

var ErrProblems = errors.Base("check found errors")

type Handler struct {
	paths  []string
	format string // text, json
	strict bool

	out io.Writer
}

func NewCheckCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "check [PATH...]",
		Short: "validate grammars, themes and source files",
		Long: "validate grammars, themes and source files; directories are searched for grammar " +
			"and theme files, other files are scanned and their warnings reported",
	}

	cmd.Flags().StringVar(&me.format, "format", "text", "output format: text or json")
	cmd.Flags().BoolVar(&me.strict, "strict", false, "treat warnings as errors")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.paths = args
		me.out = cmd.OutOrStdout()
		return me.Run(cmd.Context())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context) error {
	s, err := session.FromContext(ctx)
	if err != nil {
		return err
	}

	diags := &diagnostic.Diagnostics{}
	if len(me.paths) == 0 {
		diags.Merge(diagnostic.FromError("config", s.Engine.LoadErrors()))
	}

	for _, p := range me.paths {
		d, err := me.checkPath(ctx, s, p)
		if err != nil {
			return err
		}
		diags.Merge(d)
	}

	var f diagnostic.Formatter
	switch me.format {
	case "json":
		f = &diagnostic.JSONFormatter{}
	case "text":
		f = &diagnostic.TextFormatter{Color: s.Color}
	default:
		return errors.Errorf("unknown format %q", me.format)
	}
	if err := f.Format(me.out, diags); err != nil {
		return err
	}

	if diags.HasErrors() || (me.strict && len(diags.Warnings) > 0) {
		return errors.Errorf("%w: %d errors, %d warnings", ErrProblems, len(diags.Errors), len(diags.Warnings))
	}
	return nil
}

func (me *Handler) checkPath(ctx context.Context, s *session.Session, p string) (*diagnostic.Diagnostics, error) {
	info, err := s.Fs.Stat(p)
	if err != nil {
		return nil, errors.Errorf("checking %s: %w", p, err)
	}

	diags := &diagnostic.Diagnostics{}

	if info.IsDir() {
		var patterns []string
		for _, pat := range append(append([]string{}, grammar.DefaultPatterns...), theme.DefaultPatterns...) {
			patterns = append(patterns, path.Join(p, pat))
		}
		files, err := finder.NewDefaultFinder(s.Fs).Find(ctx, patterns...)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			diags.Merge(checkAsset(ctx, s, file))
		}
		return diags, nil
	}

	if isGrammar(p) || isTheme(p) {
		return checkAsset(ctx, s, p), nil
	}

	text, err := s.ReadInput(p, nil)
	if err != nil {
		return nil, err
	}
	sc, _, err := s.Engine.Scan(ctx, highlight.Request{Text: text, Path: p})
	if err != nil {
		diags.Add(diagnostic.Diagnostic{Message: err.Error(), Source: p, Severity: diagnostic.Error})
		return diags, nil
	}
	for range sc.All(ctx) {
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	diags.Merge(diagnostic.FromWarnings(p, text, sc.Warnings()))
	return diags, nil
}

// checkAsset compiles a single grammar or theme file without registering
// it. Grammars may include grammars already known to the engine.
func checkAsset(ctx context.Context, s *session.Session, file string) *diagnostic.Diagnostics {
	data, err := afero.ReadFile(s.Fs, file)
	if err != nil {
		return diagnostic.FromError(file, errors.Errorf("reading %s: %w", file, err))
	}
	if isGrammar(file) {
		err = s.Engine.Grammars().Check(ctx, file, data)
	} else {
		_, err = theme.Decode(file, data)
	}
	return diagnostic.FromError(file, err)
}

func isGrammar(file string) bool {
	base := path.Base(file)
	for _, suffix := range []string{".tmLanguage.json", ".tmLanguage.yaml", ".tmLanguage.yml"} {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

func isTheme(file string) bool {
	base := path.Base(file)
	if strings.HasSuffix(base, "-color-theme.json") {
		return true
	}
	for _, ext := range []string{".json", ".yaml", ".yml", ".hcl"} {
		if strings.HasSuffix(base, ".theme"+ext) {
			return true
		}
	}
	return false
}
