package scopes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/cmd/tmscope/session"
	"github.com/walteh/tmscope/pkg/diagnostic"
	"github.com/walteh/tmscope/pkg/highlight"
	"github.com/walteh/tmscope/pkg/position"
	"github.com/walteh/tmscope/pkg/scanner"
	"github.com/walteh/tmscope/pkg/semtok"
)

type Handler struct {
	file     string
	language string
	format   string // text, json, semtok

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

type semanticTokens struct {
	Legend semtok.Legend `json:"legend"`
	Data   []uint32      `json:"data"`
}

type span struct {
	Start  int      `json:"start"`
	End    int      `json:"end"`
	Range  string   `json:"range"`
	Text   string   `json:"text"`
	Scopes []string `json:"scopes"`
}

func NewScopesCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "scopes FILE",
		Short: "print the scanned spans of a file with their scope lists",
		Args:  cobra.ExactArgs(1),
	}

	cmd.Flags().StringVar(&me.language, "language", "", "language id or grammar scope name (detected when empty)")
	cmd.Flags().StringVar(&me.format, "format", "text", "output format: text, json or semtok")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.file = args[0]
		me.in = cmd.InOrStdin()
		me.out = cmd.OutOrStdout()
		me.errOut = cmd.ErrOrStderr()
		return me.Run(cmd.Context())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context) error {
	s, err := session.FromContext(ctx)
	if err != nil {
		return err
	}

	text, err := s.ReadInput(me.file, me.in)
	if err != nil {
		return err
	}

	path := me.file
	if path == "-" {
		path = ""
	}

	sc, lang, err := s.Engine.Scan(ctx, highlight.Request{Text: text, Language: me.language, Path: path})
	if err != nil {
		return errors.Errorf("scanning %s: %w", me.file, err)
	}

	var raw []scanner.Span
	for sp := range sc.All(ctx) {
		raw = append(raw, sp)
	}
	if err := sc.Err(); err != nil {
		return errors.Errorf("scanning %s as %s: %w", me.file, lang, err)
	}

	idx := position.NewIndex(text)
	spans := make([]span, 0, len(raw))
	for _, sp := range raw {
		spans = append(spans, span{
			Start:  sp.Start,
			End:    sp.End,
			Range:  idx.Range(sp.Start, sp.End).String(),
			Text:   text[sp.Start:sp.End],
			Scopes: sp.Scopes(),
		})
	}

	enc := json.NewEncoder(me.out)
	enc.SetIndent("", "  ")

	switch me.format {
	case "json":
		if err := enc.Encode(spans); err != nil {
			return errors.Errorf("encoding spans: %w", err)
		}
	case "semtok":
		tokens := semtok.Default().Tokens(slices.Values(raw))
		out := semanticTokens{Legend: semtok.DefaultLegend(), Data: semtok.Encode(text, tokens)}
		if err := enc.Encode(out); err != nil {
			return errors.Errorf("encoding semantic tokens: %w", err)
		}
	case "text":
		for _, sp := range spans {
			if _, err := fmt.Fprintf(me.out, "%s\t%s\t%s\n", sp.Range, strings.Join(sp.Scopes, " "), strconv.Quote(sp.Text)); err != nil {
				return errors.Errorf("writing span: %w", err)
			}
		}
	default:
		return errors.Errorf("unknown format %q", me.format)
	}

	if w := sc.Warnings(); len(w) > 0 && me.errOut != nil {
		f := &diagnostic.TextFormatter{Color: s.Color}
		if err := f.Format(me.errOut, diagnostic.FromWarnings(me.file, text, w)); err != nil {
			return err
		}
	}

	return nil
}
