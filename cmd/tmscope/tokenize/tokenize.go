package tokenize

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/cmd/tmscope/session"
	"github.com/walteh/tmscope/pkg/diagnostic"
	"github.com/walteh/tmscope/pkg/highlight"
	"github.com/walteh/tmscope/pkg/position"
	"github.com/walteh/tmscope/pkg/theme"
)

type Handler struct {
	file     string
	language string
	theme    string
	format   string // text, json, ansi

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func NewTokenizeCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "tokenize FILE",
		Short: "highlight a file and print its styled tokens",
		Long:  "highlight a file and print its styled tokens; FILE may be - for stdin",
		Args:  cobra.ExactArgs(1),
	}

	cmd.Flags().StringVar(&me.language, "language", "", "language id or grammar scope name (detected when empty)")
	cmd.Flags().StringVar(&me.theme, "theme", "", "theme id or name (defaults to the configured theme)")
	cmd.Flags().StringVar(&me.format, "format", "text", "output format: text, json or ansi")

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

	res, err := s.Engine.Highlight(ctx, highlight.Request{
		Text:     text,
		Language: me.language,
		Theme:    me.theme,
		Path:     path,
	})
	if err != nil {
		return errors.Errorf("highlighting %s: %w", me.file, err)
	}

	switch me.format {
	case "json":
		enc := json.NewEncoder(me.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return errors.Errorf("encoding result: %w", err)
		}
	case "ansi":
		if err := writeANSI(me.out, text, res); err != nil {
			return err
		}
	case "text":
		idx := position.NewIndex(text)
		for _, tok := range res.Tokens {
			if _, err := fmt.Fprintf(me.out, "%s\t%s\t%s\n", idx.Range(tok.Start, tok.End), describe(tok.Style), strconv.Quote(text[tok.Start:tok.End])); err != nil {
				return errors.Errorf("writing token: %w", err)
			}
		}
	default:
		return errors.Errorf("unknown format %q", me.format)
	}

	if len(res.Warnings) > 0 && me.errOut != nil {
		f := &diagnostic.TextFormatter{Color: s.Color}
		if err := f.Format(me.errOut, diagnostic.FromWarnings(me.file, text, res.Warnings)); err != nil {
			return err
		}
	}

	return nil
}

func describe(st theme.Style) string {
	out := st.Foreground
	if st.Background != "" {
		out += " on " + st.Background
	}
	if st.FontStyle != 0 {
		out += " " + st.FontStyle.String()
	}
	return out
}

// writeANSI renders the text with 24-bit terminal colors.
func writeANSI(w io.Writer, text string, res *highlight.Result) error {
	for _, tok := range res.Tokens {
		c := color.New()
		if r, g, b, ok := rgb(tok.Style.Foreground); ok {
			c.Add(38, 2, color.Attribute(r), color.Attribute(g), color.Attribute(b))
		}
		if tok.Style.FontStyle.Has(theme.Bold) {
			c.Add(color.Bold)
		}
		if tok.Style.FontStyle.Has(theme.Italic) {
			c.Add(color.Italic)
		}
		if tok.Style.FontStyle.Has(theme.Underline) {
			c.Add(color.Underline)
		}
		if tok.Style.FontStyle.Has(theme.Strikethrough) {
			c.Add(color.CrossedOut)
		}
		c.EnableColor()
		if _, err := c.Fprint(w, text[tok.Start:tok.End]); err != nil {
			return errors.Errorf("writing token: %w", err)
		}
	}
	return nil
}

func rgb(hex string) (r, g, b uint8, ok bool) {
	if len(hex) < 7 {
		return 0, 0, 0, false
	}
	c, err := colorful.Hex(hex[:7])
	if err != nil {
		return 0, 0, 0, false
	}
	r, g, b = c.RGB255()
	return r, g, b, true
}
