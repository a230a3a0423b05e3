package list

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/cmd/tmscope/session"
)

type Handler struct {
	format string // text, json

	out io.Writer
}

type Language struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	ScopeName string   `json:"scope_name"`
	FileTypes []string `json:"file_types,omitempty"`
}

type Theme struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Default bool   `json:"default,omitempty"`
}

type Listing struct {
	Languages []Language `json:"languages"`
	Themes    []Theme    `json:"themes"`
}

func NewListCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "list the registered languages and themes",
		Args:  cobra.NoArgs,
	}

	cmd.Flags().StringVar(&me.format, "format", "text", "output format: text or json")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
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

	var listing Listing
	for _, id := range s.Engine.Grammars().Languages() {
		table, err := s.Engine.Grammars().GetGrammar(id)
		if err != nil {
			return err
		}
		listing.Languages = append(listing.Languages, Language{
			ID:        id,
			Name:      table.Name,
			ScopeName: table.ScopeName,
			FileTypes: table.FileTypes,
		})
	}

	def, _ := s.Engine.Themes().Get(s.Engine.DefaultTheme())
	for _, id := range s.Engine.Themes().IDs() {
		t, err := s.Engine.Themes().Get(id)
		if err != nil {
			return err
		}
		listing.Themes = append(listing.Themes, Theme{ID: id, Name: t.Name, Type: t.Type, Default: t == def})
	}

	switch me.format {
	case "json":
		enc := json.NewEncoder(me.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(listing); err != nil {
			return errors.Errorf("encoding listing: %w", err)
		}
	case "text":
		fmt.Fprintln(me.out, "languages:")
		for _, l := range listing.Languages {
			fmt.Fprintf(me.out, "  %-10s %-16s %s\n", l.ID, l.ScopeName, strings.Join(l.FileTypes, ","))
		}
		fmt.Fprintln(me.out, "themes:")
		for _, t := range listing.Themes {
			mark := ""
			if t.Default {
				mark = " (default)"
			}
			fmt.Fprintf(me.out, "  %-10s %s%s\n", t.ID, t.Name, mark)
		}
	default:
		return errors.Errorf("unknown format %q", me.format)
	}

	return nil
}
