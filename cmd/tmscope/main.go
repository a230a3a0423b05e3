package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmscope/cmd/tmscope/check"
	"github.com/walteh/tmscope/cmd/tmscope/list"
	"github.com/walteh/tmscope/cmd/tmscope/scopes"
	"github.com/walteh/tmscope/cmd/tmscope/session"
	"github.com/walteh/tmscope/cmd/tmscope/tokenize"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(fs afero.Fs) *cobra.Command {
	var (
		flags session.Flags
		sess  *session.Session
	)

	rootCmd := &cobra.Command{
		Use:   "tmscope",
		Short: "tokenize source files with TextMate grammars and style them with themes",
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		rootCmd.Version = "unknown"
	} else {
		rootCmd.Version = info.Main.Version
	}

	rootCmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "config file (default: tmscope.hcl, .tmscope.hcl, tmscope.yaml or tmscope.toml in the working directory)")
	rootCmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flags.Trace, "trace", false, "export trace spans to stderr")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		ctx, s, err := session.Open(cmd.Context(), fs, cmd.ErrOrStderr(), flags)
		if err != nil {
			return err
		}
		sess = s
		cmd.SetContext(ctx)
		return nil
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return sess.Close(cmd.Context())
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:    "raw-version",
		Hidden: true,
		Run: func(cmdz *cobra.Command, args []string) {
			cmdz.Println(rootCmd.Version)
		},
	})

	rootCmd.AddCommand(tokenize.NewTokenizeCommand())
	rootCmd.AddCommand(scopes.NewScopesCommand())
	rootCmd.AddCommand(check.NewCheckCommand())
	rootCmd.AddCommand(list.NewListCommand())

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	return rootCmd
}

func run(ctx context.Context, args []string) error {
	rootCmd := newRootCommand(afero.NewOsFs())
	rootCmd.SetArgs(args)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return errors.Errorf("tmscope: %w", err)
	}
	return nil
}
