// Package cli wires quill's commands together.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"quill/config"

	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X quill/cli.Version=...".
var Version = "dev"

// app is the state shared by every command.
type app struct {
	cfgFile string
	cfg     *config.Config
	log     *slog.Logger
}

// NewRootCmd builds the quill command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "quill",
		Short: "Quill - a multi-user blogging platform",
		Long: `Quill serves a multi-user blog with posts, categories, tags and threaded
comments, as HTML pages and as a JSON API under /api.

Configuration comes from built-in defaults, an optional quill.yaml and
QUILL_* environment variables, each overriding the one before.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default ./quill.yaml when present)")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newInitCmd(a),
		newCleanCmd(a),
		newBackupCmd(a),
		newRestoreCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) load(logOut io.Writer) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger(logOut)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger
	slog.SetDefault(logger)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quill version %s\n", Version)
		},
	}
}
