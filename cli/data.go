package cli

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"quill/app/repositories"
	"quill/config"

	"github.com/spf13/cobra"
)

// loadBatchSize bounds the pending writes badger keeps while restoring.
const loadBatchSize = 256

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter quill.yaml with a fresh token secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfgFile
			if path == "" {
				path = "quill.yaml"
			}
			secret, err := newSecret()
			if err != nil {
				return err
			}
			if err := config.WriteFile(path, secret, force); err != nil {
				return fmt.Errorf("failed to write %s (use --force to replace it): %w", path, err)
			}
			if dir := a.cfg.Storage.Badger.Path; dir != "" {
				if err := os.MkdirAll(dir, 0o700); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	// init must work before any config file exists.
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfgFile := a.cfgFile
		a.cfgFile = ""
		defer func() { a.cfgFile = cfgFile }()
		return a.load(cmd.ErrOrStderr())
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func newCleanCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete every record from the badger store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete data without --yes")
			}
			db, err := openBadger(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := repositories.Clear(db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", a.cfg.Storage.Badger.Path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deleting all data")
	return cmd
}

func newBackupCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a full backup of the badger store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = filepath.Join("data", "backups", fmt.Sprintf("backup_%d.bak", time.Now().Unix()))
			}
			db, err := openBadger(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer db.Close()

			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o700); err != nil {
					return err
				}
			}
			f, err := os.OpenFile(output, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
			if err != nil {
				return err
			}
			if _, err := db.Backup(f, 0); err != nil {
				f.Close()
				os.Remove(output)
				return fmt.Errorf("backup failed: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "backup file (default data/backups/backup_<unix time>.bak)")
	return cmd
}

func newRestoreCmd(a *app) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Load a backup into the badger store",
		Long: `Load a backup written by "quill backup". Records are merged into the store
unless --replace is given, which clears the store first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if fi, err := f.Stat(); err != nil {
				return err
			} else if fi.Size() == 0 {
				return fmt.Errorf("backup file is empty: %s", args[0])
			}

			db, err := openBadger(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer db.Close()

			if replace {
				if err := repositories.Clear(db); err != nil {
					return err
				}
			}
			if err := db.Load(f, loadBatchSize); err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s into %s\n", args[0], a.cfg.Storage.Badger.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "clear the store before loading")
	return cmd
}

func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
