package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"limner/internal/config"
	"limner/internal/lockdir"
)

func newLocksCommand(ctx *commandContext) *cobra.Command {
	locksCmd := &cobra.Command{
		Use:   "locks",
		Short: "Operator tools for filesystem locks",
	}

	locksCmd.AddCommand(&cobra.Command{
		Use:   "clear <path>",
		Short: "Remove a stale lock left behind by a crashed worker",
		Long: "Remove the lock directory for a resource. Locks are never broken\n" +
			"automatically: run this only after confirming no worker is alive.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := config.ExpandPath(strings.TrimSuffix(args[0], lockdir.Suffix))
			if err != nil {
				return fmt.Errorf("resolve lock path: %w", err)
			}

			lockPath := target + lockdir.Suffix
			info, err := os.Stat(lockPath)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					fmt.Fprintf(cmd.OutOrStdout(), "No lock held at %s\n", lockPath)
					return nil
				}
				return fmt.Errorf("stat lock: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s exists but is not a lock directory", lockPath)
			}

			if err := lockdir.New(target).Release(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared lock %s\n", lockPath)
			return nil
		},
	})

	return locksCmd
}
