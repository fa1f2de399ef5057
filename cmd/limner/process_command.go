package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"limner/internal/config"
	"limner/internal/workflow"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var documentID string

	cmd := &cobra.Command{
		Use:   "process <workdir>",
		Short: "Run the illustration pipeline for a document working directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			workdir, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve workdir: %w", err)
			}
			id := strings.TrimSpace(documentID)
			if id == "" {
				id = filepath.Base(workdir)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mgr := workflow.NewManager(cfg, workdir, id, logger)
			if err := mgr.Run(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document %s processed\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&documentID, "document-id", "", "Document identifier (defaults to the workdir name)")
	return cmd
}
