package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"limner/internal/config"
	"limner/internal/knowledge"
	"limner/internal/logging"
)

func newKnowledgeBaseCommand(ctx *commandContext) *cobra.Command {
	kbCmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect the shared knowledge base",
	}

	kbCmd.AddCommand(&cobra.Command{
		Use:   "show <workdir>",
		Short: "Print the knowledge base text projection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workdir, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve workdir: %w", err)
			}

			catalog, err := knowledge.NewBase(workdir, logging.NewNop()).Load()
			if err != nil {
				return err
			}
			if len(catalog.Entities) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Knowledge base is empty")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), string(knowledge.RenderProjection(catalog)))
			return nil
		},
	})

	return kbCmd
}
