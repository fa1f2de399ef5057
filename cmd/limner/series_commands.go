package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"limner/internal/config"
	"limner/internal/logging"
	"limner/internal/series"
)

func newSeriesCommand(ctx *commandContext) *cobra.Command {
	seriesCmd := &cobra.Command{
		Use:   "series",
		Short: "Manage multi-document series sharing one knowledge base",
	}

	seriesCmd.AddCommand(newSeriesInitCommand(ctx))
	seriesCmd.AddCommand(newSeriesAddCommand(ctx))
	seriesCmd.AddCommand(newSeriesMarkCommand(ctx))
	seriesCmd.AddCommand(newSeriesStatusCommand(ctx))
	return seriesCmd
}

func newSeriesMarkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mark <series-root> <document-id> <status>",
		Short: "Record a document's processing status in the series",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve series root: %w", err)
			}
			status, err := series.ParseDocumentStatus(args[2])
			if err != nil {
				return err
			}

			coord := series.NewCoordinator(root, logging.NewNop())
			if err := coord.UpdateDocumentStatus(cmd.Context(), args[1], status); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document %s marked %s\n", args[1], status)
			return nil
		},
	}
}

func newSeriesInitCommand(ctx *commandContext) *cobra.Command {
	var name string
	var policy string

	cmd := &cobra.Command{
		Use:   "init <series-root>",
		Short: "Create or update series coordination metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve series root: %w", err)
			}
			if name == "" {
				return fmt.Errorf("series name is required (--name)")
			}

			coord := series.NewCoordinator(root, logging.NewNop())
			if err := coord.Initialize(cmd.Context(), name, policy); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Series %q initialized at %s\n", name, coord.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Series name")
	cmd.Flags().StringVar(&policy, "knowledge-policy", "cumulative", "How the shared knowledge base carries across documents")
	return cmd
}

func newSeriesAddCommand(ctx *commandContext) *cobra.Command {
	var title string
	var path string
	var order int

	cmd := &cobra.Command{
		Use:   "add <series-root> <document-id>",
		Short: "Register a document with a series",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve series root: %w", err)
			}

			coord := series.NewCoordinator(root, logging.NewNop())
			info := series.DocumentInfo{
				ID:    args[1],
				Title: title,
				Path:  path,
				Order: order,
			}
			if err := coord.AddDocument(cmd.Context(), info); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document %s added to series\n", args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Document title")
	cmd.Flags().StringVar(&path, "path", "", "Document working directory")
	cmd.Flags().IntVar(&order, "order", 0, "Reading order within the series")
	return cmd
}

func newSeriesStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <series-root>",
		Short: "Show per-document progress for a series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve series root: %w", err)
			}

			coord := series.NewCoordinator(root, logging.NewNop())
			cfg, err := coord.Load()
			if err != nil {
				return err
			}
			stats, err := coord.GetStats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Series:     %s\n", orDash(cfg.Name))
			fmt.Fprintf(out, "Documents:  %d (%d completed, %d in progress, %d pending, %d errored)\n",
				stats.Total, stats.Completed, stats.InProgress, stats.Pending, stats.Errored)

			if len(cfg.Documents) > 0 {
				rows := make([][]string, 0, len(cfg.Documents))
				for _, doc := range cfg.Documents {
					rows = append(rows, []string{
						strconv.Itoa(doc.Order),
						doc.ID,
						doc.Title,
						string(doc.Status),
					})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(
					[]string{"Order", "ID", "Title", "Status"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
			}
			return nil
		},
	}
}
