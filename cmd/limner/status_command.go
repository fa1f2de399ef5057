package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"limner/internal/config"
	"limner/internal/logging"
	"limner/internal/manifest"
	"limner/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <workdir>",
		Short: "Show processing progress for a document working directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workdir, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve workdir: %w", err)
			}

			status, err := workflow.Snapshot(workdir, logging.NewNop())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("Document", statusInfo, orDash(status.DocumentID), colorize))
			fmt.Fprintln(out, renderStatusLine("Knowledge base", knowledgeBaseKind(status.KnowledgeBase), string(status.KnowledgeBase), colorize))
			fmt.Fprintln(out, renderStatusLine("Analyze phase", phaseKind(status.AnalyzeComplete), yesNo(status.AnalyzeComplete), colorize))
			fmt.Fprintln(out, renderStatusLine("Illustrate phase", phaseKind(status.IllustrateComplete), yesNo(status.IllustrateComplete), colorize))
			fmt.Fprintln(out, renderStatusLine("Entities", statusInfo, fmt.Sprintf("%d (%d facts)", status.Entities, status.Facts), colorize))
			if !status.LastUpdated.IsZero() {
				fmt.Fprintln(out, renderStatusLine("Last updated", statusInfo, status.LastUpdated.Format("2006-01-02 15:04:05 MST"), colorize))
			}

			if status.TotalUnits > 0 {
				rows := make([][]string, 0, len(status.UnitCounts))
				for _, unitStatus := range manifest.AllUnitStatuses() {
					if count, ok := status.UnitCounts[unitStatus]; ok {
						rows = append(rows, []string{string(unitStatus), strconv.Itoa(count)})
					}
				}
				rows = append(rows, []string{"total", strconv.Itoa(status.TotalUnits)})
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(
					[]string{"Unit Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
			}
			return nil
		},
	}
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
