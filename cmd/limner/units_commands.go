package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"limner/internal/config"
	"limner/internal/logging"
	"limner/internal/manifest"
)

func newUnitsCommand(ctx *commandContext) *cobra.Command {
	unitsCmd := &cobra.Command{
		Use:   "units",
		Short: "Inspect and repair per-unit processing state",
	}

	unitsCmd.AddCommand(newUnitsListCommand(ctx))
	unitsCmd.AddCommand(newUnitsResetCommand(ctx))
	return unitsCmd
}

func newUnitsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <workdir>",
		Short: "List units and their states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workdir, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve workdir: %w", err)
			}

			store := manifest.NewStore(workdir, logging.NewNop())
			m, err := store.Load()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(m.Units))
			for _, id := range m.UnitIDs() {
				unit := m.Units[id]
				facts := "-"
				if unit.FactCount != nil {
					facts = strconv.Itoa(*unit.FactCount)
				}
				rows = append(rows, []string{
					id,
					string(unit.Status),
					facts,
					formatTimestamp(unit.AnalyzedAt),
					formatTimestamp(unit.IllustratedAt),
					unit.Error,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Unit", "Status", "Facts", "Analyzed", "Illustrated", "Error"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newUnitsResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <workdir> <unit>",
		Short: "Return a failed or stuck unit to pending",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workdir, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve workdir: %w", err)
			}

			store := manifest.NewStore(workdir, logging.NewNop())
			if err := store.ResetUnit(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unit %s reset to pending\n", args[1])
			return nil
		},
	}
}

func formatTimestamp(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return value.Format("2006-01-02 15:04")
}
