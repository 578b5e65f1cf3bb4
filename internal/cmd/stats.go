package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/behavioral-capture/pkg/behavior"
	"github.com/offlinefirst/behavioral-capture/pkg/persist"
)

func newStatsCommand(rc *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <log>",
		Short: "Summarise a persisted CSV or SQLite event log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := persist.ReadRows(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(rc.stdout, "Statistics for %s%s\n", args[0], fileSize(args[0]))
			printSummary(rc.stdout, behavior.Summarize(records))
			return nil
		},
	}
}
