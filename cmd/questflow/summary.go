package main

import (
	"questflow/internal/monitor"
	"questflow/internal/progress"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <progress.json>",
	Short: "Print the summary of a progress document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := progress.ReadFile(args[0])
		if err != nil {
			return err
		}
		monitor.RenderSummary(cmd.OutOrStdout(), doc, args[0])
		return nil
	},
}
