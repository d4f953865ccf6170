package main

import (
	"time"

	"questflow/internal/monitor"

	"github.com/spf13/cobra"
)

var monitorInterval time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor <progress.json>",
	Short: "Follow a progress document until its run completes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := newWatcher(cmd, args[0])
		if monitorInterval > 0 {
			w.Interval = monitorInterval
		}
		doc, err := w.Run(cmd.Context())
		if err != nil {
			return err
		}
		monitor.RenderSummary(cmd.OutOrStdout(), doc, args[0])
		return nil
	},
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "poll interval (default from config)")
}
