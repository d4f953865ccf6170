package main

import (
	"fmt"
	"strings"

	"questflow/internal/progress"

	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <progress.json>",
	Short: "Write the accumulated questions as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := progress.ReadFile(args[0])
		if err != nil {
			return err
		}
		out := exportOut
		if out == "" {
			out = strings.TrimSuffix(args[0], ".json") + ".questions.jsonl"
		}
		n, err := progress.ExportQuestions(out, doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d questions to %s\n", n, out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default <progress>.questions.jsonl)")
}
