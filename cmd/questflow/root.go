package main

import (
	"log/slog"
	"os"

	"questflow/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "questflow",
	Short: "Extract exam questions from textbook PDFs with an LLM",
	Long: `questflow reads a textbook PDF (or form-feed separated text), sends
overlapping page windows to a language model and accumulates the questions it
finds in a progress document that is rewritten atomically after every window.

The progress document can be watched while a run is going, summarised once it
is done and exported as JSON lines.`,
	Version:       version,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		_ = godotenv.Load(".env")
		loaded, err := config.LoadFile(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}
