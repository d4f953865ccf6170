package main

import (
	"errors"
	"fmt"
	"log/slog"

	"questflow/internal/config"
	"questflow/internal/extraction"
	"questflow/internal/models"
	"questflow/internal/monitor"
	"questflow/internal/pdfsource"
	"questflow/internal/pipeline"
	"questflow/internal/progress"
	"questflow/internal/providers"
	"questflow/internal/storage"
	"questflow/internal/util"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	extractOut        string
	extractRunID      string
	extractWindowSize int
	extractResume     bool
	extractDedupe     bool
	extractWatch      bool
	extractProvider   string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf|file.txt>",
	Short: "Extract questions from a document window by window",
	Long: `Split the document into overlapping page windows and ask the configured
model for the questions on each one. The progress document is rewritten after
every window, so a crash leaves the last completed window on disk.

Use --resume with the same --run-id (or --out) to continue an interrupted run.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "progress file (default <data_out>/runs/<run-id>.json)")
	extractCmd.Flags().StringVar(&extractRunID, "run-id", "", "run identifier (default: random uuid)")
	extractCmd.Flags().IntVarP(&extractWindowSize, "window-size", "w", 0, "pages in the first window (default from config)")
	extractCmd.Flags().BoolVar(&extractResume, "resume", false, "continue a matching unfinished run")
	extractCmd.Flags().BoolVar(&extractDedupe, "dedupe", false, "drop questions already recorded by earlier windows")
	extractCmd.Flags().BoolVar(&extractWatch, "watch", false, "render live progress while extracting")
	extractCmd.Flags().StringVar(&extractProvider, "provider", "", "use only this entry of llm_providers, without failover")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	source := args[0]

	if extractWindowSize > 0 {
		cfg.WindowSize = extractWindowSize
	}
	if extractOut != "" {
		cfg.ProgressBackend = config.BackendFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	runID := extractRunID
	if runID == "" {
		runID = uuid.NewString()
	}

	var db *storage.DB
	if cfg.ProgressBackend == config.BackendPostgres {
		var err error
		db, err = storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	var store progress.Store
	if extractOut != "" {
		store = progress.NewFileStore(extractOut)
	} else {
		var err error
		if store, err = progress.Open(cfg, runID, db); err != nil {
			return err
		}
	}

	pm, err := providers.NewManager(cfg)
	if err != nil {
		return err
	}
	defer pm.Close()

	var llm providers.LLMProvider = pm.Failover(cfg.ProviderCooldown())
	if extractProvider != "" {
		p, _, ok := pm.FindLLMProviderByName(extractProvider)
		if !ok {
			return fmt.Errorf("provider %q is not listed in llm_providers: %w", extractProvider, util.ErrInvalidConfiguration)
		}
		llm = p
	}
	ex := extraction.New(llm, extraction.Options{
		MaxAttempts:       cfg.MaxAttempts,
		RetryDelay:        cfg.RetryDelay(),
		MaxPriorQuestions: cfg.MaxPriorQuestions,
		RunID:             runID,
	})
	if db != nil {
		ex.Recorder = storage.NewLLMAuditRepo(db)
	}

	runner := &pipeline.Runner{
		Extractor: ex,
		Store:     store,
		Source:    pdfsource.Auto{PDF: pdfsource.NewReader()},
		RunID:     runID,
		Dedupe:    extractDedupe || cfg.DedupeQuestions,
		Resume:    extractResume,
	}

	slog.Info("extracting", "run_id", runID, "source", source, "window_size", cfg.WindowSize, "providers", pm.LLMProviderRefs())

	fs, isFile := store.(*progress.FileStore)
	if extractWatch && !isFile {
		slog.Warn("--watch needs the file backend, continuing without live view")
	}

	var doc *models.ProgressDocument
	if extractWatch && isFile {
		// The file may still hold an earlier run until the store is
		// initialized, so the watcher waits for the run to start.
		started := make(chan struct{})
		runner.OnStart = func(*models.ProgressDocument) { close(started) }
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			doc, err = runner.RunFile(gctx, source, cfg.WindowSize)
			return err
		})
		g.Go(func() error {
			select {
			case <-started:
			case <-gctx.Done():
				return nil
			}
			_, err := newWatcher(cmd, fs.Path()).Run(gctx)
			if errors.Is(err, gctx.Err()) {
				return nil
			}
			return err
		})
		err = g.Wait()
	} else {
		doc, err = runner.RunFile(ctx, source, cfg.WindowSize)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	location := runID
	if isFile {
		location = fs.Path()
	}
	monitor.RenderSummary(out, doc, location)
	return nil
}

// newWatcher renders every update of the document at path to the command's
// output.
func newWatcher(cmd *cobra.Command, path string) *monitor.Watcher {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	waiting := ""
	return &monitor.Watcher{
		Path:     path,
		Interval: cfg.MonitorInterval(),
		OnUpdate: func(_ *models.ProgressDocument, p monitor.Progress, newWindows int) {
			waiting = ""
			monitor.Render(out, p, newWindows)
		},
		OnWait: func(err error) {
			if msg := err.Error(); msg != waiting {
				waiting = msg
				fmt.Fprintf(errOut, "waiting for %s: %v\n", path, err)
			}
		},
	}
}
