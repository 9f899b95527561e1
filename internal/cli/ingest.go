package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/opsgrep/lograg/internal/pipeline/ingest"
)

var (
	ingestReset   bool
	ingestGlobs   []string
	ingestBatch   int
	ingestWorkers int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index new or changed log files into the vector store",
	Long: `Scans the configured globs, skips file versions already recorded in
the ledger, and indexes the rest: parse, chunk, embed, upsert. Re-running
after a partial failure is safe; chunk ids are deterministic per file
version, so redone work overwrites rather than duplicates.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "clear the ledger first, forcing a full re-index")
	ingestCmd.Flags().StringArrayVar(&ingestGlobs, "glob", nil, "file globs to scan (repeatable, default from config)")
	ingestCmd.Flags().IntVar(&ingestBatch, "batch-size", 0, "chunks per embedding request (default from config)")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "concurrent files (default from config)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	d, err := buildDeps(true)
	if err != nil {
		return err
	}
	defer d.close()

	if len(ingestGlobs) > 0 {
		d.cfg.Ingest.Globs = ingestGlobs
	}
	if ingestBatch > 0 {
		d.cfg.Ingest.BatchSize = ingestBatch
	}
	if ingestWorkers > 0 {
		d.cfg.Ingest.Workers = ingestWorkers
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if ingestReset {
		if err := d.ledger.Reset(ctx); err != nil {
			return fmt.Errorf("reset ledger: %w", err)
		}
		cmd.Println("Ledger cleared.")
	}

	svc := newIngestService(d)

	files, err := svc.Discover(ctx)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		cmd.Printf("No files match %v.\n", d.cfg.Ingest.Globs)
		return nil
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("ingesting"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	svc.OnFileDone = func(_ ingest.FileResult) {
		_ = bar.Add(1)
	}

	summary, err := svc.Run(ctx)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	cmd.Printf("Discovered %d files: %d ingested, %d skipped, %d failed.\n",
		summary.Discovered, summary.Ingested, summary.Skipped, summary.Failed)
	if summary.Ingested > 0 {
		cmd.Printf("Indexed %d records into %d chunks in %s.\n",
			summary.Records, summary.Chunks, summary.Duration.Round(time.Millisecond))
	}
	if summary.Malformed > 0 {
		cmd.Printf("Skipped %d malformed records.\n", summary.Malformed)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d files failed; see log output, re-run to retry", summary.Failed)
	}
	return nil
}
