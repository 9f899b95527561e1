package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opsgrep/lograg/internal/watcher"
)

var (
	watchDebounce    time.Duration
	watchGlobs       []string
	watchMetricsAddr string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously ingest new and changed log files",
	Long: `Runs one ingestion pass, then watches the glob directories and
re-runs the pipeline when files appear or change. The ledger keeps re-runs
idempotent. When metrics.addr is configured, a listener exposes /metrics
and /healthz for the duration of the watch.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "settle delay after the last filesystem event")
	watchCmd.Flags().StringArrayVar(&watchGlobs, "glob", nil, "file globs to watch (repeatable, default from config)")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "listen address for /metrics and /healthz (default from config)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	d, err := buildDeps(true)
	if err != nil {
		return err
	}
	defer d.close()

	if len(watchGlobs) > 0 {
		d.cfg.Ingest.Globs = watchGlobs
	}
	if watchMetricsAddr != "" {
		d.cfg.Metrics.Addr = watchMetricsAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := d.cfg.Metrics.Addr; addr != "" {
		go func() {
			if err := watcher.ServeMetrics(ctx, addr, d.logger); err != nil {
				d.logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	w := watcher.New(newIngestService(d), d.cfg.Ingest.Globs, d.logger).
		WithDebounce(watchDebounce)

	err = w.Run(ctx)
	if err == context.Canceled {
		cmd.Println("Watch stopped.")
		return nil
	}
	return err
}
