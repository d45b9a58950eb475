package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pubtracker/ackscan/internal/corpus"
	"github.com/pubtracker/ackscan/internal/extract"
	"github.com/pubtracker/ackscan/internal/lock"
	"github.com/pubtracker/ackscan/internal/pipeline"
	"github.com/pubtracker/ackscan/pkg/color"
	"github.com/pubtracker/ackscan/pkg/errclass"
	"github.com/pubtracker/ackscan/pkg/metrics"
	"github.com/pubtracker/ackscan/pkg/progress"
	"github.com/pubtracker/ackscan/pkg/uuidutil"
	"github.com/pubtracker/ackscan/pkg/webhook"
)

var (
	runNoProgress bool
	runTextfile   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan every publication in the ledger",
	Long: `Scan every publication in the ledger.

Each row's fulltext (<stem>_full.xml or <stem>.pdf) is searched for its
acknowledgment passage, which is saved as <stem>_ack.txt and tested against
the configured terms. Acknowledged publications are copied into the output
directory. The ledger is rewritten row by row; if the run stops early the
previous ledger is kept as the backup and the next run starts over from it.

Examples:
  ackscan run
  ackscan run --corpus /data/publications
  ackscan run --json --metrics-textfile /var/lib/node_exporter/ackscan.prom`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runScan(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	runCmd.Flags().BoolVar(&runNoProgress, "no-progress", false, "disable the progress bar")
	runCmd.Flags().StringVar(&runTextfile, "metrics-textfile", "", "write Prometheus metrics to this file (overrides metrics.textfile)")
	rootCmd.AddCommand(runCmd)
}

func runScan(ctx context.Context, stdout, stderr io.Writer) error {
	c, err := corpus.Open(cfg)
	if err != nil {
		return err
	}
	if info, err := os.Stat(c.LogDir()); err != nil || !info.IsDir() {
		return errclass.ErrLedgerMissing.WithMessagef("log directory %s does not exist", c.LogDir())
	}

	ttl, err := cfg.LockTTLDuration()
	if err != nil {
		return err
	}
	runID := uuidutil.NewV4()
	locks := lock.NewManager(c, ttl, logger)
	held, err := locks.Acquire(runID, "run")
	if err != nil {
		return err
	}
	defer func() {
		if err := locks.Release(held.HolderNonce); err != nil {
			logger.Warn("release lock", zap.Error(err))
		}
	}()

	svc, err := extract.NewService(cfg, logger)
	if err != nil {
		return err
	}
	hook, err := webhook.New(cfg, logger)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	opts := []pipeline.Option{pipeline.WithRunID(runID), pipeline.WithMetrics(reg)}

	var bar *progress.Bar
	if f, ok := stderr.(*os.File); ok && !runNoProgress && !jsonOutput && progress.IsTerminal(f) {
		bar = progress.NewBar(stderr, "scan")
		opts = append(opts, pipeline.WithProgress(bar.Callback()))
	}

	sum, runErr := pipeline.New(c, svc, logger, opts...).Run(ctx)
	switch {
	case bar == nil:
	case runErr == nil:
		bar.Done()
	default:
		fmt.Fprintln(stderr)
	}

	textfile := runTextfile
	if textfile == "" {
		textfile = cfg.Metrics.Textfile
	}
	if textfile != "" {
		if err := reg.WriteTextfile(textfile); err != nil {
			logger.Warn("metrics textfile", zap.Error(err))
		}
	}

	notify(ctx, hook, c, runID, sum, runErr)

	if runErr != nil {
		if sum != nil && sum.Total > 0 {
			fmt.Fprintf(stderr, "run stopped after %d of %d records; the backup ledger is kept\n", sum.Processed, sum.Total)
		}
		return runErr
	}

	if jsonOutput {
		return outputJSON(stdout, sum)
	}
	printSummary(stdout, c, sum)
	if len(sum.PublishFailures) > 0 {
		return errSilent
	}
	return nil
}

// notify reports the outcome even when ctx was cancelled by a signal.
func notify(ctx context.Context, hook *webhook.Client, c *corpus.Corpus, runID string, sum *pipeline.Summary, runErr error) {
	event := webhook.Event{
		Event:      webhook.EventRunCommitted,
		RunID:      runID,
		CorpusRoot: c.Root,
	}
	if sum != nil {
		event.Summary = sum
	}
	if runErr != nil {
		event.Event = webhook.EventRunAborted
		event.Error = runErr.Error()
	}
	if err := hook.Send(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("run notification not delivered", zap.Error(err))
	}
}

func printSummary(w io.Writer, c *corpus.Corpus, sum *pipeline.Summary) {
	fmt.Fprintf(w, "%s %d records in %s\n", color.Success("Scanned"), sum.Processed, sum.Duration.Round(1e6))
	fmt.Fprintf(w, "  acknowledged:     %d\n", sum.Acknowledged)
	fmt.Fprintf(w, "  not acknowledged: %d\n", sum.NotAcknowledged)
	fmt.Fprintf(w, "  no fulltext:      %d\n", sum.NoFulltext)
	if sum.ExtractionFailures > 0 {
		fmt.Fprintf(w, "  %s\n", color.Warningf("extraction failures: %d", sum.ExtractionFailures))
	}
	if sum.SidecarFailures > 0 {
		fmt.Fprintf(w, "  %s\n", color.Warningf("sidecar failures: %d", sum.SidecarFailures))
	}
	for _, f := range sum.PublishFailures {
		fmt.Fprintf(w, "  %s %s: %s\n", color.Error("publish failed"), f.FileName, f.Error)
	}
	fmt.Fprintf(w, "Ledger:     %s\n", color.Path(c.LedgerPath()))
	fmt.Fprintf(w, "Transcript: %s\n", color.Path(c.TranscriptPath()))
	fmt.Fprintf(w, "Run ID:     %s\n", color.Dim(sum.RunID))
}
