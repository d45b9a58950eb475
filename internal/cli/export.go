package cli

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pubtracker/ackscan/internal/corpus"
	"github.com/pubtracker/ackscan/internal/ledger"
	"github.com/pubtracker/ackscan/internal/report"
	"github.com/pubtracker/ackscan/pkg/color"
	"github.com/pubtracker/ackscan/pkg/fsutil"
)

var (
	exportOut string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ledger as an XLSX workbook",
	Long: `Export the ledger as an XLSX workbook.

The workbook has a Ledger sheet (one row per publication with a preview of
its acknowledgment passage) and a Summary sheet. During an interrupted run
the backup ledger is exported, since it is the authoritative one.

Examples:
  ackscan export --out audit.xlsx`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := corpus.Open(cfg)
		if err != nil {
			return err
		}
		insp, err := ledger.NewManager(c, cfg.TermList, logger).Inspect()
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := report.WriteXLSX(c, insp.Entries, &buf); err != nil {
			return err
		}
		if err := fsutil.AtomicWrite(exportOut, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("write %s: %w", exportOut, err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, map[string]any{
				"path":   exportOut,
				"rows":   len(insp.Entries),
				"source": insp.Decision.String(),
			})
		}
		fmt.Fprintf(out, "Exported %d rows to %s\n", len(insp.Entries), color.Path(exportOut))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "ackscan.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
