package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pubtracker/ackscan/internal/corpus"
	"github.com/pubtracker/ackscan/internal/doctor"
	"github.com/pubtracker/ackscan/pkg/color"
)

var (
	doctorStrict bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check corpus health",
	Long: `Check corpus health.

Reports interrupted runs (and what the next run will do about them), run
locks, missing fulltexts and citation files, and leftover temporary files.
Nothing is modified. Use --strict to also verify the run journal chain and
validate every PDF fulltext.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := corpus.Open(cfg)
		if err != nil {
			return err
		}
		result, err := doctor.NewDoctor(c).Check(doctorStrict)
		if err != nil {
			return fmt.Errorf("doctor: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := outputJSON(out, result); err != nil {
				return err
			}
		} else if len(result.Findings) == 0 {
			fmt.Fprintf(out, "%s (%d rows)\n", color.Success("Corpus is healthy."), result.Rows)
		} else {
			fmt.Fprintf(out, "Findings (%d):\n", len(result.Findings))
			for _, f := range result.Findings {
				fmt.Fprintf(out, "  [%s] %s: %s\n", severity(f.Severity), f.Category, f.Description)
			}
		}

		if !result.Healthy {
			return errSilent
		}
		return nil
	},
}

func severity(s string) string {
	switch s {
	case doctor.SeverityCritical, doctor.SeverityError:
		return color.Error(s)
	case doctor.SeverityWarning:
		return color.Warning(s)
	default:
		return color.Dim(s)
	}
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "verify the run journal and validate PDF fulltexts")
	rootCmd.AddCommand(doctorCmd)
}
