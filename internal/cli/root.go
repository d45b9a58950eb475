package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pubtracker/ackscan/pkg/color"
	"github.com/pubtracker/ackscan/pkg/config"
	"github.com/pubtracker/ackscan/pkg/logging"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// DefaultConfigFile is read from the working directory when --config is not given.
const DefaultConfigFile = "ackscan.yaml"

var (
	jsonOutput bool
	configPath string
	corpusFlag string
	logLevel   string
	noColor    bool

	// Set by the persistent pre-run of every command.
	cfg    *config.Config
	logger *logging.Logger

	rootCmd = newRootCmd()
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ackscan",
		Short: "ackscan - publication acknowledgment auditor",
		Long: `ackscan audits a corpus of publications and records, per publication,
whether its acknowledgment section names the tracked facility.

The corpus ledger is rewritten with a crash-safe two-phase protocol; an
interrupted run is recovered by the next one.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./"+DefaultConfigFile+" if present)")
	cmd.PersistentFlags().StringVar(&corpusFlag, "corpus", "", "corpus root directory (overrides corpus_root)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func setup(cmd *cobra.Command, args []string) error {
	color.Init(noColor)

	path := configPath
	if path == "" {
		path = DefaultConfigFile
	}
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	if corpusFlag != "" {
		loaded.CorpusRoot = corpusFlag
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	l, err := logging.NewLogger(logging.Config{
		Level:  logging.Level(loaded.Logging.Level),
		Format: loaded.Logging.Format,
	}, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	logging.SetGlobal(l)
	cfg, logger = loaded, l
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		if !errors.Is(err, errSilent) {
			fmtErr("%v", err)
		}
		os.Exit(1)
	}
}

// errSilent fails a command whose output already explains the failure.
var errSilent = errors.New("silent failure")

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtErr(format string, args ...any) {
	prefix := "ackscan: "
	if color.Enabled() {
		prefix = color.Error("ackscan:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
