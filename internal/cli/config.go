package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pubtracker/ackscan/pkg/color"
	"github.com/pubtracker/ackscan/pkg/config"
)

var (
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Manage ackscan configuration",
	Long: `Manage ackscan configuration.

Settings are layered: built-in defaults, then the YAML file (--config,
default ./ackscan.yaml), then ACKSCAN_* environment variables such as
ACKSCAN_TERM_LIST=BIC,Bioimaging or ACKSCAN_EXTRACTOR_PDF_BACKEND=native.

Available commands:
  show              - Show the effective configuration
  init [path]       - Write the default configuration to a file`,
	DisableFlagsInUseLine: true,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		if !jsonOutput {
			_, err = out.Write(data)
			return err
		}
		// Re-read through YAML so JSON keys match the file keys.
		var generic map[string]any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("convert config: %w", err)
		}
		return outputJSON(out, generic)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	// A broken config file must not stop its own replacement.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		color.Init(noColor)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := DefaultConfigFile
		if len(args) == 1 {
			path = args[0]
		} else if configPath != "" {
			path = configPath
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Save(path, config.Default()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", color.Path(path))
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
