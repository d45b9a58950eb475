package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pubtracker/ackscan/internal/corpus"
	"github.com/pubtracker/ackscan/internal/lock"
)

var (
	lockReleaseNonce string
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect the corpus run lock",
}

func lockManager() (*lock.Manager, error) {
	c, err := corpus.Open(cfg)
	if err != nil {
		return nil, err
	}
	ttl, err := cfg.LockTTLDuration()
	if err != nil {
		return nil, err
	}
	return lock.NewManager(c, ttl, logger), nil
}

var lockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who holds the corpus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := lockManager()
		if err != nil {
			return err
		}
		state, rec, err := mgr.Status()
		if err != nil {
			return fmt.Errorf("check lock status: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, map[string]any{
				"state": state,
				"lock":  rec,
			})
		}
		fmt.Fprintf(out, "Lock state: %s\n", state)
		if rec != nil {
			fmt.Fprintf(out, "  Run ID:   %s\n", rec.RunID)
			fmt.Fprintf(out, "  Holder:   pid %d on %s (nonce %s)\n", rec.PID, rec.Hostname, rec.HolderNonce)
			fmt.Fprintf(out, "  Acquired: %s\n", rec.AcquiredAt.Format(time.RFC3339))
			fmt.Fprintf(out, "  Expires:  %s\n", rec.ExpiresAt.Format(time.RFC3339))
		}
		return nil
	},
}

var lockReleaseCmd = &cobra.Command{
	Use:   "release --nonce <nonce>",
	Short: "Release a lock left behind by a dead run",
	Long: `Release a lock left behind by a dead run.

The holder nonce shown by 'ackscan lock status' must be given, so a lock
cannot be released by accident while its run is still alive.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := lockManager()
		if err != nil {
			return err
		}
		if err := mgr.Release(lockReleaseNonce); err != nil {
			return fmt.Errorf("release lock: %w", err)
		}
		if !jsonOutput {
			fmt.Fprintln(cmd.OutOrStdout(), "Lock released")
		}
		return nil
	},
}

func init() {
	lockReleaseCmd.Flags().StringVar(&lockReleaseNonce, "nonce", "", "holder nonce of the lock")
	_ = lockReleaseCmd.MarkFlagRequired("nonce")
	lockCmd.AddCommand(lockStatusCmd)
	lockCmd.AddCommand(lockReleaseCmd)
	rootCmd.AddCommand(lockCmd)
}
