package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"moodle-sync/core/reconcile"
	"moodle-sync/core/runner"
	"moodle-sync/feature/course"

	"github.com/spf13/cobra"
)

var (
	// Flags for the sync command
	syncDryRun bool
	syncFetch  string
	syncJSON   bool
)

// syncCmd runs one reconciliation kind, or all of them.
var syncCmd = &cobra.Command{
	Use:       "sync users|courses|enrolments|all",
	Short:     "Reconcile ERP data into Moodle",
	ValidArgs: []string{"users", "courses", "enrolments", "all"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Long: `Reconcile one kind of record from the ERP into Moodle.

"all" runs users, courses and enrolments in that order; a kind that cannot
list its source is reported and the next kind still runs.

The command exits non-zero when a run aborted or any record failed.

Examples:
  # Preview course changes without touching Moodle
  moodle-sync sync courses --dry-run

  # Look every course up individually instead of loading them all
  moodle-sync sync courses --fetch one

  # Nightly full run, reports printed as JSON
  moodle-sync sync all --json`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Log intended changes without applying them (overrides SYNC_DRY_RUN)")
	syncCmd.Flags().StringVar(&syncFetch, "fetch", "", "Course fetch mode: one or all (overrides SYNC_FETCH)")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "Print the run reports as JSON on stdout")

	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := a.runner.Request("")
	if cmd.Flags().Changed("dry-run") {
		req.DryRun = syncDryRun
	}
	if syncFetch != "" {
		if _, err := course.ParseFetchMode(syncFetch); err != nil {
			return err
		}
		req.Fetch = syncFetch
	}

	var reports []*reconcile.Report
	if args[0] == "all" {
		reports, err = a.runner.RunAll(ctx, req)
	} else {
		req.Kind = reconcile.Kind(args[0])
		var r *reconcile.Report
		r, err = a.runner.Run(ctx, req)
		if r != nil {
			reports = append(reports, r)
		}
	}

	if syncJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(reports); encErr != nil {
			return fmt.Errorf("failed to write reports: %w", encErr)
		}
	}
	if err != nil {
		if errors.Is(err, runner.ErrRecordFailures) {
			return fmt.Errorf("%w (see the failures in the run report)", err)
		}
		return err
	}
	return nil
}
