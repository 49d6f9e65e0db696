package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/subhound/subhound/internal/common"
	"github.com/subhound/subhound/internal/detect"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run subscription detection over imported events",
		Long: `Run the detection pipeline for one user: group imported events by merchant
and amount, classify billing cadence, score confidence, and merge the results
into the user's existing detections. Re-running a scan over the same data
changes nothing; detection is idempotent.`,
		RunE: runScan,
	}

	cmd.Flags().String("user", "", "user to scan (required)")
	cmd.Flags().BoolP("dry-run", "d", false, "Compute detections without saving")
	cmd.Flags().BoolP("verbose", "v", false, "Show every upsert and skipped record")

	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	user, err := requireUser(cmd.Flags().GetString)
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	verbose, _ := cmd.Flags().GetBool("verbose")

	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	events, err := store.GetRawEvents(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}
	if len(events) == 0 {
		return common.NewUserError("nothing to scan; import some data first", common.ErrNoEvents)
	}

	existing, err := store.GetDetections(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to load detections: %w", err)
	}

	runner := detect.NewRunner(detectConfig())
	result, err := runner.Run(user, events, existing)
	if err != nil {
		return fmt.Errorf("detection run failed: %w", err)
	}

	created, updated, unchanged := result.Counts()

	if !dryRun {
		// The whole run applies transactionally; it is safe to retry because
		// the pipeline output is deterministic and idempotent.
		err = common.WithRetry(ctx, func() error {
			return store.ApplyRun(ctx, user, result)
		}, common.RetryOptions{MaxAttempts: 3})
		if err != nil {
			return fmt.Errorf("failed to apply detection run: %w", err)
		}
	}

	slog.Info("🐕 Scan complete",
		"user", user,
		"events", len(events),
		"created", created,
		"updated", updated,
		"unchanged", unchanged,
		"skipped_records", len(result.Skipped),
		"dry_run", dryRun)

	fmt.Printf("Scanned %d events: %d new detections, %d updated, %d unchanged\n",
		len(events), created, updated, unchanged)

	for _, u := range result.Upserts {
		if u.Ambiguous {
			fmt.Printf("⚠️  ambiguous merge: %s (%s), review recommended\n",
				u.Detection.Name, u.Reason)
		}
		if verbose && u.Action != detect.ActionSkip {
			fmt.Printf("  %-6s %s %s %s %s (%.2f)\n",
				u.Action, u.Detection.Name, u.Detection.Amount.StringFixed(2),
				u.Detection.Currency, u.Detection.BillingCycle, u.Detection.Confidence)
		}
	}

	if verbose {
		for _, s := range result.Skipped {
			fmt.Printf("  skipped %s/%s: %s\n", s.SourceType, s.SourceRecordID, s.Reason)
		}
	} else if len(result.Skipped) > 0 {
		fmt.Printf("%d malformed records skipped (run with -v for details)\n", len(result.Skipped))
	}

	return nil
}
