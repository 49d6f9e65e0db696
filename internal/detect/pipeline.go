package detect

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/subhound/subhound/internal/common"
	"github.com/subhound/subhound/internal/model"
)

// Runner is the public entry point of the detection pipeline. It holds only
// configuration; every run takes all state as arguments and returns a result,
// so runs are deterministic and trivially testable without a database.
type Runner struct {
	cfg Config
}

// NewRunner creates a detection runner with the given configuration.
func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg}
}

// Run executes the full detection pipeline for one user: group raw events
// into candidates, classify and score each, then deduplicate against the
// user's existing detections. The returned upsert list has no side effects;
// the caller applies it to storage, ideally in a single transaction.
//
// Running twice with identical inputs (the second time with existing state
// reflecting the first run's applied output) yields all-skip upserts: the
// pipeline is idempotent.
//
// Individual malformed events are dropped into the Skipped list and the run
// continues. Structural problems are fatal: a batch over the configured
// limit, or events/detections belonging to a different user, abort the run
// since guessing would risk cross-account leakage.
func (r *Runner) Run(userID string, events []model.RawEvent, existing []model.Detection) (*RunResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	if r.cfg.MaxBatchSize > 0 && len(events) > r.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d events over limit %d; split the batch and retry",
			common.ErrBatchTooLarge, len(events), r.cfg.MaxBatchSize)
	}

	for i := range existing {
		if existing[i].UserID != "" && existing[i].UserID != userID {
			return nil, fmt.Errorf("%w: detection %q belongs to user %q, run is for %q",
				common.ErrUserMismatch, existing[i].ID, existing[i].UserID, userID)
		}
	}

	valid, skipped, err := validateEvents(userID, events)
	if err != nil {
		return nil, err
	}

	groups := GroupEvents(valid, r.cfg)

	candidates := make([]scoredGroup, 0, len(groups))
	for _, g := range groups {
		cycle, confidence := EvaluateGroup(g, r.cfg)
		candidates = append(candidates, scoredGroup{group: g, cycle: cycle, confidence: confidence})
	}

	upserts := resolveDetections(userID, candidates, existing, r.cfg)

	created, updated, unchanged := (&RunResult{Upserts: upserts}).Counts()
	slog.Debug("detection run complete",
		"user", userID,
		"events", len(valid),
		"skipped_events", len(skipped),
		"groups", len(groups),
		"created", created,
		"updated", updated,
		"unchanged", unchanged)

	return &RunResult{Upserts: upserts, Skipped: skipped}, nil
}

// validateEvents drops malformed records with a reason and fails the run on
// cross-user contamination.
func validateEvents(userID string, events []model.RawEvent) ([]model.RawEvent, []SkippedEvent, error) {
	valid := make([]model.RawEvent, 0, len(events))
	var skipped []SkippedEvent
	seen := make(map[model.SourceRef]bool, len(events))

	skip := func(e model.RawEvent, reason string) {
		skipped = append(skipped, SkippedEvent{
			SourceType:     e.SourceType,
			SourceRecordID: e.SourceRecordID,
			Reason:         reason,
		})
	}

	for _, e := range events {
		if e.UserID != "" && e.UserID != userID {
			return nil, nil, fmt.Errorf("%w: event %q belongs to user %q, run is for %q",
				common.ErrUserMismatch, e.SourceRecordID, e.UserID, userID)
		}

		switch {
		case !e.SourceType.Valid():
			skip(e, "unknown source type")
		case e.SourceRecordID == "":
			skip(e, "missing source record id")
		case e.OccurredAt.IsZero():
			skip(e, "missing or unparseable date")
		case strings.TrimSpace(e.RawMerchantText) == "" && e.Amount == nil:
			skip(e, "no merchant text or amount")
		case e.Amount != nil && e.Currency == "":
			skip(e, "amount without currency")
		case seen[e.Ref()]:
			skip(e, "duplicate source record in batch")
		default:
			seen[e.Ref()] = true
			valid = append(valid, e)
		}
	}

	return valid, skipped, nil
}
