package detect

import "github.com/subhound/subhound/internal/model"

// Action describes what the caller should do with a detection upsert.
type Action string

// Upsert actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Upsert is one persistence operation produced by a detection run. The
// pipeline computes these; applying them to storage is the caller's job.
type Upsert struct {
	Detection model.Detection
	Action    Action
	Reason    string

	// Ambiguous is set when the candidate fuzzy-matched more than one
	// existing pending detection and the pipeline picked the best match.
	// The caller may want to surface these for review.
	Ambiguous bool
}

// SkippedEvent records a malformed raw event that was dropped from the batch.
type SkippedEvent struct {
	SourceType     model.SourceType
	SourceRecordID string
	Reason         string
}

// RunResult is the complete output of one detection run.
type RunResult struct {
	Upserts []Upsert
	Skipped []SkippedEvent
}

// Counts returns the number of create, update, and skip operations.
func (r *RunResult) Counts() (created, updated, skipped int) {
	for _, u := range r.Upserts {
		switch u.Action {
		case ActionCreate:
			created++
		case ActionUpdate:
			updated++
		case ActionSkip:
			skipped++
		}
	}
	return created, updated, skipped
}
