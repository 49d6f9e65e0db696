package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingCycle is the inferred recurrence period of a charge.
type BillingCycle string

// Billing cycle constants.
const (
	CycleDaily     BillingCycle = "daily"
	CycleWeekly    BillingCycle = "weekly"
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
	CycleOneTime   BillingCycle = "one-time"
	CycleIrregular BillingCycle = "irregular"
)

// DetectionStatus tracks where a detection sits in the review workflow.
// Statuses other than pending are owned by the user-facing workflow and are
// preserved, never reset, by later pipeline runs.
type DetectionStatus string

// Detection status constants.
const (
	StatusPending   DetectionStatus = "pending"
	StatusConfirmed DetectionStatus = "confirmed"
	StatusRejected  DetectionStatus = "rejected"
	StatusImported  DetectionStatus = "imported"
)

// Protected reports whether the status is owned by the user workflow and must
// not be downgraded or recreated by the pipeline.
func (s DetectionStatus) Protected() bool {
	return s == StatusConfirmed || s == StatusRejected || s == StatusImported
}

// Detection represents a believed recurring subscription assembled from one
// or more evidence sources. ID is empty until the persistence layer assigns
// one on first insert.
type Detection struct {
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ID         string
	UserID     string
	Name       string
	Currency   string
	BillingCycle BillingCycle
	Status     DetectionStatus
	Sources    []SourceRef
	Amount     decimal.Decimal
	Confidence float64
}

// HasSource reports whether the detection already carries the given evidence.
func (d *Detection) HasSource(ref SourceRef) bool {
	for _, s := range d.Sources {
		if s == ref {
			return true
		}
	}
	return false
}

// MergeSources unions the given refs into the detection's evidence set and
// returns how many were actually new. Union is keyed by the full SourceRef so
// re-ingesting the same scan twice never duplicates entries.
func (d *Detection) MergeSources(refs []SourceRef) int {
	added := 0
	for _, ref := range refs {
		if !d.HasSource(ref) {
			d.Sources = append(d.Sources, ref)
			added++
		}
	}
	return added
}
