package detect

import (
	"math"
	"time"

	"github.com/subhound/subhound/internal/model"
)

// irregularConfidence is the fixed baseline for groups that recur but match
// no cadence bucket. This matches the legacy heuristic and is deliberately
// not adjusted for amount consistency.
const irregularConfidence = 0.5

// cadenceBucket maps a mean inter-event interval range (in days) to a billing
// cycle. The day windows are the legacy fixed values; they do not account for
// calendar month length or leap years.
type cadenceBucket struct {
	cycle        model.BillingCycle
	min          float64
	max          float64
	center       float64
	consistent   float64 // confidence when group amounts are consistent
	inconsistent float64
}

var cadenceBuckets = []cadenceBucket{
	{model.CycleWeekly, 6, 8, 7, 0.85, 0.65},
	{model.CycleMonthly, 28, 32, 30, 0.90, 0.70},
	{model.CycleQuarterly, 88, 95, 91.5, 0.85, 0.65},
	{model.CycleYearly, 358, 370, 364, 0.90, 0.70},
}

// ClassifyCadence infers a billing cycle from the timestamps of one candidate
// group. Timestamps must be sorted ascending and already de-duplicated of
// identical (time, amount) pairs; see uniqueEventTimes.
//
// Fewer than two events cannot establish a cycle and yield irregular with
// confidence 0. Otherwise the mean of consecutive intervals selects a bucket;
// using the mean rather than any single gap lets a group with three or more
// events average out one-off anomalies. When the mean falls inside more than
// one bucket window the bucket with the nearest center wins.
func ClassifyCadence(times []time.Time, amountConsistent bool) (model.BillingCycle, float64) {
	if len(times) < 2 {
		return model.CycleIrregular, 0.0
	}

	var totalDays float64
	for i := 1; i < len(times); i++ {
		totalDays += times[i].Sub(times[i-1]).Hours() / 24
	}
	mean := totalDays / float64(len(times)-1)

	var matched *cadenceBucket
	for i := range cadenceBuckets {
		b := &cadenceBuckets[i]
		if mean < b.min || mean > b.max {
			continue
		}
		if matched == nil || math.Abs(mean-b.center) < math.Abs(mean-matched.center) {
			matched = b
		}
	}

	if matched == nil {
		return model.CycleIrregular, irregularConfidence
	}

	if amountConsistent {
		return matched.cycle, matched.consistent
	}
	return matched.cycle, matched.inconsistent
}

// uniqueEventTimes returns the group's event timestamps sorted ascending with
// identical (occurredAt, amount) pairs collapsed. Identical pairs are almost
// certainly re-ingested duplicates rather than real cadence signal, so they
// must not produce zero-length intervals that drag down the mean.
func uniqueEventTimes(g model.CandidateGroup) []time.Time {
	seen := make(map[string]bool, len(g.Events))
	times := make([]time.Time, 0, len(g.Events))

	for _, e := range g.Events {
		key := e.OccurredAt.UTC().Format(time.RFC3339Nano) + "|"
		if e.Amount != nil {
			key += e.Amount.String()
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		times = append(times, e.OccurredAt)
	}

	// Events arrive sorted from the grouper; collapsing preserves order.
	return times
}
