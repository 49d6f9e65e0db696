package detect

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/subhound/subhound/internal/model"
)

// GroupEvents partitions raw events into candidate groups keyed by normalized
// merchant identity and approximately-equal amount. Events are sorted by
// occurrence time before bucketing so the greedy amount bucketing is
// deterministic for a given input set.
//
// Amount-less events are grouped by merchant name alone into a bucket that is
// excluded from amount-consistency scoring downstream but still contributes
// cadence signal. Events whose merchant text normalizes to nothing each get
// their own group; unrelated unknown-name charges must never silently merge.
func GroupEvents(events []model.RawEvent, cfg Config) []model.CandidateGroup {
	sorted := make([]model.RawEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].OccurredAt.Equal(sorted[j].OccurredAt) {
			return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
		}
		if sorted[i].SourceType != sorted[j].SourceType {
			return sorted[i].SourceType < sorted[j].SourceType
		}
		return sorted[i].SourceRecordID < sorted[j].SourceRecordID
	})

	tolerance := decimal.NewFromFloat(cfg.AmountTolerance)

	type bucket struct {
		merchant   string
		currency   string
		anchor     decimal.Decimal // first-seen amount in this bucket
		events     []model.RawEvent
		hasAmounts bool
	}

	var buckets []*bucket

	for _, e := range sorted {
		merchant := NormalizeMerchant(e.RawMerchantText)

		if merchant == UnknownMerchant {
			b := &bucket{merchant: merchant, currency: e.Currency, hasAmounts: e.Amount != nil}
			if e.Amount != nil {
				b.anchor = *e.Amount
			}
			b.events = append(b.events, e)
			buckets = append(buckets, b)
			continue
		}

		var target *bucket
		for _, b := range buckets {
			if b.merchant != merchant || b.currency != e.Currency {
				continue
			}
			if e.Amount == nil {
				if !b.hasAmounts {
					target = b
					break
				}
				continue
			}
			if b.hasAmounts && withinTolerance(b.anchor, *e.Amount, tolerance) {
				target = b
				break
			}
		}

		if target == nil {
			target = &bucket{merchant: merchant, currency: e.Currency, hasAmounts: e.Amount != nil}
			if e.Amount != nil {
				target.anchor = *e.Amount
			}
			buckets = append(buckets, target)
		}
		target.events = append(target.events, e)
	}

	groups := make([]model.CandidateGroup, 0, len(buckets))
	for _, b := range buckets {
		g := model.CandidateGroup{
			NormalizedMerchant: b.merchant,
			Currency:           b.currency,
			Events:             b.events,
			HasAmounts:         b.hasAmounts,
		}
		if b.hasAmounts {
			g.ReferenceAmount = medianAmount(g.Amounts())
		}
		groups = append(groups, g)
	}

	return groups
}

// withinTolerance reports whether amount is within the relative tolerance of
// the reference amount.
func withinTolerance(ref, amount, tolerance decimal.Decimal) bool {
	diff := amount.Sub(ref).Abs()
	bound := ref.Abs().Mul(tolerance)
	return diff.LessThanOrEqual(bound)
}

// medianAmount returns the median of the given amounts. For an even count the
// mean of the two middle values is used.
func medianAmount(amounts []decimal.Decimal) decimal.Decimal {
	if len(amounts) == 0 {
		return decimal.Zero
	}

	sorted := make([]decimal.Decimal, len(amounts))
	copy(sorted, amounts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}
