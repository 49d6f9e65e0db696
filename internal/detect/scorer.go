package detect

import (
	"github.com/shopspring/decimal"
	"github.com/subhound/subhound/internal/model"
)

// EvaluateGroup runs cadence classification and confidence scoring for one
// candidate group and returns the final billing cycle and confidence.
func EvaluateGroup(g model.CandidateGroup, cfg Config) (model.BillingCycle, float64) {
	times := uniqueEventTimes(g)
	consistent := AmountsConsistent(g, cfg)
	cycle, base := ClassifyCadence(times, consistent)
	return ScoreGroup(g, cycle, base, cfg)
}

// AmountsConsistent reports whether every amount in the group is within
// Config.AmountTolerance of the group median. Groups with no parsed amounts
// cannot establish consistency and report false; they are also exempt from
// the wide-spread penalty, so this only affects the classifier's base table.
func AmountsConsistent(g model.CandidateGroup, cfg Config) bool {
	if !g.HasAmounts {
		return false
	}
	amounts := g.Amounts()
	if len(amounts) == 0 {
		return false
	}

	median := medianAmount(amounts)
	tolerance := decimal.NewFromFloat(cfg.AmountTolerance)
	for _, a := range amounts {
		if !withinTolerance(median, a, tolerance) {
			return false
		}
	}
	return true
}

// ScoreGroup adjusts the classifier's base confidence for sample size, amount
// spread, and source reliability, returning a final confidence in [0,1].
func ScoreGroup(g model.CandidateGroup, cycle model.BillingCycle, base float64, cfg Config) (model.BillingCycle, float64) {
	confidence := base

	// More samples, more trust.
	if len(g.Events) >= cfg.SampleBoostMin {
		confidence += cfg.SampleBoost
		if confidence > cfg.ConfidenceCap {
			confidence = cfg.ConfidenceCap
		}
	}

	// Wider inconsistency than the classifier's binary flag.
	if hasWideSpread(g.Amounts(), cfg) {
		confidence -= cfg.WideSpreadPenalty
		if confidence < cfg.ConfidenceFloor {
			confidence = cfg.ConfidenceFloor
		}
	}

	confidence *= sourceReliability(g.SourceTypes(), cfg)

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return cycle, confidence
}

// hasWideSpread reports whether any two amounts in the group differ by more
// than Config.WideSpreadTolerance relative to the smaller of the two.
func hasWideSpread(amounts []decimal.Decimal, cfg Config) bool {
	if len(amounts) < 2 {
		return false
	}

	minAmt := amounts[0]
	maxAmt := amounts[0]
	for _, a := range amounts[1:] {
		if a.LessThan(minAmt) {
			minAmt = a
		}
		if a.GreaterThan(maxAmt) {
			maxAmt = a
		}
	}

	bound := minAmt.Abs().Mul(decimal.NewFromFloat(cfg.WideSpreadTolerance))
	return maxAmt.Sub(minAmt).GreaterThan(bound)
}

// sourceReliability returns the reliability multiplier for a group. Groups
// fed by multiple sources use the maximum of the per-source multipliers:
// corroboration from a second source must not be penalized.
func sourceReliability(types []model.SourceType, cfg Config) float64 {
	best := 0.0
	for _, t := range types {
		var m float64
		switch t {
		case model.SourceBank:
			m = 1.0
		case model.SourceEmail:
			m = cfg.EmailReliability
		case model.SourceSMS:
			m = cfg.SMSReliability
		default:
			m = cfg.SMSReliability
		}
		if m > best {
			best = m
		}
	}
	if best == 0 {
		return 1.0
	}
	return best
}
