package model

import "github.com/shopspring/decimal"

// CandidateGroup is a provisional cluster of raw events believed to be the
// same recurring charge. Groups live only for the duration of one pipeline
// run; they are never persisted.
type CandidateGroup struct {
	NormalizedMerchant string
	Currency           string
	Events             []RawEvent // ordered by OccurredAt ascending
	ReferenceAmount    decimal.Decimal
	HasAmounts         bool // false for the name-only bucket of amount-less events
}

// SourceTypes returns the distinct source types contributing to this group.
func (g *CandidateGroup) SourceTypes() []SourceType {
	seen := make(map[SourceType]bool, 2)
	var types []SourceType
	for _, e := range g.Events {
		if !seen[e.SourceType] {
			seen[e.SourceType] = true
			types = append(types, e.SourceType)
		}
	}
	return types
}

// SourceRefs returns the evidence keys for every event in the group.
func (g *CandidateGroup) SourceRefs() []SourceRef {
	refs := make([]SourceRef, 0, len(g.Events))
	for _, e := range g.Events {
		refs = append(refs, e.Ref())
	}
	return refs
}

// Amounts returns the non-nil amounts in event order.
func (g *CandidateGroup) Amounts() []decimal.Decimal {
	var amounts []decimal.Decimal
	for _, e := range g.Events {
		if e.Amount != nil {
			amounts = append(amounts, *e.Amount)
		}
	}
	return amounts
}
