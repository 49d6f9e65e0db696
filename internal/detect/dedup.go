package detect

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/subhound/subhound/internal/model"
)

// scoredGroup pairs a candidate group with its classified cycle and final
// confidence.
type scoredGroup struct {
	group      model.CandidateGroup
	cycle      model.BillingCycle
	confidence float64
}

// resolveDetections merges candidate groups that represent the same
// real-world subscription (within this run and against the user's persisted
// detections) and emits one upsert per resolved subscription.
//
// Same-run merging uses union-find so the fuzzy match relation cannot produce
// an inconsistent state when A~B and B~C: all three land in one cluster.
func resolveDetections(userID string, candidates []scoredGroup, existing []model.Detection, cfg Config) []Upsert {
	// Merge candidates within this run first, so bank and email sightings of
	// the same charge become a single cluster before touching existing state.
	parent := make([]int, len(candidates))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if sameSubscription(candidates[i].group, candidates[j].group, cfg) {
				parent[find(j)] = find(i)
			}
		}
	}

	memberIdx := make(map[int][]int)
	var rootOrder []int
	for i := range candidates {
		root := find(i)
		if len(memberIdx[root]) == 0 {
			rootOrder = append(rootOrder, root)
		}
		memberIdx[root] = append(memberIdx[root], i)
	}

	clusters := make([]scoredGroup, 0, len(rootOrder))
	for _, root := range rootOrder {
		members := make([]scoredGroup, 0, len(memberIdx[root]))
		for _, idx := range memberIdx[root] {
			members = append(members, candidates[idx])
		}
		clusters = append(clusters, mergeCluster(members, cfg))
	}

	// Resolve each cluster to at most one existing detection, then collect
	// clusters that landed on the same detection into a single upsert so a
	// run never emits two conflicting updates for one row.
	type resolution struct {
		target    *model.Detection
		clusters  []scoredGroup
		ambiguous bool
	}

	byTarget := make(map[string]*resolution)
	var resolutions []*resolution

	for _, c := range clusters {
		target, ambiguous := matchExisting(c, existing, cfg)

		key := ""
		if target != nil {
			key = target.ID
		}
		if key != "" {
			if res, ok := byTarget[key]; ok {
				res.clusters = append(res.clusters, c)
				res.ambiguous = res.ambiguous || ambiguous
				continue
			}
		}
		res := &resolution{target: target, clusters: []scoredGroup{c}, ambiguous: ambiguous}
		resolutions = append(resolutions, res)
		if key != "" {
			byTarget[key] = res
		}
	}

	var upserts []Upsert
	for _, res := range resolutions {
		cluster := res.clusters[0]
		if len(res.clusters) > 1 {
			cluster = mergeCluster(res.clusters, cfg)
		}
		if u := emitUpsert(userID, cluster, res.target, res.ambiguous, cfg); u != nil {
			upserts = append(upserts, *u)
		}
	}

	sort.SliceStable(upserts, func(i, j int) bool {
		a, b := upserts[i].Detection, upserts[j].Detection
		if a.Currency != b.Currency {
			return a.Currency < b.Currency
		}
		na, nb := NormalizeMerchant(a.Name), NormalizeMerchant(b.Name)
		if na != nb {
			return na < nb
		}
		return a.Amount.LessThan(b.Amount)
	})

	return upserts
}

// sameSubscription reports whether two candidate groups from this run
// represent the same real-world subscription.
func sameSubscription(a, b model.CandidateGroup, cfg Config) bool {
	if a.NormalizedMerchant == UnknownMerchant || b.NormalizedMerchant == UnknownMerchant {
		return false
	}
	if !currencyCompatible(a.Currency, b.Currency) {
		return false
	}
	if NameSimilarity(a.NormalizedMerchant, b.NormalizedMerchant) < cfg.NameMatchThreshold {
		return false
	}
	// Name-only evidence attaches by merchant identity alone.
	if a.HasAmounts && b.HasAmounts {
		tolerance := decimal.NewFromFloat(cfg.AmountTolerance)
		lo, hi := a.ReferenceAmount, b.ReferenceAmount
		if hi.LessThan(lo) {
			lo, hi = hi, lo
		}
		if !withinTolerance(lo, hi, tolerance) {
			return false
		}
	}
	return true
}

// currencyCompatible allows a match when either side has no currency (e.g. a
// name-only email group); differing explicit currencies never merge.
func currencyCompatible(a, b string) bool {
	return a == "" || b == "" || a == b
}

// mergeCluster combines candidate groups into one, de-duplicating evidence by
// source ref and re-evaluating cadence and confidence over the combined
// timeline. The merged group naturally picks up the best source-reliability
// multiplier across contributing sources.
func mergeCluster(members []scoredGroup, cfg Config) scoredGroup {
	if len(members) == 1 {
		return members[0]
	}

	// The merchant with the most backing events names the cluster.
	best := 0
	for i := 1; i < len(members); i++ {
		gi, gb := members[i].group, members[best].group
		if len(gi.Events) > len(gb.Events) ||
			(len(gi.Events) == len(gb.Events) && gi.NormalizedMerchant < gb.NormalizedMerchant) {
			best = i
		}
	}

	merged := model.CandidateGroup{
		NormalizedMerchant: members[best].group.NormalizedMerchant,
	}

	seen := make(map[model.SourceRef]bool)
	for _, m := range members {
		if merged.Currency == "" {
			merged.Currency = m.group.Currency
		}
		for _, e := range m.group.Events {
			if seen[e.Ref()] {
				continue
			}
			seen[e.Ref()] = true
			merged.Events = append(merged.Events, e)
			if e.Amount != nil {
				merged.HasAmounts = true
			}
		}
	}

	sort.SliceStable(merged.Events, func(i, j int) bool {
		ei, ej := merged.Events[i], merged.Events[j]
		if !ei.OccurredAt.Equal(ej.OccurredAt) {
			return ei.OccurredAt.Before(ej.OccurredAt)
		}
		if ei.SourceType != ej.SourceType {
			return ei.SourceType < ej.SourceType
		}
		return ei.SourceRecordID < ej.SourceRecordID
	})

	if merged.HasAmounts {
		merged.ReferenceAmount = medianAmount(merged.Amounts())
	}

	cycle, confidence := EvaluateGroup(merged, cfg)
	return scoredGroup{group: merged, cycle: cycle, confidence: confidence}
}

// matchExisting finds the persisted detection this cluster belongs to, if
// any. Protected detections win over pending ones; among equals the higher
// name similarity wins, then the most recently updated. A cluster matching
// two different pending detections is flagged ambiguous rather than guessed
// at destructively.
func matchExisting(c scoredGroup, existing []model.Detection, cfg Config) (*model.Detection, bool) {
	if c.group.NormalizedMerchant == UnknownMerchant {
		return nil, false
	}

	tolerance := decimal.NewFromFloat(cfg.AmountTolerance)

	type match struct {
		det *model.Detection
		sim float64
	}
	var protected, pending []match

	for i := range existing {
		d := &existing[i]
		if !currencyCompatible(d.Currency, c.group.Currency) {
			continue
		}

		overlap := sharesSource(c.group, d)
		sim := 1.0
		if !overlap {
			sim = NameSimilarity(c.group.NormalizedMerchant, NormalizeMerchant(d.Name))
			if sim < cfg.NameMatchThreshold {
				continue
			}
			if c.group.HasAmounts && !d.Amount.IsZero() {
				lo, hi := d.Amount, c.group.ReferenceAmount
				if hi.LessThan(lo) {
					lo, hi = hi, lo
				}
				if !withinTolerance(lo, hi, tolerance) {
					continue
				}
			}
		}

		if d.Status.Protected() {
			protected = append(protected, match{det: d, sim: sim})
		} else {
			pending = append(pending, match{det: d, sim: sim})
		}
	}

	pick := func(ms []match) match {
		best := ms[0]
		for _, m := range ms[1:] {
			if m.sim > best.sim ||
				(m.sim == best.sim && m.det.UpdatedAt.After(best.det.UpdatedAt)) {
				best = m
			}
		}
		return best
	}

	if len(protected) > 0 {
		return pick(protected).det, false
	}
	if len(pending) > 0 {
		best := pick(pending)
		ambiguous := len(pending) > 1
		if ambiguous {
			ids := make([]string, 0, len(pending))
			for _, m := range pending {
				ids = append(ids, m.det.ID)
			}
			slog.Warn("candidate matched multiple pending detections",
				"merchant", c.group.NormalizedMerchant,
				"chosen", best.det.ID,
				"matches", ids)
		}
		return best.det, ambiguous
	}
	return nil, false
}

// sharesSource reports whether the detection already carries any of the
// group's evidence; overlapping evidence is definitive identity regardless of
// how names or amounts have drifted.
func sharesSource(g model.CandidateGroup, d *model.Detection) bool {
	for _, e := range g.Events {
		if d.HasSource(e.Ref()) {
			return true
		}
	}
	return false
}

// emitUpsert produces the persistence operation for one resolved cluster. A
// nil return means the cluster is not surfaced this run (a lone sighting with
// no existing detection to corroborate).
func emitUpsert(userID string, c scoredGroup, target *model.Detection, ambiguous bool, cfg Config) *Upsert {
	sightings := len(c.group.Events)
	refs := c.group.SourceRefs()

	if target == nil {
		// A lone sighting is not a pattern; the event stays in the raw store
		// and may corroborate a future scan. Two sightings on the same date
		// from different sources do surface, with cadence left to judge.
		if sightings < 2 {
			return nil
		}
		det := model.Detection{
			UserID:       userID,
			Name:         displayName(c.group.Events),
			Amount:       c.group.ReferenceAmount,
			Currency:     c.group.Currency,
			BillingCycle: c.cycle,
			Confidence:   c.confidence,
			Status:       model.StatusPending,
			Sources:      refs,
		}
		return &Upsert{
			Detection: det,
			Action:    ActionCreate,
			Reason:    "new recurring pattern",
			Ambiguous: ambiguous,
		}
	}

	d := cloneDetection(target)
	added := d.MergeSources(refs)
	changed := added > 0
	var reason string

	switch {
	case target.Status.Protected():
		// Never recreate or downgrade a reviewed detection; evidence can only
		// raise its confidence.
		if c.confidence > d.Confidence {
			d.Confidence = c.confidence
			changed = true
		}
		reason = fmt.Sprintf("new evidence for %s detection", target.Status)
	case sightings < 2:
		if c.confidence > d.Confidence {
			d.Confidence = c.confidence
			changed = true
		}
		reason = "evidence attached; too few sightings to reclassify"
	default:
		if c.group.HasAmounts && !d.Amount.Equal(c.group.ReferenceAmount) {
			d.Amount = c.group.ReferenceAmount
			changed = true
		}
		if d.BillingCycle != c.cycle {
			d.BillingCycle = c.cycle
			changed = true
		}
		if d.Confidence != c.confidence {
			d.Confidence = c.confidence
			changed = true
		}
		reason = "updated from latest scan"
	}

	if !changed {
		return &Upsert{Detection: d, Action: ActionSkip, Reason: "no new evidence"}
	}
	return &Upsert{Detection: d, Action: ActionUpdate, Reason: reason, Ambiguous: ambiguous}
}

// displayName picks the most frequent raw merchant text among the events,
// breaking ties toward the most recent occurrence.
func displayName(events []model.RawEvent) string {
	counts := make(map[string]int)
	lastSeen := make(map[string]int) // index of latest occurrence

	for i, e := range events {
		text := e.RawMerchantText
		if text == "" {
			continue
		}
		counts[text]++
		lastSeen[text] = i
	}

	best := ""
	for text := range counts {
		if best == "" {
			best = text
			continue
		}
		if counts[text] > counts[best] ||
			(counts[text] == counts[best] && lastSeen[text] > lastSeen[best]) {
			best = text
		}
	}
	if best == "" {
		return UnknownMerchant
	}
	return best
}

// cloneDetection copies a detection including its sources slice so upsert
// construction never mutates the caller's persisted state.
func cloneDetection(d *model.Detection) model.Detection {
	out := *d
	out.Sources = make([]model.SourceRef, len(d.Sources))
	copy(out.Sources, d.Sources)
	return out
}
