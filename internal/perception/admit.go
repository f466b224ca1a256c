package perception

import "sort"

// Admit runs the six-step admission algorithm over captures:
//  1. identity gate — discard score == 0
//  2. relevance floor — discard score < policy.RelevanceFloor
//  3. sort remaining by score desc
//  4. global cap — first MaxInboxWritesPerCycle become admitted
//  5. per-channel surfacing — first MaxSignalsPerChannel per sourceId, in
//     admitted order, become surfaced
//  6. self-tuning advisory — a tuning hint when the filter rate is extreme
func Admit(captures []FeedCapture, ctx Context, policy Policy) Result {
	scored := make([]Scored, 0, len(captures))
	for _, c := range captures {
		scored = append(scored, Scored{Capture: c, Score: IdentityRelevance(c, ctx)})
	}

	var passed, filtered []Scored
	for _, s := range scored {
		if s.Score == 0 {
			filtered = append(filtered, s)
			continue
		}
		if s.Score < policy.RelevanceFloor {
			filtered = append(filtered, s)
			continue
		}
		passed = append(passed, s)
	}

	sort.SliceStable(passed, func(i, j int) bool {
		return passed[i].Score > passed[j].Score
	})

	admitted := passed
	if len(admitted) > policy.MaxInboxWritesPerCycle {
		filtered = append(filtered, admitted[policy.MaxInboxWritesPerCycle:]...)
		admitted = admitted[:policy.MaxInboxWritesPerCycle]
	}

	perChannel := map[string]int{}
	var surfaced []Scored
	for _, s := range admitted {
		if perChannel[s.Capture.SourceID] >= policy.MaxSignalsPerChannel {
			continue
		}
		perChannel[s.Capture.SourceID]++
		surfaced = append(surfaced, s)
	}

	res := Result{Admitted: admitted, Surfaced: surfaced, Filtered: filtered}
	total := len(scored)
	if total > 0 {
		filterRate := float64(len(filtered)) / float64(total)
		if filterRate > 0.8 {
			res.TuningHints = append(res.TuningHints, "relevance floor may be too strict: over 80% of captures were filtered this cycle")
		} else if filterRate < 0.2 {
			res.TuningHints = append(res.TuningHints, "relevance floor may be too loose: under 20% of captures were filtered this cycle")
		}
	}
	return res
}
