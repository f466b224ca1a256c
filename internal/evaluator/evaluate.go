package evaluator

import (
	"strings"
	"time"

	"github.com/boshu2/heartbeat/internal/commitment"
	"github.com/boshu2/heartbeat/internal/perception"
)

var outcomeWords = []string{"done", "shipped", "complete", "finished", "launched", "resolved", "satisfied"}

// candidatePromotionThreshold is the combined mentions+signals count that
// promotes a candidate commitment to active.
const candidatePromotionThreshold = 3

// activityMentions counts how many activity strings reference label: either
// the full label appears as a case-insensitive substring, or at least half
// of the label's tokens appear in the string's tokens.
func activityMentions(label string, activity []string) int {
	labelTokens := perception.Tokenize(label)
	lowerLabel := strings.ToLower(label)
	count := 0
	for _, s := range activity {
		if lowerLabel != "" && strings.Contains(strings.ToLower(s), lowerLabel) {
			count++
			continue
		}
		if len(labelTokens) == 0 {
			continue
		}
		strTokens := tokenSet(s)
		hits := 0
		for _, t := range labelTokens {
			if strTokens[t] {
				hits++
			}
		}
		if float64(hits) >= 0.5*float64(len(labelTokens)) {
			count++
		}
	}
	return count
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range perception.Tokenize(s) {
		set[t] = true
	}
	return set
}

func recentSignals(signals []commitment.AdvancementSignal, windowStart time.Time) []commitment.AdvancementSignal {
	var out []commitment.AdvancementSignal
	for _, s := range signals {
		if !s.At.Before(windowStart) {
			out = append(out, s)
		}
	}
	return out
}

func highRelevanceSignals(signals []commitment.AdvancementSignal) []commitment.AdvancementSignal {
	var out []commitment.AdvancementSignal
	for _, s := range signals {
		if s.RelevanceScore > 0.5 {
			out = append(out, s)
		}
	}
	return out
}

// Evaluate scores c against activity, as of now, and proposes a lifecycle
// transition when the evidence warrants one.
func Evaluate(c commitment.Commitment, activity RecentActivity, now time.Time) Evaluation {
	windowDays := commitment.HorizonDays[c.Horizon]
	if windowDays <= 0 {
		windowDays = 1
	}
	windowStart := now.AddDate(0, 0, -windowDays)

	recent := recentSignals(c.AdvancementSignals, windowStart)
	highRel := highRelevanceSignals(recent)

	activityStrings := activity.Strings()
	mentions := activityMentions(c.Label, activityStrings)

	eval := Evaluation{CommitmentID: c.ID}

	switch {
	case len(highRel) > 0:
		eval.Status = StatusAdvancing
		score := float64(len(highRel))/float64(maxInt(1, windowDays)) + 0.1*float64(mentions)
		eval.AdvancementScore = capScore(score)
	case len(recent) > 0:
		eval.Status = StatusStalled
		eval.AdvancementScore = meanRelevance(recent) * 0.5
	case mentions > 0:
		eval.Status = StatusStalled
		eval.AdvancementScore = minFloat(0.4, 0.1*float64(mentions))
	default:
		eval.Status = StatusDrifting
		eval.AdvancementScore = 0
	}

	eval.BriefSummary = summarize(c, eval, mentions)
	eval.ProposedTransition = proposeTransition(c, activityStrings, mentions, eval, windowStart, now)
	return eval
}

func proposeTransition(c commitment.Commitment, activityStrings []string, mentions int, eval Evaluation, windowStart, now time.Time) *commitment.State {
	switch c.State {
	case commitment.StateCandidate:
		if mentions+len(c.AdvancementSignals) >= candidatePromotionThreshold {
			s := commitment.StateActive
			return &s
		}
	case commitment.StateActive:
		twiceWindowStart := now.AddDate(0, 0, -2*commitment.HorizonDays[c.Horizon])
		zeroSignalsInDoubleWindow := len(recentSignals(c.AdvancementSignals, twiceWindowStart)) == 0
		zeroActivity := mentions == 0
		if zeroSignalsInDoubleWindow && zeroActivity {
			s := commitment.StateAbandoned
			return &s
		}
		if eval.AdvancementScore > 0.7 && mentionsOutcome(c.Label, activityStrings) {
			s := commitment.StateSatisfied
			return &s
		}
	}
	return nil
}

func mentionsOutcome(label string, activity []string) bool {
	lowerLabel := strings.ToLower(label)
	for _, s := range activity {
		lower := strings.ToLower(s)
		if !strings.Contains(lower, lowerLabel) {
			continue
		}
		for _, w := range outcomeWords {
			if strings.Contains(lower, w) {
				return true
			}
		}
	}
	return false
}

func summarize(c commitment.Commitment, eval Evaluation, mentions int) string {
	switch eval.Status {
	case StatusAdvancing:
		return c.Label + " is advancing: recent high-relevance signals observed"
	case StatusStalled:
		return c.Label + " is stalled: limited recent evidence of progress"
	default:
		return c.Label + " is drifting: no recent signals or activity"
	}
}

func meanRelevance(signals []commitment.AdvancementSignal) float64 {
	if len(signals) == 0 {
		return 0
	}
	var sum float64
	for _, s := range signals {
		sum += s.RelevanceScore
	}
	return sum / float64(len(signals))
}

func capScore(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
