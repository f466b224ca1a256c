// Package drift implements DriftDetector: quantifies misalignment between
// active commitments and observed activity, flags priority inversions, and
// warns on commitment sprawl.
package drift

import (
	"fmt"
	"strings"

	"github.com/boshu2/heartbeat/internal/commitment"
	"github.com/boshu2/heartbeat/internal/perception"
)

// MaxActiveCommitments is the sprawl warning threshold.
const MaxActiveCommitments = 3

// DriftAlertThreshold is the per-commitment drift score above which the
// engine appends a DriftSnapshot.
const DriftAlertThreshold = 0.7

// CommitmentDrift is one commitment's drift measurement.
type CommitmentDrift struct {
	CommitmentID string
	Label        string
	DriftScore   float64
	ActivityOverlap float64
	Summary      string
}

// PriorityInversion flags a lower-priority-number commitment being
// outpaced in activity by a higher-priority-number (lower priority) one.
type PriorityInversion struct {
	Higher  string // commitment ID with the higher priority (lower number)
	Lower   string // commitment ID with the lower priority (higher number)
	Summary string
}

// Report is the full drift evaluation for one cycle.
type Report struct {
	CommitmentDrifts  []CommitmentDrift
	PriorityInversions []PriorityInversion
	SprawlWarning     string
	OverallDriftScore float64
}

// ActivityOverlap returns the fraction of activity strings that reference
// label: either a label token appears in the string's tokens, or the full
// lowercased label appears as a substring.
func ActivityOverlap(label string, activity []string) float64 {
	if len(activity) == 0 {
		return 0
	}
	labelTokens := perception.Tokenize(label)
	lowerLabel := strings.ToLower(label)
	hits := 0
	for _, s := range activity {
		lower := strings.ToLower(s)
		if lowerLabel != "" && strings.Contains(lower, lowerLabel) {
			hits++
			continue
		}
		strTokens := make(map[string]bool)
		for _, t := range perception.Tokenize(s) {
			strTokens[t] = true
		}
		matched := false
		for _, t := range labelTokens {
			if strTokens[t] {
				matched = true
				break
			}
		}
		if matched {
			hits++
		}
	}
	return float64(hits) / float64(len(activity))
}

func activityMentionCount(label string, activity []string) int {
	count := 0
	lowerLabel := strings.ToLower(label)
	labelTokens := perception.Tokenize(label)
	for _, s := range activity {
		lower := strings.ToLower(s)
		if lowerLabel != "" && strings.Contains(lower, lowerLabel) {
			count++
			continue
		}
		strTokens := make(map[string]bool)
		for _, t := range perception.Tokenize(s) {
			strTokens[t] = true
		}
		for _, t := range labelTokens {
			if strTokens[t] {
				count++
				break
			}
		}
	}
	return count
}

// Evaluate computes a Report for the given active commitments against a
// shared pool of activity strings.
func Evaluate(active []commitment.Commitment, activity []string) Report {
	var report Report
	var scoreSum float64

	for _, c := range active {
		overlap := ActivityOverlap(c.Label, activity)
		score := 1 - overlap
		scoreSum += score
		report.CommitmentDrifts = append(report.CommitmentDrifts, CommitmentDrift{
			CommitmentID:    c.ID,
			Label:           c.Label,
			DriftScore:      score,
			ActivityOverlap: overlap,
			Summary:         fmt.Sprintf("%q has %.0f%% activity overlap this cycle", c.Label, overlap*100),
		})
	}
	if len(active) > 0 {
		report.OverallDriftScore = scoreSum / float64(len(active))
	}

	for i := range active {
		for j := range active {
			if i == j || active[i].Priority == active[j].Priority {
				continue
			}
			if active[i].Priority >= active[j].Priority {
				continue // only consider i as the higher-priority (lower number) side
			}
			higherMentions := activityMentionCount(active[i].Label, activity)
			lowerMentions := activityMentionCount(active[j].Label, activity)
			if lowerMentions > higherMentions && lowerMentions > 0 {
				report.PriorityInversions = append(report.PriorityInversions, PriorityInversion{
					Higher: active[i].ID,
					Lower:  active[j].ID,
					Summary: fmt.Sprintf("%q (priority %d) has less observed activity than %q (priority %d)",
						active[i].Label, active[i].Priority, active[j].Label, active[j].Priority),
				})
			}
		}
	}

	if len(active) > MaxActiveCommitments {
		report.SprawlWarning = fmt.Sprintf("%d active commitments exceed the recommended maximum of %d", len(active), MaxActiveCommitments)
	}

	return report
}
