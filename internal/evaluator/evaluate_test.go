package evaluator

import (
	"testing"
	"time"

	"github.com/boshu2/heartbeat/internal/commitment"
)

func TestEvaluate_AdvancingOnHighRelevanceSignal(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	c := commitment.Commitment{
		ID: "ship-it", Label: "ship it", State: commitment.StateActive, Horizon: commitment.HorizonWeek,
		AdvancementSignals: []commitment.AdvancementSignal{
			{At: now.AddDate(0, 0, -1), RelevanceScore: 0.9},
		},
	}
	eval := Evaluate(c, RecentActivity{}, now)
	if eval.Status != StatusAdvancing {
		t.Fatalf("expected advancing, got %s", eval.Status)
	}
	if eval.AdvancementScore <= 0 {
		t.Fatalf("expected positive score, got %v", eval.AdvancementScore)
	}
}

func TestEvaluate_StalledOnLowRelevanceSignal(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	c := commitment.Commitment{
		ID: "ship-it", Label: "ship it", State: commitment.StateActive, Horizon: commitment.HorizonWeek,
		AdvancementSignals: []commitment.AdvancementSignal{
			{At: now.AddDate(0, 0, -1), RelevanceScore: 0.3},
		},
	}
	eval := Evaluate(c, RecentActivity{}, now)
	if eval.Status != StatusStalled {
		t.Fatalf("expected stalled, got %s", eval.Status)
	}
}

func TestEvaluate_DriftingWithNoEvidence(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	c := commitment.Commitment{ID: "read-papers", Label: "read papers", State: commitment.StateActive, Horizon: commitment.HorizonWeek}
	eval := Evaluate(c, RecentActivity{}, now)
	if eval.Status != StatusDrifting {
		t.Fatalf("expected drifting, got %s", eval.Status)
	}
	if eval.AdvancementScore != 0 {
		t.Fatalf("expected zero score, got %v", eval.AdvancementScore)
	}
}

func TestEvaluate_StalledOnActivityMentionsOnly(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	c := commitment.Commitment{ID: "read-papers", Label: "read papers", State: commitment.StateActive, Horizon: commitment.HorizonWeek}
	activity := RecentActivity{SessionSummaries: []string{"spent the afternoon reading papers on vector search"}}
	eval := Evaluate(c, activity, now)
	if eval.Status != StatusStalled {
		t.Fatalf("expected stalled from activity mentions, got %s", eval.Status)
	}
}

func TestEvaluate_CandidatePromotedAtThreshold(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	c := commitment.Commitment{
		ID: "write-blog", Label: "write blog", State: commitment.StateCandidate, Horizon: commitment.HorizonWeek,
		AdvancementSignals: []commitment.AdvancementSignal{
			{At: now.AddDate(0, 0, -1), RelevanceScore: 0.6},
			{At: now.AddDate(0, 0, -2), RelevanceScore: 0.6},
		},
	}
	activity := RecentActivity{SessionSummaries: []string{"worked on the write blog draft"}}
	eval := Evaluate(c, activity, now)
	if eval.ProposedTransition == nil || *eval.ProposedTransition != commitment.StateActive {
		t.Fatalf("expected proposed transition to active, got %v", eval.ProposedTransition)
	}
}

func TestEvaluate_ActiveAbandonedAfterDoubleWindowSilence(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	c := commitment.Commitment{ID: "old-thing", Label: "old thing", State: commitment.StateActive, Horizon: commitment.HorizonSession}
	eval := Evaluate(c, RecentActivity{}, now)
	if eval.ProposedTransition == nil || *eval.ProposedTransition != commitment.StateAbandoned {
		t.Fatalf("expected proposed transition to abandoned, got %v", eval.ProposedTransition)
	}
}

func TestEvaluate_ActiveSatisfiedOnOutcomeMention(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	c := commitment.Commitment{
		ID: "ship-site", Label: "ship site", State: commitment.StateActive, Horizon: commitment.HorizonWeek,
		AdvancementSignals: []commitment.AdvancementSignal{
			{At: now.AddDate(0, 0, -1), RelevanceScore: 0.95},
			{At: now.AddDate(0, 0, -2), RelevanceScore: 0.95},
			{At: now.AddDate(0, 0, -3), RelevanceScore: 0.95},
			{At: now.AddDate(0, 0, -4), RelevanceScore: 0.95},
			{At: now.AddDate(0, 0, -5), RelevanceScore: 0.95},
			{At: now.AddDate(0, 0, -6), RelevanceScore: 0.95},
			{At: now.AddDate(0, 0, -7), RelevanceScore: 0.95},
		},
	}
	activity := RecentActivity{SessionSummaries: []string{"ship site is finally done and shipped today"}}
	eval := Evaluate(c, activity, now)
	if eval.AdvancementScore <= 0.7 {
		t.Fatalf("expected advancement score above 0.7, got %v", eval.AdvancementScore)
	}
	if eval.ProposedTransition == nil || *eval.ProposedTransition != commitment.StateSatisfied {
		t.Fatalf("expected proposed transition to satisfied, got %v", eval.ProposedTransition)
	}
}
