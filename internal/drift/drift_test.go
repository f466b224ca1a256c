package drift

import (
	"testing"

	"github.com/boshu2/heartbeat/internal/commitment"
)

func TestEvaluate_SpecScenario(t *testing.T) {
	active := []commitment.Commitment{
		{ID: "a", Label: "ship site", Priority: 1},
		{ID: "b", Label: "read papers", Priority: 2},
	}
	activity := []string{"spent the day reading papers", "more papers reviewed", "papers papers everywhere"}

	report := Evaluate(active, activity)

	if report.OverallDriftScore <= 0.5 {
		t.Fatalf("expected overallDriftScore > 0.5, got %v", report.OverallDriftScore)
	}

	found := false
	for _, inv := range report.PriorityInversions {
		if inv.Higher == "a" && inv.Lower == "b" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected priority inversion {higher:a, lower:b}, got %+v", report.PriorityInversions)
	}

	var aDrift *CommitmentDrift
	for i := range report.CommitmentDrifts {
		if report.CommitmentDrifts[i].CommitmentID == "a" {
			aDrift = &report.CommitmentDrifts[i]
		}
	}
	if aDrift == nil || aDrift.DriftScore <= DriftAlertThreshold {
		t.Fatalf("expected commitment a's driftScore > %v, got %+v", DriftAlertThreshold, aDrift)
	}
}

func TestEvaluate_SprawlWarningOverThreshold(t *testing.T) {
	active := []commitment.Commitment{
		{ID: "a", Label: "one", Priority: 1},
		{ID: "b", Label: "two", Priority: 2},
		{ID: "c", Label: "three", Priority: 3},
		{ID: "d", Label: "four", Priority: 4},
	}
	report := Evaluate(active, nil)
	if report.SprawlWarning == "" {
		t.Fatalf("expected sprawl warning with %d active commitments", len(active))
	}
}

func TestEvaluate_NoCommitmentsZeroScore(t *testing.T) {
	report := Evaluate(nil, []string{"anything"})
	if report.OverallDriftScore != 0 {
		t.Fatalf("expected zero overall drift score with no commitments, got %v", report.OverallDriftScore)
	}
}

func TestActivityOverlap_FullOverlap(t *testing.T) {
	overlap := ActivityOverlap("ship site", []string{"shipped the ship site release today"})
	if overlap != 1 {
		t.Fatalf("expected full overlap, got %v", overlap)
	}
}

func TestActivityOverlap_NoActivityIsZero(t *testing.T) {
	overlap := ActivityOverlap("ship site", nil)
	if overlap != 0 {
		t.Fatalf("expected zero overlap with no activity, got %v", overlap)
	}
}
