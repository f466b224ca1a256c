package perception

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/boshu2/heartbeat/internal/vaultstore"
)

func newTestVault(t *testing.T) *vaultstore.Vault {
	t.Helper()
	v := vaultstore.Open(t.TempDir())
	if v == nil {
		t.Fatalf("open vault: nil vault")
	}
	if err := v.EnsureDirs(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	return v
}

func TestTokenize_DropsShortWordsAndStopwords(t *testing.T) {
	toks := Tokenize("The Vector Indexing is a go project, and it rocks")
	want := map[string]bool{"vector": true, "indexing": true, "project": true, "rocks": true}
	if len(toks) != len(want) {
		t.Fatalf("got %v, want tokens matching %v", toks, want)
	}
	for _, tok := range toks {
		if !want[tok] {
			t.Errorf("unexpected token %q", tok)
		}
	}
}

func TestIdentityRelevance_WeightedOverlap(t *testing.T) {
	ctx := Context{
		CommitmentLabels: []string{"vector indexing"},
		IdentityThemes:   []string{"engineering rigor"},
		VaultTopics:      []string{"systems"},
	}
	capture := FeedCapture{Title: "New paper on vector indexing", Content: "discusses engineering tradeoffs"}
	score := IdentityRelevance(capture, ctx)
	if score <= 0 {
		t.Fatalf("expected positive score, got %v", score)
	}
	if score > 1 {
		t.Fatalf("score must be capped at 1, got %v", score)
	}
}

func TestIdentityRelevance_NoOverlapIsZero(t *testing.T) {
	ctx := Context{CommitmentLabels: []string{"vector indexing"}}
	capture := FeedCapture{Title: "weather report", Content: "cloudy with a chance of rain"}
	score := IdentityRelevance(capture, ctx)
	if score != 0 {
		t.Fatalf("expected zero score for disjoint tokens, got %v", score)
	}
}

func TestAdmit_SpecScenario(t *testing.T) {
	ctx := Context{
		CommitmentLabels: []string{"vector indexing"},
		IdentityThemes:   []string{"engineering rigor"},
		VaultTopics:      []string{"systems"},
		RecentThoughts:   []string{},
	}
	policy := Policy{MaxInboxWritesPerCycle: 10, MaxSignalsPerChannel: 3, RelevanceFloor: 0.3}

	var captures []FeedCapture
	for i := 0; i < 12; i++ {
		c := FeedCapture{ID: strconv.Itoa(i), SourceID: "feed-a"}
		if i < 5 {
			c.Title = "vector indexing engineering notes"
		} else {
			c.Title = "unrelated gardening tips"
		}
		captures = append(captures, c)
	}

	res := Admit(captures, ctx, policy)
	if len(res.Admitted) > 5 {
		t.Fatalf("expected admitted <= 5, got %d", len(res.Admitted))
	}
	if len(res.Filtered) < 7 {
		t.Fatalf("expected at least 7 filtered, got %d", len(res.Filtered))
	}
	if len(res.Surfaced) > policy.MaxSignalsPerChannel {
		t.Fatalf("expected surfaced capped per channel at %d, got %d", policy.MaxSignalsPerChannel, len(res.Surfaced))
	}
}

func TestAdmit_GlobalCap(t *testing.T) {
	ctx := Context{CommitmentLabels: []string{"writing"}}
	policy := Policy{MaxInboxWritesPerCycle: 2, MaxSignalsPerChannel: 10, RelevanceFloor: 0.1}

	var captures []FeedCapture
	for i := 0; i < 5; i++ {
		captures = append(captures, FeedCapture{ID: strconv.Itoa(i), SourceID: "s", Title: "writing progress update"})
	}
	res := Admit(captures, ctx, policy)
	if len(res.Admitted) != 2 {
		t.Fatalf("expected admitted capped at 2, got %d", len(res.Admitted))
	}
}

func TestAdmit_TuningHintOnHighFilterRate(t *testing.T) {
	ctx := Context{CommitmentLabels: []string{"writing"}}
	policy := DefaultPolicy
	var captures []FeedCapture
	for i := 0; i < 10; i++ {
		captures = append(captures, FeedCapture{ID: strconv.Itoa(i), SourceID: "s", Title: "totally unrelated content about weather"})
	}
	res := Admit(captures, ctx, policy)
	if len(res.TuningHints) == 0 {
		t.Fatalf("expected a tuning hint when nearly everything is filtered")
	}
}

func TestNoiseTracker_AlertAfterConsecutiveDays(t *testing.T) {
	v := newTestVault(t)
	nt := NewNoiseTracker(v)

	var alert *NoiseAlert
	var err error
	dates := []string{"2026-01-01", "2026-01-02", "2026-01-03", "2026-01-04", "2026-01-05", "2026-01-06", "2026-01-07"}
	for _, d := range dates {
		alert, err = nt.Record("feed-a", d, 0, 10)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if alert == nil {
		t.Fatalf("expected alert after 7 consecutive fully-filtered days")
	}
	if alert.ConsecutiveDays != 7 {
		t.Fatalf("expected consecutiveDays=7, got %d", alert.ConsecutiveDays)
	}
}

func TestNoiseTracker_NoAlertWhenAdmittedRecently(t *testing.T) {
	v := newTestVault(t)
	nt := NewNoiseTracker(v)

	dates := []string{"2026-01-01", "2026-01-02", "2026-01-03", "2026-01-04", "2026-01-05", "2026-01-06"}
	for _, d := range dates {
		if _, err := nt.Record("feed-a", d, 0, 10); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	alert, err := nt.Record("feed-a", "2026-01-07", 5, 10)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if alert != nil {
		t.Fatalf("expected no alert once the streak breaks, got %+v", alert)
	}
}

func TestNoiseTracker_RetentionCapsAt30Days(t *testing.T) {
	v := newTestVault(t)
	nt := NewNoiseTracker(v)

	for day := 1; day <= 35; day++ {
		date := dateString(day)
		if _, err := nt.Record("feed-a", date, 1, 1); err != nil {
			t.Fatalf("record day %d: %v", day, err)
		}
	}
	f, err := nt.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(f.Sources["feed-a"].DailyRates) != 30 {
		t.Fatalf("expected 30 retained days, got %d", len(f.Sources["feed-a"].DailyRates))
	}
}

func TestCursorStore_MarkAndHasSeen(t *testing.T) {
	v := newTestVault(t)
	cs := NewCursorStore(v)

	seen, err := cs.HasSeen("feed-a", "item-1")
	if err != nil {
		t.Fatalf("has seen: %v", err)
	}
	if seen {
		t.Fatalf("expected not seen before marking")
	}

	if err := cs.MarkSeen("feed-a", []string{"item-1", "item-2"}); err != nil {
		t.Fatalf("mark seen: %v", err)
	}

	seen, err = cs.HasSeen("feed-a", "item-1")
	if err != nil {
		t.Fatalf("has seen: %v", err)
	}
	if !seen {
		t.Fatalf("expected item-1 to be seen after marking")
	}
}

func TestCursorStore_TrimsToMaxSeenIDs(t *testing.T) {
	v := newTestVault(t)
	cs := NewCursorStore(v)

	ids := make([]string, 0, maxSeenIDs+10)
	for i := 0; i < maxSeenIDs+10; i++ {
		ids = append(ids, strconv.Itoa(i))
	}
	if err := cs.MarkSeen("feed-a", ids); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	f, err := cs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(f.Sources["feed-a"].SeenIDs) != maxSeenIDs {
		t.Fatalf("expected trimmed to %d, got %d", maxSeenIDs, len(f.Sources["feed-a"].SeenIDs))
	}
}

func dateString(day int) string {
	// Synthetic, strictly increasing date strings; exact calendar validity
	// doesn't matter, only lexicographic ordering for retention trimming.
	month := (day-1)/28 + 1
	d := (day-1)%28 + 1
	return fmt.Sprintf("2026-%02d-%02d", month, d)
}
