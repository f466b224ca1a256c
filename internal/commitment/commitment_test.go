package commitment

import (
	"context"
	"testing"

	"github.com/boshu2/heartbeat/internal/vaultstore"
)

func newTestStore(t *testing.T) *CommitmentStore {
	t.Helper()
	v := vaultstore.Open(t.TempDir())
	if v == nil {
		t.Fatalf("open vault: nil vault")
	}
	if err := v.EnsureDirs(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	return New(v)
}

func TestLoad_MissingFileReturnsEmptyStore(t *testing.T) {
	s := newTestStore(t)
	st, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(st.Commitments) != 0 {
		t.Fatalf("expected empty store, got %d commitments", len(st.Commitments))
	}
	if st.Version != SchemaVersion {
		t.Fatalf("expected version %d, got %d", SchemaVersion, st.Version)
	}
}

func TestCreate_AssignsSlugID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.Create(ctx, "Ship the heartbeat engine", 1, HorizonWeek, "manual")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID != "ship-the-heartbeat-engine" {
		t.Fatalf("unexpected id: %q", c.ID)
	}
	if c.State != StateCandidate {
		t.Fatalf("expected candidate state, got %s", c.State)
	}
	if len(c.StateHistory) != 1 || c.StateHistory[0].To != StateCandidate {
		t.Fatalf("expected one creation transition, got %+v", c.StateHistory)
	}
}

func TestCreate_CollisionAppendsSuffix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, "Write tests", 1, HorizonWeek, "manual")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := s.Create(ctx, "Write tests", 1, HorizonWeek, "manual")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids, both got %q", first.ID)
	}
	if second.ID != "write-tests-2" {
		t.Fatalf("expected collision suffix -2, got %q", second.ID)
	}
}

func TestRecordStateTransition_LegalMove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.Create(ctx, "Ship it", 1, HorizonWeek, "manual")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.RecordStateTransition(ctx, c.ID, StateActive, "picked up", ProposedByEngine, false); err != nil {
		t.Fatalf("transition: %v", err)
	}
	st, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	idx := indexByID(st.Commitments, c.ID)
	if idx < 0 {
		t.Fatalf("commitment not found after transition")
	}
	if st.Commitments[idx].State != StateActive {
		t.Fatalf("expected active, got %s", st.Commitments[idx].State)
	}
	if len(st.Commitments[idx].StateHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(st.Commitments[idx].StateHistory))
	}
}

func TestRecordStateTransition_IllegalMoveRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.Create(ctx, "Ship it", 1, HorizonWeek, "manual")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// candidate -> satisfied is not an allowed direct transition.
	err = s.RecordStateTransition(ctx, c.ID, StateSatisfied, "skip ahead", ProposedByEngine, false)
	if err == nil {
		t.Fatalf("expected error for illegal transition")
	}
	if _, ok := err.(*ErrInvalidTransition); !ok {
		t.Fatalf("expected ErrInvalidTransition, got %T: %v", err, err)
	}
}

func TestRecordStateTransition_ForceBypassesRule(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.Create(ctx, "Ship it", 1, HorizonWeek, "manual")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.RecordStateTransition(ctx, c.ID, StateSatisfied, "human override", ProposedByHuman, true); err != nil {
		t.Fatalf("forced transition should succeed: %v", err)
	}
}

func TestRecordAdvancementSignal_UpdatesLastAdvancedWhenRelevant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.Create(ctx, "Ship it", 1, HorizonWeek, "manual")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	low := AdvancementSignal{Action: "mentioned in passing", RelevanceScore: 0.2, Method: MethodInferred}
	if err := s.RecordAdvancementSignal(ctx, c.ID, low); err != nil {
		t.Fatalf("record low signal: %v", err)
	}
	st, _ := s.Load()
	idx := indexByID(st.Commitments, c.ID)
	if !st.Commitments[idx].LastAdvancedAt.IsZero() {
		t.Fatalf("low-relevance signal should not update lastAdvancedAt")
	}

	high := AdvancementSignal{Action: "shipped the feature", RelevanceScore: 0.9, Method: MethodDirect}
	if err := s.RecordAdvancementSignal(ctx, c.ID, high); err != nil {
		t.Fatalf("record high signal: %v", err)
	}
	st, _ = s.Load()
	idx = indexByID(st.Commitments, c.ID)
	if st.Commitments[idx].LastAdvancedAt.IsZero() {
		t.Fatalf("high-relevance signal should update lastAdvancedAt")
	}
	if len(st.Commitments[idx].AdvancementSignals) != 2 {
		t.Fatalf("expected 2 recorded signals, got %d", len(st.Commitments[idx].AdvancementSignals))
	}
}

func TestActive_FiltersByState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, "active one", 1, HorizonWeek, "manual")
	_, _ = s.Create(ctx, "still candidate", 1, HorizonWeek, "manual")
	if err := s.RecordStateTransition(ctx, a.ID, StateActive, "start", ProposedByEngine, false); err != nil {
		t.Fatalf("transition: %v", err)
	}

	st, _ := s.Load()
	active := Active(st)
	if len(active) != 1 || active[0].ID != a.ID {
		t.Fatalf("expected exactly %q active, got %+v", a.ID, active)
	}
}

func TestCanTransition_Table(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateCandidate, StateActive, true},
		{StateCandidate, StateAbandoned, false},
		{StateCandidate, StateSatisfied, false},
		{StateCandidate, StatePaused, false},
		{StateActive, StatePaused, true},
		{StateActive, StateSatisfied, true},
		{StateActive, StateAbandoned, true},
		{StatePaused, StateActive, true},
		{StatePaused, StateAbandoned, true},
		{StatePaused, StateSatisfied, false},
		{StateSatisfied, StateActive, false},
		{StateAbandoned, StateActive, false},
		{StateActive, StateActive, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
