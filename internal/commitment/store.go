package commitment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boshu2/heartbeat/internal/vaultstore"
)

// LockKind is the advisory lock name commitment store mutators must hold.
const LockKind = "commitments"

// CommitmentStore is the durable commitment store, backed by ops/commitments.json.
type CommitmentStore struct {
	Vault *vaultstore.Vault
}

// New returns a CommitmentStore over v.
func New(v *vaultstore.Vault) *CommitmentStore {
	return &CommitmentStore{Vault: v}
}

// rawCommitment mirrors Commitment but keeps enum-like fields as strings so
// Load can coerce unrecognized values instead of failing.
type rawCommitment struct {
	ID                   string              `json:"id"`
	Label                string              `json:"label"`
	State                string              `json:"state"`
	Priority             int                 `json:"priority"`
	Horizon              string              `json:"horizon"`
	DesireClass          string              `json:"desireClass,omitempty"`
	FrictionClass        string              `json:"frictionClass,omitempty"`
	Source               string              `json:"source,omitempty"`
	LastAdvancedAt       time.Time           `json:"lastAdvancedAt,omitempty"`
	Evidence             []string            `json:"evidence,omitempty"`
	CreatedAt            *time.Time          `json:"createdAt,omitempty"`
	StateHistory         []StateTransition   `json:"stateHistory"`
	AdvancementSignals   []AdvancementSignal `json:"advancementSignals"`
	OutcomePattern       string              `json:"outcomePattern,omitempty"`
	DriftSnapshots       []DriftSnapshot     `json:"driftSnapshots,omitempty"`
	DesireClassRationale string              `json:"desireClassRationale,omitempty"`
}

func (r rawCommitment) normalize() Commitment {
	return Commitment{
		ID:                   r.ID,
		Label:                r.Label,
		State:                normalizeState(r.State),
		Priority:             r.Priority,
		Horizon:              normalizeHorizon(r.Horizon),
		DesireClass:          normalizeDesireClass(r.DesireClass),
		FrictionClass:        normalizeFrictionClass(r.FrictionClass),
		Source:               r.Source,
		LastAdvancedAt:       r.LastAdvancedAt,
		Evidence:             r.Evidence,
		CreatedAt:            r.CreatedAt,
		StateHistory:         r.StateHistory,
		AdvancementSignals:   r.AdvancementSignals,
		OutcomePattern:       r.OutcomePattern,
		DriftSnapshots:       r.DriftSnapshots,
		DesireClassRationale: r.DesireClassRationale,
	}
}

var stateAliases = map[string]State{
	"candidate": StateCandidate,
	"active":    StateActive,
	"paused":    StatePaused,
	"satisfied": StateSatisfied,
	"abandoned": StateAbandoned,
	"done":      StateSatisfied,
	"dropped":   StateAbandoned,
}

func normalizeState(raw string) State {
	if s, ok := stateAliases[raw]; ok {
		return s
	}
	return StateCandidate
}

var horizonAliases = map[string]Horizon{
	"session": HorizonSession,
	"week":    HorizonWeek,
	"quarter": HorizonQuarter,
	"long":    HorizonLong,
}

func normalizeHorizon(raw string) Horizon {
	if h, ok := horizonAliases[raw]; ok {
		return h
	}
	return HorizonWeek
}

func normalizeDesireClass(raw string) DesireClass {
	switch raw {
	case string(DesireThick):
		return DesireThick
	case string(DesireThin):
		return DesireThin
	default:
		return DesireUnknown
	}
}

func normalizeFrictionClass(raw string) FrictionClass {
	switch raw {
	case string(FrictionConstitutive):
		return FrictionConstitutive
	case string(FrictionIncidental):
		return FrictionIncidental
	default:
		return FrictionUnknown
	}
}

type rawStore struct {
	Version         int             `json:"version"`
	Commitments     []rawCommitment `json:"commitments"`
	LastEvaluatedAt time.Time       `json:"lastEvaluatedAt"`
}

// Load reads the commitment store, tolerating a missing or malformed file
// (fresh empty store) and coercing unrecognized enum values, mirroring
// queue.Manager.Read's leniency.
func (s *CommitmentStore) Load() (Store, error) {
	text, ok, err := s.Vault.Read(vaultstore.FileCommitments)
	if err != nil {
		return Store{}, err
	}
	if !ok {
		return Store{Version: SchemaVersion}, nil
	}

	var raw rawStore
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Store{Version: SchemaVersion}, nil
	}
	if raw.Version != SchemaVersion {
		return Store{Version: SchemaVersion}, nil
	}

	commitments := make([]Commitment, 0, len(raw.Commitments))
	for _, rc := range raw.Commitments {
		commitments = append(commitments, rc.normalize())
	}
	return Store{Version: SchemaVersion, Commitments: commitments, LastEvaluatedAt: raw.LastEvaluatedAt}, nil
}

// write persists st atomically. Callers must already hold LockKind.
func (s *CommitmentStore) write(st Store) error {
	st.Version = SchemaVersion
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal commitment store: %w", err)
	}
	return s.Vault.WriteAtomic(vaultstore.FileCommitments, string(data))
}

// withCommitmentLock runs fn with the commitment store lock held and reloads
// fresh state first so fn always observes the latest on-disk state.
func (s *CommitmentStore) withCommitmentLock(ctx context.Context, fn func(st Store) (Store, error)) error {
	return s.Vault.WithLock(ctx, LockKind, func() error {
		st, err := s.Load()
		if err != nil {
			return err
		}
		next, err := fn(st)
		if err != nil {
			return err
		}
		return s.write(next)
	})
}

// Create adds a new candidate commitment for label, assigning it a
// deterministic slug-based ID (with collision suffixing) and returns it.
func (s *CommitmentStore) Create(ctx context.Context, label string, priority int, horizon Horizon, source string) (Commitment, error) {
	var created Commitment
	err := s.withCommitmentLock(ctx, func(st Store) (Store, error) {
		existing := make(map[string]bool, len(st.Commitments))
		for _, c := range st.Commitments {
			existing[c.ID] = true
		}
		now := time.Now().UTC()
		created = Commitment{
			ID:       NextID(label, existing),
			Label:    label,
			State:    StateCandidate,
			Priority: priority,
			Horizon:  horizon,
			Source:   source,
			CreatedAt: &now,
			StateHistory: []StateTransition{{
				From:       "",
				To:         StateCandidate,
				At:         now,
				Reason:     "created",
				ProposedBy: ProposedByEngine,
				Accepted:   true,
			}},
		}
		st.Commitments = append(st.Commitments, created)
		st.LastEvaluatedAt = now
		return st, nil
	})
	return created, err
}

// RecordStateTransition moves commitment id from its current state to to,
// appending a StateTransition entry. It returns ErrInvalidTransition if the
// move is not legal from the commitment's current state, unless force is
// set (used for human-proposed overrides, which the spec allows to bypass
// the automatic lifecycle rules).
func (s *CommitmentStore) RecordStateTransition(ctx context.Context, id string, to State, reason string, proposedBy Proposer, force bool) error {
	return s.withCommitmentLock(ctx, func(st Store) (Store, error) {
		idx := indexByID(st.Commitments, id)
		if idx < 0 {
			return st, fmt.Errorf("commitment: %q not found", id)
		}
		c := st.Commitments[idx]
		if !force && !CanTransition(c.State, to) {
			return st, &ErrInvalidTransition{From: c.State, To: to}
		}
		now := time.Now().UTC()
		c.StateHistory = append(c.StateHistory, StateTransition{
			From:       c.State,
			To:         to,
			At:         now,
			Reason:     reason,
			ProposedBy: proposedBy,
			Accepted:   true,
		})
		c.State = to
		st.Commitments[idx] = c
		st.LastEvaluatedAt = now
		return st, nil
	})
}

// RecordAdvancementSignal appends a signal of evidence that commitment id
// moved, and — if its relevance score clears AdvancementRelevanceThreshold —
// updates LastAdvancedAt.
func (s *CommitmentStore) RecordAdvancementSignal(ctx context.Context, id string, sig AdvancementSignal) error {
	return s.withCommitmentLock(ctx, func(st Store) (Store, error) {
		idx := indexByID(st.Commitments, id)
		if idx < 0 {
			return st, fmt.Errorf("commitment: %q not found", id)
		}
		c := st.Commitments[idx]
		if sig.At.IsZero() {
			sig.At = time.Now().UTC()
		}
		c.AdvancementSignals = append(c.AdvancementSignals, sig)
		if sig.RelevanceScore > AdvancementRelevanceThreshold && sig.At.After(c.LastAdvancedAt) {
			c.LastAdvancedAt = sig.At
		}
		st.Commitments[idx] = c
		st.LastEvaluatedAt = time.Now().UTC()
		return st, nil
	})
}

// AppendDriftSnapshot records a drift measurement against commitment id.
func (s *CommitmentStore) AppendDriftSnapshot(ctx context.Context, id string, snap DriftSnapshot) error {
	return s.withCommitmentLock(ctx, func(st Store) (Store, error) {
		idx := indexByID(st.Commitments, id)
		if idx < 0 {
			return st, fmt.Errorf("commitment: %q not found", id)
		}
		c := st.Commitments[idx]
		c.DriftSnapshots = append(c.DriftSnapshots, snap)
		st.Commitments[idx] = c
		return st, nil
	})
}

func indexByID(commitments []Commitment, id string) int {
	for i, c := range commitments {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Active returns the subset of st.Commitments in StateActive.
func Active(st Store) []Commitment {
	out := make([]Commitment, 0, len(st.Commitments))
	for _, c := range st.Commitments {
		if c.State == StateActive {
			out = append(out, c)
		}
	}
	return out
}
