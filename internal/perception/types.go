// Package perception implements the admission policy that gates
// externally-captured items into the vault's inbox: identity-relevance
// scoring, a bounded admission algorithm, and cross-cycle noise tracking.
package perception

import "time"

// FeedCapture is a single externally-captured item awaiting admission.
type FeedCapture struct {
	ID                string            `json:"id"`
	SourceID          string            `json:"sourceId"`
	CapturedAt        time.Time         `json:"capturedAt"`
	Title             string            `json:"title"`
	Content           string            `json:"content"`
	URLs              []string          `json:"urls,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	RawRelevanceScore float64           `json:"rawRelevanceScore,omitempty"`
}

// Context supplies the identity signals a capture is scored against.
type Context struct {
	CommitmentLabels []string
	IdentityThemes   []string
	VaultTopics      []string
	RecentThoughts   []string
}

// Policy bounds how aggressively the admission algorithm lets captures
// through.
type Policy struct {
	MaxSignalsPerChannel   int
	UmweltBudgetLines      int
	RelevanceFloor         float64
	BriefThreshold         float64
	MaxInboxWritesPerCycle int
}

// DefaultPolicy matches the spec's stated defaults.
var DefaultPolicy = Policy{
	MaxSignalsPerChannel:   3,
	UmweltBudgetLines:      50,
	RelevanceFloor:         0.3,
	BriefThreshold:         0.6,
	MaxInboxWritesPerCycle: 10,
}

// Scored pairs a capture with its computed identity-relevance score.
type Scored struct {
	Capture FeedCapture
	Score   float64
}

// Result is the admission algorithm's verdict for one batch.
type Result struct {
	Admitted    []Scored
	Surfaced    []Scored
	Filtered    []Scored
	TuningHints []string
}
