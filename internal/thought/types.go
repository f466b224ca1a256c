// Package thought implements ThoughtEvaluator: scans the vault's thought
// graph to score each note's impact, detect orphans, and build the
// topology context consumed by the morning brief.
package thought

import "time"

// orphanGracePeriod is how long a new thought is exempt from the orphan
// penalty, giving it time to accrue incoming links.
const orphanGracePeriod = 7 * 24 * time.Hour

// agePenaltyRate scales the per-day penalty applied once a thought has
// gone stale (no new incoming links past the grace period).
const agePenaltyRate = 0.01

// incomingLinkWeight and mapMembershipWeight are the impactScore
// coefficients.
const (
	incomingLinkWeight   = 1.0
	mapMembershipWeight  = 2.0
)

// thinMapThreshold is the member-count below which a map is flagged thin.
const thinMapThreshold = 5

// sinkNodeMinIncoming and sinkNodeMaxOutgoing define a sink node: heavily
// referenced but barely pointing anywhere itself.
const (
	sinkNodeMinIncoming = 3
	sinkNodeMaxOutgoing = 1
)

// Confidence is a thought's frontmatter-declared epistemic status.
type Confidence string

const (
	ConfidenceFelt        Confidence = "felt"
	ConfidenceObserved     Confidence = "observed"
	ConfidenceTested      Confidence = "tested"
	ConfidenceUnspecified Confidence = "unspecified"
)

// Node is one scanned vault note (thought or map).
type Node struct {
	ID           string // canonicalized, matches vaultstore.Canonicalize
	Path         string
	IsMap        bool
	Confidence   Confidence
	ModTime      time.Time
	OutgoingLinks []string // canonicalized targets found in the body
	OpenQuestions []string // "## Open Questions" bullets, maps only
}

// Scored is a Node with its computed graph metrics.
type Scored struct {
	Node           Node
	IncomingLinks  int
	MapMemberships int
	ImpactScore    float64
	IsOrphan       bool
}

// Aggregate summarizes a full scan for persistence/reporting.
type Aggregate struct {
	Scored         []Scored
	TopByImpact    []Scored
	Orphans        []Scored
	OrphanRate     float64
	AvgImpactScore float64
}

// MapSummary describes one map node's standing in the graph.
type MapSummary struct {
	ID            string
	BacklinkCount int
	IsThin        bool
	OpenQuestions []string
}

// Topology is the graph-wide context assembled for the morning brief.
type Topology struct {
	Maps                  []MapSummary
	ThinMaps              []string
	ConfidenceDistribution map[Confidence]int
	SinkNodes             []string
}
