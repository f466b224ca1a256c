// Package evaluator implements CommitmentEvaluator: per-commitment
// advancement scoring against recent activity, and proposed lifecycle
// transitions.
package evaluator

import "github.com/boshu2/heartbeat/internal/commitment"

// Status classifies how a commitment is trending.
type Status string

const (
	StatusAdvancing Status = "advancing"
	StatusStalled   Status = "stalled"
	StatusDrifting  Status = "drifting"
)

// RecentActivity is the evidence pool an evaluation is scored against.
type RecentActivity struct {
	SessionSummaries    []string
	QueueTasksCompleted []string
	ThoughtsCreated     []string
}

// Strings flattens the three activity channels into one slice, in the
// order session summaries, queue tasks, then thoughts.
func (a RecentActivity) Strings() []string {
	out := make([]string, 0, len(a.SessionSummaries)+len(a.QueueTasksCompleted)+len(a.ThoughtsCreated))
	out = append(out, a.SessionSummaries...)
	out = append(out, a.QueueTasksCompleted...)
	out = append(out, a.ThoughtsCreated...)
	return out
}

// Evaluation is the verdict for one active commitment in one cycle.
type Evaluation struct {
	CommitmentID       string
	Status             Status
	AdvancementScore   float64
	ProposedTransition *commitment.State
	BriefSummary       string
}
