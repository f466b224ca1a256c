// Package external defines the collaborator interfaces the heartbeat core
// invokes but does not implement: LLM invocation, feed polling transport,
// and task execution. Retry, timeout, and process management are each
// collaborator's own responsibility — the core only calls the port and
// reacts to what comes back.
package external

import (
	"context"
	"time"

	"github.com/boshu2/heartbeat/internal/perception"
	"github.com/boshu2/heartbeat/internal/queue"
)

// TaskRunner executes a single queue task out-of-process (or via an
// in-process adapter during tests) and reports the outcome. The core
// treats the runner as opaque: it does not interpret stdout beyond what
// RunResult exposes.
type TaskRunner interface {
	Run(ctx context.Context, task queue.Task) (RunResult, error)
}

// RunResult is what a TaskRunner reports back for a single task attempt.
type RunResult struct {
	Success  bool
	Stdout   string
	Stderr   string
	ErrorMsg string
}

// FeedSource polls one external perception channel and returns a batch of
// captures. Polling within phase 4a happens concurrently per source with
// a per-source timeout; a FeedSource must itself respect ctx cancellation.
type FeedSource struct {
	ID                   string
	Name                 string
	Enabled              bool
	PollIntervalMinutes  int
	MaxItemsPerPoll      int
	Poll                 func(ctx context.Context, vaultRoot string) ([]perception.FeedCapture, error)
	ToInboxMarkdown      func(capture perception.FeedCapture) string
}

// DefaultPollTimeout bounds a single source's poll within phase 4a.
const DefaultPollTimeout = 30 * time.Second

// LLMRunner fires a prompt at a language model and returns its text
// response. Used for morning-brief synthesis and working-memory
// summarization; never invoked for any decision the core itself must
// make deterministically.
type LLMRunner interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PlanningInput is the request shape an external orchestrator sends when
// asking the core to plan a batch of actions against detected gaps. It
// carries authority/auto-execute semantics that exist only to talk to
// that orchestrator; the core's own cycle never constructs one.
type PlanningInput struct {
	GapType      string
	Authority    string
	AutoExecute  map[string]bool
	Context      map[string]string
}

// ExecutionPort is how an external orchestrator asks the core (or an
// adapter in front of it) to carry out a planned action and report back.
// Not used by HeartbeatEngine's own cycle.
type ExecutionPort interface {
	Execute(ctx context.Context, input PlanningInput) (ExecutionResult, error)
}

// ExecutionResult reports what an ExecutionPort action produced.
type ExecutionResult struct {
	Applied bool
	Summary string
	Err     string
}

// GapActionMap names the action an external orchestrator takes for a
// given detected gap kind. Maintained here, not executed by the core.
var GapActionMap = map[string]string{
	"connect_orphans":   "link-orphan-thoughts",
	"process_inbox":     "triage-inbox-captures",
	"triage_observation": "promote-or-archive-observation",
	"resolve_tension":   "schedule-tension-review",
}
