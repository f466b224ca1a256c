// Package heartbeat implements HeartbeatEngine: the phased cycle that wires
// perception, commitment evaluation, drift detection, task selection and
// execution, threshold-triggered maintenance, and brief/working-memory
// synthesis into a single run over a vault.
package heartbeat

import (
	"time"

	"github.com/boshu2/heartbeat/internal/drift"
	"github.com/boshu2/heartbeat/internal/evaluator"
	"github.com/boshu2/heartbeat/internal/queue"
)

// Phase names a selectable stage of the cycle.
type Phase string

const (
	PhasePerception Phase = "4a"
	PhaseEvaluation Phase = "5a"
	PhaseExecution  Phase = "5b"
	PhaseThreshold  Phase = "5c"
	PhaseBrief      Phase = "6"
	PhaseMemory     Phase = "7"
)

// AllPhases is the full cycle in execution order.
var AllPhases = []Phase{PhasePerception, PhaseEvaluation, PhaseExecution, PhaseThreshold, PhaseBrief, PhaseMemory}

// RunSlot names the scheduling slot a cycle runs under, which governs
// whether the morning brief may be synthesized.
type RunSlot string

const (
	SlotMorning   RunSlot = "morning"
	SlotEvening   RunSlot = "evening"
	SlotOvernight RunSlot = "overnight"
	SlotManual    RunSlot = "manual"
)

const (
	TaskSelectionQueueFirst   = "queue-first"
	TaskSelectionAlignedFirst = "aligned-first"

	ModeQueueOnly = "queue-only"
	ModeExecute   = "execute"
)

// Options configures one cycle run.
type Options struct {
	Phases           []Phase
	RunSlot          RunSlot
	DryRun           bool
	MaxActionsPerRun int
	TaskSelection    string
	RepairMode       string
	ThresholdMode    string
	RunnerCommand    string
	RunnerTimeoutMs  int
	ConfigPath       string
}

// DefaultOptions returns the spec's documented engine defaults.
func DefaultOptions() Options {
	return Options{
		Phases:           AllPhases,
		RunSlot:          SlotManual,
		MaxActionsPerRun: 3,
		TaskSelection:    TaskSelectionQueueFirst,
		RepairMode:       ModeQueueOnly,
		ThresholdMode:    ModeQueueOnly,
		RunnerTimeoutMs:  1_800_000,
	}
}

func (o Options) hasPhase(p Phase) bool {
	for _, have := range o.Phases {
		if have == p {
			return true
		}
	}
	return false
}

// TaskOutcome records what happened to one task candidate selected during
// phase 5b.
type TaskOutcome struct {
	TaskID         string     `json:"taskId"`
	Target         string     `json:"target"`
	Phase          queue.Phase `json:"phase"`
	Executed       bool       `json:"executed"`
	Advisory       bool       `json:"advisory"`
	AdvisoryReason string     `json:"advisoryReason,omitempty"`
	Success        bool       `json:"success"`
}

// Result summarizes one heartbeat cycle. No error escapes Run except for a
// fatal initialization failure; everything else surfaces here.
type Result struct {
	RunID             string                 `json:"runId"`
	StartedAt         time.Time              `json:"startedAt"`
	DepthExceeded     bool                   `json:"depthExceeded"`
	Conditions        []string               `json:"conditions,omitempty"`
	Evaluations       []evaluator.Evaluation `json:"evaluations,omitempty"`
	DriftReport       drift.Report           `json:"driftReport"`
	TriggeredTasks    []TaskOutcome          `json:"triggeredTasks,omitempty"`
	RepairsSpawned    int                    `json:"repairsSpawned"`
	RepairsSkipped    int                    `json:"repairsSkipped"`
	ThresholdsActed   int                    `json:"thresholdsActed"`
	Counters          map[string]int         `json:"counters,omitempty"`
	Recommendations   []string               `json:"recommendations,omitempty"`
	NoiseAlerts       []string               `json:"noiseAlerts,omitempty"`
	BriefWritten      bool                   `json:"briefWritten"`
}

func (r *Result) recommend(msg string) {
	r.Recommendations = append(r.Recommendations, msg)
}

func (r *Result) count(key string, n int) {
	if r.Counters == nil {
		r.Counters = map[string]int{}
	}
	r.Counters[key] += n
}
