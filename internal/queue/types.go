// Package queue implements the durable pipeline task queue described by the
// heartbeat spec: status lifecycle, phase advancement, lock-TTL pop
// semantics, and delta-merge on concurrent writers.
package queue

import "time"

// Phase is a stage of the surface -> reflect -> revisit -> verify pipeline.
type Phase string

const (
	PhaseSurface Phase = "surface"
	PhaseReflect Phase = "reflect"
	PhaseRevisit Phase = "revisit"
	PhaseVerify  Phase = "verify"
)

// phaseOrder fixes the chain surface -> reflect -> revisit -> verify.
var phaseOrder = []Phase{PhaseSurface, PhaseReflect, PhaseRevisit, PhaseVerify}

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusArchived   Status = "archived"
)

// ExecutionMode distinguishes tasks the engine can run unattended from ones
// that require an interactive human-in-the-loop session.
type ExecutionMode string

const (
	ExecutionOrchestrated ExecutionMode = "orchestrated"
	ExecutionInteractive  ExecutionMode = "interactive"
)

// DefaultMaxAttempts is used for tasks that don't specify one.
const DefaultMaxAttempts = 3

// MaxRepairAttempts bounds how many times a repair task may itself be
// repaired before the engine gives up on the underlying failure.
const MaxRepairAttempts = 2

// FileDiff pairs a path with a unified diff of recent changes to it.
type FileDiff struct {
	Path string `json:"path"`
	Diff string `json:"diff"`
}

// OriginalTaskRef identifies the task a repair task was built from.
type OriginalTaskRef struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
}

// RepairContext carries everything a diagnosis pass needs to fix a failed
// task. It is populated exclusively by the repair package and is present
// iff a task is itself a repair task.
type RepairContext struct {
	OriginalTask            OriginalTaskRef   `json:"original_task"`
	ErrorMessage            string            `json:"error_message"`
	VaultRoot               string            `json:"vault_root"`
	AbsoluteSourcePath      string            `json:"absolute_source_path"`
	ExpectedOutputContract  string            `json:"expected_output_contract"`
	Phase                   Phase             `json:"phase"`
	CommandOrSkill          string            `json:"command_or_skill,omitempty"`
	LastStderr              string            `json:"last_stderr,omitempty"`
	LastStdout              string            `json:"last_stdout,omitempty"`
	QueueExcerpt            []TaskSummary     `json:"queue_excerpt,omitempty"`
	RelevantFileDiffs       []FileDiff        `json:"relevant_file_diffs,omitempty"`
	StackTrace              string            `json:"stack_trace,omitempty"`
	FileState               map[string]string `json:"file_state,omitempty"`
	AttemptedAt             time.Time         `json:"attempted_at"`
	AttemptCount            int               `json:"attempt_count"`
}

// TaskSummary is a compact projection of a task used in repair context
// queue excerpts, avoiding a full recursive dump of RepairContext fields.
type TaskSummary struct {
	TaskID string `json:"taskId"`
	Target string `json:"target"`
	Phase  Phase  `json:"phase"`
	Status Status `json:"status"`
}

// Task is a single record in the pipeline queue.
type Task struct {
	TaskID          string         `json:"taskId"`
	VaultID         string         `json:"vaultId,omitempty"`
	Target          string         `json:"target"`
	SourcePath      string         `json:"sourcePath"`
	Phase           Phase          `json:"phase"`
	Status          Status         `json:"status"`
	Type            string         `json:"type,omitempty"`
	ExecutionMode   ExecutionMode  `json:"executionMode"`
	Batch           string         `json:"batch,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	LockedUntil     *time.Time     `json:"lockedUntil,omitempty"`
	Attempts        int            `json:"attempts"`
	MaxAttempts     int            `json:"maxAttempts"`
	CompletedPhases []Phase        `json:"completedPhases,omitempty"`
	RepairContext   *RepairContext `json:"repair_context,omitempty"`
}

// Summary projects a task down to TaskSummary.
func (t Task) Summary() TaskSummary {
	return TaskSummary{TaskID: t.TaskID, Target: t.Target, Phase: t.Phase, Status: t.Status}
}

// HasCompletedPhase reports whether phase is present in CompletedPhases.
func (t Task) HasCompletedPhase(phase Phase) bool {
	for _, p := range t.CompletedPhases {
		if p == phase {
			return true
		}
	}
	return false
}

// File is the on-disk representation of ops/queue/queue.json.
type File struct {
	Version     int       `json:"version"`
	Tasks       []Task    `json:"tasks"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// SchemaVersion is the only queue file schema version this package writes
// or accepts; anything else is treated as absent per the spec's invariant.
const SchemaVersion = 1
