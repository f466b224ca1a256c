// Package repair implements RepairBuilder: constructs a self-contained
// repair task from a failed pipeline task, carrying enough diagnostic
// context for an external runner to fix the underlying failure.
package repair

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/boshu2/heartbeat/internal/idgen"
	"github.com/boshu2/heartbeat/internal/queue"
)

// fileStateTruncateLimit bounds how much of a source file's contents are
// embedded in repair_context.file_state.
const fileStateTruncateLimit = 4000

// diffTruncateLimit bounds how much of a collected diff is embedded in
// repair_context.relevant_file_diffs.
const diffTruncateLimit = 4000

// queueExcerptSize is the number of queue tasks summarized into
// repair_context.queue_excerpt.
const queueExcerptSize = 12

// DiffCollector is the external git-diff (or similar) collector used to
// populate relevant_file_diffs. Implementations should return an empty
// string rather than an error when diffing isn't possible.
type DiffCollector interface {
	Diff(path string) (string, error)
}

// FileReader abstracts reading a source file's contents for file_state,
// letting callers supply a vault-rooted reader instead of the raw
// filesystem.
type FileReader interface {
	ReadFile(path string) (string, bool, error)
}

var expectedOutputContracts = map[queue.Phase]string{
	queue.PhaseSurface: "Diagnose the failure and produce a surfaced note capturing the source content",
	queue.PhaseReflect: "Diagnose the failure and apply a concrete fix, then produce reflection notes",
	queue.PhaseRevisit: "Diagnose the failure and apply a concrete fix to the revisit pass",
	queue.PhaseVerify:  "Diagnose the failure and apply a concrete fix that lets verification pass",
}

func defaultContract(phase queue.Phase) string {
	if c, ok := expectedOutputContracts[phase]; ok {
		return c
	}
	return "Diagnose the failure and apply a concrete fix"
}

// Build constructs a repair task for failed, given the error/stdout/stderr
// produced by the runner, the vault root, and the current queue snapshot
// (for the excerpt). diffs and files may be nil; their absence degrades
// gracefully per the spec's "empty on error" rule.
func Build(failed queue.Task, errMessage, stderr, stdout, vaultRoot string, snapshot []queue.Task, diffs DiffCollector, files FileReader) queue.Task {
	id := idgen.NewUUID()
	now := time.Now().UTC()

	sourcePath := failed.SourcePath
	if sourcePath == "" {
		sourcePath = failed.Target
	}
	absPath := sourcePath
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(vaultRoot, sourcePath)
	}

	priorAttempts := 0
	if failed.RepairContext != nil {
		priorAttempts = failed.RepairContext.AttemptCount
	}

	rc := &queue.RepairContext{
		OriginalTask: queue.OriginalTaskRef{
			Kind:   string(failed.Phase),
			Target: failed.Target,
		},
		ErrorMessage:           errMessage,
		VaultRoot:              vaultRoot,
		AbsoluteSourcePath:     absPath,
		ExpectedOutputContract: defaultContract(failed.Phase),
		Phase:                  failed.Phase,
		LastStderr:             stderr,
		LastStdout:             stdout,
		QueueExcerpt:           excerpt(snapshot, queueExcerptSize),
		AttemptedAt:            now,
		AttemptCount:           priorAttempts + 1,
	}

	if files != nil {
		if content, ok, rerr := files.ReadFile(absPath); rerr == nil && ok {
			rc.FileState = map[string]string{absPath: truncate(content, fileStateTruncateLimit)}
		}
	}

	if diffs != nil {
		if d, derr := diffs.Diff(absPath); derr == nil && d != "" {
			rc.RelevantFileDiffs = []queue.FileDiff{{Path: absPath, Diff: truncate(d, diffTruncateLimit)}}
		}
	}

	repair := queue.Task{
		TaskID:          fmt.Sprintf("repair-%s", id),
		Target:          failed.Target,
		SourcePath:      failed.SourcePath,
		Phase:           failed.Phase,
		Status:          queue.StatusPending,
		ExecutionMode:   queue.ExecutionOrchestrated,
		CreatedAt:       now,
		UpdatedAt:       now,
		Attempts:        0,
		MaxAttempts:     queue.MaxRepairAttempts,
		CompletedPhases: append([]queue.Phase(nil), failed.CompletedPhases...),
		RepairContext:   rc,
	}
	return repair
}

func excerpt(tasks []queue.Task, n int) []queue.TaskSummary {
	if len(tasks) > n {
		tasks = tasks[:n]
	}
	out := make([]queue.TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Summary())
	}
	return out
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
