package heartbeat

import (
	"context"
	"strings"
	"time"

	"github.com/boshu2/heartbeat/internal/commitment"
	"github.com/boshu2/heartbeat/internal/filter"
	"github.com/boshu2/heartbeat/internal/queue"
	"github.com/boshu2/heartbeat/internal/repair"
	"github.com/boshu2/heartbeat/internal/telemetry"
)

// lockTTLSeconds is how long a task's in-progress lease lasts while the
// external TaskRunner has it.
const lockTTLSeconds = 5 * 60

// runExecution implements phase 5b: candidate selection, CommitmentFilter
// reordering, and bounded invocation of the external TaskRunner.
func (e *Engine) runExecution(ctx context.Context, opts Options, res *Result) {
	qf, err := e.Queue.Read()
	if err != nil {
		res.recommend("queue unreadable this cycle; skipping execution")
		return
	}
	st, _ := e.Commitments.Load()
	active := commitment.Active(st)

	candidates := pendingTasksOf(qf)
	if opts.TaskSelection == TaskSelectionAlignedFirst {
		candidates = alignedOnly(candidates, active)
	}

	filtered := filter.Apply(candidates, st.Commitments)
	selected := filtered.Tasks
	if len(selected) > opts.MaxActionsPerRun {
		selected = selected[:opts.MaxActionsPerRun]
	}

	byID := commitmentByLabelAlignment(active)

	for _, task := range selected {
		outcome := TaskOutcome{TaskID: task.TaskID, Target: task.Target, Phase: task.Phase}

		if opts.DryRun {
			outcome.Advisory, outcome.AdvisoryReason = true, "dry-run"
			res.TriggeredTasks = append(res.TriggeredTasks, outcome)
			continue
		}
		if opts.RepairMode == ModeQueueOnly && task.RepairContext != nil {
			outcome.Advisory, outcome.AdvisoryReason = true, "repair-mode:queue-only"
			res.TriggeredTasks = append(res.TriggeredTasks, outcome)
			continue
		}
		if aligned, ok := byID(task); ok {
			if aligned.DesireClass == commitment.DesireThin {
				outcome.Advisory, outcome.AdvisoryReason = true, "thin-desire"
				res.TriggeredTasks = append(res.TriggeredTasks, outcome)
				continue
			}
			if aligned.FrictionClass == commitment.FrictionConstitutive {
				outcome.Advisory, outcome.AdvisoryReason = true, "constitutive-friction"
				res.TriggeredTasks = append(res.TriggeredTasks, outcome)
				continue
			}
		}

		e.executeTask(ctx, opts, task, qf.Tasks, &outcome, res)
		res.TriggeredTasks = append(res.TriggeredTasks, outcome)
	}
}

func (e *Engine) executeTask(ctx context.Context, opts Options, task queue.Task, snapshot []queue.Task, outcome *TaskOutcome, res *Result) {
	if _, err := e.Queue.Lock(ctx, task.TaskID, lockTTLSeconds); err != nil {
		outcome.Advisory, outcome.AdvisoryReason = true, "lock-failed"
		return
	}
	if e.Runner == nil {
		outcome.Advisory, outcome.AdvisoryReason = true, "no-runner-configured"
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(opts.RunnerTimeoutMs)*time.Millisecond)
	defer cancel()

	result, runErr := e.Runner.Run(runCtx, task)
	outcome.Executed = true

	if runErr == nil && result.Success {
		outcome.Success = true
		_ = e.Queue.AdvanceOnSuccess(ctx, task.TaskID)
		res.count("tasksExecuted", 1)
		e.Telemetry.Emit(telemetry.EventTaskExecuted, map[string]any{"taskId": task.TaskID, "target": task.Target}, res.RunID)
		return
	}

	errMsg := result.ErrorMsg
	if runErr != nil && errMsg == "" {
		errMsg = runErr.Error()
	}
	updated, ferr := e.Queue.MarkFailure(ctx, task.TaskID)
	if ferr != nil {
		updated = task
	}
	res.count("tasksFailed", 1)
	e.Telemetry.Emit(telemetry.EventTaskFailed, map[string]any{"taskId": task.TaskID, "error": errMsg}, res.RunID)

	if !queue.HasPendingRepairForOriginal(queue.File{Tasks: snapshot}, string(task.Phase), task.Target) {
		repairTask := repair.Build(updated, errMsg, result.Stderr, result.Stdout, e.Vault.Root, snapshot, e.Diffs, e.Files)
		enqueued, err := e.Queue.EnqueueRepairIfEligible(ctx, repairTask)
		if err == nil && enqueued {
			res.RepairsSpawned++
			e.Telemetry.Emit(telemetry.EventRepairQueued, map[string]any{"taskId": repairTask.TaskID, "originalTarget": task.Target}, res.RunID)
		} else {
			res.RepairsSkipped++
		}
	} else {
		res.RepairsSkipped++
	}
}

func alignedOnly(tasks []queue.Task, active []commitment.Commitment) []queue.Task {
	var out []queue.Task
	for _, t := range tasks {
		text := strings.ToLower(t.Target + " " + t.SourcePath)
		for _, c := range active {
			label := strings.ToLower(c.Label)
			if label != "" && strings.Contains(text, label) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// commitmentByLabelAlignment returns a lookup closure from a task to the
// first active commitment (in slice order) whose lowercased label appears in
// the task's target or source path, used to apply thin-desire and
// constitutive-friction advisory deferral.
func commitmentByLabelAlignment(active []commitment.Commitment) func(queue.Task) (commitment.Commitment, bool) {
	return func(t queue.Task) (commitment.Commitment, bool) {
		text := strings.ToLower(t.Target + " " + t.SourcePath)
		for _, c := range active {
			label := strings.ToLower(c.Label)
			if label != "" && strings.Contains(text, label) {
				return c, true
			}
		}
		return commitment.Commitment{}, false
	}
}
