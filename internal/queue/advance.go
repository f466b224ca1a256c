package queue

import (
	"context"
	"fmt"
	"time"
)

// AdvanceOnSuccess applies the spec's auto-advance rule for a task that just
// finished phase `completed` successfully: it appends the phase to
// completedPhases and moves status/phase forward, and — to defend against
// external writers that may independently mark the original task "done" —
// it also pushes a deterministic sibling follow-up task
// "<taskId>-<nextPhase>" carrying the same completedPhases, unless one
// already exists. Both code paths are intentionally kept (see DESIGN.md).
//
// AdvanceOnSuccess acquires the queue lock itself and performs the whole
// read-mutate-merge-write cycle under it.
func (m *Manager) AdvanceOnSuccess(ctx context.Context, taskID string) error {
	return m.Vault.WithLock(ctx, LockKind, func() error {
		qf, err := m.Read()
		if err != nil {
			return err
		}

		idx := indexPositionByID(qf.Tasks)[taskID]
		if idx >= len(qf.Tasks) || qf.Tasks[idx].TaskID != taskID {
			return fmt.Errorf("advance: task %q not found", taskID)
		}

		task := qf.Tasks[idx]
		now := time.Now().UTC()
		completed := task.Phase

		task.CompletedPhases = appendPhaseOnce(task.CompletedPhases, completed)
		task.UpdatedAt = now

		next, hasNext := NextPhase(completed)
		if hasNext {
			task.Phase = next
			task.Status = StatusPending
		} else {
			task.Status = StatusDone
		}
		task.LockedUntil = nil
		qf.Tasks[idx] = task

		if hasNext {
			followUpID := fmt.Sprintf("%s-%s", taskID, next)
			if _, exists := indexByID(qf.Tasks)[followUpID]; !exists {
				followUp := task
				followUp.TaskID = followUpID
				followUp.CreatedAt = now
				followUp.Attempts = 0
				followUp.RepairContext = nil
				qf.Tasks = append(qf.Tasks, followUp)
			}
		}

		qf.LastUpdated = now
		return m.Write(qf)
	})
}

func appendPhaseOnce(phases []Phase, p Phase) []Phase {
	for _, existing := range phases {
		if existing == p {
			return phases
		}
	}
	return append(phases, p)
}

// MarkFailure records an execution failure on task, incrementing attempts
// and transitioning to failed once maxAttempts is reached (otherwise back
// to pending for a retry). It returns the updated task so the caller
// (heartbeat engine) can decide whether to spawn a repair.
func (m *Manager) MarkFailure(ctx context.Context, taskID string) (Task, error) {
	var updated Task
	err := m.Vault.WithLock(ctx, LockKind, func() error {
		qf, err := m.Read()
		if err != nil {
			return err
		}
		pos := indexPositionByID(qf.Tasks)
		idx, ok := pos[taskID]
		if !ok {
			return fmt.Errorf("mark failure: task %q not found", taskID)
		}

		task := qf.Tasks[idx]
		now := time.Now().UTC()
		task.Attempts++
		task.UpdatedAt = now
		task.LockedUntil = nil
		if task.Attempts >= task.MaxAttempts {
			task.Status = StatusFailed
		} else {
			task.Status = StatusPending
		}
		qf.Tasks[idx] = task
		updated = task

		qf.LastUpdated = now
		return m.Write(qf)
	})
	return updated, err
}

// EnqueueRepairIfEligible appends repair to the queue unless a pending
// repair already exists for the same original (kind, target) pair, per the
// spec's "never queue a second repair" invariant, or its attempt count
// exceeds MaxRepairAttempts. It returns whether the repair was actually
// enqueued.
func (m *Manager) EnqueueRepairIfEligible(ctx context.Context, repair Task) (enqueued bool, err error) {
	err = m.Vault.WithLock(ctx, LockKind, func() error {
		qf, rerr := m.Read()
		if rerr != nil {
			return rerr
		}
		if repair.RepairContext == nil {
			return fmt.Errorf("enqueue repair: task has no repair_context")
		}
		if repair.RepairContext.AttemptCount > MaxRepairAttempts {
			return nil
		}
		original := repair.RepairContext.OriginalTask
		if HasPendingRepairForOriginal(qf, original.Kind, original.Target) {
			return nil
		}
		qf.Tasks = append(qf.Tasks, repair)
		qf.LastUpdated = time.Now().UTC()
		enqueued = true
		return m.Write(qf)
	})
	return enqueued, err
}
