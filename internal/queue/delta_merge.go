package queue

import "time"

// DeltaMerge reconciles an in-memory mutation against a freshly re-read
// queue file, so concurrent writers never clobber each other silently.
//
//   - baseline is the queue as it was read before the in-memory mutation.
//   - mutated is baseline with the engine's in-memory changes applied
//     (modified existing tasks, and/or newly pushed tasks appended).
//   - fresh is a just-now re-read of the on-disk queue, taken under lock.
//
// For every task that existed in baseline and was modified in mutated, the
// modification is applied to fresh only if fresh's copy of that task is
// still exactly as it was in baseline (same updatedAt) — otherwise a
// concurrent writer already changed it and that writer's version wins.
// Tasks newly present in mutated (not in baseline) are appended to fresh
// unless a task with the same ID is already there, or (for repair tasks)
// a pending repair for the same original task already exists in fresh.
func DeltaMerge(baseline, mutated, fresh File) File {
	baselineByID := indexByID(baseline.Tasks)
	mutatedByID := indexByID(mutated.Tasks)
	freshByID := indexPositionByID(fresh.Tasks)

	merged := make([]Task, len(fresh.Tasks))
	copy(merged, fresh.Tasks)

	for id, baseTask := range baselineByID {
		mutTask, stillPresent := mutatedByID[id]
		if !stillPresent {
			continue // removed in-memory (e.g. popped); leave fresh's state alone
		}
		if tasksEqual(baseTask, mutTask) {
			continue // not actually modified
		}
		freshIdx, existsInFresh := freshByID[id]
		if !existsInFresh {
			continue // concurrent writer already removed it; don't resurrect
		}
		if !fresh.Tasks[freshIdx].UpdatedAt.Equal(baseTask.UpdatedAt) {
			continue // concurrent writer changed it since baseline; they win
		}
		merged[freshIdx] = mutTask
	}

	for id, mutTask := range mutatedByID {
		if _, inBaseline := baselineByID[id]; inBaseline {
			continue // not a new addition
		}
		if _, inFresh := freshByID[id]; inFresh {
			continue // already present, e.g. idempotent re-run
		}
		if mutTask.RepairContext != nil {
			original := mutTask.RepairContext.OriginalTask
			if HasPendingRepairForOriginal(File{Tasks: merged}, original.Kind, original.Target) {
				continue
			}
		}
		merged = append(merged, mutTask)
	}

	return File{
		Version:     SchemaVersion,
		Tasks:       merged,
		LastUpdated: time.Now().UTC(),
	}
}

func indexByID(tasks []Task) map[string]Task {
	m := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		m[t.TaskID] = t
	}
	return m
}

func indexPositionByID(tasks []Task) map[string]int {
	m := make(map[string]int, len(tasks))
	for i, t := range tasks {
		m[t.TaskID] = i
	}
	return m
}

func tasksEqual(a, b Task) bool {
	if a.Status != b.Status || a.Phase != b.Phase || a.Attempts != b.Attempts {
		return false
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return false
	}
	if len(a.CompletedPhases) != len(b.CompletedPhases) {
		return false
	}
	for i := range a.CompletedPhases {
		if a.CompletedPhases[i] != b.CompletedPhases[i] {
			return false
		}
	}
	return true
}
