package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boshu2/heartbeat/internal/vaultstore"
)

// LockKind is the advisory lock name QueueManager mutators must hold.
const LockKind = "queue"

// Manager is the durable task queue, backed by ops/queue/queue.json.
type Manager struct {
	Vault *vaultstore.Vault
}

// New returns a Manager over v.
func New(v *vaultstore.Vault) *Manager {
	return &Manager{Vault: v}
}

// rawTask mirrors Task but keeps the enum-like fields as strings so Read can
// apply the spec's coercion rules instead of failing on unrecognized values.
type rawTask struct {
	TaskID          string            `json:"taskId"`
	VaultID         string            `json:"vaultId,omitempty"`
	Target          string            `json:"target"`
	SourcePath      string            `json:"sourcePath"`
	Phase           string            `json:"phase"`
	Status          string            `json:"status"`
	Type            string            `json:"type,omitempty"`
	ExecutionMode   string            `json:"executionMode"`
	Batch           string            `json:"batch,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	LockedUntil     *time.Time        `json:"lockedUntil,omitempty"`
	Attempts        int               `json:"attempts"`
	MaxAttempts     int               `json:"maxAttempts"`
	CompletedPhases []string          `json:"completedPhases,omitempty"`
	RepairContext   *RepairContext    `json:"repair_context,omitempty"`
}

func (t rawTask) normalize() Task {
	phases := make([]Phase, 0, len(t.CompletedPhases))
	for _, p := range t.CompletedPhases {
		phases = append(phases, NormalizePhase(p))
	}
	maxAttempts := t.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return Task{
		TaskID:          t.TaskID,
		VaultID:         t.VaultID,
		Target:          t.Target,
		SourcePath:      t.SourcePath,
		Phase:           NormalizePhase(t.Phase),
		Status:          NormalizeStatus(t.Status),
		Type:            t.Type,
		ExecutionMode:   NormalizeExecutionMode(t.ExecutionMode),
		Batch:           t.Batch,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		LockedUntil:     t.LockedUntil,
		Attempts:        t.Attempts,
		MaxAttempts:     maxAttempts,
		CompletedPhases: phases,
		RepairContext:   t.RepairContext,
	}
}

type rawFile struct {
	Version     int       `json:"version"`
	Tasks       []rawTask `json:"tasks"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Read loads the queue file, tolerating a missing file (empty queue) and
// coercing unknown statuses/phases per the spec's invariants. A schema
// version other than 1 is treated the same as an absent file: a fresh
// empty queue, since there is no defined migration from a future schema.
func (m *Manager) Read() (File, error) {
	text, ok, err := m.Vault.Read(vaultstore.FileQueue)
	if err != nil {
		return File{}, err
	}
	if !ok {
		return File{Version: SchemaVersion}, nil
	}

	var raw rawFile
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		// Malformed queue file: best-effort empty queue rather than failing
		// the caller, per the spec's lenient-parsing invariant.
		return File{Version: SchemaVersion}, nil
	}
	if raw.Version != SchemaVersion {
		return File{Version: SchemaVersion}, nil
	}

	tasks := make([]Task, 0, len(raw.Tasks))
	for _, rt := range raw.Tasks {
		tasks = append(tasks, rt.normalize())
	}
	return File{Version: SchemaVersion, Tasks: tasks, LastUpdated: raw.LastUpdated}, nil
}

// Write persists qf atomically. Callers must hold the queue lock (see
// vaultstore.Vault.WithLock with LockKind) before calling Write.
func (m *Manager) Write(qf File) error {
	qf.Version = SchemaVersion
	data, err := json.MarshalIndent(qf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal queue file: %w", err)
	}
	return m.Vault.WriteAtomic(vaultstore.FileQueue, string(data))
}

// Push appends task to the queue file, acquiring the queue lock itself.
func (m *Manager) Push(ctx context.Context, task Task) error {
	return m.Vault.WithLock(ctx, LockKind, func() error {
		qf, err := m.Read()
		if err != nil {
			return err
		}
		qf.Tasks = append(qf.Tasks, task)
		qf.LastUpdated = time.Now().UTC()
		return m.Write(qf)
	})
}

// PopOptions configures Pop.
type PopOptions struct {
	// LockTTLSeconds, if > 0, leaves the task in place marked in-progress
	// with lockedUntil = now + TTL instead of removing it from the queue.
	LockTTLSeconds int
}

// Pop removes (or leases) the first eligible task: status pending or
// failed, and lockedUntil absent or in the past. Returns ok=false if no
// task is eligible.
func (m *Manager) Pop(ctx context.Context, opts PopOptions) (task Task, ok bool, err error) {
	err = m.Vault.WithLock(ctx, LockKind, func() error {
		qf, rerr := m.Read()
		if rerr != nil {
			return rerr
		}
		idx := -1
		now := time.Now().UTC()
		for i, t := range qf.Tasks {
			if !IsEligibleForPop(t, now) {
				continue
			}
			idx = i
			break
		}
		if idx < 0 {
			return nil
		}

		task = qf.Tasks[idx]
		ok = true

		if opts.LockTTLSeconds > 0 {
			until := now.Add(time.Duration(opts.LockTTLSeconds) * time.Second)
			task.Status = StatusInProgress
			task.LockedUntil = &until
			task.UpdatedAt = now
			qf.Tasks[idx] = task
		} else {
			qf.Tasks = append(qf.Tasks[:idx], qf.Tasks[idx+1:]...)
		}
		qf.LastUpdated = now
		return m.Write(qf)
	})
	return task, ok, err
}

// IsEligibleForPop reports whether t can be popped: status pending or
// failed, and its lease (if any) has expired.
func IsEligibleForPop(t Task, now time.Time) bool {
	if t.Status != StatusPending && t.Status != StatusFailed {
		return false
	}
	if t.LockedUntil != nil && t.LockedUntil.After(now) {
		return false
	}
	return true
}

// Lock transitions taskID to in-progress with a lease of ttlSeconds,
// leaving it in place in the queue (the synchronous counterpart to Pop's
// TTL mode, used when the engine already knows which task it wants to
// run next rather than popping whatever is eligible).
func (m *Manager) Lock(ctx context.Context, taskID string, ttlSeconds int) (Task, error) {
	var locked Task
	err := m.Vault.WithLock(ctx, LockKind, func() error {
		qf, err := m.Read()
		if err != nil {
			return err
		}
		pos := indexPositionByID(qf.Tasks)
		idx, ok := pos[taskID]
		if !ok {
			return fmt.Errorf("lock: task %q not found", taskID)
		}
		now := time.Now().UTC()
		until := now.Add(time.Duration(ttlSeconds) * time.Second)
		task := qf.Tasks[idx]
		task.Status = StatusInProgress
		task.LockedUntil = &until
		task.UpdatedAt = now
		qf.Tasks[idx] = task
		locked = task
		qf.LastUpdated = now
		return m.Write(qf)
	})
	return locked, err
}

// HasPendingRepairForOriginal reports whether f already contains a
// non-terminal repair task for the given (kind, target) pair, used to avoid
// queuing a second concurrent repair for the same failure.
func HasPendingRepairForOriginal(f File, kind, target string) bool {
	for _, t := range f.Tasks {
		if t.RepairContext == nil {
			continue
		}
		if t.RepairContext.OriginalTask.Kind != kind || t.RepairContext.OriginalTask.Target != target {
			continue
		}
		if t.Status == StatusPending || t.Status == StatusInProgress {
			return true
		}
	}
	return false
}

// Prune removes tasks that are done and whose updatedAt is older than
// maxAge (7 days per the spec), acquiring the queue lock.
func (m *Manager) Prune(ctx context.Context, maxAge time.Duration) error {
	return m.Vault.WithLock(ctx, LockKind, func() error {
		qf, err := m.Read()
		if err != nil {
			return err
		}
		cutoff := time.Now().UTC().Add(-maxAge)
		kept := qf.Tasks[:0:0]
		for _, t := range qf.Tasks {
			if t.Status == StatusDone && t.UpdatedAt.Before(cutoff) {
				continue
			}
			kept = append(kept, t)
		}
		qf.Tasks = kept
		qf.LastUpdated = time.Now().UTC()
		return m.Write(qf)
	})
}
