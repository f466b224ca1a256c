package heartbeat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/boshu2/heartbeat/internal/idgen"
	"github.com/boshu2/heartbeat/internal/queue"
	"github.com/boshu2/heartbeat/internal/vaultstore"
)

// maintenanceActionPerCycleCap bounds how many non-inbox threshold actions
// runThresholdActions will take in a single cycle.
const maintenanceActionPerCycleCap = 2

// autoSeedDefaultCap bounds how many inbox items are auto-seeded into the
// queue per cycle outside the overnight slot, which is unbounded.
const autoSeedDefaultCap = 3

// runThresholdActions implements phase 5c: inbox auto-seeding into queued
// surface tasks, and bounded handling of any other exceeded maintenance
// condition collected during 5a.
func (e *Engine) runThresholdActions(ctx context.Context, opts Options, res *Result) {
	e.autoSeedInbox(ctx, opts, res)
	e.actOnOtherConditions(ctx, opts, res)
}

func (e *Engine) autoSeedInbox(ctx context.Context, opts Options, res *Result) {
	names, err := e.Vault.ListMd(vaultstore.DirInbox)
	if err != nil || len(names) == 0 {
		return
	}

	limit := autoSeedDefaultCap
	if opts.RunSlot == SlotOvernight {
		limit = len(names)
	}
	if limit > len(names) {
		limit = len(names)
	}

	qf, err := e.Queue.Read()
	if err != nil {
		res.recommend("queue unreadable; skipping inbox auto-seed")
		return
	}

	seeded := 0
	today := time.Now().UTC().Format("2006-01-02")
	for _, name := range names {
		if seeded >= limit {
			break
		}
		slug := strings.TrimSuffix(name, ".md")
		target := "inbox-item:" + slug
		if equivalentTaskExists(qf.Tasks, vaultstore.DirInbox+"/"+name, target) {
			continue
		}

		archiveRel := fmt.Sprintf("%s/%s-%s/%s", vaultstore.DirArchive, today, slug, name)
		if err := e.Vault.Move(vaultstore.DirInbox+"/"+name, archiveRel); err != nil {
			res.recommend(fmt.Sprintf("inbox auto-seed: could not archive %s: %v", name, err))
			continue
		}

		task := queue.Task{
			TaskID:        idgen.NewUUID(),
			Target:        target,
			SourcePath:    archiveRel,
			Phase:         queue.PhaseSurface,
			Status:        queue.StatusPending,
			ExecutionMode: queue.ExecutionOrchestrated,
			CreatedAt:     time.Now().UTC(),
			UpdatedAt:     time.Now().UTC(),
			MaxAttempts:   3,
		}
		if err := e.Queue.Push(ctx, task); err != nil {
			res.recommend(fmt.Sprintf("inbox auto-seed: could not enqueue task for %s: %v", name, err))
			continue
		}
		qf.Tasks = append(qf.Tasks, task)
		seeded++
	}
	if seeded > 0 {
		res.count("inboxAutoSeeded", seeded)
		res.ThresholdsActed += seeded
	}
}

func equivalentTaskExists(tasks []queue.Task, sourcePath, target string) bool {
	for _, t := range tasks {
		if t.Status == queue.StatusArchived {
			continue
		}
		if t.SourcePath == sourcePath || t.Target == target {
			return true
		}
	}
	return false
}

// actOnOtherConditions handles every flagged condition other than "inbox"
// (which autoSeedInbox already owns), capped at maintenanceActionPerCycleCap
// per cycle.
func (e *Engine) actOnOtherConditions(ctx context.Context, opts Options, res *Result) {
	acted := 0
	for _, condition := range res.Conditions {
		if acted >= maintenanceActionPerCycleCap {
			break
		}
		name := strings.SplitN(condition, ":", 2)[0]
		if name == "inbox" {
			continue
		}

		mode := opts.ThresholdMode
		if mode == "" {
			mode = ModeQueueOnly
		}
		if mode == ModeExecute && e.Runner != nil {
			task := queue.Task{
				TaskID:        idgen.NewUUID(),
				Target:        "maintenance:" + name,
				Phase:         queue.PhaseSurface,
				Status:        queue.StatusInProgress,
				ExecutionMode: queue.ExecutionOrchestrated,
				CreatedAt:     time.Now().UTC(),
				UpdatedAt:     time.Now().UTC(),
				MaxAttempts:   1,
			}
			runCtx, cancel := context.WithTimeout(ctx, time.Duration(opts.RunnerTimeoutMs)*time.Millisecond)
			result, err := e.Runner.Run(runCtx, task)
			cancel()
			if err != nil || !result.Success {
				res.recommend(fmt.Sprintf("maintenance action %q failed: %v", name, err))
			}
		} else {
			task := queue.Task{
				TaskID:        idgen.NewUUID(),
				Target:        "maintenance:" + name,
				Phase:         queue.PhaseSurface,
				Status:        queue.StatusPending,
				ExecutionMode: queue.ExecutionOrchestrated,
				CreatedAt:     time.Now().UTC(),
				UpdatedAt:     time.Now().UTC(),
				MaxAttempts:   3,
			}
			if err := e.Queue.Push(ctx, task); err != nil {
				res.recommend(fmt.Sprintf("maintenance action %q: could not enqueue: %v", name, err))
				continue
			}
		}
		acted++
		res.ThresholdsActed++
	}
}

// pruneStaleSessionStubs removes session stub files under ops/sessions
// whose modification time is older than maxAge, per the cycle-end
// persistence ordering. Best-effort: individual stat/remove failures are
// skipped rather than propagated, since this runs unconditionally inside a
// deferred cleanup.
func (e *Engine) pruneStaleSessionStubs(maxAge time.Duration) {
	dir := e.Vault.Path(vaultstore.DirSessions)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		_ = os.Remove(filepath.Join(dir, entry.Name()))
	}
}
