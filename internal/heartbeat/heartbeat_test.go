package heartbeat

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/boshu2/heartbeat/internal/external"
	"github.com/boshu2/heartbeat/internal/queue"
	"github.com/boshu2/heartbeat/internal/vaultstore"
)

type stubRunner struct {
	result external.RunResult
	err    error
	calls  int
}

func (s *stubRunner) Run(_ context.Context, _ queue.Task) (external.RunResult, error) {
	s.calls++
	return s.result, s.err
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	v := vaultstore.Open(t.TempDir())
	return New(v, nil)
}

func pushTask(t *testing.T, e *Engine, taskID, target string) {
	t.Helper()
	task := queue.Task{
		TaskID:        taskID,
		Target:        target,
		Phase:         queue.PhaseSurface,
		Status:        queue.StatusPending,
		ExecutionMode: queue.ExecutionOrchestrated,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
		MaxAttempts:   3,
	}
	if err := e.Queue.Push(context.Background(), task); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
}

func TestRun_DepthGuard_SkipsCycle(t *testing.T) {
	e := newTestEngine(t)
	t.Setenv(EnvDepthKey, "2")

	res, err := e.Run(context.Background(), Options{Phases: []Phase{PhaseExecution}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.DepthExceeded {
		t.Fatalf("Run() DepthExceeded = false, want true at depth %s", os.Getenv(EnvDepthKey))
	}
	if len(res.TriggeredTasks) != 0 {
		t.Fatalf("Run() TriggeredTasks = %v, want none when depth exceeded", res.TriggeredTasks)
	}
}

func TestRunExecution_SuccessAdvancesPhase(t *testing.T) {
	e := newTestEngine(t)
	pushTask(t, e, "t1", "n1")
	runner := &stubRunner{result: external.RunResult{Success: true}}
	e.Runner = runner

	var res Result
	res.Counters = map[string]int{}
	e.runExecution(context.Background(), Options{MaxActionsPerRun: 3, RunnerTimeoutMs: 1000}, &res)

	if runner.calls != 1 {
		t.Fatalf("runner called %d times, want 1", runner.calls)
	}
	if len(res.TriggeredTasks) != 1 || !res.TriggeredTasks[0].Success {
		t.Fatalf("TriggeredTasks = %+v, want one successful outcome", res.TriggeredTasks)
	}

	qf, err := e.Queue.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	var original queue.Task
	for _, task := range qf.Tasks {
		if task.TaskID == "t1" {
			original = task
		}
	}
	if original.Phase != queue.PhaseReflect {
		t.Fatalf("original task phase = %s, want advanced to reflect", original.Phase)
	}
	if !original.HasCompletedPhase(queue.PhaseSurface) {
		t.Fatalf("original task completedPhases = %v, want surface marked complete", original.CompletedPhases)
	}
}

func TestRunExecution_FailureSpawnsExactlyOneRepair(t *testing.T) {
	e := newTestEngine(t)
	pushTask(t, e, "t1", "n1")
	runner := &stubRunner{result: external.RunResult{Success: false, ErrorMsg: "boom"}}
	e.Runner = runner

	opts := Options{MaxActionsPerRun: 3, RunnerTimeoutMs: 1000}

	var res1 Result
	res1.Counters = map[string]int{}
	e.runExecution(context.Background(), opts, &res1)
	if res1.RepairsSpawned != 1 {
		t.Fatalf("first failure: RepairsSpawned = %d, want 1", res1.RepairsSpawned)
	}

	// Second cycle: the original task is back to pending (attempts < max),
	// but a repair is already queued for it, so no second repair should
	// be spawned even if it fails again.
	var res2 Result
	res2.Counters = map[string]int{}
	e.runExecution(context.Background(), opts, &res2)
	if res2.RepairsSpawned != 0 {
		t.Fatalf("second failure: RepairsSpawned = %d, want 0 (already pending)", res2.RepairsSpawned)
	}
	if res2.RepairsSkipped == 0 {
		t.Fatalf("second failure: RepairsSkipped = 0, want at least 1")
	}
}

func TestRunExecution_DryRunRecordsAdvisoryOnly(t *testing.T) {
	e := newTestEngine(t)
	pushTask(t, e, "t1", "n1")
	runner := &stubRunner{result: external.RunResult{Success: true}}
	e.Runner = runner

	var res Result
	res.Counters = map[string]int{}
	e.runExecution(context.Background(), Options{MaxActionsPerRun: 3, DryRun: true, RunnerTimeoutMs: 1000}, &res)

	if runner.calls != 0 {
		t.Fatalf("runner called %d times, want 0 for dry-run", runner.calls)
	}
	if len(res.TriggeredTasks) != 1 || !res.TriggeredTasks[0].Advisory || res.TriggeredTasks[0].AdvisoryReason != "dry-run" {
		t.Fatalf("TriggeredTasks = %+v, want one dry-run advisory", res.TriggeredTasks)
	}
}

func TestAutoSeedInbox_MovesAndEnqueues(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Vault.WriteAtomic(vaultstore.DirInbox+"/capture-one.md", "---\ntitle: one\n---\nbody\n"); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}

	var res Result
	res.Counters = map[string]int{}
	e.autoSeedInbox(context.Background(), Options{RunSlot: SlotManual}, &res)

	if res.ThresholdsActed != 1 {
		t.Fatalf("ThresholdsActed = %d, want 1", res.ThresholdsActed)
	}
	if e.Vault.Exists(vaultstore.DirInbox + "/capture-one.md") {
		t.Fatalf("inbox item still present, want archived")
	}

	qf, err := e.Queue.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(qf.Tasks) != 1 || qf.Tasks[0].Target != "inbox-item:capture-one" {
		t.Fatalf("Tasks = %+v, want one inbox-item surface task", qf.Tasks)
	}
}

func TestAutoSeedInbox_SkipsWhenEquivalentTaskExists(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Vault.WriteAtomic(vaultstore.DirInbox+"/capture-one.md", "---\ntitle: one\n---\nbody\n"); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}
	pushTask(t, e, "existing", "inbox-item:capture-one")

	var res Result
	res.Counters = map[string]int{}
	e.autoSeedInbox(context.Background(), Options{RunSlot: SlotManual}, &res)

	if res.ThresholdsActed != 0 {
		t.Fatalf("ThresholdsActed = %d, want 0 when equivalent task already exists", res.ThresholdsActed)
	}
	if !e.Vault.Exists(vaultstore.DirInbox + "/capture-one.md") {
		t.Fatalf("inbox item archived, want left in place since a task already covers it")
	}
}

func TestPruneStaleSessionStubs_RemovesOnlyOld(t *testing.T) {
	e := newTestEngine(t)
	dir := e.Vault.Path(vaultstore.DirSessions)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	oldPath := dir + "/old.json"
	freshPath := dir + "/fresh.json"
	if err := os.WriteFile(oldPath, []byte("{}"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(freshPath, []byte("{}"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	old := time.Now().Add(-40 * 24 * time.Hour)
	if err := os.Chtimes(oldPath, old, old); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	e.pruneStaleSessionStubs(30 * 24 * time.Hour)

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("old session stub still present, want pruned")
	}
	if _, err := os.Stat(freshPath); err != nil {
		t.Fatalf("fresh session stub removed, want kept: %v", err)
	}
}
