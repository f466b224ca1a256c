package heartbeat

import (
	"context"
	"time"

	"github.com/boshu2/heartbeat/internal/commitment"
	"github.com/boshu2/heartbeat/internal/config"
	"github.com/boshu2/heartbeat/internal/external"
	"github.com/boshu2/heartbeat/internal/idgen"
	"github.com/boshu2/heartbeat/internal/perception"
	"github.com/boshu2/heartbeat/internal/queue"
	"github.com/boshu2/heartbeat/internal/repair"
	"github.com/boshu2/heartbeat/internal/telemetry"
	"github.com/boshu2/heartbeat/internal/thought"
	"github.com/boshu2/heartbeat/internal/vaultstore"
)

// pruneMaxAge is how long a done task survives before Prune drops it.
const pruneMaxAge = 7 * 24 * time.Hour

// sessionStubMaxAge bounds how long a session stub under ops/sessions is
// kept before the persistence-ordering cleanup removes it.
const sessionStubMaxAge = 30 * 24 * time.Hour

// Engine wires C2-C8 and C10-C11 into the phased cycle described by the
// heartbeat spec. Every collaborator it invokes by interface (TaskRunner,
// FeedSource.Poll, LLMRunner) is an external concern the engine itself
// never implements.
type Engine struct {
	Vault       *vaultstore.Vault
	Queue       *queue.Manager
	Commitments *commitment.CommitmentStore
	Cursors     *perception.CursorStore
	Noise       *perception.NoiseTracker
	Telemetry   *telemetry.Sink
	Sources     []external.FeedSource
	Runner      external.TaskRunner
	LLM         external.LLMRunner
	Diffs       repair.DiffCollector
	Files       repair.FileReader
	Config      *config.Config
	PerceptionPolicy perception.Policy
	IdentityContext  func() perception.Context

	// lastTopology is populated by the evaluation phase and read back by
	// the brief phase within the same cycle.
	lastTopology thought.Topology
	lastAggregate thought.Aggregate
}

// New wires an Engine over vault with cfg; cfg may be nil to use defaults.
func New(vault *vaultstore.Vault, cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Engine{
		Vault:            vault,
		Queue:            queue.New(vault),
		Commitments:      commitment.New(vault),
		Cursors:          perception.NewCursorStore(vault),
		Noise:            perception.NewNoiseTracker(vault),
		Telemetry:        telemetry.New(vault),
		Config:           cfg,
		PerceptionPolicy: perception.DefaultPolicy,
	}
}

// Run executes one heartbeat cycle. The only error it returns is a fatal
// initialization failure (e.g. the vault root cannot be locked at all);
// every recoverable failure is folded into the returned Result instead.
func (e *Engine) Run(ctx context.Context, opts Options) (Result, error) {
	now := time.Now().UTC()
	runID, err := idgen.NewULID()
	if err != nil {
		runID = ""
	}
	res := Result{RunID: runID, StartedAt: now, Counters: map[string]int{}}

	depth := currentDepth()
	if resetDepthIfHumanActivity(e.Vault) {
		depth = 0
	}
	if depth >= MaxHeartbeatDepth {
		res.DepthExceeded = true
		res.recommend("heartbeat depth limit reached; skipping this cycle to avoid unbounded recursion")
		e.Telemetry.Emit(telemetry.EventDepthExceeded, map[string]int{"depth": depth}, runID)
		e.writeMarker(now)
		return res, nil
	}

	defer func() {
		e.persistAndPrune(ctx, now)
		e.writeMarker(time.Now().UTC())
	}()

	if opts.MaxActionsPerRun == 0 {
		opts.MaxActionsPerRun = e.Config.MaxActionsPerRun
	}
	if opts.RunnerTimeoutMs == 0 {
		opts.RunnerTimeoutMs = e.Config.RunnerTimeoutMs
	}
	if opts.TaskSelection == "" {
		opts.TaskSelection = e.Config.TaskSelection
	}
	if len(opts.Phases) == 0 {
		opts.Phases = AllPhases
	}

	if opts.hasPhase(PhasePerception) {
		e.runPerception(ctx, opts, &res)
	}
	if opts.hasPhase(PhaseEvaluation) {
		e.runEvaluation(ctx, opts, &res)
	}
	if opts.hasPhase(PhaseExecution) {
		e.runExecution(ctx, opts, &res)
	}
	if opts.hasPhase(PhaseThreshold) {
		e.runThresholdActions(ctx, opts, &res)
	}
	if opts.hasPhase(PhaseBrief) {
		e.runBrief(ctx, opts, &res)
	}
	if opts.hasPhase(PhaseMemory) {
		e.runWorkingMemory(ctx, opts, &res)
	}

	e.Telemetry.Emit(telemetry.EventHeartbeatRun, map[string]any{
		"slot":           string(opts.RunSlot),
		"tasksTriggered": len(res.TriggeredTasks),
		"conditions":     res.Conditions,
	}, res.RunID)

	return res, nil
}

// persistAndPrune implements the spec's cycle-end persistence ordering:
// commitments are already durable (the commitment store writes under its
// own lock on every mutating call), so what remains here is queue pruning
// and session-stub cleanup.
func (e *Engine) persistAndPrune(ctx context.Context, _ time.Time) {
	_ = e.Queue.Prune(ctx, pruneMaxAge)
	e.pruneStaleSessionStubs(sessionStubMaxAge)
}

func (e *Engine) writeMarker(t time.Time) {
	_ = e.Vault.WriteAtomic(vaultstore.FileMarker, t.Format(time.RFC3339))
}
