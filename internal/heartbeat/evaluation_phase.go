package heartbeat

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/boshu2/heartbeat/internal/commitment"
	"github.com/boshu2/heartbeat/internal/drift"
	"github.com/boshu2/heartbeat/internal/evaluator"
	"github.com/boshu2/heartbeat/internal/queue"
	"github.com/boshu2/heartbeat/internal/telemetry"
	"github.com/boshu2/heartbeat/internal/thought"
	"github.com/boshu2/heartbeat/internal/vaultstore"
)

// weakSignalRelevance is the advancement-signal relevance score recorded
// when a pending queue task is only inferred to align with a commitment
// (by label substring match), not explicitly linked to it.
const weakSignalRelevance = 0.3

// runEvaluation implements phase 5a (threshold check, staleness recording,
// CommitmentEvaluator, DriftDetector) and folds in 5d (ThoughtEvaluator +
// evaluation record persistence), since the spec's selectable phase set
// does not expose 5d independently.
func (e *Engine) runEvaluation(ctx context.Context, _ Options, res *Result) {
	now := time.Now().UTC()

	nodes, _ := thought.Scan(e.Vault)
	agg := thought.Evaluate(nodes, now)
	e.lastAggregate = agg
	e.lastTopology = thought.BuildTopology(nodes)
	e.checkThresholds(res)

	st, err := e.Commitments.Load()
	if err != nil {
		res.recommend("commitment store unreadable this cycle")
		return
	}
	active := commitment.Active(st)
	if len(active) == 0 {
		res.recommend("no active commitments")
	}

	qf, _ := e.Queue.Read()
	activity := e.gatherRecentActivity(qf)
	activityStrings := activity.Strings()

	for _, c := range active {
		e.recordStaleness(ctx, c, qf, now, res)

		eval := evaluator.Evaluate(c, activity, now)
		res.Evaluations = append(res.Evaluations, eval)
		e.Telemetry.Emit(telemetry.EventCommitmentEvaluated, map[string]any{
			"commitmentId": c.ID,
			"status":       string(eval.Status),
			"score":        eval.AdvancementScore,
		}, res.RunID)

		if eval.ProposedTransition != nil {
			reason := eval.BriefSummary
			if err := e.Commitments.RecordStateTransition(ctx, c.ID, *eval.ProposedTransition, reason, commitment.ProposedByEngine, false); err != nil {
				res.recommend(fmt.Sprintf("commitment %q: proposed transition to %s rejected: %v", c.Label, *eval.ProposedTransition, err))
			} else {
				res.recommend(fmt.Sprintf("commitment %q: %s -> %s (%s)", c.Label, c.State, *eval.ProposedTransition, reason))
			}
		}
	}

	report := drift.Evaluate(active, activityStrings)
	res.DriftReport = report
	for _, cd := range report.CommitmentDrifts {
		if cd.DriftScore > drift.DriftAlertThreshold {
			_ = e.Commitments.AppendDriftSnapshot(ctx, cd.CommitmentID, commitment.DriftSnapshot{
				At: now, DriftScore: cd.DriftScore, Summary: cd.Summary,
			})
		}
	}
	for _, inv := range report.PriorityInversions {
		res.recommend(inv.Summary)
	}
	if report.SprawlWarning != "" {
		res.recommend(report.SprawlWarning)
	}

	e.Telemetry.Emit(telemetry.EventEvaluationRun, map[string]any{
		"thoughtsScored": len(agg.Scored),
		"orphanRate":     agg.OrphanRate,
	}, res.RunID)
	e.persistEvaluationRecord(agg, now)
}

// checkThresholds counts the maintenance-condition inputs and flags any
// that exceed their configured threshold.
func (e *Engine) checkThresholds(res *Result) {
	inbox, _ := e.Vault.ListMd(vaultstore.DirInbox)
	orphanCount := len(e.lastAggregate.Orphans)
	observations, _ := e.Vault.ListMd(vaultstore.DirObservations)
	tensions, _ := e.Vault.ListMd(vaultstore.DirTensions)
	mineable := e.countMineableSessions()

	c := e.Config.Maintenance.Conditions
	checks := []struct {
		name      string
		count     int
		threshold int
	}{
		{"inbox", len(inbox), c.InboxThreshold},
		{"orphan", orphanCount, c.OrphanThreshold},
		{"observation", len(observations), c.ObservationThreshold},
		{"tension", len(tensions), c.TensionThreshold},
		{"unprocessed_sessions", mineable, c.UnprocessedSessionsThreshold},
	}
	for _, chk := range checks {
		if chk.threshold > 0 && chk.count > chk.threshold {
			res.Conditions = append(res.Conditions, fmt.Sprintf("%s:%d>%d", chk.name, chk.count, chk.threshold))
		}
	}
}

func (e *Engine) countMineableSessions() int {
	names, err := e.Vault.ListMd(vaultstore.DirSessions)
	if err != nil {
		return 0
	}
	count := 0
	for _, name := range names {
		path := e.Vault.Path(vaultstore.DirSessions + "/" + strings.TrimSuffix(name, ".md") + ".json")
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if hasStructuredSessionContent(raw) {
			count++
		}
	}
	return count
}

// recordStaleness flags horizon-expired commitments and, when a pending
// queue task is aligned with c, records a weak advancement signal.
func (e *Engine) recordStaleness(ctx context.Context, c commitment.Commitment, qf queue.File, now time.Time, res *Result) {
	days := commitment.HorizonDays[c.Horizon]
	if days > 0 && !c.LastAdvancedAt.IsZero() {
		staleDays := int(now.Sub(c.LastAdvancedAt).Hours() / 24)
		if staleDays > days {
			res.recommend(fmt.Sprintf("commitment %q has had no advancement signal in %d days (horizon %s)", c.Label, staleDays, c.Horizon))
		}
	}

	label := strings.ToLower(c.Label)
	if label == "" {
		return
	}
	for _, t := range pendingTasksOf(qf) {
		text := strings.ToLower(t.Target + " " + t.SourcePath)
		if strings.Contains(text, label) {
			_ = e.Commitments.RecordAdvancementSignal(ctx, c.ID, commitment.AdvancementSignal{
				At: now, Action: "aligned pending task: " + t.Target,
				RelevanceScore: weakSignalRelevance, Method: commitment.MethodInferred,
			})
			return
		}
	}
}

func (e *Engine) persistEvaluationRecord(agg thought.Aggregate, now time.Time) {
	id := now.Format("20060102") + "-evaluation"
	fields := map[string]any{
		"id":             id,
		"evaluatedAt":    now.Format(time.RFC3339),
		"thoughtsScored": len(agg.Scored),
		"avgImpactScore": agg.AvgImpactScore,
		"orphanRate":     agg.OrphanRate,
	}
	var body strings.Builder
	body.WriteString("## Top Thoughts\n\n| id | impact |\n|---|---|\n")
	for _, s := range agg.TopByImpact {
		fmt.Fprintf(&body, "| %s | %.2f |\n", s.Node.ID, s.ImpactScore)
	}
	body.WriteString("\n## Orphans\n\n| id | impact |\n|---|---|\n")
	for _, s := range agg.Orphans {
		fmt.Fprintf(&body, "| %s | %.2f |\n", s.Node.ID, s.ImpactScore)
	}
	text, err := vaultstore.WriteFrontmatter(fields, body.String())
	if err != nil {
		return
	}
	rel := vaultstore.DirEvaluations + "/" + now.Format("2006-01-02") + ".md"
	_ = e.Vault.WriteAtomic(rel, text)
}
