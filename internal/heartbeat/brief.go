package heartbeat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boshu2/heartbeat/internal/commitment"
	"github.com/boshu2/heartbeat/internal/vaultstore"
)

const (
	briefLLMTimeout  = 60 * time.Second
	memoryLLMTimeout = 30 * time.Second
	briefStaleAfter  = 12 * time.Hour
	workingMemoryTailLines = 30
)

// runBrief implements phase 6: the morning brief is synthesized only for
// morning/manual slots, and only when something happened this cycle or the
// existing brief has gone stale.
func (e *Engine) runBrief(ctx context.Context, opts Options, res *Result) {
	if opts.RunSlot != SlotMorning && opts.RunSlot != SlotManual {
		return
	}
	if !e.shouldWriteBrief(res) {
		return
	}

	prompt := e.buildBriefPrompt(res)

	var brief string
	if e.LLM != nil {
		llmCtx, cancel := context.WithTimeout(ctx, briefLLMTimeout)
		out, err := e.LLM.Complete(llmCtx, prompt)
		cancel()
		if err == nil && strings.TrimSpace(out) != "" {
			brief = out
		}
	}
	if brief == "" {
		brief = fallbackBrief(res)
	}

	if err := e.Vault.WriteAtomic(vaultstore.FileMorningBrief, brief); err == nil {
		res.BriefWritten = true
	}
}

func (e *Engine) shouldWriteBrief(res *Result) bool {
	actionsOccurred := len(res.TriggeredTasks) > 0 || res.ThresholdsActed > 0 || len(res.Evaluations) > 0
	if actionsOccurred {
		return true
	}
	info := e.Vault.Stat(vaultstore.FileMorningBrief)
	if info == nil {
		return true
	}
	return time.Since(info.ModTime()) > briefStaleAfter
}

func (e *Engine) buildBriefPrompt(res *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Conditions flagged this cycle: %s\n\n", strings.Join(res.Conditions, ", "))

	st, _ := e.Commitments.Load()
	b.WriteString("Active commitments:\n")
	for _, c := range commitment.Active(st) {
		fmt.Fprintf(&b, "- %s (%s, horizon %s)\n", c.Label, c.State, c.Horizon)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Execution: %d tasks triggered, %d repairs spawned, %d repairs skipped.\n\n",
		len(res.TriggeredTasks), res.RepairsSpawned, res.RepairsSkipped)

	if goals, ok, _ := e.Vault.Read(vaultstore.SelfGoals); ok {
		b.WriteString("Goals:\n")
		b.WriteString(goals)
		b.WriteString("\n\n")
	}

	if mem, ok, _ := e.Vault.Read(vaultstore.SelfWorkingMemory); ok {
		b.WriteString("Recent working memory:\n")
		b.WriteString(tailLines(mem, workingMemoryTailLines))
		b.WriteString("\n\n")
	}

	b.WriteString("Graph topology:\n")
	for _, thin := range e.lastTopology.ThinMaps {
		fmt.Fprintf(&b, "- thin map: %s\n", thin)
	}
	for _, sink := range e.lastTopology.SinkNodes {
		fmt.Fprintf(&b, "- sink node: %s\n", sink)
	}
	b.WriteString("\n")

	if len(res.NoiseAlerts) > 0 {
		b.WriteString("Perception noise alerts:\n")
		for _, a := range res.NoiseAlerts {
			fmt.Fprintf(&b, "- %s\n", a)
		}
		b.WriteString("\n")
	}

	b.WriteString("Recommendations:\n")
	for _, r := range res.Recommendations {
		fmt.Fprintf(&b, "- %s\n", r)
	}

	b.WriteString("\nWrite a short morning brief from this context, under the headings Attention Needed, Active Commitments, Recommendations.\n")
	return b.String()
}

func fallbackBrief(res *Result) string {
	var b strings.Builder
	b.WriteString("# Morning Brief\n\n## Attention Needed\n\n")
	if len(res.Conditions) == 0 {
		b.WriteString("No thresholds exceeded.\n")
	}
	for _, c := range res.Conditions {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	b.WriteString("\n## Active Commitments\n\n")
	for _, e := range res.Evaluations {
		fmt.Fprintf(&b, "- %s: %s\n", e.CommitmentID, e.Status)
	}

	b.WriteString("\n## Recommendations\n\n")
	for _, r := range res.Recommendations {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	return b.String()
}

// runWorkingMemory implements phase 7: append a short entry summarizing
// what this cycle did to self/working-memory.md.
func (e *Engine) runWorkingMemory(ctx context.Context, _ Options, res *Result) {
	existing, _, _ := e.Vault.Read(vaultstore.SelfWorkingMemory)
	tail := tailLines(existing, workingMemoryTailLines)

	actions := summarizeActions(res)

	var entry string
	if e.LLM != nil {
		prompt := fmt.Sprintf("Working memory tail:\n%s\n\nActions performed this cycle:\n%s\n\nAppend a 3-5 line working memory entry.", tail, actions)
		llmCtx, cancel := context.WithTimeout(ctx, memoryLLMTimeout)
		out, err := e.LLM.Complete(llmCtx, prompt)
		cancel()
		if err == nil && strings.TrimSpace(out) != "" {
			entry = out
		}
	}
	if entry == "" {
		entry = fmt.Sprintf("## %s\n\n%s\n", time.Now().UTC().Format(time.RFC3339), actions)
	}

	updated := existing
	if updated != "" && !strings.HasSuffix(updated, "\n") {
		updated += "\n"
	}
	updated += "\n" + strings.TrimRight(entry, "\n") + "\n"
	_ = e.Vault.WriteAtomic(vaultstore.SelfWorkingMemory, updated)
}

func summarizeActions(res *Result) string {
	if len(res.TriggeredTasks) == 0 && res.ThresholdsActed == 0 {
		return "No actions taken this cycle."
	}
	var b strings.Builder
	for _, t := range res.TriggeredTasks {
		status := "advisory"
		if t.Executed {
			status = "executed"
			if t.Success {
				status = "succeeded"
			} else {
				status = "failed"
			}
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", t.Target, t.Phase, status)
	}
	if res.ThresholdsActed > 0 {
		fmt.Fprintf(&b, "- %d maintenance actions taken\n", res.ThresholdsActed)
	}
	return b.String()
}

func tailLines(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
