// Package filter implements CommitmentFilter: relevance-ranks and reorders
// pending tasks against active commitments, defers work aligned with
// paused commitments, and protects creative sprints from maintenance churn.
package filter

import (
	"sort"
	"strings"

	"github.com/boshu2/heartbeat/internal/commitment"
	"github.com/boshu2/heartbeat/internal/perception"
	"github.com/boshu2/heartbeat/internal/queue"
)

// maintenanceTargets are task targets the creative-sprint protection defers
// when the top active commitment looks like creative work.
var maintenanceTargets = map[string]bool{
	"process-inbox":       true,
	"connect-orphans":      true,
	"triage-observations": true,
	"resolve-tensions":    true,
}

var creativeWords = []string{"write", "build", "design", "ship", "create"}

// Deferral records why a task was held back rather than selected this cycle.
type Deferral struct {
	TaskID    string
	Rationale string
}

// Result is the filter's verdict: a reordered task list, plus deferrals
// pulled out of it.
type Result struct {
	Tasks     []queue.Task
	Deferrals []Deferral
}

func combinedText(t queue.Task) string {
	return strings.ToLower(t.Target + " " + t.SourcePath)
}

// scoreTask returns the best relevance match of t against commitments.
func scoreTask(t queue.Task, commitments []commitment.Commitment) float64 {
	text := combinedText(t)
	textTokens := tokenSet(text)
	best := 0.0
	for _, c := range commitments {
		label := strings.ToLower(c.Label)
		if label == "" {
			continue
		}
		if strings.Contains(text, label) {
			return 1.0
		}
		labelTokens := perception.Tokenize(c.Label)
		if len(labelTokens) == 0 {
			continue
		}
		hits := 0
		for _, tok := range labelTokens {
			if textTokens[tok] {
				hits++
			}
		}
		ratio := float64(hits) / float64(len(labelTokens))
		if ratio > best {
			best = ratio
		}
	}
	return best
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range perception.Tokenize(s) {
		set[t] = true
	}
	return set
}

func bestPriority(t queue.Task, active []commitment.Commitment) (priority int, matched bool) {
	best := 0
	for _, c := range active {
		label := strings.ToLower(c.Label)
		text := combinedText(t)
		if label == "" {
			continue
		}
		aligned := strings.Contains(text, label)
		if !aligned {
			labelTokens := perception.Tokenize(c.Label)
			textTokens := tokenSet(text)
			for _, tok := range labelTokens {
				if textTokens[tok] {
					aligned = true
					break
				}
			}
		}
		if !aligned {
			continue
		}
		if !matched || c.Priority < best {
			best = c.Priority
			matched = true
		}
	}
	return best, matched
}

// Apply reorders tasks against commitments per the spec's sort order,
// defers tasks aligned with paused commitments and (when the top active
// commitment is creative work) maintenance-action tasks, and returns the
// remaining tasks in priority order. With no commitments at all, tasks pass
// through unchanged.
func Apply(tasks []queue.Task, commitments []commitment.Commitment) Result {
	if len(commitments) == 0 {
		return Result{Tasks: tasks}
	}

	var active, paused []commitment.Commitment
	for _, c := range commitments {
		switch c.State {
		case commitment.StateActive:
			active = append(active, c)
		case commitment.StatePaused:
			paused = append(paused, c)
		}
	}

	topCreative := topActiveIsCreative(active)

	var kept []scoredTask
	var result Result

	for idx, t := range tasks {
		text := combinedText(t)

		if pausedLabel, deferred := matchesPaused(text, paused); deferred {
			result.Deferrals = append(result.Deferrals, Deferral{
				TaskID:    t.TaskID,
				Rationale: "aligned with paused commitment " + pausedLabel,
			})
			continue
		}

		if topCreative && maintenanceTargets[t.Target] {
			result.Deferrals = append(result.Deferrals, Deferral{
				TaskID:    t.TaskID,
				Rationale: "deferred during a creative sprint on the top-priority commitment",
			})
			continue
		}

		priority, matched := bestPriority(t, active)
		if !matched {
			priority = maxPriorityOf(active) + 1
		}
		kept = append(kept, scoredTask{task: t, score: scoreTask(t, active), priority: priority, idx: idx})
	}

	sort.SliceStable(kept, func(i, j int) bool { return less(kept[i], kept[j]) })

	result.Tasks = make([]queue.Task, 0, len(kept))
	for _, st := range kept {
		result.Tasks = append(result.Tasks, st.task)
	}
	return result
}

func matchesPaused(text string, paused []commitment.Commitment) (string, bool) {
	for _, c := range paused {
		label := strings.ToLower(c.Label)
		if label != "" && strings.Contains(text, label) {
			return c.Label, true
		}
	}
	return "", false
}

func topActiveIsCreative(active []commitment.Commitment) bool {
	if len(active) == 0 {
		return false
	}
	top := active[0]
	for _, c := range active[1:] {
		if c.Priority < top.Priority {
			top = c
		}
	}
	label := strings.ToLower(top.Label)
	for _, w := range creativeWords {
		if strings.Contains(label, w) {
			return true
		}
	}
	return false
}

func maxPriorityOf(active []commitment.Commitment) int {
	max := 0
	for _, c := range active {
		if c.Priority > max {
			max = c.Priority
		}
	}
	return max
}

type scoredTask struct {
	task     queue.Task
	score    float64
	priority int
	idx      int
}

func less(a, b scoredTask) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if a.score != b.score {
		return a.score > b.score
	}
	return a.idx < b.idx
}
