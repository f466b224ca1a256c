package heartbeat

import (
	"github.com/boshu2/heartbeat/internal/evaluator"
	"github.com/boshu2/heartbeat/internal/queue"
	"github.com/boshu2/heartbeat/internal/thought"
)

// pendingTasksOf returns the tasks in qf eligible for consideration this
// cycle: pending or failed, per the same eligibility rule Pop uses.
func pendingTasksOf(qf queue.File) []queue.Task {
	var out []queue.Task
	for _, t := range qf.Tasks {
		if t.Status == queue.StatusPending || t.Status == queue.StatusFailed {
			out = append(out, t)
		}
	}
	return out
}

// gatherRecentActivity builds the evidence pool commitment evaluation scores
// against: targets of done tasks in the queue snapshot fill
// QueueTasksCompleted and thought.Scan node IDs fill ThoughtsCreated.
// SessionSummaries is left empty, since the engine has no session-mining
// subsystem of its own.
func (e *Engine) gatherRecentActivity(qf queue.File) evaluator.RecentActivity {
	var activity evaluator.RecentActivity
	for _, t := range qf.Tasks {
		if t.Status == queue.StatusDone {
			activity.QueueTasksCompleted = append(activity.QueueTasksCompleted, t.Target)
		}
	}
	nodes, _ := thought.Scan(e.Vault)
	for _, n := range nodes {
		activity.ThoughtsCreated = append(activity.ThoughtsCreated, n.ID)
	}
	return activity
}
