package heartbeat

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/boshu2/heartbeat/internal/commitment"
	"github.com/boshu2/heartbeat/internal/external"
	"github.com/boshu2/heartbeat/internal/perception"
	"github.com/boshu2/heartbeat/internal/telemetry"
	"github.com/boshu2/heartbeat/internal/vaultstore"
	"golang.org/x/sync/errgroup"
)

var slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugNonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "capture"
	}
	return s
}

type polledBatch struct {
	sourceID string
	captures []perception.FeedCapture
}

// runPerception implements phase 4a: concurrent per-source polling with a
// per-source timeout, admission against identity context, inbox writes,
// and noise-tracker updates.
func (e *Engine) runPerception(ctx context.Context, _ Options, res *Result) {
	batches := e.pollAllSources(ctx)

	pctx := e.buildPerceptionContext()
	today := time.Now().UTC().Format("2006-01-02")

	for _, batch := range batches {
		fresh := e.filterAlreadySeen(batch)

		admission := perception.Admit(fresh, pctx, e.PerceptionPolicy)
		res.count("perceptionAdmitted", len(admission.Admitted))
		res.count("perceptionFiltered", len(admission.Filtered))
		for _, hint := range admission.TuningHints {
			res.recommend(fmt.Sprintf("source %q: %s", batch.sourceID, hint))
		}

		seenIDs := make([]string, 0, len(fresh))
		for _, c := range fresh {
			seenIDs = append(seenIDs, c.ID)
		}
		if len(seenIDs) > 0 {
			_ = e.Cursors.MarkSeen(batch.sourceID, seenIDs)
		}

		for _, s := range admission.Admitted {
			e.writeInboxCapture(s.Capture)
		}

		alert, err := e.Noise.Record(batch.sourceID, today, len(admission.Admitted), len(fresh))
		if err == nil && alert != nil {
			res.NoiseAlerts = append(res.NoiseAlerts, alert.Recommendation)
			e.Telemetry.Emit(telemetry.EventNoiseAlert, alert, res.RunID)
		}

		e.Telemetry.Emit(telemetry.EventPerceptionAdmitted, map[string]any{
			"sourceId": batch.sourceID,
			"admitted": len(admission.Admitted),
			"total":    len(fresh),
		}, res.RunID)
	}
}

// pollAllSources polls every enabled source concurrently, each bounded by
// external.DefaultPollTimeout; a timed-out or erroring source contributes
// an empty batch rather than aborting the phase.
func (e *Engine) pollAllSources(ctx context.Context) []polledBatch {
	var mu sync.Mutex
	var batches []polledBatch

	group, gctx := errgroup.WithContext(ctx)
	for _, src := range e.Sources {
		src := src
		if !src.Enabled || src.Poll == nil {
			continue
		}
		group.Go(func() error {
			pollCtx, cancel := context.WithTimeout(gctx, external.DefaultPollTimeout)
			defer cancel()

			captures, err := src.Poll(pollCtx, e.Vault.Root)
			if err != nil {
				captures = nil
			}
			if src.MaxItemsPerPoll > 0 && len(captures) > src.MaxItemsPerPoll {
				captures = captures[:src.MaxItemsPerPoll]
			}
			mu.Lock()
			batches = append(batches, polledBatch{sourceID: src.ID, captures: captures})
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return batches
}

func (e *Engine) filterAlreadySeen(batch polledBatch) []perception.FeedCapture {
	fresh := make([]perception.FeedCapture, 0, len(batch.captures))
	for _, c := range batch.captures {
		seen, err := e.Cursors.HasSeen(batch.sourceID, c.ID)
		if err == nil && seen {
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh
}

// buildPerceptionContext assembles the identity signals captures are
// scored against, preferring an injected IdentityContext (tests, or a
// richer vault-aware implementation) and falling back to active
// commitment labels read straight from the commitment store.
func (e *Engine) buildPerceptionContext() perception.Context {
	if e.IdentityContext != nil {
		return e.IdentityContext()
	}
	st, err := e.Commitments.Load()
	if err != nil {
		return perception.Context{}
	}
	var labels []string
	for _, c := range commitment.Active(st) {
		labels = append(labels, c.Label)
	}
	return perception.Context{CommitmentLabels: labels}
}

func (e *Engine) writeInboxCapture(c perception.FeedCapture) {
	slug := slugify(c.Title)
	if slug == "capture" {
		slug = slugify(c.ID)
	}
	rel := vaultstore.DirInbox + "/" + slug + ".md"
	if e.Vault.Exists(rel) {
		return
	}

	var markdown string
	if source := e.sourceByID(c.SourceID); source != nil && source.ToInboxMarkdown != nil {
		markdown = source.ToInboxMarkdown(c)
	} else {
		markdown = defaultInboxMarkdown(c)
	}
	_ = e.Vault.WriteAtomic(rel, markdown)
}

func (e *Engine) sourceByID(id string) *external.FeedSource {
	for i := range e.Sources {
		if e.Sources[i].ID == id {
			return &e.Sources[i]
		}
	}
	return nil
}

func defaultInboxMarkdown(c perception.FeedCapture) string {
	fields := map[string]any{
		"title":    c.Title,
		"source":   c.SourceID,
		"captured": c.CapturedAt.Format(time.RFC3339),
		"tags":     []string{"inbox", "perception"},
	}
	text, err := vaultstore.WriteFrontmatter(fields, c.Content+"\n")
	if err != nil {
		return c.Content
	}
	return text
}
