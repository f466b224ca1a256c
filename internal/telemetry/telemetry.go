// Package telemetry implements the heartbeat engine's append-only event
// sink: every cycle emits a closed set of event types to a JSONL file, and
// a write failure here must never influence control flow elsewhere.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/boshu2/heartbeat/internal/vaultstore"
)

// EventType is a closed enum of recognized telemetry events.
type EventType string

const (
	EventHeartbeatRun         EventType = "heartbeat_run"
	EventTaskExecuted         EventType = "task_executed"
	EventTaskFailed           EventType = "task_failed"
	EventRepairQueued         EventType = "repair_queued"
	EventCommitmentEvaluated  EventType = "commitment_evaluated"
	EventEvaluationRun        EventType = "evaluation_run"
	EventPerceptionAdmitted   EventType = "perception_admitted"
	EventNoiseAlert           EventType = "noise_alert"
	EventThresholdTriggered   EventType = "threshold_triggered"
	EventDepthExceeded        EventType = "depth_exceeded"
)

// sessionBoundTypes require a non-empty SessionID; this mirrors the
// teacher's closed-set validation style for recognized enum values.
var sessionBoundTypes = map[EventType]bool{
	EventTaskExecuted: true,
	EventTaskFailed:   true,
	EventRepairQueued: true,
}

// Event is one recorded telemetry line.
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
}

// Sink appends events to ops/runtime/telemetry.jsonl. All write paths
// swallow their own errors: a telemetry outage must never fail a
// heartbeat cycle.
type Sink struct {
	Vault *vaultstore.Vault
	mu    sync.Mutex
}

// New returns a Sink over v.
func New(v *vaultstore.Vault) *Sink {
	return &Sink{Vault: v}
}

// Emit records an event of type t with the given data and (for
// session-bound types) sessionID. Validation failures (unknown type,
// missing sessionId on a session-bound type) are silently dropped rather
// than surfaced, consistent with this package's "never affects control
// flow" contract.
func (s *Sink) Emit(t EventType, data interface{}, sessionID string) {
	switch t {
	case EventHeartbeatRun, EventTaskExecuted, EventTaskFailed, EventRepairQueued,
		EventCommitmentEvaluated, EventEvaluationRun, EventPerceptionAdmitted,
		EventNoiseAlert, EventThresholdTriggered, EventDepthExceeded:
	default:
		return
	}
	if sessionBoundTypes[t] && sessionID == "" {
		return
	}
	s.append(Event{Timestamp: time.Now().UTC(), Type: t, Data: data, SessionID: sessionID})
}

func (s *Sink) append(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(ev)
	if err != nil {
		return
	}

	path := s.Vault.Path(vaultstore.FileTelemetry)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = f.Write(append(line, '\n'))
}

// Read loads all events from the telemetry file, tolerating a missing file
// (empty slice) and skipping any individually malformed lines.
func (s *Sink) Read() ([]Event, error) {
	text, ok, err := s.Vault.Read(vaultstore.FileTelemetry)
	if err != nil {
		return nil, fmt.Errorf("read telemetry: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return parseJSONL(text), nil
}

func parseJSONL(text string) []Event {
	var events []Event
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			line := text[start:i]
			start = i + 1
			if line == "" {
				continue
			}
			var ev Event
			if json.Unmarshal([]byte(line), &ev) == nil {
				events = append(events, ev)
			}
		}
	}
	return events
}
