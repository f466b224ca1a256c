package telemetry

import (
	"testing"

	"github.com/boshu2/heartbeat/internal/vaultstore"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	v := vaultstore.Open(t.TempDir())
	if v == nil {
		t.Fatalf("open vault: nil vault")
	}
	if err := v.EnsureDirs(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	return New(v)
}

func TestEmit_AppendsAndReadsBack(t *testing.T) {
	s := newTestSink(t)
	s.Emit(EventHeartbeatRun, map[string]string{"slot": "morning"}, "")
	s.Emit(EventEvaluationRun, nil, "")

	events, err := s.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventHeartbeatRun {
		t.Fatalf("unexpected first event type: %s", events[0].Type)
	}
}

func TestEmit_DropsSessionBoundEventMissingSessionID(t *testing.T) {
	s := newTestSink(t)
	s.Emit(EventTaskExecuted, nil, "")

	events, err := s.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected session-bound event without sessionId to be dropped, got %+v", events)
	}
}

func TestEmit_KeepsSessionBoundEventWithSessionID(t *testing.T) {
	s := newTestSink(t)
	s.Emit(EventTaskExecuted, nil, "session-1")

	events, err := s.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 1 || events[0].SessionID != "session-1" {
		t.Fatalf("expected event with sessionId preserved, got %+v", events)
	}
}

func TestRead_MissingFileReturnsEmpty(t *testing.T) {
	s := newTestSink(t)
	events, err := s.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected empty slice for missing file, got %+v", events)
	}
}

func TestRead_SkipsMalformedLines(t *testing.T) {
	s := newTestSink(t)
	s.Emit(EventHeartbeatRun, nil, "")

	path := s.Vault.Path(vaultstore.FileTelemetry)
	existing, _, _ := s.Vault.Read(vaultstore.FileTelemetry)
	corrupted := existing + "{not valid json\n"
	if err := s.Vault.WriteAtomic(vaultstore.FileTelemetry, corrupted); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = path

	events, err := s.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected malformed line skipped, kept 1 valid event, got %d", len(events))
	}
}
