package queue

// statusAliases maps historical/alternate status spellings onto the
// current enum, per the spec's status-coercion invariant.
var statusAliases = map[string]Status{
	"pending":     StatusPending,
	"in-progress": StatusInProgress,
	"in_progress": StatusInProgress,
	"done":        StatusDone,
	"complete":    StatusDone,
	"completed":   StatusDone,
	"failed":      StatusFailed,
	"error":       StatusFailed,
	"archived":    StatusArchived,
}

// NormalizeStatus coerces a possibly-historical status string to a known
// Status, defaulting unknown values to pending.
func NormalizeStatus(raw string) Status {
	if s, ok := statusAliases[raw]; ok {
		return s
	}
	return StatusPending
}

var phaseAliases = map[string]Phase{
	"surface": PhaseSurface,
	"reflect": PhaseReflect,
	"revisit": PhaseRevisit,
	"verify":  PhaseVerify,
}

// NormalizePhase coerces a possibly-unknown phase string, defaulting to
// surface per the spec's phase-coercion invariant.
func NormalizePhase(raw string) Phase {
	if p, ok := phaseAliases[raw]; ok {
		return p
	}
	return PhaseSurface
}

var executionModeAliases = map[string]ExecutionMode{
	"orchestrated": ExecutionOrchestrated,
	"interactive":  ExecutionInteractive,
}

// NormalizeExecutionMode coerces a possibly-unknown execution mode,
// defaulting to orchestrated (the engine's unattended default).
func NormalizeExecutionMode(raw string) ExecutionMode {
	if m, ok := executionModeAliases[raw]; ok {
		return m
	}
	return ExecutionOrchestrated
}

// NextPhase returns the phase following p in the chain, and false if p is
// terminal (verify) or unrecognized.
func NextPhase(p Phase) (Phase, bool) {
	for i, candidate := range phaseOrder {
		if candidate == p {
			if i+1 < len(phaseOrder) {
				return phaseOrder[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// IsTerminalPhase reports whether p is the last phase in the chain.
func IsTerminalPhase(p Phase) bool {
	return p == PhaseVerify
}
