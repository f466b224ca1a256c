package heartbeat

import (
	"os"
	"strconv"

	"github.com/boshu2/heartbeat/internal/vaultstore"
)

// MaxHeartbeatDepth bounds recursive self-invocation: a task runner that
// itself spawns a heartbeat cycle (e.g. an LLM subprocess that runs a
// maintenance skill) must not nest unboundedly.
const MaxHeartbeatDepth = 2

// EnvDepthKey is the process-wide recursion guard, copied into spawned
// child process environments by whatever invokes an external TaskRunner.
const EnvDepthKey = "INTENT_HEARTBEAT_DEPTH"

// currentDepth reads EnvDepthKey from the environment, defaulting to 0 for
// anything absent or unparsable.
func currentDepth() int {
	raw := os.Getenv(EnvDepthKey)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// resetDepthIfHumanActivity reports whether the vault shows human activity
// since the last heartbeat marker was written: the marker's mtime is older
// than the newest file in thoughts/. A stale marker next to fresh thoughts
// means a human has been editing the vault directly, so nested-run
// bookkeeping from a prior automated chain no longer applies.
func resetDepthIfHumanActivity(v *vaultstore.Vault) bool {
	marker := v.Stat(vaultstore.FileMarker)
	if marker == nil {
		return false
	}
	names, err := v.ListMd(vaultstore.DirThoughts)
	if err != nil || len(names) == 0 {
		return false
	}
	newest := marker.ModTime()
	found := false
	for _, name := range names {
		info := v.Stat(vaultstore.DirThoughts + "/" + name)
		if info == nil {
			continue
		}
		if !found || info.ModTime().After(newest) {
			newest = info.ModTime()
			found = true
		}
	}
	return found && newest.After(marker.ModTime())
}

// ChildEnv builds the environment a spawned runner subprocess should
// inherit: the current environment with CLAUDECODE stripped and
// EnvDepthKey set to depth+1, per the external task runner contract.
func ChildEnv(depth int) []string {
	var out []string
	for _, kv := range os.Environ() {
		if len(kv) >= len("CLAUDECODE=") && kv[:len("CLAUDECODE")] == "CLAUDECODE" {
			continue
		}
		if len(kv) >= len(EnvDepthKey) && kv[:len(EnvDepthKey)] == EnvDepthKey {
			continue
		}
		out = append(out, kv)
	}
	out = append(out, EnvDepthKey+"="+strconv.Itoa(depth+1))
	return out
}
