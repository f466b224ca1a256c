package perception

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/boshu2/heartbeat/internal/vaultstore"
)

// SourceCursor tracks how far a feed source has been consumed. Type is a
// tagged-union discriminant; "id-set" is the only variant this package
// implements (a bounded set of already-seen capture IDs), leaving room for
// future cursor kinds (e.g. offset, timestamp) without breaking the file
// format.
type SourceCursor struct {
	Type  string   `json:"type"`
	SeenIDs []string `json:"seenIds,omitempty"`
}

// maxSeenIDs bounds how many IDs an id-set cursor retains, oldest first.
const maxSeenIDs = 500

// CursorFile is the on-disk shape of ops/runtime/perception-cursors.json.
type CursorFile struct {
	Sources     map[string]SourceCursor `json:"sources"`
	LastUpdated time.Time               `json:"lastUpdated"`
}

// CursorStore reads, updates, and persists ops/runtime/perception-cursors.json.
type CursorStore struct {
	Vault *vaultstore.Vault
}

// NewCursorStore returns a CursorStore over v.
func NewCursorStore(v *vaultstore.Vault) *CursorStore {
	return &CursorStore{Vault: v}
}

// Load reads the cursor file, tolerating a missing or malformed file as an
// empty store.
func (c *CursorStore) Load() (CursorFile, error) {
	text, ok, err := c.Vault.Read(vaultstore.FileCursors)
	if err != nil {
		return CursorFile{}, err
	}
	if !ok {
		return CursorFile{Sources: map[string]SourceCursor{}}, nil
	}
	var f CursorFile
	if err := json.Unmarshal([]byte(text), &f); err != nil {
		return CursorFile{Sources: map[string]SourceCursor{}}, nil
	}
	if f.Sources == nil {
		f.Sources = map[string]SourceCursor{}
	}
	return f, nil
}

func (c *CursorStore) write(f CursorFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cursor file: %w", err)
	}
	return c.Vault.WriteAtomic(vaultstore.FileCursors, string(data))
}

// HasSeen reports whether id has already been recorded for sourceID.
func (c *CursorStore) HasSeen(sourceID, id string) (bool, error) {
	f, err := c.Load()
	if err != nil {
		return false, err
	}
	cur := f.Sources[sourceID]
	for _, seen := range cur.SeenIDs {
		if seen == id {
			return true, nil
		}
	}
	return false, nil
}

// MarkSeen records ids as seen for sourceID, deduplicating and trimming to
// maxSeenIDs (oldest dropped first), then persists.
func (c *CursorStore) MarkSeen(sourceID string, ids []string) error {
	f, err := c.Load()
	if err != nil {
		return err
	}
	cur := f.Sources[sourceID]
	if cur.Type == "" {
		cur.Type = "id-set"
	}
	seen := make(map[string]bool, len(cur.SeenIDs))
	for _, s := range cur.SeenIDs {
		seen[s] = true
	}
	for _, id := range ids {
		if !seen[id] {
			cur.SeenIDs = append(cur.SeenIDs, id)
			seen[id] = true
		}
	}
	if len(cur.SeenIDs) > maxSeenIDs {
		cur.SeenIDs = cur.SeenIDs[len(cur.SeenIDs)-maxSeenIDs:]
	}
	f.Sources[sourceID] = cur
	f.LastUpdated = time.Now().UTC()
	return c.write(f)
}
