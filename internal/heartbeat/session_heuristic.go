package heartbeat

import (
	"encoding/json"
	"strings"
)

// stubStatusMarkers are substrings that mark a session file as not worth
// mining, carried over verbatim from the source system with no external
// justification beyond "it's what production classifies as a stub."
var stubStatusMarkers = []string{"stub", "metadata", "no-content"}

// metadataOnlyKeys are the session keys that, if they are the *only* keys
// present, mean the file holds no real content worth mining.
var metadataOnlyKeys = map[string]bool{
	"id": true, "createdAt": true, "updatedAt": true, "status": true, "path": true,
}

// hasStructuredSessionContent reports whether a session JSON blob looks
// mineable: not flagged as a stub by its status field, and not reducible
// to pure metadata keys.
func hasStructuredSessionContent(raw []byte) bool {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	if status, ok := obj["status"].(string); ok {
		lower := strings.ToLower(status)
		for _, marker := range stubStatusMarkers {
			if strings.Contains(lower, marker) {
				return false
			}
		}
	}
	allMetadata := true
	for k := range obj {
		if !metadataOnlyKeys[k] {
			allMetadata = false
			break
		}
	}
	return !allMetadata
}
