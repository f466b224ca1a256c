// Package vaultstore owns all filesystem I/O for a heartbeat vault: path
// conventions, atomic writes, advisory file locking, and frontmatter
// parsing. A few callers open vault paths with their own os calls: the
// telemetry sink's appends, config loading, and some heartbeat maintenance
// steps (session-file reads, stub pruning).
package vaultstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Absent is returned by Read for a file that does not exist. It is a
// sentinel string value, not an error: callers distinguish "absent" from
// "empty" by checking the ok return, never by comparing to this constant
// directly.
const Absent = ""

// Vault is a handle on a vault root directory.
type Vault struct {
	Root string
}

// Open returns a Vault rooted at root. It does not validate the directory
// exists; operations fail lazily the way the teacher's file storage does.
func Open(root string) *Vault {
	return &Vault{Root: filepath.Clean(root)}
}

// Canonical subdirectories and files, relative to the vault root.
const (
	DirInbox        = "inbox"
	DirThoughts     = "thoughts"
	DirSelf         = "self"
	DirOps          = "ops"
	DirQueue        = "ops/queue"
	DirArchive      = "ops/queue/archive"
	DirLocks        = "ops/locks"
	DirRuntime      = "ops/runtime"
	DirEvaluations  = "ops/evaluations"
	DirObservations = "ops/observations"
	DirTensions     = "ops/tensions"
	DirSessions     = "ops/sessions"

	FileQueue        = "ops/queue/queue.json"
	FileCommitments  = "ops/commitments.json"
	FileCursors      = "ops/runtime/perception-cursors.json"
	FileNoise        = "ops/runtime/perception-noise.json"
	FileTelemetry    = "ops/runtime/telemetry.jsonl"
	FileMorningBrief = "ops/morning-brief.md"
	FileMarker       = "ops/.heartbeat-marker"
	FileConfig       = "ops/config.yaml"

	SelfIdentity      = "self/identity.md"
	SelfGoals         = "self/goals.md"
	SelfWorkingMemory = "self/working-memory.md"
)

// Path joins rel onto the vault root.
func (v *Vault) Path(rel string) string {
	return filepath.Join(v.Root, filepath.FromSlash(rel))
}

// Read returns the text content of the file at rel, or ok=false if the file
// does not exist. Any other I/O error is returned.
func (v *Vault) Read(rel string) (text string, ok bool, err error) {
	b, err := os.ReadFile(v.Path(rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Absent, false, nil
		}
		return Absent, false, err
	}
	return string(b), true, nil
}

// WriteAtomic writes text to rel via a temp file in the same directory
// followed by an atomic rename, matching the teacher's
// internal/storage/file.go:atomicWrite.
func (v *Vault) WriteAtomic(rel string, text string) error {
	path := v.Path(rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write content: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename to final: %w", err)
	}

	success = true
	return nil
}

// Move relocates the file at fromRel to toRel, creating toRel's parent
// directory as needed, for the archive-on-process moves the threshold
// actions phase performs on inbox items.
func (v *Vault) Move(fromRel, toRel string) error {
	dst := v.Path(toRel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return fmt.Errorf("create directory %s: %w", filepath.Dir(dst), err)
	}
	if err := os.Rename(v.Path(fromRel), dst); err != nil {
		return fmt.Errorf("move %s to %s: %w", fromRel, toRel, err)
	}
	return nil
}

// Exists reports whether rel exists in the vault.
func (v *Vault) Exists(rel string) bool {
	_, err := os.Stat(v.Path(rel))
	return err == nil
}

// Stat returns the FileInfo for rel, or nil if it does not exist.
func (v *Vault) Stat(rel string) os.FileInfo {
	info, err := os.Stat(v.Path(rel))
	if err != nil {
		return nil
	}
	return info
}

// ListMd returns the base filenames of *.md files directly inside rel,
// sorted lexically. A missing directory yields an empty, non-error result.
func (v *Vault) ListMd(rel string) ([]string, error) {
	entries, err := os.ReadDir(v.Path(rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// EnsureDirs creates the canonical vault skeleton directories if absent.
func (v *Vault) EnsureDirs() error {
	dirs := []string{
		DirInbox, DirThoughts, DirSelf,
		DirQueue, DirArchive, DirLocks, DirRuntime, DirEvaluations,
		DirObservations, DirTensions, DirSessions,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(v.Path(d), 0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return nil
}

// SelfPath resolves one of the self/ identity files, falling back to ops/
// for vaults that predate the self/ convention.
func (v *Vault) SelfPath(name string) string {
	primary := filepath.Join(DirSelf, name)
	if v.Exists(primary) {
		return primary
	}
	fallback := filepath.Join(DirOps, name)
	if v.Exists(fallback) {
		return fallback
	}
	return primary
}
