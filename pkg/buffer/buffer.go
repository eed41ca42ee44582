// Package buffer defines the host-owned editor buffer handle and the
// buffer-local state the persistence engine keeps for each managed buffer.
package buffer

import (
	"sync"
	"time"
)

// Buffer is an open editor document as seen by the engine. Implementations
// are owned by the host editor; every method must be safe to call from the
// scheduler goroutine.
type Buffer interface {
	// IsValid reports whether the buffer is still open.
	IsValid() bool
	// IsLoading reports whether the host is still reading the buffer in.
	IsLoading() bool
	// IsModified reports unsaved changes.
	IsModified() bool
	// Text returns the full buffer contents.
	Text() string
	// SyntaxPath returns the host's syntax/language-mode identifier, for
	// example "Packages/Python/Python.sublime-syntax". Empty means plain text.
	SyntaxPath() string
	// FileName returns the backing file path, or "" for an in-memory buffer.
	FileName() string
	// State returns the engine-owned state attached to this buffer. It must
	// return the same pointer for the lifetime of the buffer.
	State() *State
}

// State is the buffer-local bookkeeping for a managed buffer.
//
// Lock and Unlock guard a whole persistence decision so a close-time flush
// and a scheduler tick never interleave on one buffer. Field accessors use a
// separate lock and may be called while the persistence lock is held.
type State struct {
	persistMu sync.Mutex

	mu               sync.Mutex
	scratchID        string
	managed          bool
	lastAutosave     time.Time // zero means never
	lastSnapshot     time.Time // zero means never
	fileBackedOpened bool
}

// Lock acquires the buffer's persistence lock.
func (s *State) Lock() { s.persistMu.Lock() }

// Unlock releases the buffer's persistence lock.
func (s *State) Unlock() { s.persistMu.Unlock() }

// ID returns the cached scratch id, or "" when none has been assigned.
func (s *State) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scratchID
}

// SetID replaces the scratch id, used when adopting an existing scratch file.
func (s *State) SetID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scratchID = id
}

// EnsureID returns the cached id, generating and caching one with gen on
// first use.
func (s *State) EnsureID(gen func() string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scratchID == "" {
		s.scratchID = gen()
	}
	return s.scratchID
}

// Manage marks the buffer managed and starts both interval clocks at now.
func (s *State) Manage(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.managed = true
	s.lastAutosave = now
	s.lastSnapshot = now
}

// Unmanage stops the engine from persisting the buffer.
func (s *State) Unmanage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managed = false
}

// IsManaged reports whether the buffer is opted into autosave.
func (s *State) IsManaged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.managed
}

// LastAutosave returns the time of the last successful autosave.
func (s *State) LastAutosave() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAutosave
}

// SetLastAutosave records a successful autosave.
func (s *State) SetLastAutosave(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAutosave = t
}

// LastSnapshot returns the time of the last successful snapshot.
func (s *State) LastSnapshot() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSnapshot
}

// SetLastSnapshot records a successful snapshot.
func (s *State) SetLastSnapshot(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSnapshot = t
}

// ClaimFileBackedOpen sets the one-shot tab replacement flag and reports
// whether this call was the one that set it.
func (s *State) ClaimFileBackedOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fileBackedOpened {
		return false
	}
	s.fileBackedOpened = true
	return true
}

// SetFileBackedOpened marks the buffer as already shown as a file-backed tab.
func (s *State) SetFileBackedOpened(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileBackedOpened = v
}

// Snapshot returns a point-in-time copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ScratchID:        s.scratchID,
		Managed:          s.managed,
		LastAutosave:     s.lastAutosave,
		LastSnapshot:     s.lastSnapshot,
		FileBackedOpened: s.fileBackedOpened,
	}
}

// Snapshot is a point-in-time copy of State.
type Snapshot struct {
	ScratchID        string
	Managed          bool
	LastAutosave     time.Time
	LastSnapshot     time.Time
	FileBackedOpened bool
}
