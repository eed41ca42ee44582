package buffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestState_Manage(t *testing.T) {
	var s State
	now := time.Unix(1000, 0)

	assert.False(t, s.IsManaged())
	s.Manage(now)

	snap := s.Snapshot()
	assert.True(t, snap.Managed)
	assert.Equal(t, now, snap.LastAutosave)
	assert.Equal(t, now, snap.LastSnapshot)

	later := now.Add(time.Minute)
	s.SetLastAutosave(later)
	assert.Equal(t, later, s.LastAutosave())
	assert.Equal(t, now, s.LastSnapshot())

	s.Unmanage()
	assert.False(t, s.IsManaged())
}

func TestState_EnsureID(t *testing.T) {
	var s State
	calls := 0
	gen := func() string {
		calls++
		return "abc-1"
	}

	assert.Equal(t, "abc-1", s.EnsureID(gen))
	assert.Equal(t, "abc-1", s.EnsureID(gen))
	assert.Equal(t, 1, calls)

	s.SetID("other")
	assert.Equal(t, "other", s.ID())
}

func TestState_ClaimFileBackedOpen(t *testing.T) {
	var s State
	assert.True(t, s.ClaimFileBackedOpen())
	assert.False(t, s.ClaimFileBackedOpen())
	assert.True(t, s.Snapshot().FileBackedOpened)
}

func TestState_AccessorsWhileLocked(t *testing.T) {
	var s State
	s.Lock()
	defer s.Unlock()

	// field accessors must not block on the persistence lock
	s.SetLastSnapshot(time.Unix(5, 0))
	assert.Equal(t, time.Unix(5, 0), s.LastSnapshot())
}

func TestMemory(t *testing.T) {
	m := NewMemory("hello")
	assert.True(t, m.IsValid())
	assert.False(t, m.IsModified())
	assert.Same(t, m.State(), m.State())

	m.Insert(5, " world")
	assert.Equal(t, "hello world", m.Text())
	assert.True(t, m.IsModified())

	m.Insert(-1, "!")
	assert.Equal(t, "hello world!", m.Text())

	m.SetCursor(100)
	assert.Equal(t, len(m.Text()), m.Cursor())

	m.MarkSaved()
	assert.False(t, m.IsModified())

	m.Close()
	assert.False(t, m.IsValid())
}
