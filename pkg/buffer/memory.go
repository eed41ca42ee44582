package buffer

import "sync"

// Memory is a Buffer held entirely in memory. Hosts without their own
// document model (and tests) use it directly.
type Memory struct {
	mu       sync.RWMutex
	text     string
	syntax   string
	fileName string
	name     string
	modified bool
	loading  bool
	closed   bool
	cursor   int

	state State
}

// NewMemory creates an open, unmodified buffer holding text.
func NewMemory(text string) *Memory {
	return &Memory{text: text}
}

func (m *Memory) IsValid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

func (m *Memory) IsLoading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

func (m *Memory) IsModified() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.modified
}

func (m *Memory) Text() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.text
}

func (m *Memory) SyntaxPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.syntax
}

func (m *Memory) FileName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fileName
}

func (m *Memory) State() *State {
	return &m.state
}

// Name returns the display name.
func (m *Memory) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

// SetName sets the display name.
func (m *Memory) SetName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
}

// SetText replaces the contents and marks the buffer modified.
func (m *Memory) SetText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.modified = true
	if m.cursor > len(text) {
		m.cursor = len(text)
	}
}

// Insert inserts text at byte offset point, clamped to the buffer, and marks
// the buffer modified.
func (m *Memory) Insert(point int, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if point < 0 || point > len(m.text) {
		point = len(m.text)
	}
	m.text = m.text[:point] + text + m.text[point:]
	m.modified = true
}

// Cursor returns the cursor byte offset.
func (m *Memory) Cursor() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursor
}

// SetCursor moves the cursor, clamped to the buffer.
func (m *Memory) SetCursor(point int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if point < 0 {
		point = 0
	}
	if point > len(m.text) {
		point = len(m.text)
	}
	m.cursor = point
}

// SetSyntaxPath sets the syntax identifier.
func (m *Memory) SetSyntaxPath(syntax string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syntax = syntax
}

// SetFileName sets the backing file path.
func (m *Memory) SetFileName(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fileName = path
}

// SetLoading toggles the loading flag.
func (m *Memory) SetLoading(loading bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = loading
}

// MarkSaved clears the modified flag.
func (m *Memory) MarkSaved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modified = false
}

// Close invalidates the buffer.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}
