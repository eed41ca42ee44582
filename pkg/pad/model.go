package pad

import (
	"path/filepath"
	"sync"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/entrhq/margin/pkg/buffer"
	"github.com/entrhq/margin/pkg/commands"
	"github.com/entrhq/margin/pkg/logging"
	"github.com/entrhq/margin/pkg/persistence"
	"github.com/entrhq/margin/pkg/storage"
)

// tab pairs an engine buffer with the textarea that edits it.
type tab struct {
	buf *buffer.Memory
	ta  textarea.Model
}

func (t *tab) title() string {
	if name := t.buf.Name(); name != "" {
		return name
	}
	if file := t.buf.FileName(); file != "" {
		return filepath.Base(file)
	}
	return "untitled"
}

// load replaces the textarea contents with the buffer text and puts the
// caret at the byte offset.
func (t *tab) load(offset int) {
	text := t.buf.Text()
	t.ta.SetValue(text)
	t.moveTo(text, offset)
	t.buf.SetCursor(offset)
}

func (t *tab) moveTo(text string, offset int) {
	row, col := positionOf(text, offset)
	for t.ta.Line() > row {
		t.ta.CursorUp()
	}
	for t.ta.Line() < row {
		before := t.ta.Line()
		t.ta.CursorDown()
		if t.ta.Line() == before {
			break
		}
	}
	t.ta.SetCursor(col)
}

// caret returns the byte offset of the textarea caret.
func (t *tab) caret() int {
	info := t.ta.LineInfo()
	return offsetAt(t.ta.Value(), t.ta.Line(), info.StartColumn+info.ColumnOffset)
}

// prompt is a one-line question whose answer is handed to onSubmit.
type prompt struct {
	title    string
	input    textinput.Model
	onSubmit func(string)
}

// confirmation is a yes/no question raised by Editor.Confirm. retry re-runs
// the action that asked once the answer is known.
type confirmation struct {
	message string
	okLabel string
	retry   func()
}

// model is the Bubble Tea model of the pad.
type model struct {
	mu     sync.Mutex // guards tabs; Windows is called off the UI thread
	tabs   []*tab
	active int

	cmds      *commands.Commands
	scheduler *persistence.Scheduler
	logger    logging.Sink

	// Overlays, at most one is shown at a time.
	picker  *picker
	prompt  *prompt
	confirm *confirmation
	answer  *viewport.Model

	// Pending answers for Confirm, keyed by message.
	answers map[string]bool
	// current is the action being run, handed to a confirmation as retry.
	current func()

	status      string
	statusIsErr bool

	width  int
	height int
}

func newModel(logger logging.Sink) *model {
	return &model{
		logger:  logger,
		answers: make(map[string]bool),
		width:   80,
		height:  24,
	}
}

func (m *model) newTextarea() textarea.Model {
	ta := textarea.New()
	ta.Prompt = ""
	ta.ShowLineNumbers = true
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.MaxWidth = 0
	ta.SetWidth(m.width)
	ta.SetHeight(m.editorHeight())
	ta.Focus()
	return ta
}

// editorHeight leaves room for the tab bar and the status line.
func (m *model) editorHeight() int {
	h := m.height - 2
	if h < 1 {
		h = 1
	}
	return h
}

func (m *model) addTab(buf *buffer.Memory) *tab {
	t := &tab{buf: buf, ta: m.newTextarea()}
	t.load(0)

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur := m.activeTabLocked(); cur != nil {
		cur.ta.Blur()
	}
	m.tabs = append(m.tabs, t)
	m.active = len(m.tabs) - 1
	return t
}

func (m *model) removeTab(buf buffer.Buffer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tabs {
		if t.buf != buf {
			continue
		}
		m.tabs = append(m.tabs[:i], m.tabs[i+1:]...)
		if m.active >= len(m.tabs) {
			m.active = len(m.tabs) - 1
		}
		if m.active < 0 {
			m.active = 0
		}
		if cur := m.activeTabLocked(); cur != nil {
			cur.ta.Focus()
		}
		return true
	}
	return false
}

func (m *model) activeTab() *tab {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeTabLocked()
}

func (m *model) activeTabLocked() *tab {
	if m.active < 0 || m.active >= len(m.tabs) {
		return nil
	}
	return m.tabs[m.active]
}

func (m *model) tabFor(buf buffer.Buffer) *tab {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tabs {
		if t.buf == buf {
			return t
		}
	}
	return nil
}

func (m *model) tabForFile(path string) (int, *tab) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tabs {
		if t.buf.FileName() != "" && storage.SamePath(t.buf.FileName(), path) {
			return i, t
		}
	}
	return -1, nil
}

func (m *model) focus(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.tabs) {
		return
	}
	if cur := m.activeTabLocked(); cur != nil {
		cur.ta.Blur()
	}
	m.active = index
	m.tabs[index].ta.Focus()
}

func (m *model) cycle(delta int) {
	m.mu.Lock()
	n := len(m.tabs)
	next := m.active
	m.mu.Unlock()
	if n == 0 {
		return
	}
	m.focus(((next+delta)%n + n) % n)
}

func (m *model) buffers() []buffer.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]buffer.Buffer, len(m.tabs))
	for i, t := range m.tabs {
		out[i] = t.buf
	}
	return out
}

func (m *model) resize(width, height int) {
	m.width, m.height = width, height
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tabs {
		t.ta.SetWidth(width)
		t.ta.SetHeight(m.editorHeight())
	}
	if m.answer != nil {
		m.answer.Width = overlayWidth(width)
		m.answer.Height = answerHeight(height)
	}
}

// run executes a user action. A confirmation raised by the action keeps the
// status line it found, so the action's "cancelled" message does not flash
// while the question is still open.
func (m *model) run(action func()) {
	prevStatus, prevErr := m.status, m.statusIsErr
	hadConfirm := m.confirm != nil

	m.current = action
	action()
	m.current = nil

	if !hadConfirm && m.confirm != nil {
		m.status, m.statusIsErr = prevStatus, prevErr
	}
}

func (m *model) answerConfirm(yes bool) {
	c := m.confirm
	if c == nil {
		return
	}
	m.confirm = nil
	if c.retry == nil {
		return
	}
	m.answers[c.message] = yes
	m.run(c.retry)
	delete(m.answers, c.message)
}

// syncActive copies textarea edits into the engine buffer.
func (m *model) syncActive() {
	t := m.activeTab()
	if t == nil {
		return
	}
	if v := t.ta.Value(); v != t.buf.Text() {
		t.buf.SetText(v)
	}
	t.buf.SetCursor(t.caret())
}

func overlayWidth(width int) int {
	w := width * 80 / 100
	if w < 40 {
		w = 40
	}
	return w
}

func answerHeight(height int) int {
	h := height * 70 / 100
	if h < 5 {
		h = 5
	}
	return h
}
