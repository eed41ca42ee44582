package pad

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/bubbles/viewport"

	"github.com/entrhq/margin/pkg/buffer"
	"github.com/entrhq/margin/pkg/commands"
	"github.com/entrhq/margin/pkg/persistence"
	"github.com/entrhq/margin/pkg/storage"
)

// The model is both the Editor the commands drive and the Host the
// scheduler persists for.
var (
	_ commands.Editor  = (*model)(nil)
	_ persistence.Host = (*model)(nil)
)

type window []buffer.Buffer

func (w window) Buffers() []buffer.Buffer { return w }

// Windows returns the pad's single window. It is safe to call from the
// scheduler goroutine.
func (m *model) Windows() []persistence.Window {
	return []persistence.Window{window(m.buffers())}
}

func (m *model) ActiveBuffer() buffer.Buffer {
	t := m.activeTab()
	if t == nil {
		return nil
	}
	return t.buf
}

func (m *model) NewBuffer(name, syntaxPath string) buffer.Buffer {
	buf := buffer.NewMemory("")
	buf.SetName(name)
	buf.SetSyntaxPath(syntaxPath)
	m.addTab(buf)
	return buf
}

// OpenFile focuses the tab already showing path, or loads the file into a
// new one and gives the listener a chance to adopt it.
func (m *model) OpenFile(path string, line, col int) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	i, t := m.tabForFile(abs)
	if t != nil {
		m.focus(i)
	} else {
		data, err := os.ReadFile(abs)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", abs, err)
		}
		buf := buffer.NewMemory(string(data))
		buf.SetFileName(abs)
		buf.SetSyntaxPath(DetectSyntax(abs, string(data)))
		t = m.addTab(buf)
		if m.cmds != nil {
			m.cmds.OnLoad(buf)
		}
	}

	if line > 0 || col > 0 {
		t.load(offsetAt(t.buf.Text(), line-1, col-1))
	}
	return nil
}

// CloseBuffer flushes a managed buffer, then drops its tab.
func (m *model) CloseBuffer(buf buffer.Buffer) {
	if m.cmds != nil {
		m.cmds.OnPreClose(buf)
	}
	m.removeTab(buf)
	if mem, ok := buf.(*buffer.Memory); ok {
		mem.Close()
	}
}

// Save writes a file-backed buffer to its file.
func (m *model) Save(buf buffer.Buffer) error {
	path := buf.FileName()
	if path == "" {
		return fmt.Errorf("buffer has no file")
	}
	if err := storage.WriteFileAtomic(path, buf.Text()); err != nil {
		return err
	}
	if mem, ok := buf.(*buffer.Memory); ok {
		mem.MarkSaved()
	}
	return nil
}

func (m *model) Insert(buf buffer.Buffer, point int, text string) {
	mem, ok := buf.(*buffer.Memory)
	if !ok {
		return
	}
	mem.Insert(point, text)
	if t := m.tabFor(buf); t != nil {
		if point < 0 || point > len(mem.Text())-len(text) {
			point = len(mem.Text()) - len(text)
		}
		t.load(point + len(text))
	}
}

func (m *model) Cursor(buf buffer.Buffer) int {
	if t := m.tabFor(buf); t != nil {
		return t.caret()
	}
	if mem, ok := buf.(*buffer.Memory); ok {
		return mem.Cursor()
	}
	return len(buf.Text())
}

// Selections is always empty: the textarea has no selection model.
func (m *model) Selections(buffer.Buffer) []string {
	return nil
}

// Confirm answers from a pending reply when the question was already put to
// the user. Otherwise it opens the question, reports false, and re-runs the
// current action once the user answers.
func (m *model) Confirm(message, okLabel string) bool {
	if yes, ok := m.answers[message]; ok {
		return yes
	}
	m.closeOverlays()
	m.confirm = &confirmation{message: message, okLabel: okLabel, retry: m.current}
	return false
}

func (m *model) ShowResults(items []commands.ResultItem, onPick func(int)) {
	m.closeOverlays()
	m.picker = newPicker(fmt.Sprintf("Results (%d)", len(items)), items, onPick)
}

func (m *model) ShowAnswer(text string) {
	m.closeOverlays()
	vp := viewport.New(overlayWidth(m.width), answerHeight(m.height))
	vp.SetContent(overlayTextStyle.Width(overlayWidth(m.width) - 2).Render(text))
	m.answer = &vp
}

func (m *model) Status(msg string) {
	m.status, m.statusIsErr = msg, false
	m.logger.Infof("status: %s", msg)
}

func (m *model) Error(msg string) {
	m.status, m.statusIsErr = msg, true
	m.logger.Warnf("error: %s", msg)
}

// SaveNative saves a file-backed buffer that lives in scratch/current.
func (m *model) SaveNative(buf buffer.Buffer) error {
	return m.Save(buf)
}

// OpenAsFile swaps an in-memory scratch tab for one backed by path, keeping
// the caret where it was. Text typed after the autosave that wrote path is
// carried over and left unsaved.
func (m *model) OpenAsFile(buf buffer.Buffer, path string) error {
	cursor := m.Cursor(buf)
	text := buf.Text()
	if err := m.OpenFile(path, 0, 0); err != nil {
		return err
	}
	if _, t := m.tabForFile(path); t != nil {
		if t.buf.Text() != text {
			t.buf.SetText(text)
		}
		t.load(cursor)
	}
	buf.State().Unmanage()
	m.CloseBuffer(buf)
	return nil
}

func (m *model) closeOverlays() {
	m.picker = nil
	m.prompt = nil
	m.answer = nil
}
