package pad

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/margin/pkg/commands"
	"github.com/entrhq/margin/pkg/llm"
	"github.com/entrhq/margin/pkg/storage"
)

// uiMsg carries a closure posted by a worker through the mailbox.
type uiMsg struct{ fn func() }

// action is one entry of the command palette.
type action struct {
	name   string
	detail string
	run    func(m *model)
}

func paletteActions() []action {
	return []action{
		{"Search", "Full-text search across notes", func(m *model) {
			m.ask("Search", "query", func(q string) { m.cmds.Search(q) })
		}},
		{"New Scratch", "Open a new scratch buffer", func(m *model) { m.cmds.NewScratch() }},
		{"Open File", "Open a file by path", func(m *model) {
			m.ask("Open file", "path", func(path string) {
				if err := m.OpenFile(strings.TrimSpace(path), 0, 0); err != nil {
					m.Error(err.Error())
				}
			})
		}},
		{"Promote", "Copy this buffer into the inbox", func(m *model) {
			m.ask("Promote", "slug (optional)", func(slug string) { m.cmds.Promote(slug) })
		}},
		{"Delete Note", "Move this note to the trash", func(m *model) { m.cmds.DeleteCurrentNote() }},
		{"Snapshot History", "Browse snapshots of this scratch", func(m *model) { m.cmds.ShowHistory() }},
		{"Open Latest Snapshot", "Open the newest snapshot of this scratch", func(m *model) { m.cmds.OpenLatestSnapshot() }},
		{"Run Block", "Run the fenced code block under the caret", func(m *model) { m.cmds.RunBlock() }},
		{"Slack Capture", "Capture a thread by channel and timestamp", (*model).slackCapture},
		{"Slack Capture from Clipboard", "Capture the thread linked on the clipboard", func(m *model) {
			m.cmds.SlackCaptureFromClipboard()
		}},
		{"Ask LLM", "Ask a question about your notes", (*model).askLLM},
		{"Insert Last LLM Answer", "Insert the last answer at the caret", func(m *model) { m.cmds.InsertLastLLMAnswer() }},
		{"Detect Syntax", "Set the syntax from the buffer contents", (*model).detectSyntax},
	}
}

func (m *model) openPalette() {
	actions := paletteActions()
	items := make([]commands.ResultItem, len(actions))
	for i, a := range actions {
		items[i] = commands.ResultItem{Title: a.name, Detail: a.detail}
	}
	m.closeOverlays()
	m.picker = newPicker("Margin", items, func(i int) { actions[i].run(m) })
}

// ask opens a one-line prompt. onSubmit runs as a user action.
func (m *model) ask(title, placeholder string, onSubmit func(string)) {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 1024
	ti.Width = overlayWidth(m.width) - 4
	ti.Focus()

	m.closeOverlays()
	m.prompt = &prompt{title: title, input: ti, onSubmit: onSubmit}
}

func (m *model) slackCapture() {
	m.ask("Slack channel", "channel id", func(channel string) {
		channel = strings.TrimSpace(channel)
		m.ask("Slack thread", "thread timestamp or link", func(thread string) {
			thread = strings.TrimSpace(thread)
			items := make([]commands.ResultItem, len(commands.SlackModes))
			for i, mode := range commands.SlackModes {
				items[i] = commands.ResultItem{Title: mode.String()}
			}
			m.picker = newPicker("Slack capture", items, func(i int) {
				m.cmds.SlackCapture(channel, thread, commands.SlackModes[i])
			})
		})
	})
}

func (m *model) askLLM() {
	items := make([]commands.ResultItem, len(llm.Modes))
	for i, mode := range llm.Modes {
		items[i] = commands.ResultItem{Title: mode.String()}
	}
	m.closeOverlays()
	m.picker = newPicker("Ask LLM", items, func(i int) {
		mode := llm.Modes[i]
		m.ask(mode.String(), "question", func(q string) {
			m.cmds.AskLLM(q, mode, q)
		})
	})
}

func (m *model) detectSyntax() {
	t := m.activeTab()
	if t == nil {
		return
	}
	syntax := DetectSyntax(t.buf.FileName(), t.buf.Text())
	t.buf.SetSyntaxPath(syntax)
	m.Status("Syntax: " + storage.SyntaxName(syntax))
}

func (m *model) save() {
	t := m.activeTab()
	if t == nil {
		return
	}
	switch {
	case t.buf.FileName() != "":
		if err := m.Save(t.buf); err != nil {
			m.Error(err.Error())
			return
		}
		m.Status("Saved " + t.title())
	case t.buf.State().IsManaged() && m.scheduler != nil:
		if err := m.scheduler.Flush(t.buf); err != nil {
			m.Error(err.Error())
			return
		}
		m.Status("Saved to scratch")
	default:
		m.Status("Nothing to save")
	}
}

func (m *model) Init() tea.Cmd {
	return nil
}

// Update handles all state updates for the pad. Overlays get keys first,
// then the pad's own bindings, then the active textarea.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case uiMsg:
		msg.fn()
		return m, nil
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		if cmd, handled := m.handleOverlayKey(msg); handled {
			return m, cmd
		}
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	t := m.activeTab()
	if t == nil {
		return m, nil
	}
	var cmd tea.Cmd
	t.ta, cmd = t.ta.Update(msg)
	m.syncActive()
	return m, cmd
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "ctrl+q":
		return tea.Quit, true
	case "ctrl+g":
		m.openPalette()
	case "ctrl+n":
		m.run(func() { m.cmds.NewScratch() })
	case "ctrl+w":
		if buf := m.ActiveBuffer(); buf != nil {
			m.CloseBuffer(buf)
		}
	case "ctrl+s":
		m.save()
	case "ctrl+o":
		paletteActionNamed("Open File").run(m)
	case "ctrl+r":
		m.run(func() { m.cmds.RunBlock() })
	case "ctrl+right":
		m.cycle(1)
	case "ctrl+left":
		m.cycle(-1)
	default:
		return nil, false
	}
	return nil, true
}

func paletteActionNamed(name string) action {
	for _, a := range paletteActions() {
		if a.name == name {
			return a
		}
	}
	return action{run: func(*model) {}}
}

func (m *model) handleOverlayKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case m.confirm != nil:
		switch msg.String() {
		case "y", "Y", "enter":
			m.answerConfirm(true)
		case "n", "N", "esc":
			m.answerConfirm(false)
		}
		return nil, true

	case m.prompt != nil:
		switch msg.Type {
		case tea.KeyEsc:
			m.prompt = nil
			return nil, true
		case tea.KeyEnter:
			p := m.prompt
			m.prompt = nil
			value := p.input.Value()
			m.run(func() { p.onSubmit(value) })
			return nil, true
		}
		var cmd tea.Cmd
		m.prompt.input, cmd = m.prompt.input.Update(msg)
		return cmd, true

	case m.picker != nil:
		p := m.picker
		switch msg.Type {
		case tea.KeyEsc:
			m.picker = nil
		case tea.KeyUp:
			p.SelectPrev()
		case tea.KeyDown:
			p.SelectNext()
		case tea.KeyEnter:
			idx := p.Selected()
			m.picker = nil
			if idx >= 0 {
				m.run(func() { p.onPick(idx) })
			}
		case tea.KeyBackspace:
			if f := p.Filter(); f != "" {
				r := []rune(f)
				p.SetFilter(string(r[:len(r)-1]))
			}
		case tea.KeyRunes, tea.KeySpace:
			p.SetFilter(p.Filter() + string(msg.Runes))
		}
		return nil, true

	case m.answer != nil:
		switch msg.String() {
		case "esc", "q":
			m.answer = nil
		case "i":
			m.answer = nil
			m.run(func() { m.cmds.InsertLastLLMAnswer() })
		default:
			var cmd tea.Cmd
			*m.answer, cmd = m.answer.Update(msg)
			return cmd, true
		}
		return nil, true
	}
	return nil, false
}
