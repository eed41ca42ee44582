package commands

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/entrhq/margin/pkg/buffer"
	"github.com/entrhq/margin/pkg/cli"
	"github.com/entrhq/margin/pkg/config"
	"github.com/entrhq/margin/pkg/llm"
	"github.com/entrhq/margin/pkg/security/workspace"
	"github.com/entrhq/margin/pkg/storage"
)

type openCall struct {
	path      string
	line, col int
}

type fakeEditor struct {
	mu         sync.Mutex
	active     *buffer.Memory
	created    []*buffer.Memory
	opened     []openCall
	closed     []buffer.Buffer
	saved      []buffer.Buffer
	selections []string
	confirm    bool
	confirms   []string
	results    []ResultItem
	pick       func(int)
	answers    []string
	statuses   []string
	errors     []string
}

func (e *fakeEditor) ActiveBuffer() buffer.Buffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return nil
	}
	return e.active
}

func (e *fakeEditor) NewBuffer(name, syntaxPath string) buffer.Buffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := buffer.NewMemory("")
	m.SetName(name)
	m.SetSyntaxPath(syntaxPath)
	e.created = append(e.created, m)
	e.active = m
	return m
}

func (e *fakeEditor) OpenFile(path string, line, col int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opened = append(e.opened, openCall{path, line, col})
	return nil
}

func (e *fakeEditor) CloseBuffer(buf buffer.Buffer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = append(e.closed, buf)
	if m, ok := buf.(*buffer.Memory); ok {
		m.Close()
	}
}

func (e *fakeEditor) Save(buf buffer.Buffer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.saved = append(e.saved, buf)
	if name := buf.FileName(); name != "" {
		if err := os.WriteFile(name, []byte(buf.Text()), 0o644); err != nil {
			return err
		}
	}
	buf.(*buffer.Memory).MarkSaved()
	return nil
}

func (e *fakeEditor) Insert(buf buffer.Buffer, point int, text string) {
	buf.(*buffer.Memory).Insert(point, text)
}

func (e *fakeEditor) Cursor(buf buffer.Buffer) int {
	return buf.(*buffer.Memory).Cursor()
}

func (e *fakeEditor) Selections(buffer.Buffer) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selections
}

func (e *fakeEditor) Confirm(message, _ string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirms = append(e.confirms, message)
	return e.confirm
}

func (e *fakeEditor) ShowResults(items []ResultItem, onPick func(int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results = items
	e.pick = onPick
}

func (e *fakeEditor) ShowAnswer(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.answers = append(e.answers, text)
}

func (e *fakeEditor) Status(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statuses = append(e.statuses, msg)
}

func (e *fakeEditor) Error(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors = append(e.errors, msg)
}

type searchCall struct {
	query string
	limit int
}

type fakeCLI struct {
	mu          sync.Mutex
	results     []cli.SearchResult
	searchErr   error
	searches    []searchCall
	runBlock    cli.RunBlockResult
	runBlockErr error
	runs        []string
	runText     []string // file contents seen by run-block
	slack       cli.SlackCaptureResult
	slackErr    error
	captures    [][3]string
}

func (f *fakeCLI) Search(_ context.Context, query string, limit int) ([]cli.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, searchCall{query, limit})
	return f.results, f.searchErr
}

func (f *fakeCLI) RunBlock(_ context.Context, file string, cursor int) (cli.RunBlockResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, file)
	if data, err := readFile(file); err == nil {
		f.runText = append(f.runText, data)
	}
	return f.runBlock, f.runBlockErr
}

func (f *fakeCLI) SlackCapture(_ context.Context, channel, thread, tokenEnv string) (cli.SlackCaptureResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures = append(f.captures, [3]string{channel, thread, tokenEnv})
	return f.slack, f.slackErr
}

type fakeTrash struct {
	paths []string
	err   error
}

func (f *fakeTrash) Trash(_ context.Context, path string) error {
	f.paths = append(f.paths, path)
	return f.err
}

type fakeClipboard struct {
	text     string
	readErr  error
	writeErr error
}

func (f *fakeClipboard) ReadAll() (string, error) { return f.text, f.readErr }

func (f *fakeClipboard) WriteAll(text string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.text = text
	return nil
}

type fakeLLM struct {
	mu       sync.Mutex
	answer   string
	err      error
	invalid  error
	requests []llm.Request
}

func (f *fakeLLM) Ask(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.answer, f.err
}

func (f *fakeLLM) Validate() error { return f.invalid }

type staticConfig struct{ cfg config.Config }

func (s staticConfig) Load() config.Config { return s.cfg }

var errBoom = errors.New("boom")

var testNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type harness struct {
	root      string
	editor    *fakeEditor
	cli       *fakeCLI
	trash     *fakeTrash
	clipboard *fakeClipboard
	llm       *fakeLLM
	cmds      *Commands
}

// newHarness wires Commands without a worker pool, so every command runs to
// completion before returning.
func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, storage.EnsureLayout(root))

	guard, err := workspace.NewGuard(root)
	require.NoError(t, err)
	require.NoError(t, guard.AddProtected(workspace.DefaultProtectedPatterns...))

	h := &harness{
		root:      guard.Root(),
		editor:    &fakeEditor{confirm: true},
		cli:       &fakeCLI{},
		trash:     &fakeTrash{},
		clipboard: &fakeClipboard{},
		llm:       &fakeLLM{answer: "forty-two"},
	}
	h.cmds = New(Options{
		Root:      h.root,
		Editor:    h.editor,
		Guard:     guard,
		CLI:       h.cli,
		Trash:     h.trash,
		Clipboard: h.clipboard,
		LLM:       h.llm,
		LLMLimits: llm.Limits{MaxChars: 12000},
		Configs:   staticConfig{config.Defaults()},
		Now:       func() time.Time { return testNow },
	})
	return h
}

// activate makes a new memory buffer with text the active buffer.
func (h *harness) activate(text string) *buffer.Memory {
	m := buffer.NewMemory(text)
	h.editor.active = m
	return m
}
