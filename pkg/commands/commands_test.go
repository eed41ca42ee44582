package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/margin/pkg/buffer"
	"github.com/entrhq/margin/pkg/cli"
	"github.com/entrhq/margin/pkg/config"
	"github.com/entrhq/margin/pkg/llm"
	"github.com/entrhq/margin/pkg/persistence"
	"github.com/entrhq/margin/pkg/security/workspace"
	"github.com/entrhq/margin/pkg/storage"
	"github.com/entrhq/margin/pkg/tasks"
)

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

func TestNewScratch(t *testing.T) {
	h := newHarness(t)

	buf := h.cmds.NewScratch()
	require.NotNil(t, buf)

	m := buf.(*buffer.Memory)
	assert.Equal(t, ScratchName, m.Name())
	assert.Equal(t, PlainTextSyntaxPath, m.SyntaxPath())

	state := buf.State()
	assert.True(t, state.IsManaged())
	assert.NotEmpty(t, state.ID())
	assert.Equal(t, testNow, state.LastAutosave())
	assert.Equal(t, testNow, state.LastSnapshot())

	other := h.cmds.NewScratch()
	assert.NotEqual(t, state.ID(), other.State().ID())
}

func TestSearch_ShowsResultsAndOpensPick(t *testing.T) {
	h := newHarness(t)
	h.cli.results = []cli.SearchResult{
		{File: "inbox/a.md", Line: 3, Col: 7, Preview: "hello", Mtime: "2024-01-01"},
		{File: "../escape.md", Line: 1, Col: 1},
	}

	h.cmds.Search("hello")

	require.Equal(t, []searchCall{{"hello", 0}}, h.cli.searches)
	require.Len(t, h.editor.results, 2)
	assert.Equal(t, ResultItem{Title: "inbox/a.md:3", Detail: "hello  2024-01-01"}, h.editor.results[0])

	h.editor.pick(0)
	require.Len(t, h.editor.opened, 1)
	assert.Equal(t, openCall{filepath.Join(h.root, "inbox", "a.md"), 3, 7}, h.editor.opened[0])

	h.editor.pick(1)
	assert.Len(t, h.editor.opened, 1, "escaping result must not open")
	require.Len(t, h.editor.errors, 1)
	assert.Contains(t, h.editor.errors[0], "invalid path returned by CLI")

	h.editor.pick(-1)
	assert.Len(t, h.editor.opened, 1)
}

func TestSearch_BlankEmptyAndError(t *testing.T) {
	h := newHarness(t)

	h.cmds.Search("   ")
	assert.Empty(t, h.cli.searches)

	h.cmds.Search("nothing")
	assert.Equal(t, []string{"Margin: no results."}, h.editor.statuses)

	h.cli.searchErr = &cli.CLIFailedError{Detail: "index missing"}
	h.cmds.Search("x")
	assert.Equal(t, []string{"index missing"}, h.editor.errors)
}

func TestSearch_RunsOnPool(t *testing.T) {
	h := newHarness(t)
	h.cli.results = []cli.SearchResult{{File: "a.md", Line: 1, Col: 1}}

	pool := tasks.NewPool(context.Background(), 2, nil)
	h.cmds.pool = pool

	id := h.cmds.Search("a")
	assert.NotEmpty(t, id)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool.Close()
	require.NoError(t, pool.Wait(ctx))

	h.editor.mu.Lock()
	defer h.editor.mu.Unlock()
	assert.Len(t, h.editor.results, 1)
}

func TestOpenResult(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.cmds.OpenResult(cli.SearchResult{}), ErrMissingResultPath)

	err := h.cmds.OpenResult(cli.SearchResult{File: "../../etc/passwd", Line: 1, Col: 1})
	assert.ErrorIs(t, err, workspace.ErrPathEscape)

	require.NoError(t, h.cmds.OpenResult(cli.SearchResult{File: "scratch/current/x.md", Line: 0, Col: -3}))
	assert.Equal(t, openCall{filepath.Join(h.root, "scratch", "current", "x.md"), 1, 1}, h.editor.opened[0])
}

func TestPromoteName(t *testing.T) {
	tests := []struct {
		slug string
		want string
	}{
		{"", "20240102T030405.md"},
		{"  My Idea!! ", "20240102T030405_My-Idea.md"},
		{"---", "20240102T030405.md"},
		{"a/b c", "20240102T030405_a-b-c.md"},
		{"keep_under-score", "20240102T030405_keep_under-score.md"},
	}
	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			assert.Equal(t, tt.want, PromoteName(testNow, tt.slug))
		})
	}
}

func TestPromote(t *testing.T) {
	h := newHarness(t)
	buf := h.activate("promoted text")

	h.cmds.Promote("big idea")

	want := filepath.Join(h.root, "inbox", "20240102T030405_big-idea.md")
	got, err := readFile(want)
	require.NoError(t, err)
	assert.Equal(t, "promoted text", got)

	assert.Equal(t, []buffer.Buffer{buf}, h.editor.closed)
	assert.Equal(t, []openCall{{want, 0, 0}}, h.editor.opened)
	assert.Equal(t, []string{"Promoted to inbox/20240102T030405_big-idea.md"}, h.editor.statuses)
}

func TestDeleteCurrentNote_Scratch(t *testing.T) {
	h := newHarness(t)
	buf := h.activate("scratch")
	buf.State().Manage(testNow)
	buf.State().SetID("abc-1")

	path := filepath.Join(h.root, "scratch", "current", "abc-1.md")
	require.NoError(t, os.WriteFile(path, []byte("scratch"), 0o644))

	h.cmds.DeleteCurrentNote()

	require.Len(t, h.editor.confirms, 1)
	assert.Equal(t, "Move this note to Recycle Bin?\n\n"+path, h.editor.confirms[0])
	assert.Equal(t, []string{path}, h.trash.paths)
	assert.False(t, buf.State().IsManaged())
	assert.Equal(t, []buffer.Buffer{buf}, h.editor.closed)
	assert.Equal(t, []string{"Moved to Recycle Bin"}, h.editor.statuses)
}

func TestDeleteCurrentNote_Rejections(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		h := newHarness(t)
		h.activate("unmanaged")
		h.cmds.DeleteCurrentNote()
		assert.Equal(t, []string{"No note file is associated with this view."}, h.editor.errors)
	})

	t.Run("missing file", func(t *testing.T) {
		h := newHarness(t)
		buf := h.activate("x")
		buf.SetFileName(filepath.Join(h.root, "inbox", "gone.md"))
		h.cmds.DeleteCurrentNote()
		require.Len(t, h.editor.errors, 1)
		assert.Contains(t, h.editor.errors[0], "File not found: ")
	})

	t.Run("protected", func(t *testing.T) {
		h := newHarness(t)
		cfgPath := filepath.Join(h.root, "config.json")
		require.NoError(t, os.WriteFile(cfgPath, []byte("{}"), 0o644))
		h.activate("x").SetFileName(cfgPath)
		h.cmds.DeleteCurrentNote()
		require.Len(t, h.editor.errors, 1)
		assert.Empty(t, h.trash.paths)
		assert.Empty(t, h.editor.confirms)
	})

	t.Run("outside root", func(t *testing.T) {
		h := newHarness(t)
		outside := filepath.Join(t.TempDir(), "elsewhere.md")
		require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
		h.activate("x").SetFileName(outside)
		h.cmds.DeleteCurrentNote()
		require.Len(t, h.editor.errors, 1)
		assert.Empty(t, h.trash.paths)
	})

	t.Run("cancelled", func(t *testing.T) {
		h := newHarness(t)
		h.editor.confirm = false
		note := filepath.Join(h.root, "inbox", "keep.md")
		require.NoError(t, os.WriteFile(note, []byte("x"), 0o644))
		h.activate("x").SetFileName(note)
		h.cmds.DeleteCurrentNote()
		assert.Len(t, h.editor.confirms, 1)
		assert.Empty(t, h.trash.paths)
	})

	t.Run("trash failure", func(t *testing.T) {
		h := newHarness(t)
		h.trash.err = errBoom
		note := filepath.Join(h.root, "inbox", "stuck.md")
		require.NoError(t, os.WriteFile(note, []byte("x"), 0o644))
		buf := h.activate("x")
		buf.SetFileName(note)
		h.cmds.DeleteCurrentNote()
		assert.Equal(t, []string{"boom"}, h.editor.errors)
		assert.Empty(t, h.editor.closed)
	})
}

func TestSlackCapture_Modes(t *testing.T) {
	capture := cli.SlackCaptureResult{Text: "# thread\n", SavedPath: "slack/C1/123.md"}

	t.Run("insert and save", func(t *testing.T) {
		h := newHarness(t)
		h.cli.slack = capture
		buf := h.activate("")

		h.cmds.SlackCapture("C1", "123.456", SlackInsertSave)

		assert.Equal(t, "# thread\n", buf.Text(), "text is inserted once")
		assert.Equal(t, [][3]string{{"C1", "123.456", "SLACK_TOKEN"}}, h.cli.captures)
		assert.Equal(t, []string{"Slack captured: slack/C1/123.md"}, h.editor.statuses)
	})

	t.Run("open file", func(t *testing.T) {
		h := newHarness(t)
		h.cli.slack = capture
		h.cmds.SlackCapture("C1", "123.456", SlackOpenFile)
		assert.Equal(t, []openCall{{filepath.Join(h.root, "slack", "C1", "123.md"), 0, 0}}, h.editor.opened)
	})

	t.Run("copy", func(t *testing.T) {
		h := newHarness(t)
		h.cli.slack = capture
		h.cmds.SlackCapture("C1", "123.456", SlackCopy)
		assert.Equal(t, "# thread\n", h.clipboard.text)
	})

	t.Run("escaping saved path", func(t *testing.T) {
		h := newHarness(t)
		h.cli.slack = cli.SlackCaptureResult{Text: "x", SavedPath: "../../outside.md"}
		buf := h.activate("")
		h.cmds.SlackCapture("C1", "123.456", SlackInsert)
		require.Len(t, h.editor.errors, 1)
		assert.Equal(t, "", buf.Text())
	})
}

func TestParseSlackLink(t *testing.T) {
	link, channel, ok := ParseSlackLink("see https://acme.slack.com/archives/C0123ABC/p1700000000123456 please")
	require.True(t, ok)
	assert.Equal(t, "https://acme.slack.com/archives/C0123ABC/p1700000000123456", link)
	assert.Equal(t, "C0123ABC", channel)

	_, channel, ok = ParseSlackLink("https://app.slack.com/client/T1")
	assert.True(t, ok)
	assert.Empty(t, channel)

	_, _, ok = ParseSlackLink("https://example.com/archives/C1/")
	assert.False(t, ok)
}

func TestSlackCaptureFromClipboard(t *testing.T) {
	h := newHarness(t)
	h.cli.slack = cli.SlackCaptureResult{Text: "captured"}
	buf := h.activate("")

	h.clipboard.text = "no link here"
	h.cmds.SlackCaptureFromClipboard()
	assert.Equal(t, []string{"Clipboard does not contain a Slack link."}, h.editor.errors)

	h.clipboard.text = "https://acme.slack.com/archives/C9/p1"
	h.cmds.SlackCaptureFromClipboard()
	assert.Equal(t, [][3]string{{"C9", "https://acme.slack.com/archives/C9/p1", "SLACK_TOKEN"}}, h.cli.captures)
	assert.Equal(t, "captured", buf.Text())
}

func TestAskLLM(t *testing.T) {
	h := newHarness(t)
	buf := h.activate("whole buffer")
	h.editor.selections = []string{"one", "two"}

	h.cmds.AskLLM("  what?  ", llm.ModeSelection, "")
	require.Len(t, h.llm.requests, 1)
	assert.Equal(t, llm.Request{Question: "what?", Selection: "one\n\ntwo", RelatedNotes: []llm.RelatedNote{}}, h.llm.requests[0])
	assert.Equal(t, []string{"forty-two"}, h.editor.answers)
	assert.Equal(t, "forty-two", h.cmds.Session().LastAnswer())

	h.cmds.AskLLM("q", llm.ModeBuffer, "")
	assert.Equal(t, "whole buffer", h.llm.requests[1].BufferExcerpt)

	h.cli.results = []cli.SearchResult{{File: "inbox/n.md", Preview: "note"}}
	h.cmds.AskLLM("q", llm.ModeRelated, "topic")
	assert.Equal(t, searchCall{"topic", RelatedNotesLimit}, h.cli.searches[0])
	assert.Equal(t, []llm.RelatedNote{{Path: "inbox/n.md", Excerpt: "note"}}, h.llm.requests[2].RelatedNotes)

	buf.SetCursor(len(buf.Text()))
	h.cmds.InsertLastLLMAnswer()
	assert.Equal(t, "whole bufferforty-two\n", buf.Text())
}

func TestAskLLM_StripsThinking(t *testing.T) {
	h := newHarness(t)
	h.activate("x")
	h.llm.answer = "<think>let me see</think>\nThe answer is 4."

	h.cmds.AskLLM("2+2?", llm.ModeBuffer, "")
	assert.Equal(t, []string{"The answer is 4."}, h.editor.answers)
	assert.Equal(t, "The answer is 4.", h.cmds.Session().LastAnswer())
}

func TestAskLLM_Guards(t *testing.T) {
	h := newHarness(t)
	h.activate("x")

	h.cmds.AskLLM("   ", llm.ModeBuffer, "")
	assert.Empty(t, h.llm.requests)

	h.llm.invalid = llm.ErrClientNotFile
	h.cmds.AskLLM("q", llm.ModeBuffer, "")
	assert.Equal(t, []string{"Margin_llm_client_path does not point to a file"}, h.editor.errors)
	assert.Empty(t, h.llm.requests)

	h.cmds.llm = nil
	h.cmds.AskLLM("q", llm.ModeBuffer, "")
	assert.Equal(t, "Set margin_llm_client_path to enable Ask LLM", h.editor.errors[1])
}

func TestAskLLM_RelatedSearchFailureStillAsks(t *testing.T) {
	h := newHarness(t)
	h.activate("x")
	h.cli.searchErr = errBoom

	h.cmds.AskLLM("q", llm.ModeRelated, "topic")
	require.Len(t, h.llm.requests, 1)
	assert.Empty(t, h.llm.requests[0].RelatedNotes)
	assert.Empty(t, h.editor.errors)
}

func TestInsertLastLLMAnswer_Empty(t *testing.T) {
	h := newHarness(t)
	buf := h.activate("x")
	h.cmds.InsertLastLLMAnswer()
	assert.Equal(t, []string{"No LLM answer available"}, h.editor.statuses)
	assert.Equal(t, "x", buf.Text())
}

func TestOnLoad(t *testing.T) {
	h := newHarness(t)

	adopted := buffer.NewMemory("body")
	adopted.SetFileName(filepath.Join(h.root, "scratch", "current", "abc-1.py.md"))
	h.cmds.OnLoad(adopted)
	assert.True(t, adopted.State().IsManaged())
	assert.Equal(t, "abc-1", adopted.State().ID())
	assert.False(t, adopted.State().ClaimFileBackedOpen(), "adopted files are already file-backed")

	other := buffer.NewMemory("body")
	other.SetFileName(filepath.Join(h.root, "inbox", "note.md"))
	h.cmds.OnLoad(other)
	assert.False(t, other.State().IsManaged())

	h.cmds.OnLoad(buffer.NewMemory(""))
}

type nopHost struct{}

func (nopHost) Windows() []persistence.Window { return nil }
func (nopHost) SaveNative(buffer.Buffer) error { return nil }
func (nopHost) OpenAsFile(buffer.Buffer, string) error { return nil }

func TestOnPreClose_FlushesManagedBuffer(t *testing.T) {
	h := newHarness(t)
	cfg := config.Defaults()
	h.cmds.scheduler = persistence.New(h.root, nopHost{}, staticConfig{cfg},
		persistence.WithClock(func() time.Time { return testNow }))

	managed := buffer.NewMemory("")
	managed.State().Manage(testNow)
	managed.State().SetID("close-me")
	managed.SetText("unsaved words")

	h.cmds.OnPreClose(managed)

	got, err := readFile(storage.CurrentScratchPath(h.root, managed, cfg))
	require.NoError(t, err)
	assert.Equal(t, "unsaved words", got)

	unmanaged := buffer.NewMemory("")
	unmanaged.State().SetID("skip-me")
	unmanaged.SetText("ignored")
	h.cmds.OnPreClose(unmanaged)
	assert.NoFileExists(t, storage.CurrentScratchPath(h.root, unmanaged, cfg))
}

func TestNewScratch_FirstSnapshotWaitsForInterval(t *testing.T) {
	h := newHarness(t)
	sched := persistence.New(h.root, nopHost{}, staticConfig{config.Defaults()})

	buf := h.cmds.NewScratch()
	require.NotNil(t, buf)
	mem := buf.(*buffer.Memory)
	mem.SetText("hello")

	out, err := sched.Persist(buf, testNow.Add(time.Second), false)
	require.NoError(t, err)
	assert.False(t, out.Autosaved, "autosave interval starts at creation")
	assert.False(t, out.Snapshotted)

	out, err = sched.Persist(buf, testNow.Add(6*time.Second), false)
	require.NoError(t, err)
	assert.True(t, out.Autosaved)
	assert.False(t, out.Snapshotted, "snapshot interval starts at creation")

	mem.SetText("hello again")
	out, err = sched.Persist(buf, testNow.Add(601*time.Second), false)
	require.NoError(t, err)
	assert.True(t, out.Autosaved)
	assert.True(t, out.Snapshotted)
	assert.FileExists(t, out.SnapshotPath)
}
