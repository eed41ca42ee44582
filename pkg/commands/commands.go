// Package commands implements the user-facing margin commands on top of the
// persistence engine: new scratch, search, promote, delete, run block, Slack
// capture and Ask LLM.
//
// Command methods are called on the UI thread. Anything that blocks (CLI
// calls, trash, LLM requests, file writes) runs on the worker pool, and its
// results are posted back to the UI thread through the dispatcher before the
// Editor is touched again.
package commands

import (
	"context"
	"time"

	"github.com/atotto/clipboard"

	"github.com/entrhq/margin/pkg/buffer"
	"github.com/entrhq/margin/pkg/cli"
	"github.com/entrhq/margin/pkg/config"
	"github.com/entrhq/margin/pkg/llm"
	"github.com/entrhq/margin/pkg/logging"
	"github.com/entrhq/margin/pkg/persistence"
	"github.com/entrhq/margin/pkg/security/workspace"
	"github.com/entrhq/margin/pkg/tasks"
)

// ResultItem is one row of a pick list.
type ResultItem struct {
	Title  string
	Detail string
}

// Editor is the UI the commands drive. Offsets are byte offsets into
// buffer text. Every method is called on the UI thread.
type Editor interface {
	// ActiveBuffer returns the focused buffer, or nil.
	ActiveBuffer() buffer.Buffer
	NewBuffer(name, syntaxPath string) buffer.Buffer
	// OpenFile opens path with the caret at the 1-based line and column.
	// Zero line or column means the start of the file.
	OpenFile(path string, line, col int) error
	CloseBuffer(buf buffer.Buffer)
	// Save writes a file-backed buffer to its file.
	Save(buf buffer.Buffer) error
	Insert(buf buffer.Buffer, point int, text string)
	// Cursor returns the start of the first selection, or the end of the
	// buffer when there is none.
	Cursor(buf buffer.Buffer) int
	// Selections returns the text of every non-empty selection.
	Selections(buf buffer.Buffer) []string
	Confirm(message, okLabel string) bool
	ShowResults(items []ResultItem, onPick func(index int))
	ShowAnswer(text string)
	Status(msg string)
	Error(msg string)
}

// CLI is the subset of the margin CLI the commands use.
type CLI interface {
	Search(ctx context.Context, query string, limit int) ([]cli.SearchResult, error)
	RunBlock(ctx context.Context, file string, cursor int) (cli.RunBlockResult, error)
	SlackCapture(ctx context.Context, channel, thread, tokenEnv string) (cli.SlackCaptureResult, error)
}

// Trasher moves a path to the trash.
type Trasher interface {
	Trash(ctx context.Context, path string) error
}

// Clipboard reads and writes the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// SystemClipboard is the OS clipboard.
var SystemClipboard Clipboard = systemClipboard{}

// Options wires a Commands.
type Options struct {
	Root      string
	Editor    Editor
	Guard     *workspace.Guard
	CLI       CLI
	Trash     Trasher
	Clipboard Clipboard
	// LLM is nil when Ask LLM is not configured.
	LLM       llm.Client
	LLMLimits llm.Limits
	Configs   persistence.ConfigSource
	Scheduler *persistence.Scheduler
	Pool      *tasks.Pool
	UI        persistence.Dispatcher
	Session   *Session
	Logger    logging.Sink
	// SlackTokenEnv names the variable holding the Slack token.
	SlackTokenEnv string
	Now           func() time.Time
}

// Commands runs margin commands against one editor.
type Commands struct {
	root          string
	editor        Editor
	guard         *workspace.Guard
	cli           CLI
	trash         Trasher
	clipboard     Clipboard
	llm           llm.Client
	limits        llm.Limits
	configs       persistence.ConfigSource
	scheduler     *persistence.Scheduler
	pool          *tasks.Pool
	ui            persistence.Dispatcher
	session       *Session
	logger        logging.Sink
	slackTokenEnv string
	now           func() time.Time
}

// New creates Commands from opts.
func New(opts Options) *Commands {
	c := &Commands{
		root:          opts.Root,
		editor:        opts.Editor,
		guard:         opts.Guard,
		cli:           opts.CLI,
		trash:         opts.Trash,
		clipboard:     opts.Clipboard,
		llm:           opts.LLM,
		limits:        opts.LLMLimits,
		configs:       opts.Configs,
		scheduler:     opts.Scheduler,
		pool:          opts.Pool,
		ui:            opts.UI,
		session:       opts.Session,
		logger:        opts.Logger,
		slackTokenEnv: opts.SlackTokenEnv,
		now:           opts.Now,
	}
	if c.clipboard == nil {
		c.clipboard = SystemClipboard
	}
	if c.ui == nil {
		c.ui = persistence.Immediate
	}
	if c.session == nil {
		c.session = NewSession()
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	if c.slackTokenEnv == "" {
		c.slackTokenEnv = config.DefaultSlackTokenEnv
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Session returns the per-session command state.
func (c *Commands) Session() *Session {
	return c.session
}

func (c *Commands) config() config.Config {
	if c.configs == nil {
		return config.Defaults()
	}
	return c.configs.Load()
}

// spawn runs fn on the worker pool. Without a pool it runs inline.
func (c *Commands) spawn(name string, fn tasks.Func) string {
	if c.pool == nil {
		if err := fn(context.Background()); err != nil {
			c.logger.Errorf("%s: %v", name, err)
		}
		return ""
	}
	return c.pool.Go(name, fn)
}

// post runs fn on the UI thread.
func (c *Commands) post(fn func()) {
	c.ui.Post(fn)
}

// fail reports err to the user from a worker.
func (c *Commands) fail(op string, err error) {
	msg := err.Error()
	c.logger.Warnf("%s error: %s", op, msg)
	c.post(func() { c.editor.Error(msg) })
}

func (c *Commands) insertAtCursor(buf buffer.Buffer, text string) {
	if buf == nil || !buf.IsValid() {
		return
	}
	c.editor.Insert(buf, c.editor.Cursor(buf), text)
}
