// Package pad is a terminal scratch pad hosting the margin engine: tabs of
// textareas backed by engine buffers, autosaved by the persistence
// scheduler and driven by the margin commands.
//
// The package is split into:
// - pad.go: program lifecycle and mailbox forwarding
// - model.go: model state and tab management
// - editor.go: the commands.Editor and persistence.Host implementations
// - update.go: Bubble Tea Update, key bindings and the command palette
// - view.go: rendering
// - picker.go: the filterable pick list
// - syntax.go: chroma based syntax detection
// - styles.go: colors and styles
package pad

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/margin/pkg/commands"
	"github.com/entrhq/margin/pkg/logging"
	"github.com/entrhq/margin/pkg/persistence"
	"github.com/entrhq/margin/pkg/tasks"
)

// Pad runs the terminal UI.
type Pad struct {
	model   *model
	mailbox *tasks.Mailbox
	logger  logging.Sink
	program *tea.Program
}

// New creates a pad whose UI thread drains mailbox. Commands and the
// scheduler are attached afterwards since both need the pad as their editor.
func New(mailbox *tasks.Mailbox, logger logging.Sink) *Pad {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pad{
		model:   newModel(logger),
		mailbox: mailbox,
		logger:  logger,
	}
}

// Editor returns the pad as the commands' editor.
func (p *Pad) Editor() commands.Editor {
	return p.model
}

// Host returns the pad as the scheduler's host.
func (p *Pad) Host() persistence.Host {
	return p.model
}

// Attach wires the commands and the scheduler into the pad.
func (p *Pad) Attach(cmds *commands.Commands, scheduler *persistence.Scheduler) {
	p.model.cmds = cmds
	p.model.scheduler = scheduler
}

// Open loads a file into a new tab. Call it before Run.
func (p *Pad) Open(path string) error {
	return p.model.OpenFile(path, 0, 0)
}

// Run starts the UI and blocks until the user quits or ctx is done. Every
// managed buffer is flushed on the way out.
func (p *Pad) Run(ctx context.Context) error {
	if p.model.cmds == nil {
		return errors.New("pad: commands not attached")
	}
	if len(p.model.buffers()) == 0 {
		p.model.cmds.NewScratch()
	}

	p.program = tea.NewProgram(
		p.model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	forwardCtx, stopForward := context.WithCancel(ctx)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		p.forward(forwardCtx)
	}()

	_, err := p.program.Run()

	stopForward()
	<-forwarded
	p.shutdown()

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run pad: %w", err)
	}
	return nil
}

// forward hands mailbox closures to the Bubble Tea loop so they run on the
// UI thread.
func (p *Pad) forward(ctx context.Context) {
	for {
		select {
		case fn := <-p.mailbox.C():
			p.program.Send(uiMsg{fn: fn})
		case <-ctx.Done():
			return
		}
	}
}

// shutdown flushes every managed buffer, then runs whatever UI work the
// flushes posted.
func (p *Pad) shutdown() {
	for _, buf := range p.model.buffers() {
		p.model.cmds.OnPreClose(buf)
	}
	if n := p.mailbox.Drain(); n > 0 {
		p.logger.Debugf("Ran %d pending UI closures on shutdown", n)
	}
}
