package tasks

import (
	"context"
	"sync"
)

// DefaultMailboxSize is the number of pending UI closures a mailbox buffers
// before Post blocks.
const DefaultMailboxSize = 64

// Mailbox hands closures from worker goroutines to the host's main loop.
// The main loop either selects on C or calls Drain between events.
type Mailbox struct {
	ch   chan func()
	done chan struct{}
	once sync.Once
}

// NewMailbox creates a mailbox buffering size closures. size <= 0 uses
// DefaultMailboxSize.
func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = DefaultMailboxSize
	}
	return &Mailbox{
		ch:   make(chan func(), size),
		done: make(chan struct{}),
	}
}

// Post queues fn for the main loop. It blocks while the mailbox is full and
// drops fn once the mailbox is closed.
func (m *Mailbox) Post(fn func()) {
	if fn == nil {
		return
	}
	select {
	case <-m.done:
		return
	default:
	}
	select {
	case m.ch <- fn:
	case <-m.done:
	}
}

// C returns the channel the main loop receives closures from.
func (m *Mailbox) C() <-chan func() {
	return m.ch
}

// Drain runs every queued closure on the calling goroutine without blocking
// and returns how many ran.
func (m *Mailbox) Drain() int {
	n := 0
	for {
		select {
		case fn := <-m.ch:
			fn()
			n++
		default:
			return n
		}
	}
}

// Run executes closures as they arrive until ctx is done or the mailbox is
// closed. It is meant for hosts whose main loop is nothing but the mailbox.
func (m *Mailbox) Run(ctx context.Context) {
	for {
		select {
		case fn := <-m.ch:
			fn()
		case <-ctx.Done():
			return
		case <-m.done:
			return
		}
	}
}

// Close stops accepting closures. Already queued closures can still be
// drained.
func (m *Mailbox) Close() {
	m.once.Do(func() { close(m.done) })
}
