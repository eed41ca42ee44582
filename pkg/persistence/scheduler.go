// Package persistence drives autosave and snapshots for managed buffers.
//
// A Scheduler ticks once per second, walks every open buffer and decides per
// buffer whether to autosave it to its stable scratch/current path, write a
// new snapshot under scratch/history, both, or nothing. Clean buffers cost
// nothing; a failure on one buffer never stops the others.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/margin/pkg/buffer"
	"github.com/entrhq/margin/pkg/config"
	"github.com/entrhq/margin/pkg/logging"
	"github.com/entrhq/margin/pkg/metrics"
	"github.com/entrhq/margin/pkg/storage"
)

// DefaultTickInterval is how often the scheduler walks open buffers.
const DefaultTickInterval = time.Second

// ErrAlreadyRunning is returned by Start on a running scheduler.
var ErrAlreadyRunning = errors.New("persistence: scheduler already running")

// Window is one editor window holding buffers.
type Window interface {
	Buffers() []buffer.Buffer
}

// Host is the editor the scheduler persists buffers for. SaveNative and
// OpenAsFile are only ever called through the Dispatcher, on the UI thread.
type Host interface {
	Windows() []Window
	// SaveNative saves buf to its backing file the way the editor would.
	SaveNative(buf buffer.Buffer) error
	// OpenAsFile replaces the in-memory tab of buf with a tab backed by
	// path. Implementations unmanage buf before closing it so the close does
	// not flush it a second time.
	OpenAsFile(buf buffer.Buffer, path string) error
}

// ConfigSource yields the current configuration. It is consulted on every
// persistence decision.
type ConfigSource interface {
	Load() config.Config
}

// Dispatcher runs closures on the UI thread. *tasks.Mailbox satisfies it.
type Dispatcher interface {
	Post(fn func())
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(fn func())

// Post calls f(fn).
func (f DispatchFunc) Post(fn func()) { f(fn) }

// Immediate runs closures on the calling goroutine. Hosts without a separate
// UI thread use it.
var Immediate Dispatcher = DispatchFunc(func(fn func()) { fn() })

// Outcome describes what one persistence decision did.
type Outcome struct {
	Autosaved    bool
	Native       bool // autosave deferred to the editor's own save
	AutosavePath string
	Snapshotted  bool
	SnapshotPath string
	Replaced     bool // file-backed tab replacement was scheduled
}

// Scheduler persists managed buffers on a fixed cadence.
type Scheduler struct {
	root     string
	host     Host
	configs  ConfigSource
	ui       Dispatcher
	logger   logging.Sink
	metrics  *metrics.Recorder
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the diagnostics sink.
func WithLogger(l logging.Sink) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Scheduler) { s.metrics = r }
}

// WithDispatcher sets how UI-thread work is scheduled.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Scheduler) {
		if d != nil {
			s.ui = d
		}
	}
}

// WithInterval overrides the tick interval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock overrides the time source used by the tick loop and Flush.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a scheduler persisting into root.
func New(root string, host Host, configs ConfigSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		root:     root,
		host:     host,
		configs:  configs,
		ui:       Immediate,
		logger:   logging.Nop(),
		interval: DefaultTickInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the margin root the scheduler writes into.
func (s *Scheduler) Root() string {
	return s.root
}

// Start begins ticking until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.loop(loopCtx, done)
	s.logger.Infof("Scheduler started (interval %s, root %s)", s.interval, s.root)
	return nil
}

// Stop cancels future ticks. It does not wait for a tick in progress; use
// Done for that.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.logger.Infof("Scheduler stopped")
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Done is closed when the most recently started tick loop has exited. It
// returns nil if the scheduler was never started.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.done == done {
				s.cancel = nil
			}
			s.mu.Unlock()
			return
		case <-ticker.C:
			_ = s.Tick(s.now()) // already logged per buffer
		}
	}
}

// Tick runs one unforced persistence decision for every buffer of every
// window. Errors are logged per buffer and returned joined; one failing
// buffer never prevents the rest from being processed.
func (s *Scheduler) Tick(now time.Time) error {
	s.metrics.RecordTick()

	var errs []error
	for _, w := range s.host.Windows() {
		for _, buf := range w.Buffers() {
			if _, err := s.persistSafely(buf, now, false); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Flush runs a forced persistence decision for buf. Hosts call it
// synchronously when a buffer is about to close.
func (s *Scheduler) Flush(buf buffer.Buffer) error {
	_, err := s.persistSafely(buf, s.now(), true)
	return err
}

func (s *Scheduler) persistSafely(buf buffer.Buffer, now time.Time, force bool) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("persistence: panic persisting buffer: %v", r)
			s.logger.Errorf("%v", err)
		}
	}()

	out, err = s.Persist(buf, now, force)
	if err != nil {
		s.logger.Errorf("Persist failed: %v", err)
	}
	return out, err
}

// Persist makes the autosave and snapshot decision for one buffer.
//
// Invalid, loading and unmanaged buffers are skipped. A buffer that is
// neither modified nor forced is skipped without touching its state. The
// autosave and snapshot branches are independent; a branch's timestamp only
// moves when its write succeeded, so a failed branch is retried next tick.
// UI work is posted to the Dispatcher after the buffer's lock is released.
func (s *Scheduler) Persist(buf buffer.Buffer, now time.Time, force bool) (Outcome, error) {
	if buf == nil || !buf.IsValid() || buf.IsLoading() {
		return Outcome{}, nil
	}

	out, uiWork, err := s.decideLocked(buf, now, force)

	for _, fn := range uiWork {
		s.ui.Post(fn)
	}
	return out, err
}

func (s *Scheduler) decideLocked(buf buffer.Buffer, now time.Time, force bool) (Outcome, []func(), error) {
	state := buf.State()
	state.Lock()
	defer state.Unlock()
	return s.decide(buf, state, now, force)
}

func (s *Scheduler) decide(buf buffer.Buffer, state *buffer.State, now time.Time, force bool) (Outcome, []func(), error) {
	var out Outcome
	if !state.IsManaged() {
		return out, nil, nil
	}
	if !buf.IsModified() && !force {
		return out, nil, nil
	}

	cfg := s.configs.Load()
	if err := storage.EnsureLayout(s.root); err != nil {
		s.metrics.RecordPersistFailure(metrics.BranchAutosave)
		return out, nil, fmt.Errorf("persistence: %w", err)
	}

	text := buf.Text()
	currentPath := storage.CurrentScratchPath(s.root, buf, cfg)
	backing := buf.FileName()
	id := state.ID()

	var (
		errs   []error
		uiWork []func()
	)

	if force || now.Sub(state.LastAutosave()) >= cfg.AutosaveInterval() {
		if backing != "" && storage.SamePath(backing, currentPath) {
			uiWork = append(uiWork, func() { s.saveNative(buf) })
			state.SetLastAutosave(now)
			out.Autosaved, out.Native, out.AutosavePath = true, true, currentPath
			s.metrics.RecordAutosave(metrics.ModeNative)
		} else if err := storage.WriteFileAtomic(currentPath, text); err != nil {
			s.metrics.RecordPersistFailure(metrics.BranchAutosave)
			errs = append(errs, fmt.Errorf("autosave %s: %w", id, err))
		} else {
			state.SetLastAutosave(now)
			out.Autosaved, out.AutosavePath = true, currentPath
			s.metrics.RecordAutosave(metrics.ModeAtomic)
			s.logger.Debugf("Autosaved %s", currentPath)

			if cfg.AutoReplaceScratchTabWithFile && backing == "" && state.ClaimFileBackedOpen() {
				uiWork = append(uiWork, func() { s.openAsFile(buf, currentPath) })
				out.Replaced = true
			}
		}
	}

	if force || now.Sub(state.LastSnapshot()) >= cfg.SnapshotInterval() {
		snapPath := storage.SnapshotPath(s.root, buf, cfg, now)
		if err := storage.WriteFileAtomic(snapPath, text); err != nil {
			s.metrics.RecordPersistFailure(metrics.BranchSnapshot)
			errs = append(errs, fmt.Errorf("snapshot %s: %w", id, err))
		} else {
			state.SetLastSnapshot(now)
			out.Snapshotted, out.SnapshotPath = true, snapPath
			s.metrics.RecordSnapshot()
			s.logger.Debugf("Snapshot %s", snapPath)
		}
	}

	return out, uiWork, errors.Join(errs...)
}

func (s *Scheduler) saveNative(buf buffer.Buffer) {
	if !buf.IsValid() || !buf.IsModified() {
		return
	}
	if err := s.host.SaveNative(buf); err != nil {
		s.logger.Errorf("Native save of %s failed: %v", buf.FileName(), err)
	}
}

func (s *Scheduler) openAsFile(buf buffer.Buffer, path string) {
	if !buf.IsValid() {
		return
	}
	if err := s.host.OpenAsFile(buf, path); err != nil {
		s.logger.Errorf("Reopening scratch as %s failed: %v", path, err)
	}
}
