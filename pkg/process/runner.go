// Package process runs external programs with captured output and a hard
// timeout.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/entrhq/margin/pkg/logging"
)

// TimeoutExitCode is reported when a process is killed for exceeding its
// timeout. It matches the convention of coreutils timeout(1).
const TimeoutExitCode = 124

// waitDelay bounds how long Run waits for output pipes after the process is
// killed, in case a grandchild still holds them open.
const waitDelay = 2 * time.Second

// Command describes one process invocation.
type Command struct {
	Name string
	Args []string
	// Stdin is written to the process when non-nil. A nil Stdin leaves the
	// process without standard input.
	Stdin *string
	// Timeout kills the process after the given duration. Zero means no
	// timeout beyond ctx.
	Timeout time.Duration
	// Env entries are appended to the current environment.
	Env []string
	Dir string
}

// Result is the outcome of a process that started.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// Runner starts processes. The zero value is ready to use.
type Runner struct {
	Logger logging.Sink
}

// NewRunner creates a runner that logs to logger.
func NewRunner(logger logging.Sink) *Runner {
	return &Runner{Logger: logger}
}

func (r *Runner) logger() logging.Sink {
	if r == nil || r.Logger == nil {
		return logging.Nop()
	}
	return r.Logger
}

// Run executes c and waits for it.
//
// A non-zero exit is reported in Result, not as an error. When the timeout
// fires the process is killed, remaining output is collected, ExitCode is
// TimeoutExitCode and Stderr ends with a "Command timed out" line. An error
// is returned only when the process could not be started or ctx was
// cancelled.
func (r *Runner) Run(ctx context.Context, c Command) (Result, error) {
	execCtx := ctx
	cancel := context.CancelFunc(func() {})
	if c.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, c.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(execCtx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.Stdin != nil {
		cmd.Stdin = strings.NewReader(*c.Stdin)
	}
	configureSysProcAttr(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("failed to start %s: %w", c.Name, err)
	}
	waitErr := cmd.Wait()

	res := Result{
		Stdout:   decode(stdout.Bytes()),
		Stderr:   decode(stderr.Bytes()),
		Duration: time.Since(start),
	}

	if c.Timeout > 0 && errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		res.TimedOut = true
		res.ExitCode = TimeoutExitCode
		note := fmt.Sprintf("Command timed out after %ss", formatSeconds(c.Timeout))
		if res.Stderr != "" {
			res.Stderr += "\n"
		}
		res.Stderr += note
		r.logger().Warnf("%s: %s", c.Name, note)
		return res, nil
	}

	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s cancelled: %w", c.Name, ctx.Err())
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			res.ExitCode = -1
			return res, fmt.Errorf("failed to wait for %s: %w", c.Name, waitErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	r.logger().Debugf("%s exited %d in %s", c.Name, res.ExitCode, res.Duration)
	return res, nil
}

// decode converts captured output to a string, replacing invalid UTF-8.
func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
