// Package cli invokes the external margin command-line tool and decodes its
// JSON output.
//
// Every subcommand prints exactly one JSON value on success and exits
// non-zero with a readable stderr on failure. Paths the CLI returns are
// untrusted; callers validate them with the workspace guard before use.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/entrhq/margin/pkg/config"
	"github.com/entrhq/margin/pkg/logging"
	"github.com/entrhq/margin/pkg/metrics"
	"github.com/entrhq/margin/pkg/process"
	"github.com/entrhq/margin/pkg/storage"
)

const executableName = "margin"

// Options configures a CLI.
type Options struct {
	// Root is the margin root passed to every subcommand.
	Root string
	// Path is an explicit executable path. It is used only when it names an
	// existing file.
	Path string
	// Timeout bounds each call. Zero uses config.DefaultCLITimeoutSeconds.
	Timeout time.Duration
	Runner  *process.Runner
	Metrics *metrics.Recorder
	Logger  logging.Sink
}

// CLI runs margin subcommands.
type CLI struct {
	root     string
	explicit string
	timeout  time.Duration
	runner   *process.Runner
	metrics  *metrics.Recorder
	logger   logging.Sink
}

// New creates a CLI from opts.
func New(opts Options) *CLI {
	c := &CLI{
		root:     opts.Root,
		explicit: opts.Path,
		timeout:  opts.Timeout,
		runner:   opts.Runner,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = config.DefaultCLITimeoutSeconds * time.Second
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	if c.runner == nil {
		c.runner = process.NewRunner(c.logger)
	}
	return c
}

// Root returns the margin root passed to subcommands.
func (c *CLI) Root() string {
	return c.root
}

// Path locates the executable: the explicit path if it is a file, then
// root/bin/margin (margin.exe on Windows), then margin on PATH.
func (c *CLI) Path() (string, error) {
	if c.explicit != "" && isFile(c.explicit) {
		return c.explicit, nil
	}

	name := executableName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if candidate := filepath.Join(storage.BinDir(c.root), name); isFile(candidate) {
		return candidate, nil
	}

	if found, err := exec.LookPath(executableName); err == nil {
		return found, nil
	}
	return "", ErrCLINotFound
}

// RunJSON runs the CLI with args and decodes stdout into out. Empty stdout
// decodes as JSON null. out may be nil to only validate the output.
func (c *CLI) RunJSON(ctx context.Context, args []string, out any) error {
	subcommand := "unknown"
	if len(args) > 0 {
		subcommand = args[0]
	}
	start := time.Now()

	path, err := c.Path()
	if err != nil {
		c.metrics.RecordCLICall(subcommand, metrics.OutcomeNotFound, time.Since(start))
		return err
	}

	c.logger.Debugf("cli %s %v", subcommand, args[1:])
	res, err := c.runner.Run(ctx, process.Command{
		Name:    path,
		Args:    args,
		Timeout: c.timeout,
	})
	if err != nil {
		c.metrics.RecordCLICall(subcommand, metrics.OutcomeFailed, time.Since(start))
		return fmt.Errorf("margin CLI: %w", err)
	}

	if res.ExitCode != 0 {
		outcome := metrics.OutcomeFailed
		if res.TimedOut {
			outcome = metrics.OutcomeTimeout
		}
		c.metrics.RecordCLICall(subcommand, outcome, time.Since(start))
		return &CLIFailedError{
			Args:     args,
			ExitCode: res.ExitCode,
			Detail:   failureDetail(res.Stdout, res.Stderr),
			TimedOut: res.TimedOut,
		}
	}

	raw := bytes.TrimSpace([]byte(res.Stdout))
	if len(raw) == 0 {
		raw = []byte("null")
	}
	if !json.Valid(raw) {
		c.metrics.RecordCLICall(subcommand, metrics.OutcomeBadOutput, time.Since(start))
		return &CLIBadOutputError{Snippet: snippet(res.Stdout)}
	}

	c.metrics.RecordCLICall(subcommand, metrics.OutcomeOK, time.Since(start))
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// IsNotFound reports whether err means the CLI is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCLINotFound)
}
