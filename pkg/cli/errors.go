package cli

import (
	"errors"
	"fmt"
	"strings"
)

const maxSnippet = 400

// ErrCLINotFound means no margin executable is configured or discoverable.
var ErrCLINotFound = errors.New("margin CLI not found (set margin_cli_path or install margin in PATH)")

// ErrInvalidResponse means the CLI printed valid JSON of the wrong shape.
var ErrInvalidResponse = errors.New("margin CLI returned an unexpected response")

// CLIFailedError reports a non-zero exit. Detail is the trimmed stderr, else
// the trimmed stdout, else a generic message.
type CLIFailedError struct {
	Args     []string
	ExitCode int
	Detail   string
	TimedOut bool
}

func (e *CLIFailedError) Error() string {
	return e.Detail
}

// CLIBadOutputError reports stdout that is not valid JSON.
type CLIBadOutputError struct {
	Snippet string // trimmed and truncated stdout, "<empty>" when blank
	Err     error
}

func (e *CLIBadOutputError) Error() string {
	return fmt.Sprintf("margin CLI returned invalid JSON: %s", e.Snippet)
}

func (e *CLIBadOutputError) Unwrap() error {
	return e.Err
}

func failureDetail(stdout, stderr string) string {
	if d := strings.TrimSpace(stderr); d != "" {
		return d
	}
	if d := strings.TrimSpace(stdout); d != "" {
		return d
	}
	return "margin CLI failed"
}

func snippet(stdout string) string {
	s := strings.TrimSpace(stdout)
	if s == "" {
		return "<empty>"
	}
	if r := []rune(s); len(r) > maxSnippet {
		return string(r[:maxSnippet]) + "..."
	}
	return s
}
