package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/entrhq/margin/pkg/process"
)

const failedAnswer = "LLM client failed"

// ProcessClient runs an external program with the request written to a
// temporary JSON file, passed as the final argument. The program's trimmed
// stdout is the answer.
type ProcessClient struct {
	Path    string
	Args    []string
	Timeout time.Duration
	Runner  *process.Runner
	// TempDir holds payload files; empty uses os.TempDir.
	TempDir string
}

// Validate reports whether Path names a runnable file.
func (c *ProcessClient) Validate() error {
	if c.Path == "" {
		return ErrNotConfigured
	}
	info, err := os.Stat(c.Path)
	if err != nil || info.IsDir() {
		return ErrClientNotFile
	}
	return nil
}

// Ask writes req to a temp file and runs the client. A non-zero exit is not an
// error: the answer becomes the trimmed stderr, or a generic failure line.
func (c *ProcessClient) Ask(ctx context.Context, req Request) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}

	payload, err := c.writePayload(req)
	if err != nil {
		return "", err
	}
	defer os.Remove(payload)

	args := append(append([]string(nil), c.Args...), payload)
	runner := c.Runner
	if runner == nil {
		runner = process.NewRunner(nil)
	}
	res, err := runner.Run(ctx, process.Command{
		Name:    c.Path,
		Args:    args,
		Timeout: c.Timeout,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run LLM client: %w", err)
	}

	if res.ExitCode != 0 {
		if detail := strings.TrimSpace(res.Stderr); detail != "" {
			return detail, nil
		}
		return failedAnswer, nil
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (c *ProcessClient) writePayload(req Request) (string, error) {
	f, err := os.CreateTemp(c.TempDir, "margin-llm-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create payload file: %w", err)
	}
	if req.RelatedNotes == nil {
		req.RelatedNotes = []RelatedNote{}
	}
	encErr := json.NewEncoder(f).Encode(req)
	closeErr := f.Close()
	if encErr != nil || closeErr != nil {
		os.Remove(f.Name())
		if encErr != nil {
			return "", fmt.Errorf("failed to write payload: %w", encErr)
		}
		return "", fmt.Errorf("failed to write payload: %w", closeErr)
	}
	return f.Name(), nil
}
