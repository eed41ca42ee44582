package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/entrhq/margin/pkg/config"
)

// SearchResult is one hit from `margin search`. Line and Col are 1-based.
type SearchResult struct {
	File    string
	Line    int
	Col     int
	Preview string
	Mtime   string
}

// UnmarshalJSON accepts loosely typed fields: "path" as an alias for "file",
// and numbers or numeric strings for line, col and mtime.
func (r *SearchResult) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	file, _ := raw["file"].(string)
	if file == "" {
		file, _ = raw["path"].(string)
	}
	preview, _ := raw["preview"].(string)

	*r = SearchResult{
		File:    file,
		Line:    config.SafeInt(raw["line"], 1, 1),
		Col:     config.SafeInt(raw["col"], 1, 1),
		Preview: preview,
		Mtime:   looseString(raw["mtime"]),
	}
	return nil
}

func looseString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// RunBlockResult is the outcome of `margin run-block`.
type RunBlockResult struct {
	Output   string
	ExitCode int
	// BlockEnd is the offset just past the executed block as reported by the
	// CLI; it falls back to the cursor when the CLI omits it.
	BlockEnd int
}

// SlackCaptureResult is the outcome of `margin slack capture`. SavedPath is
// relative to the root and untrusted.
type SlackCaptureResult struct {
	Text      string `json:"text"`
	SavedPath string `json:"saved_path"`
}

// Search runs `margin search --query Q --root R [--limit N]`. limit <= 0 omits
// the flag.
func (c *CLI) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	args := []string{"search", "--query", query}
	if limit > 0 {
		args = append(args, "--limit", strconv.Itoa(limit))
	}
	args = append(args, "--root", c.root)

	var raw json.RawMessage
	if err := c.RunJSON(ctx, args, &raw); err != nil {
		return nil, err
	}

	var results []SearchResult
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("%w: search expected a list", ErrInvalidResponse)
	}
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return results, nil
}

// RunBlock runs `margin run-block --file F --cursor POINT --root R`.
func (c *CLI) RunBlock(ctx context.Context, file string, cursor int) (RunBlockResult, error) {
	args := []string{"run-block", "--file", file, "--cursor", strconv.Itoa(cursor), "--root", c.root}

	var raw map[string]any
	if err := c.RunJSON(ctx, args, &raw); err != nil {
		return RunBlockResult{}, err
	}
	if raw == nil {
		return RunBlockResult{}, fmt.Errorf("%w: run-block expected an object", ErrInvalidResponse)
	}

	output, _ := raw["output"].(string)
	return RunBlockResult{
		Output:   output,
		ExitCode: config.SafeInt(raw["exit_code"], 1, math.MinInt),
		BlockEnd: config.SafeInt(raw["block_end"], cursor, math.MinInt),
	}, nil
}

// SlackCapture runs `margin slack capture` for a channel and a thread (a
// timestamp or a Slack URL). tokenEnv names the environment variable holding
// the Slack token.
func (c *CLI) SlackCapture(ctx context.Context, channel, thread, tokenEnv string) (SlackCaptureResult, error) {
	if tokenEnv == "" {
		tokenEnv = config.DefaultSlackTokenEnv
	}
	args := []string{
		"slack", "capture",
		"--channel", channel,
		"--thread", thread,
		"--root", c.root,
		"--token-env", tokenEnv,
		"--format", "markdown",
	}

	var res *SlackCaptureResult
	if err := c.RunJSON(ctx, args, &res); err != nil {
		return SlackCaptureResult{}, err
	}
	if res == nil {
		return SlackCaptureResult{}, fmt.Errorf("%w: slack capture expected an object", ErrInvalidResponse)
	}
	return *res, nil
}
