package commands

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/entrhq/margin/pkg/storage"
)

const (
	runBlockConsentPrompt = "Margin will run code blocks using local interpreters for this session. Continue?"
	noOutput              = "[no output]"
)

var (
	fenceOpen  = regexp.MustCompile("^[ \t]{0,3}```[A-Za-z0-9_+-]*[ \t]*$")
	fenceClose = regexp.MustCompile("^[ \t]{0,3}```[ \t]*$")
)

// FencedBlockInsertPoint finds where output for the fenced code block around
// point belongs: the offset just past the closing fence line, including its
// newline. It reports false when point is not inside a closed block.
func FencedBlockInsertPoint(text string, point int) (int, bool) {
	if point < 0 {
		point = 0
	}
	if point > len(text) {
		point = len(text)
	}

	lines := strings.SplitAfter(text, "\n")
	starts := make([]int, len(lines))
	offset := 0
	for i, l := range lines {
		starts[i] = offset
		offset += len(l)
	}

	current := 0
	for i := range lines {
		if starts[i] <= point {
			current = i
		}
	}
	content := func(row int) string {
		return strings.TrimRight(strings.TrimSuffix(lines[row], "\n"), "\r")
	}

	open := -1
	for row := current; row >= 0; row-- {
		if fenceOpen.MatchString(content(row)) {
			open = row
			break
		}
	}
	if open < 0 {
		return 0, false
	}

	closing := -1
	for row := open + 1; row < len(lines); row++ {
		if fenceClose.MatchString(content(row)) {
			closing = row
			break
		}
	}
	if closing < 0 || current > closing {
		return 0, false
	}
	return starts[closing] + len(lines[closing]), true
}

// RunBlock executes the fenced code block under the cursor through the CLI
// and inserts its output after the block. The first use in a session asks
// for consent. Scratch buffers are written to disk first so the CLI sees the
// current text.
func (c *Commands) RunBlock() string {
	if !c.session.RunBlockConsent() {
		if !c.editor.Confirm(runBlockConsentPrompt, "Continue") {
			c.editor.Status("Run Block cancelled (consent not granted)")
			return ""
		}
		c.session.GrantRunBlockConsent()
	}

	buf := c.editor.ActiveBuffer()
	if buf == nil {
		return ""
	}

	filePath := buf.FileName()
	fileBacked := filePath != ""
	if !fileBacked && buf.State().IsManaged() {
		filePath = storage.CurrentScratchPath(c.root, buf, c.config())
		if !isFile(filePath) {
			c.editor.Error("Scratch buffer must be persisted first.")
			return ""
		}
	}
	if filePath == "" || !isFile(filePath) {
		c.editor.Error("Run Block works only for buffers on disk.")
		return ""
	}

	point := c.editor.Cursor(buf)
	if fileBacked && buf.IsModified() {
		if err := c.editor.Save(buf); err != nil {
			c.editor.Error(fmt.Sprintf("Failed to save before run-block: %v", err))
			return ""
		}
	}
	text := buf.Text()
	now := c.now()

	return c.spawn("run-block", func(ctx context.Context) error {
		if !fileBacked {
			state := buf.State()
			state.Lock()
			err := storage.WriteFileAtomic(filePath, text)
			if err == nil {
				state.SetLastAutosave(now)
			}
			state.Unlock()
			if err != nil {
				c.fail("run-block", fmt.Errorf("failed to persist scratch before run-block: %w", err))
				return nil
			}
		}

		c.logger.Infof("run-block file=%q point=%d", filePath, point)
		res, err := c.cli.RunBlock(ctx, filePath, point)
		if err != nil {
			c.fail("run-block", err)
			return nil
		}

		output := res.Output
		if strings.TrimSpace(output) == "" {
			output = noOutput
		}
		insert := "\n\n" + strings.TrimRight(output, " \t\r\n")

		c.post(func() {
			if !buf.IsValid() {
				return
			}
			current := buf.Text()
			target, ok := FencedBlockInsertPoint(current, point)
			if !ok {
				target = res.BlockEnd
			}
			if target < 0 || target > len(current) {
				target = point
			}
			c.editor.Insert(buf, target, insert)
			c.editor.Status(fmt.Sprintf("Run Block complete (exit %d)", res.ExitCode))
		})
		return nil
	})
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
