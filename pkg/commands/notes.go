package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/entrhq/margin/pkg/buffer"
	"github.com/entrhq/margin/pkg/cli"
	"github.com/entrhq/margin/pkg/storage"
)

const (
	// ScratchName is the tab title of a new scratch buffer.
	ScratchName = "Margin Scratch"

	// PlainTextSyntaxPath is assigned to new scratch buffers.
	PlainTextSyntaxPath = "Packages/Text/Plain text.tmLanguage"

	promoteTimeLayout = "20060102T150405"
)

// ErrMissingResultPath means a search result carried no file.
var ErrMissingResultPath = errors.New("margin search result missing file path")

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// NewScratch opens a new managed plain-text scratch buffer with a fresh id.
func (c *Commands) NewScratch() buffer.Buffer {
	buf := c.editor.NewBuffer(ScratchName, PlainTextSyntaxPath)
	if buf == nil {
		return nil
	}
	state := buf.State()
	state.Manage(c.now())
	storage.ScratchID(state)
	return buf
}

// Search runs a CLI search for query and shows the results. Blank queries
// are ignored. It returns the worker task id.
func (c *Commands) Search(query string) string {
	if strings.TrimSpace(query) == "" {
		return ""
	}

	return c.spawn("search", func(ctx context.Context) error {
		c.logger.Infof("search query=%q root=%q", query, c.root)
		results, err := c.cli.Search(ctx, query, 0)
		if err != nil {
			c.fail("search", err)
			return nil
		}
		c.logger.Infof("search results: %d", len(results))

		items := make([]ResultItem, len(results))
		for i, r := range results {
			items[i] = ResultItem{
				Title:  fmt.Sprintf("%s:%d", r.File, r.Line),
				Detail: fmt.Sprintf("%s  %s", r.Preview, r.Mtime),
			}
		}

		c.post(func() {
			if len(items) == 0 {
				c.editor.Status("Margin: no results.")
				return
			}
			c.editor.ShowResults(items, func(idx int) {
				if idx < 0 || idx >= len(results) {
					return
				}
				if err := c.OpenResult(results[idx]); err != nil {
					c.editor.Error(err.Error())
				}
			})
		})
		return nil
	})
}

// OpenResult opens a search hit after confirming it lies inside the root.
func (c *Commands) OpenResult(r cli.SearchResult) error {
	if r.File == "" {
		return ErrMissingResultPath
	}
	target, err := c.guard.Resolve(r.File)
	if err != nil {
		return err
	}
	line, col := r.Line, r.Col
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	return c.editor.OpenFile(target, line, col)
}

// PromoteName returns the inbox file name for a note promoted at now. The
// slug is optional; characters outside [a-zA-Z0-9_-] collapse to dashes.
func PromoteName(now time.Time, slug string) string {
	ts := now.Format(promoteTimeLayout)
	clean := strings.Trim(slugPattern.ReplaceAllString(strings.TrimSpace(slug), "-"), "-")
	if clean == "" {
		return ts + ".md"
	}
	return ts + "_" + clean + ".md"
}

// Promote copies the active buffer into the inbox as a new note, closes the
// buffer and opens the promoted file.
func (c *Commands) Promote(slug string) string {
	buf := c.editor.ActiveBuffer()
	if buf == nil {
		return ""
	}
	text := buf.Text()
	now := c.now()

	return c.spawn("promote", func(ctx context.Context) error {
		path := filepath.Join(storage.InboxDir(c.root), PromoteName(now, slug))
		if err := storage.WriteFileAtomic(path, text); err != nil {
			c.fail("promote", err)
			return nil
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		c.logger.Infof("promoted buffer to %s", rel)

		c.post(func() {
			if buf.IsValid() {
				c.editor.CloseBuffer(buf)
			}
			if err := c.editor.OpenFile(path, 0, 0); err != nil {
				c.editor.Error(err.Error())
				return
			}
			c.editor.Status("Promoted to " + rel)
		})
		return nil
	})
}

// DeleteCurrentNote moves the active note's file to the trash after
// confirmation. Unsaved managed scratch buffers resolve to their
// scratch/current file. Only files inside the root that are not protected
// can be deleted.
func (c *Commands) DeleteCurrentNote() string {
	buf := c.editor.ActiveBuffer()
	if buf == nil {
		return ""
	}

	filePath := buf.FileName()
	if filePath == "" && buf.State().IsManaged() {
		filePath = storage.CurrentScratchPath(c.root, buf, c.config())
	}
	if filePath == "" {
		c.editor.Error("No note file is associated with this view.")
		return ""
	}
	if _, err := os.Stat(filePath); err != nil {
		c.editor.Error("File not found: " + filePath)
		return ""
	}
	target, err := c.guard.ValidateDeletable(filePath)
	if err != nil {
		c.editor.Error(err.Error())
		return ""
	}
	if !c.editor.Confirm("Move this note to Recycle Bin?\n\n"+filePath, "Move to Recycle Bin") {
		return ""
	}

	return c.spawn("delete", func(ctx context.Context) error {
		if err := c.trash.Trash(ctx, target); err != nil {
			c.fail("delete", err)
			return nil
		}
		c.logger.Infof("moved %s to trash", target)

		c.post(func() {
			// The note is gone; a close-time flush must not recreate it.
			buf.State().Unmanage()
			if buf.IsValid() {
				c.editor.CloseBuffer(buf)
			}
			c.editor.Status("Moved to Recycle Bin")
		})
		return nil
	})
}
