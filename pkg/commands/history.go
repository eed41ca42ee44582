package commands

import (
	"context"
	"path/filepath"

	"github.com/entrhq/margin/pkg/buffer"
	"github.com/entrhq/margin/pkg/storage"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// ShowHistory lists the snapshots of the active scratch buffer, newest
// first. Picking one opens it.
func (c *Commands) ShowHistory() string {
	id, ok := c.activeScratchID()
	if !ok {
		return ""
	}

	return c.spawn("history", func(ctx context.Context) error {
		snaps, err := storage.ListSnapshots(c.root, id)
		if err != nil {
			c.fail("history", err)
			return nil
		}

		items := make([]ResultItem, len(snaps))
		paths := make([]string, len(snaps))
		for i := range snaps {
			snap := snaps[len(snaps)-1-i]
			paths[i] = snap.Path
			items[i] = ResultItem{
				Title:  snap.Taken.Format(historyTimeLayout),
				Detail: c.relative(snap.Path),
			}
		}

		c.post(func() {
			if len(items) == 0 {
				c.editor.Status("Margin: no snapshots yet.")
				return
			}
			c.editor.ShowResults(items, func(idx int) {
				if idx < 0 || idx >= len(paths) {
					return
				}
				if err := c.editor.OpenFile(paths[idx], 0, 0); err != nil {
					c.editor.Error(err.Error())
				}
			})
		})
		return nil
	})
}

// OpenLatestSnapshot opens the newest snapshot of the active scratch buffer.
func (c *Commands) OpenLatestSnapshot() string {
	id, ok := c.activeScratchID()
	if !ok {
		return ""
	}

	return c.spawn("latest-snapshot", func(ctx context.Context) error {
		snap, found, err := storage.LatestSnapshot(c.root, id)
		if err != nil {
			c.fail("latest-snapshot", err)
			return nil
		}
		c.post(func() {
			if !found {
				c.editor.Status("Margin: no snapshots yet.")
				return
			}
			if err := c.editor.OpenFile(snap.Path, 0, 0); err != nil {
				c.editor.Error(err.Error())
			}
		})
		return nil
	})
}

func (c *Commands) activeScratchID() (string, bool) {
	buf := c.editor.ActiveBuffer()
	if buf == nil {
		return "", false
	}
	if id, ok := scratchID(buf); ok {
		return id, true
	}
	c.editor.Status("Margin: not a scratch buffer.")
	return "", false
}

func scratchID(buf buffer.Buffer) (string, bool) {
	state := buf.State()
	if !state.IsManaged() || state.ID() == "" {
		return "", false
	}
	return state.ID(), true
}

func (c *Commands) relative(path string) string {
	if rel, err := filepath.Rel(c.root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
