package commands

import (
	"github.com/entrhq/margin/pkg/buffer"
	"github.com/entrhq/margin/pkg/storage"
)

// OnLoad adopts files opened from scratch/current: the buffer becomes
// managed, is marked file-backed so it is never swapped again, and keeps
// the id encoded in its file name.
func (c *Commands) OnLoad(buf buffer.Buffer) {
	fileName := buf.FileName()
	id, ok := storage.ScratchIDFromPath(c.root, fileName)
	if !ok {
		return
	}

	state := buf.State()
	state.Manage(c.now())
	state.SetFileBackedOpened(true)
	state.SetID(id)
	c.logger.Debugf("adopted scratch file %s as %s", fileName, id)
}

// OnPreClose flushes a managed buffer before the editor closes it.
func (c *Commands) OnPreClose(buf buffer.Buffer) {
	if c.scheduler == nil || !buf.State().IsManaged() {
		return
	}
	if err := c.scheduler.Flush(buf); err != nil {
		c.logger.Errorf("close flush failed: %v", err)
	}
}
