package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const tempPrefix = ".margin-"

// rename is swapped in tests to interrupt a write between sync and rename.
var rename = os.Rename

// WriteError reports a failed atomic write. Op names the step that failed.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// WriteFileAtomic replaces path with content.
//
// The content goes to a temporary file in the same directory, is synced, and
// is then renamed over path, so path is either its previous contents or the
// full new contents at any point in time. The temporary file is removed on
// failure. Concurrent calls for different paths are safe; callers serialise
// writes to the same path.
func WriteFileAtomic(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &WriteError{Path: path, Op: "mkdir", Err: err}
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return &WriteError{Path: path, Op: "create temp", Err: err}
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath) // best-effort cleanup
		}
	}()

	if _, err := tmp.WriteString(content); err != nil {
		return &WriteError{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &WriteError{Path: path, Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Path: path, Op: "close", Err: err}
	}
	if err := rename(tmpPath, path); err != nil {
		return &WriteError{Path: path, Op: "rename", Err: err}
	}
	committed = true

	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry for the rename. Not every platform
// supports fsync on a directory, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
