// Package storage owns the on-disk layout of a margin root: where scratch
// buffers autosave, where snapshots accumulate, and how files are written.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Directories under the margin root.
const (
	DirScratch = "scratch"
	DirCurrent = "current"
	DirHistory = "history"
	DirInbox   = "inbox"
	DirSlack   = "slack"
	DirIndex   = "index"
	DirBin     = "bin"
	DirLogs    = "logs"
)

// CurrentDir is root/scratch/current, the live autosave directory.
func CurrentDir(root string) string {
	return filepath.Join(root, DirScratch, DirCurrent)
}

// HistoryDir is root/scratch/history, the append-only snapshot tree.
func HistoryDir(root string) string {
	return filepath.Join(root, DirScratch, DirHistory)
}

// InboxDir is root/inbox, where promoted notes land.
func InboxDir(root string) string {
	return filepath.Join(root, DirInbox)
}

// LogsDir is root/logs.
func LogsDir(root string) string {
	return filepath.Join(root, DirLogs)
}

// BinDir is root/bin, the conventional location of the margin CLI.
func BinDir(root string) string {
	return filepath.Join(root, DirBin)
}

// EnsureLayout creates the standard directory tree under root. It is
// idempotent.
func EnsureLayout(root string) error {
	dirs := []string{
		CurrentDir(root),
		HistoryDir(root),
		InboxDir(root),
		filepath.Join(root, DirSlack),
		filepath.Join(root, DirIndex),
		BinDir(root),
		LogsDir(root),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("storage: create %s: %w", dir, err)
		}
	}
	return nil
}
