package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/margin/pkg/buffer"
	"github.com/entrhq/margin/pkg/config"
	"github.com/entrhq/margin/pkg/security/workspace"
)

const (
	// MarkdownExtension is used for every scratch file when
	// force_markdown_extension is set.
	MarkdownExtension = "md"
	// PlainTextExtension is used for syntaxes missing from the map.
	PlainTextExtension = "txt"
	// PlainTextSyntax is the syntax name of a buffer without one.
	PlainTextSyntax = "Plain Text"

	snapshotTimeLayout = "20060102T150405"
	maxDisambiguator   = 10000
)

// ScratchID returns the buffer's scratch id, generating a random UUID and
// caching it on first use.
func ScratchID(state *buffer.State) string {
	return state.EnsureID(uuid.NewString)
}

// SyntaxName derives the display name of a syntax from its identifier: the
// basename up to the first dot. An empty identifier is plain text.
func SyntaxName(syntaxPath string) string {
	if syntaxPath == "" {
		return PlainTextSyntax
	}
	base := path.Base(strings.ReplaceAll(syntaxPath, "\\", "/"))
	if name, _, found := strings.Cut(base, "."); found {
		return name
	}
	return base
}

// ExtensionFor returns the file extension (without a dot) for a syntax name.
func ExtensionFor(syntaxName string, cfg config.Config) string {
	if cfg.ForceMarkdownExtension {
		return MarkdownExtension
	}
	ext, ok := cfg.SyntaxExtensionMap[syntaxName]
	if !ok {
		return PlainTextExtension
	}
	return strings.TrimLeft(ext, ".")
}

// BufferExtension is ExtensionFor applied to the buffer's current syntax.
func BufferExtension(buf buffer.Buffer, cfg config.Config) string {
	return ExtensionFor(SyntaxName(buf.SyntaxPath()), cfg)
}

// CurrentScratchPath returns root/scratch/current/{id}.{ext}, the stable
// autosave target for buf.
func CurrentScratchPath(root string, buf buffer.Buffer, cfg config.Config) string {
	id := ScratchID(buf.State())
	return filepath.Join(CurrentDir(root), id+"."+BufferExtension(buf, cfg))
}

// SnapshotPath returns a new snapshot location for buf:
// root/scratch/history/{YYYY}/{YYYY-MM-DD}/{YYYYMMDDTHHMMSSffffff}_{id}.{ext}.
//
// The timestamp has microsecond resolution. If the name is already taken a
// "-N" counter is appended to the timestamp so an existing snapshot is never
// overwritten.
func SnapshotPath(root string, buf buffer.Buffer, cfg config.Config, now time.Time) string {
	id := ScratchID(buf.State())
	ext := BufferExtension(buf, cfg)

	dayDir := filepath.Join(HistoryDir(root), now.Format("2006"), now.Format("2006-01-02"))
	stamp := fmt.Sprintf("%s%06d", now.Format(snapshotTimeLayout), now.Nanosecond()/int(time.Microsecond))

	candidate := filepath.Join(dayDir, fmt.Sprintf("%s_%s.%s", stamp, id, ext))
	for n := 2; n < maxDisambiguator && exists(candidate); n++ {
		candidate = filepath.Join(dayDir, fmt.Sprintf("%s-%d_%s.%s", stamp, n, id, ext))
	}
	return candidate
}

// ScratchIDFromPath recovers the scratch id from a file under
// root/scratch/current: the file name up to its first dot. It reports false
// for any path outside that directory.
func ScratchIDFromPath(root, filePath string) (string, bool) {
	if filePath == "" {
		return "", false
	}
	currentDir, err := workspace.ResolveWithinRoot(CurrentDir(root), "")
	if err != nil {
		return "", false
	}
	resolved, err := workspace.ResolveWithinRoot(currentDir, filePath)
	if err != nil || SamePath(resolved, currentDir) {
		return "", false
	}

	base := filepath.Base(filePath)
	if strings.HasPrefix(base, tempPrefix) {
		return "", false
	}
	id, _, _ := strings.Cut(base, ".")
	if id == "" {
		return "", false
	}
	return id, true
}

// SamePath compares two paths after cleaning them, ignoring case on
// platforms whose default filesystems are case-insensitive.
func SamePath(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
