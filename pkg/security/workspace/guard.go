// Package workspace provides the containment checks that keep every path the
// engine touches inside the margin root. Paths handed back by external
// processes (search hits, capture results) are untrusted until they pass
// through ResolveWithinRoot or a Guard.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscape is matched (via errors.Is) by every PathEscapeError.
var ErrPathEscape = errors.New("path escapes root")

// PathEscapeError reports an untrusted path that resolved outside the root.
type PathEscapeError struct {
	Path string // raw input as received
	Root string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("invalid path returned by CLI: %s", e.Path)
}

// Is makes errors.Is(err, ErrPathEscape) succeed.
func (e *PathEscapeError) Is(target error) bool {
	return target == ErrPathEscape
}

// ResolveWithinRoot joins path onto root (when relative), resolves both to
// their canonical form following symlinks and returns the resolved path if it
// is root itself or one of its descendants. An empty path resolves to root.
//
// Symlinks are followed even when their target does not exist, and ".." is
// applied after the component before it has been resolved.
func ResolveWithinRoot(root, path string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root directory: %w", err)
	}
	resolvedRoot, err := resolveSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root directory: %w", err)
	}

	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = absRoot + string(filepath.Separator) + candidate
	}
	resolved, err := resolveSymlinks(candidate)
	if err != nil {
		return "", &PathEscapeError{Path: path, Root: root}
	}

	if !isWithin(resolvedRoot, resolved) {
		return "", &PathEscapeError{Path: path, Root: root}
	}
	return resolved, nil
}

// isWithin reports whether candidate is root or below it. Both arguments must
// already be absolute and symlink-resolved.
func isWithin(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

const maxSymlinks = 255

var errSymlinkLoop = errors.New("too many levels of symbolic links")

// resolveSymlinks canonicalizes an absolute path one component at a time.
// Missing components are kept as written, but a symlink is always followed,
// including one whose target does not exist yet.
func resolveSymlinks(path string) (string, error) {
	volume := filepath.VolumeName(path)
	resolved := volume + string(filepath.Separator)
	pending := splitPath(path[len(volume):])
	followed := 0

	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]

		switch name {
		case "", ".":
			continue
		case "..":
			resolved = filepath.Dir(resolved)
			continue
		}

		next := filepath.Join(resolved, name)
		info, err := os.Lstat(next)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			resolved = next
			continue
		}

		followed++
		if followed > maxSymlinks {
			return "", fmt.Errorf("%s: %w", path, errSymlinkLoop)
		}
		target, err := os.Readlink(next)
		if err != nil {
			return "", fmt.Errorf("failed to read symlink %s: %w", next, err)
		}
		if filepath.IsAbs(target) {
			targetVolume := filepath.VolumeName(target)
			resolved = targetVolume + string(filepath.Separator)
			target = target[len(targetVolume):]
		}
		pending = append(splitPath(target), pending...)
	}
	return resolved, nil
}

func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool {
		return r == filepath.Separator || r == '/'
	})
}

// Guard binds the containment check to one root and adds a set of protected
// patterns that must never be deleted through user commands.
type Guard struct {
	root      string     // absolute, symlink-resolved
	protected []*pattern // compiled protected patterns, relative to root
}

// NewGuard creates a guard for root. The root must exist; symlinks in it are
// evaluated once up front so later comparisons are stable.
func NewGuard(root string) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}

	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}

	evalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate root directory symlinks: %w", err)
	}

	return &Guard{root: evalPath}, nil
}

// Root returns the absolute, symlink-resolved root directory.
func (g *Guard) Root() string {
	return g.root
}

// Resolve is ResolveWithinRoot bound to the guard's root. Paths starting with
// "~/" are rejected outright rather than expanded; callers never legitimately
// receive home-relative paths from the CLI.
func (g *Guard) Resolve(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		return "", &PathEscapeError{Path: path, Root: g.root}
	}
	return ResolveWithinRoot(g.root, path)
}
