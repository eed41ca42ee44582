package workspace

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// DefaultProtectedPatterns lists root-relative files that user commands must
// never move to the trash.
var DefaultProtectedPatterns = []string{
	"config.json",
	"bin/**",
	"logs/**",
	"index/**",
}

// ProtectedPathError is returned when a path matches a protected pattern.
type ProtectedPathError struct {
	Path    string
	Pattern string
}

func (e *ProtectedPathError) Error() string {
	return fmt.Sprintf("path '%s' is protected (matches %s)", e.Path, e.Pattern)
}

type pattern struct {
	raw string
	g   glob.Glob
}

// AddProtected compiles and registers root-relative glob patterns. "*" does
// not cross directory boundaries; "**" does.
func (g *Guard) AddProtected(patterns ...string) error {
	for _, p := range patterns {
		if p == "" {
			return fmt.Errorf("protected pattern cannot be empty")
		}
		compiled, err := glob.Compile(filepath.ToSlash(p), '/')
		if err != nil {
			return fmt.Errorf("invalid protected pattern '%s': %w", p, err)
		}

		duplicate := false
		for _, existing := range g.protected {
			if existing.raw == p {
				duplicate = true
				break
			}
		}
		if !duplicate {
			g.protected = append(g.protected, &pattern{raw: p, g: compiled})
		}
	}
	return nil
}

// Protected returns the registered pattern strings.
func (g *Guard) Protected() []string {
	out := make([]string, len(g.protected))
	for i, p := range g.protected {
		out[i] = p.raw
	}
	return out
}

// ValidateDeletable resolves path within the root and rejects it when it
// matches a protected pattern or is the root itself. It returns the resolved
// absolute path on success.
func (g *Guard) ValidateDeletable(path string) (string, error) {
	resolved, err := g.Resolve(path)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(g.root, resolved)
	if err != nil {
		return "", fmt.Errorf("failed to make path relative: %w", err)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "", &ProtectedPathError{Path: path, Pattern: "."}
	}

	for _, p := range g.protected {
		if p.g.Match(rel) {
			return "", &ProtectedPathError{Path: path, Pattern: p.raw}
		}
	}
	return resolved, nil
}
