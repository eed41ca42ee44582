package workspace

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_ValidateDeletable(t *testing.T) {
	root := realTempDir(t)
	guard, err := NewGuard(root)
	require.NoError(t, err)
	require.NoError(t, guard.AddProtected(DefaultProtectedPatterns...))

	tests := []struct {
		name      string
		path      string
		protected bool
		escape    bool
	}{
		{name: "scratch note", path: "scratch/current/abc.md"},
		{name: "inbox note", path: "inbox/20240101T000000.md"},
		{name: "config file", path: "config.json", protected: true},
		{name: "cli binary", path: "bin/margin", protected: true},
		{name: "nested log", path: "logs/2024/a.log", protected: true},
		{name: "root itself", path: ".", protected: true},
		{name: "nested config is fine", path: "inbox/config.json"},
		{name: "outside root", path: "../x.md", escape: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := guard.ValidateDeletable(tt.path)
			switch {
			case tt.escape:
				assert.True(t, errors.Is(err, ErrPathEscape), "expected escape, got %v", err)
			case tt.protected:
				var perr *ProtectedPathError
				assert.True(t, errors.As(err, &perr), "expected protected error, got %v", err)
			default:
				require.NoError(t, err)
				assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.path)), resolved)
			}
		})
	}
}

func TestGuard_AddProtected(t *testing.T) {
	guard, err := NewGuard(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, guard.AddProtected("a/*", "a/*"))
	assert.Equal(t, []string{"a/*"}, guard.Protected())

	assert.Error(t, guard.AddProtected(""))
	assert.Equal(t, []string{"a/*"}, guard.Protected())
}
