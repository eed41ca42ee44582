package trash

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/margin/pkg/process"
)

type fakeProvider struct {
	name      string
	available bool
	err       error
	calls     []string
}

func (p *fakeProvider) Name() string    { return p.name }
func (p *fakeProvider) Available() bool { return p.available }

func (p *fakeProvider) Trash(_ context.Context, path string) error {
	p.calls = append(p.calls, path)
	return p.err
}

func tempFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "note.md")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestChain_MissingPath(t *testing.T) {
	p := &fakeProvider{name: "a", available: true}
	chain := NewChain(nil, p)

	for _, path := range []string{"", filepath.Join(t.TempDir(), "gone.md")} {
		err := chain.Trash(context.Background(), path)
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Contains(t, err.Error(), "file does not exist")
	}
	assert.Empty(t, p.calls)
}

func TestChain_FirstSuccessWins(t *testing.T) {
	path := tempFile(t)
	skipped := &fakeProvider{name: "skipped", available: false}
	failing := &fakeProvider{name: "failing", available: true, err: errors.New("boom")}
	working := &fakeProvider{name: "working", available: true}
	after := &fakeProvider{name: "after", available: true}

	err := NewChain(nil, skipped, failing, working, after).Trash(context.Background(), path)
	require.NoError(t, err)

	assert.Empty(t, skipped.calls)
	assert.Equal(t, []string{path}, failing.calls)
	assert.Equal(t, []string{path}, working.calls)
	assert.Empty(t, after.calls)
}

func TestChain_LastErrorReturned(t *testing.T) {
	path := tempFile(t)
	first := &fakeProvider{name: "first", available: true, err: errors.New("first failed")}
	second := &fakeProvider{name: "second", available: true, err: errors.New("second failed")}

	err := NewChain(nil, first, second).Trash(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, "second: second failed", err.Error())
}

func TestChain_NoProvider(t *testing.T) {
	path := tempFile(t)
	err := NewChain(nil, &fakeProvider{name: "a"}).Trash(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestNative_Trash(t *testing.T) {
	var got []string
	n := &Native{trash: func(paths ...string) error {
		got = append(got, paths...)
		return nil
	}}
	require.True(t, n.Available())
	require.NoError(t, n.Trash(context.Background(), "/notes/a.md"))
	assert.Equal(t, []string{"/notes/a.md"}, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Trash(ctx, "/notes/b.md"), context.Canceled)
	assert.Len(t, got, 1)
}

func TestNative_FailureFallsThrough(t *testing.T) {
	path := tempFile(t)
	native := &Native{trash: func(...string) error { return errors.New("cross-device link") }}
	fallback := &fakeProvider{name: "gio", available: true}

	require.NoError(t, NewChain(nil, native, fallback).Trash(context.Background(), path))
	assert.Equal(t, []string{path}, fallback.calls)
}

func TestNative_MovesFileToTrash(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("uses the freedesktop trash under XDG_DATA_HOME")
	}
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	path := tempFile(t)

	require.NoError(t, NewNative().Trash(context.Background(), path))
	assert.NoFileExists(t, path)
}

// installTool puts a fake executable named name on PATH that records its
// arguments, one per line, into the returned log file.
func installTool(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}
	bin := t.TempDir()
	logPath := filepath.Join(t.TempDir(), "args.log")
	script := "#!/bin/sh\nfor a in \"$@\"; do printf '%s\\n' \"$a\" >> '" + logPath + "'; done\n" + body + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(bin, name), []byte(script), 0o755))
	t.Setenv("PATH", bin)
	return logPath
}

func TestGio_PassesPathAsArgument(t *testing.T) {
	logPath := installTool(t, "gio", "exit 0")
	path := filepath.Join(t.TempDir(), `it's "odd" $HOME.md`)
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	p := Gio(process.NewRunner(nil))
	require.True(t, p.Available())
	require.NoError(t, NewChain(nil, p).Trash(context.Background(), path))

	args, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "trash\n"+path+"\n", string(args))
}

func TestTrashPut_Failure(t *testing.T) {
	installTool(t, "trash-put", "echo 'permission denied' >&2; exit 1")

	err := TrashPut(process.NewRunner(nil)).Trash(context.Background(), "/tmp/x")
	require.Error(t, err)
	assert.Equal(t, "permission denied", err.Error())

	installTool(t, "trash-put", "exit 1")
	err = TrashPut(process.NewRunner(nil)).Trash(context.Background(), "/tmp/x")
	require.Error(t, err)
	assert.Equal(t, "Failed to move file to trash", err.Error())
}

func TestPlatformProviders_Availability(t *testing.T) {
	runner := process.NewRunner(nil)
	if runtime.GOOS != "darwin" {
		assert.False(t, Finder(runner).Available())
	}
	if runtime.GOOS != "windows" {
		assert.False(t, PowerShell(runner).Available())
	}
}

func TestPowerShellScript(t *testing.T) {
	assert.Contains(t, powershellScript(false), "::DeleteFile($env:MARGIN_TRASH_PATH,")
	assert.Contains(t, powershellScript(true), "::DeleteDirectory($env:MARGIN_TRASH_PATH,")
}

func TestDefaultChain(t *testing.T) {
	chain := Default(process.NewRunner(nil), nil)
	var names []string
	for _, p := range chain.Providers() {
		names = append(names, p.Name())
	}
	switch runtime.GOOS {
	case "windows":
		assert.Equal(t, []string{"native", "powershell"}, names)
	case "darwin":
		assert.Equal(t, []string{"native", "osascript"}, names)
	default:
		assert.Equal(t, []string{"native", "gio", "trash-put"}, names)
	}
}
