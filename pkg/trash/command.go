package trash

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/entrhq/margin/pkg/process"
)

const (
	commandTimeout = 30 * time.Second

	// powershellPathEnv carries the target path so it never appears inside
	// script text.
	powershellPathEnv = "MARGIN_TRASH_PATH"
)

// commandProvider shells out to an external trash tool. The path is always
// passed as an argument or an environment variable, never spliced into a
// script.
type commandProvider struct {
	name      string
	exe       string
	goos      string // empty means any OS
	runner    *process.Runner
	build     func(path string) process.Command
	failedMsg string
}

func (p *commandProvider) Name() string { return p.name }

func (p *commandProvider) Available() bool {
	if p.goos != "" && p.goos != runtime.GOOS {
		return false
	}
	_, err := exec.LookPath(p.exe)
	return err == nil
}

func (p *commandProvider) Trash(ctx context.Context, path string) error {
	exe, err := exec.LookPath(p.exe)
	if err != nil {
		return err
	}
	cmd := p.build(path)
	cmd.Name = exe
	if cmd.Timeout == 0 {
		cmd.Timeout = commandTimeout
	}

	res, err := p.runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		if detail := strings.TrimSpace(res.Stderr); detail != "" {
			return errors.New(detail)
		}
		return errors.New(p.failedMsg)
	}
	return nil
}

// Gio trashes with `gio trash PATH`.
func Gio(runner *process.Runner) Provider {
	return &commandProvider{
		name:   "gio",
		exe:    "gio",
		runner: runner,
		build: func(path string) process.Command {
			return process.Command{Args: []string{"trash", path}}
		},
		failedMsg: "Failed to move file to trash",
	}
}

// TrashPut trashes with trash-cli's `trash-put PATH`.
func TrashPut(runner *process.Runner) Provider {
	return &commandProvider{
		name:   "trash-put",
		exe:    "trash-put",
		runner: runner,
		build: func(path string) process.Command {
			return process.Command{Args: []string{"--", path}}
		},
		failedMsg: "Failed to move file to trash",
	}
}

// Finder asks the macOS Finder to delete the path. The path reaches the
// AppleScript as a run handler argument.
func Finder(runner *process.Runner) Provider {
	return &commandProvider{
		name:   "osascript",
		exe:    "osascript",
		goos:   "darwin",
		runner: runner,
		build: func(path string) process.Command {
			return process.Command{Args: []string{
				"-e", "on run argv",
				"-e", `tell application "Finder" to delete (POSIX file (item 1 of argv))`,
				"-e", "end run",
				path,
			}}
		},
		failedMsg: "Failed to move file to Trash",
	}
}

// PowerShell sends the path to the Windows Recycle Bin through
// Microsoft.VisualBasic.FileIO.
func PowerShell(runner *process.Runner) Provider {
	return &commandProvider{
		name:   "powershell",
		exe:    "powershell",
		goos:   "windows",
		runner: runner,
		build: func(path string) process.Command {
			return process.Command{
				Args: []string{"-NoProfile", "-NonInteractive", "-Command", powershellScript(isDir(path))},
				Env:  []string{powershellPathEnv + "=" + path},
			}
		},
		failedMsg: "Failed to move file to Recycle Bin",
	}
}

func powershellScript(dir bool) string {
	method := "DeleteFile"
	if dir {
		method = "DeleteDirectory"
	}
	return "Add-Type -AssemblyName Microsoft.VisualBasic; " +
		"[Microsoft.VisualBasic.FileIO.FileSystem]::" + method +
		"($env:" + powershellPathEnv + ", 'OnlyErrorDialogs', 'SendToRecycleBin')"
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
