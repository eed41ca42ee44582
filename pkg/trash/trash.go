// Package trash moves files to the platform trash instead of deleting them.
package trash

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/entrhq/margin/pkg/logging"
	"github.com/entrhq/margin/pkg/process"
)

// ErrNoProvider means no trash mechanism is available on this system.
var ErrNoProvider = errors.New("no trash command found (install gio or trash-cli)")

// Provider moves a single path to a trash.
type Provider interface {
	Name() string
	Available() bool
	Trash(ctx context.Context, path string) error
}

// Chain tries providers in order until one succeeds.
type Chain struct {
	providers []Provider
	logger    logging.Sink
}

// NewChain creates a chain over providers.
func NewChain(logger logging.Sink, providers ...Provider) *Chain {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Chain{providers: providers, logger: logger}
}

// Default returns the providers for the current OS. The native trash API
// goes first, then PowerShell on Windows, Finder on macOS, and gio then
// trash-put elsewhere.
func Default(runner *process.Runner, logger logging.Sink) *Chain {
	switch runtime.GOOS {
	case "windows":
		return NewChain(logger, NewNative(), PowerShell(runner))
	case "darwin":
		return NewChain(logger, NewNative(), Finder(runner))
	default:
		return NewChain(logger, NewNative(), Gio(runner), TrashPut(runner))
	}
}

// Providers returns the configured providers.
func (c *Chain) Providers() []Provider {
	return append([]Provider(nil), c.providers...)
}

// Trash moves path to the trash with the first available provider that
// succeeds. When every provider fails the last error is returned.
func (c *Chain) Trash(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("file does not exist: %s: %w", path, os.ErrNotExist)
	}
	if _, err := os.Lstat(path); err != nil {
		return fmt.Errorf("file does not exist: %s: %w", path, os.ErrNotExist)
	}

	var lastErr error
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		if err := p.Trash(ctx, path); err != nil {
			c.logger.Warnf("trash provider %s failed for %s: %v", p.Name(), path, err)
			lastErr = fmt.Errorf("%s: %w", p.Name(), err)
			continue
		}
		c.logger.Infof("moved %s to trash via %s", path, p.Name())
		return nil
	}

	if lastErr != nil {
		return lastErr
	}
	return ErrNoProvider
}
