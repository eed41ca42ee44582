package trash

import (
	"context"

	"github.com/Bios-Marcel/wastebasket/v2"
)

// Native trashes through the platform's own trash API: the freedesktop
// trash (home and per-volume $topdir trashes) on Linux and BSD, Finder on
// macOS and the recycle bin on Windows.
type Native struct {
	trash func(paths ...string) error
}

// NewNative creates the provider.
func NewNative() *Native {
	return &Native{trash: wastebasket.Trash}
}

func (n *Native) Name() string { return "native" }

func (n *Native) Available() bool { return true }

func (n *Native) Trash(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.trash(path)
}
