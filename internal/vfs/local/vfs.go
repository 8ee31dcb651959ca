package local

import (
	"context"
	"os"

	"golang.org/x/sys/unix"

	"gitlab.com/chora/chora/internal/vfs"
)

// VFS reads route trees from the local disk
type VFS struct{}

func (localFs *VFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (localFs *VFS) Open(ctx context.Context, name string) (vfs.File, error) {
	return os.OpenFile(name, os.O_RDONLY, 0)
}

// Access checks the permission bits in mode (unix.R_OK, unix.W_OK, unix.X_OK)
// for the real user of the process
func (localFs *VFS) Access(ctx context.Context, name string, mode uint32) error {
	if err := unix.Access(name, mode); err != nil {
		return &os.PathError{Op: "access", Path: name, Err: err}
	}

	return nil
}

func (localFs *VFS) Name() string {
	return "local"
}
