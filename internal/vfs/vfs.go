package vfs

import (
	"context"
	"io"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"gitlab.com/chora/chora/metrics"
)

// VFS abstracts the things chora needs to resolve a route from a directory
// tree. All operations are read-only.
type VFS interface {
	Stat(ctx context.Context, name string) (os.FileInfo, error)
	Open(ctx context.Context, name string) (File, error)
	Access(ctx context.Context, name string, mode uint32) error
	Name() string
}

// File represents an open route artifact
type File interface {
	io.Reader
	io.Closer
}

// ReadFile opens name and reads it until EOF
func ReadFile(ctx context.Context, fs VFS, name string) ([]byte, error) {
	f, err := fs.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &ReadError{Path: name, Err: err}
	}

	return data, nil
}

// IsDir reports whether name exists and is a directory. Symlinks are followed.
func IsDir(ctx context.Context, fs VFS, name string) bool {
	fi, err := fs.Stat(ctx, name)

	return err == nil && fi.IsDir()
}

// Exists reports whether name exists, whatever its type
func Exists(ctx context.Context, fs VFS, name string) (bool, error) {
	_, err := fs.Stat(ctx, name)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

func Instrumented(fs VFS) VFS {
	return &instrumentedVFS{fs: fs, name: fs.Name()}
}

type instrumentedVFS struct {
	fs   VFS
	name string
}

func (i *instrumentedVFS) increment(operation string, err error) {
	metrics.VFSOperations.WithLabelValues(i.name, operation, strconv.FormatBool(err == nil)).Inc()
}

func (i *instrumentedVFS) log(operation, name string, err error) {
	log.WithField("vfs", i.name).
		WithField("name", name).
		WithError(err).
		Tracef("%s call", operation)
}

func (i *instrumentedVFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	fi, err := i.fs.Stat(ctx, name)
	i.increment("Stat", err)
	i.log("Stat", name, err)

	return fi, err
}

func (i *instrumentedVFS) Open(ctx context.Context, name string) (File, error) {
	f, err := i.fs.Open(ctx, name)
	i.increment("Open", err)
	i.log("Open", name, err)

	return f, err
}

func (i *instrumentedVFS) Access(ctx context.Context, name string, mode uint32) error {
	err := i.fs.Access(ctx, name, mode)
	i.increment("Access", err)
	i.log("Access", name, err)

	return err
}

func (i *instrumentedVFS) Name() string {
	return i.name
}
