package vfs

import "fmt"

// ReadError is returned when an artifact was opened but could not be read
// to the end. It is a server-side failure, unlike a missing artifact.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading route artifact %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
