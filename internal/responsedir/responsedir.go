// Package responsedir reads response-defining directories. A directory is
// either static (STATUS, DATA and HEADERS files) or dynamic (an executable
// HANDLE program computing the next directory to resolve).
package responsedir

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"gitlab.com/chora/chora/internal/vfs"
)

const (
	// StatusFile holds the base-10 status code
	StatusFile = "STATUS"
	// DataFile holds the raw response body
	DataFile = "DATA"
	// HeadersFile holds one "Name: Value" header per line
	HeadersFile = "HEADERS"
	// HandleFile is the dynamic handler program
	HandleFile = "HANDLE"
)

var (
	// ErrMissingArtifact is returned when a static directory lacks one of
	// STATUS, DATA or HEADERS
	ErrMissingArtifact = errors.New("missing static response artifact")
	// ErrMalformedStatus is returned when STATUS is not a base-10 integer
	ErrMalformedStatus = errors.New("malformed status")
)

// Kind of a response directory
type Kind int

const (
	// Unusable directories exist but hold neither a handler nor a complete
	// static response
	Unusable Kind = iota
	// Static directories hold STATUS, DATA and HEADERS
	Static
	// Dynamic directories hold a HANDLE program
	Dynamic
)

func (k Kind) String() string {
	switch k {
	case Static:
		return "static"
	case Dynamic:
		return "dynamic"
	default:
		return "unusable"
	}
}

// Classify inspects dir. For Dynamic directories the absolute path of the
// HANDLE program is returned as well. HANDLE takes precedence over static
// artifacts.
func Classify(ctx context.Context, fs vfs.VFS, dir string) (Kind, string, error) {
	handler := filepath.Join(dir, HandleFile)

	ok, err := vfs.Exists(ctx, fs, handler)
	if err != nil {
		return Unusable, "", err
	}

	if ok {
		handler, err = filepath.Abs(handler)
		if err != nil {
			return Unusable, "", err
		}

		return Dynamic, handler, nil
	}

	for _, name := range []string{StatusFile, DataFile, HeadersFile} {
		ok, err := vfs.Exists(ctx, fs, filepath.Join(dir, name))
		if err != nil {
			return Unusable, "", err
		}

		if !ok {
			return Unusable, "", nil
		}
	}

	return Static, "", nil
}

// LoadStatic reads the static response stored in dir. A STATUS that is not
// an integer, or lies outside 100..999, is ErrMalformedStatus since net/http
// cannot write such a code.
func LoadStatic(ctx context.Context, fs vfs.VFS, dir string) (*Response, error) {
	status, err := readArtifact(ctx, fs, dir, StatusFile)
	if err != nil {
		return nil, err
	}

	code, err := strconv.Atoi(strings.TrimSpace(string(status)))
	if err != nil {
		return nil, fmt.Errorf("%w in %q: %v", ErrMalformedStatus, dir, err)
	}

	if code < 100 || code > 999 {
		return nil, fmt.Errorf("%w in %q: %d is out of range", ErrMalformedStatus, dir, code)
	}

	body, err := readArtifact(ctx, fs, dir, DataFile)
	if err != nil {
		return nil, err
	}

	headers, err := readArtifact(ctx, fs, dir, HeadersFile)
	if err != nil {
		return nil, err
	}

	return &Response{
		Status:  code,
		Body:    body,
		Headers: ParseHeaders(string(headers)),
	}, nil
}

func readArtifact(ctx context.Context, fs vfs.VFS, dir, name string) ([]byte, error) {
	data, err := vfs.ReadFile(ctx, fs, filepath.Join(dir, name))
	if err == nil {
		return data, nil
	}

	var readErr *vfs.ReadError
	if errors.As(err, &readErr) {
		return nil, err
	}

	return nil, fmt.Errorf("%w: %s: %v", ErrMissingArtifact, name, err)
}

// ParseHeaders parses the HEADERS artifact. Lines without a colon are
// skipped.
func ParseHeaders(text string) Header {
	var headers Header

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		name, value, ok := cut(line, ":")
		if !ok {
			continue
		}

		headers = headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	return headers
}

func cut(s, sep string) (before, after string, found bool) {
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}

	return s, "", false
}
