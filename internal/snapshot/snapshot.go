// Package snapshot captures an inbound request into a scratch directory so
// that dynamic handlers can inspect it.
package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
)

const (
	// RequestFile holds the request line
	RequestFile = "REQUEST"
	// HeadersFile holds the request headers, one "Name: Value" per line
	HeadersFile = "HEADERS"
	// DataFile holds the request body
	DataFile = "DATA"

	// DefaultMaxBody is the number of body bytes kept when not configured
	DefaultMaxBody = 10 << 20
)

// Scratch is a per-request directory removed by Close
type Scratch struct {
	path string
}

// NewScratch creates a uniquely named directory under baseDir, or under the
// default temporary directory when baseDir is empty
func NewScratch(baseDir string) (*Scratch, error) {
	dir, err := os.MkdirTemp(baseDir, "chora-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}

	dir, err = filepath.Abs(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	return &Scratch{path: dir}, nil
}

// Path returns the absolute path of the scratch directory
func (s *Scratch) Path() string {
	return s.path
}

// Close removes the scratch directory and everything in it
func (s *Scratch) Close() error {
	return os.RemoveAll(s.path)
}

// Write stores the request line, headers and body of r in dir. At most
// maxBody bytes of the body are kept when maxBody is positive. A short or
// unreadable body is stored as far as it could be read.
func Write(r *http.Request, dir string, maxBody int64) error {
	requestLine := fmt.Sprintf("%s %s %s", r.Method, r.RequestURI, r.Proto)
	if err := writeFile(dir, RequestFile, []byte(requestLine)); err != nil {
		return err
	}

	if err := writeFile(dir, HeadersFile, headerLines(r)); err != nil {
		return err
	}

	return writeFile(dir, DataFile, readBody(r, maxBody))
}

// headerLines lists Host first, followed by the remaining headers sorted by
// name. net/http does not preserve the order headers arrived in.
func headerLines(r *http.Request) []byte {
	var buf bytes.Buffer

	if r.Host != "" {
		fmt.Fprintf(&buf, "Host: %s\n", r.Host)
	}

	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range r.Header[name] {
			fmt.Fprintf(&buf, "%s: %s\n", name, value)
		}
	}

	return buf.Bytes()
}

func readBody(r *http.Request, maxBody int64) []byte {
	length := r.ContentLength
	if length <= 0 || r.Body == nil {
		return nil
	}

	if maxBody > 0 && length > maxBody {
		length = maxBody
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, length))
	if err != nil {
		log.WithError(err).WithField("content_length", r.ContentLength).Debug("request body truncated")
	}

	return body
}

func writeFile(dir, name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return fmt.Errorf("writing request %s: %w", name, err)
	}

	return nil
}
