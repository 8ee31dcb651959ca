package responsedir

import (
	"net/http"
	"strings"
)

// Field is a single response header line
type Field struct {
	Name  string
	Value string
}

// Header is an ordered list of response headers. Duplicate names are kept
// in the order they were added.
type Header []Field

// Add appends a header field and returns the extended Header
func (h Header) Add(name, value string) Header {
	return append(h, Field{Name: name, Value: value})
}

// Get returns the last value set for name, compared case-insensitively
func (h Header) Get(name string) string {
	for i := len(h) - 1; i >= 0; i-- {
		if strings.EqualFold(h[i].Name, name) {
			return h[i].Value
		}
	}

	return ""
}

// Values returns all values set for name in order
func (h Header) Values(name string) []string {
	var values []string

	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}

	return values
}

// CopyTo adds every field to dst in order
func (h Header) CopyTo(dst http.Header) {
	for _, f := range h {
		dst.Add(f.Name, f.Value)
	}
}

// Response is a resolved response ready to be written to the client
type Response struct {
	Status  int
	Body    []byte
	Headers Header
}

// Serve sends r to w. The body is omitted for HEAD requests by net/http.
func (r *Response) Serve(w http.ResponseWriter) error {
	r.Headers.CopyTo(w.Header())
	w.WriteHeader(r.Status)

	_, err := w.Write(r.Body)

	return err
}
