package customheaders

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// ErrInvalidHeaderParameter is returned for a -header value that is not a
// "Name: Value" pair
var ErrInvalidHeaderParameter = errors.New("invalid syntax specified as header parameter")

// AddCustomHeaders appends every value in headers to the response headers
func AddCustomHeaders(w http.ResponseWriter, headers http.Header) {
	dst := w.Header()

	for name, values := range headers {
		for _, value := range values {
			dst.Add(name, value)
		}
	}
}

// ParseHeaderString parses "Name: Value" pairs. Names are canonicalized and
// repeated names keep every value in order.
func ParseHeaderString(customHeaders []string) (http.Header, error) {
	headers := http.Header{}

	for _, raw := range customHeaders {
		name, value, err := parseHeader(raw)
		if err != nil {
			return nil, err
		}

		headers.Add(name, value)
	}

	return headers, nil
}

func parseHeader(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)

	i := strings.IndexByte(raw, ':')
	if i < 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidHeaderParameter, raw)
	}

	name := strings.TrimSpace(raw[:i])
	value := strings.TrimSpace(raw[i+1:])

	if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidHeaderParameter, raw)
	}

	return http.CanonicalHeaderKey(name), value, nil
}
