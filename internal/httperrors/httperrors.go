// Package httperrors renders the HTML pages served when no route response
// is available.
package httperrors

import (
	"bytes"
	"html/template"
	"net/http"
)

type page struct {
	Status  int
	Title   string
	Message string
	Hint    string
}

var pages = []page{
	{
		Status:  http.StatusForbidden,
		Title:   "Forbidden",
		Message: "The route exists but its handler cannot be executed.",
		Hint:    "Make sure the HANDLE file of the route has the executable bit set.",
	},
	{
		Status:  http.StatusNotFound,
		Title:   "Not Found",
		Message: "The route you're looking for could not be found.",
		Hint:    "No directory of the route tree matches the requested path and method, not even through a template.",
	},
	{
		Status:  http.StatusRequestURITooLong,
		Title:   "Request URI Too Long",
		Message: "The URI provided was too long for the server to process.",
		Hint:    "Try to make the request URI shorter.",
	},
	{
		Status:  http.StatusTooManyRequests,
		Title:   "Too Many Requests",
		Message: "The resource that you are attempting to access is being rate limited.",
		Hint:    "Wait a moment before sending more requests.",
	},
	{
		Status:  http.StatusInternalServerError,
		Title:   "Internal Server Error",
		Message: "Whoops, something went wrong while building the response.",
		Hint:    "The route handler failed or the route holds a malformed response. The server log has the details.",
	},
	{
		Status:  http.StatusServiceUnavailable,
		Title:   "Service Unavailable",
		Message: "The route tree is not available right now.",
		Hint:    "Try refreshing the page, or going back and attempting the action again.",
	},
}

var pageTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta content="width=device-width, initial-scale=1, maximum-scale=1" name="viewport">
  <title>{{.Title}} ({{.Status}})</title>
  <style>
    body { color: #666; text-align: center; font-family: "Helvetica Neue", Helvetica, Arial, sans-serif; margin: auto; font-size: 14px; }
    h1 { font-size: 56px; line-height: 100px; font-weight: 400; color: #456; }
    h3 { color: #456; font-size: 20px; font-weight: 400; line-height: 28px; }
  </style>
</head>
<body>
  <h1>{{.Status}}</h1>
  <h3>{{.Message}}</h3>
  <p>{{.Hint}}</p>
</body>
</html>
`))

// rendered once, keyed by status
var rendered = renderPages()

// Headers are set on every error page
var Headers = map[string]string{
	"Content-Type":           "text/html; charset=utf-8",
	"X-Content-Type-Options": "nosniff",
}

func renderPages() map[int][]byte {
	out := make(map[int][]byte, len(pages))

	for _, p := range pages {
		var buf bytes.Buffer
		if err := pageTemplate.Execute(&buf, p); err != nil {
			panic(err)
		}

		out[p.Status] = buf.Bytes()
	}

	return out
}

// Page returns the HTML error page for status. Statuses without a page of
// their own get the 500 page.
func Page(status int) []byte {
	if body, ok := rendered[status]; ok {
		return body
	}

	return rendered[http.StatusInternalServerError]
}

// Serve writes the error page for status
func Serve(w http.ResponseWriter, status int) {
	for name, value := range Headers {
		w.Header().Set(name, value)
	}

	if _, ok := rendered[status]; !ok {
		status = http.StatusInternalServerError
	}

	w.WriteHeader(status)
	w.Write(Page(status))
}

// Serve414 returns a 414 error response / HTML page to the http.ResponseWriter
func Serve414(w http.ResponseWriter) {
	Serve(w, http.StatusRequestURITooLong)
}

// Serve429 returns a 429 error response / HTML page to the http.ResponseWriter
func Serve429(w http.ResponseWriter) {
	Serve(w, http.StatusTooManyRequests)
}

// Serve503 returns a 503 error response / HTML page to the http.ResponseWriter
func Serve503(w http.ResponseWriter) {
	Serve(w, http.StatusServiceUnavailable)
}
