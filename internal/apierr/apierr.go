// Package apierr holds the error returned when a remote HTTP API rejects a request.
package apierr

import "fmt"

// MaxBodyExcerpt is how many characters of a response body an error keeps.
const MaxBodyExcerpt = 200

// TransportError reports an HTTP status of 400 or above.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
}

// New builds a TransportError, truncating body to MaxBodyExcerpt characters.
func New(op string, statusCode int, body string) *TransportError {
	return &TransportError{Op: op, StatusCode: statusCode, Body: Truncate(body, MaxBodyExcerpt)}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: HTTP %d - %s", e.Op, e.StatusCode, e.Body)
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
