package confluence

import (
	"errors"
	"fmt"
	"strings"
)

// StatusError is returned for any non-2xx wiki response
type StatusError struct {
	Code     int
	Body     string
	Endpoint string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("confluence API error: status %d, endpoint: %s: %s", e.Code, e.Endpoint, body)
}

// StatusCode extracts the HTTP status from err, or 0 when err is not a StatusError
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// ResolutionError reports a wiki URL no strategy could map to a page id
type ResolutionError struct {
	URL        string
	Strategies []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve page id for %s (tried: %s)", e.URL, strings.Join(e.Strategies, ", "))
}
