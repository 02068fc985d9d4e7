package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL with a host.
	ErrInvalidSeed = errors.New("invalid seed URL: must be an absolute http or https URL")

	// ErrUnknownPolicy is returned by ParsePolicy for an unrecognized policy name.
	ErrUnknownPolicy = errors.New("unknown domain policy")
)

// StatusError is returned by a Fetcher when the server answered with a
// non-2xx status code.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}
