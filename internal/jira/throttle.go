package jira

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/andygrunwald/go-jira"
)

// ThrottledError marks a destination response that indicates rate limiting.
// Jira reports this as HTTP 429, but instances behind SSO proxies surface it
// as an authorization failure, so 401 is classified the same way.
type ThrottledError struct {
	Status int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("destination throttled the request (HTTP %d)", e.Status)
}

// IsThrottled reports whether err stems from destination-side throttling.
func IsThrottled(err error) bool {
	var throttled *ThrottledError
	return errors.As(err, &throttled)
}

func classify(resp *jira.Response, err error) error {
	if err == nil {
		return nil
	}
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusUnauthorized) {
		return &ThrottledError{Status: resp.StatusCode}
	}
	return err
}
