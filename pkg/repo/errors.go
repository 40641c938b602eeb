package repo

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"
)

// NotFoundError reports a repository that does not exist or is private.
type NotFoundError struct {
	Owner string
	Name  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("repository not found: %s/%s", e.Owner, e.Name)
}

// APIError is a classified GitHub API failure.
type APIError struct {
	StatusCode int
	Message    string
	Transient  bool
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("github: %s", e.Message)
	}
	return fmt.Sprintf("github: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether a fetch error is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func classify(err error, owner, name string) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &APIError{StatusCode: http.StatusForbidden, Message: "rate limit exceeded", Transient: true, Err: err}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &APIError{StatusCode: http.StatusForbidden, Message: "secondary rate limit", Transient: true, Err: err}
	}

	var respErr *github.ErrorResponse
	if !errors.As(err, &respErr) || respErr.Response == nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return &APIError{Message: "network error: " + err.Error(), Transient: true, Err: err}
		}
		return err
	}

	status := respErr.Response.StatusCode
	switch {
	case status == http.StatusNotFound:
		return &NotFoundError{Owner: owner, Name: name}
	case status == http.StatusUnauthorized:
		return &APIError{StatusCode: status, Message: "bad credentials, check GITHUB_TOKEN", Err: err}
	case status == http.StatusForbidden && strings.Contains(strings.ToLower(respErr.Message), "rate limit"):
		return &APIError{StatusCode: status, Message: "rate limit exceeded", Transient: true, Err: err}
	case status == http.StatusForbidden:
		return &APIError{StatusCode: status, Message: "access forbidden, check token permissions", Err: err}
	case status == http.StatusTooManyRequests || status >= 500:
		return &APIError{StatusCode: status, Message: respErr.Message, Transient: true, Err: err}
	default:
		return &APIError{StatusCode: status, Message: respErr.Message, Err: err}
	}
}
