package news

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// MissingCredentialsMessage is returned to clients verbatim whenever a
// required upstream credential is not configured.
const MissingCredentialsMessage = "search and sentiment API credentials are not configured"

// ConfigurationError reports required settings that are absent. It is fatal
// to a request and never retried.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) == 0 {
		return MissingCredentialsMessage
	}
	return fmt.Sprintf("%s: missing %s", MissingCredentialsMessage, strings.Join(e.Missing, ", "))
}

// UpstreamSearchError carries a non-success response from the search API.
// Body is the raw upstream error body and is never parsed.
type UpstreamSearchError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamSearchError) Error() string {
	return fmt.Sprintf("upstream search returned %d: %s", e.StatusCode, e.Body)
}

// NetworkError wraps a transport failure or timeout on an outbound call.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Per-item failures. They drop a single stub and never fail a request.
var (
	ErrNoLink         = errors.New("stub has neither link nor originallink")
	ErrDomainRejected = errors.New("host is not in the allow-list")
	ErrDisallowed     = errors.New("url disallowed by robots.txt")
	ErrFetchFailed    = errors.New("article fetch failed")
	ErrBlocked        = errors.New("article fetch was challenged by bot protection")
	ErrParseFailed    = errors.New("article html could not be parsed")
	ErrNoContent      = errors.New("article body not found")
)

// DropReason names the per-item failure behind err, for logs and metrics.
func DropReason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoLink):
		return "no_link"
	case errors.Is(err, ErrDomainRejected):
		return "domain_rejected"
	case errors.Is(err, ErrDisallowed):
		return "robots_disallowed"
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case errors.Is(err, ErrFetchFailed):
		return "fetch_failed"
	case errors.Is(err, ErrParseFailed):
		return "parse_failed"
	case errors.Is(err, ErrNoContent):
		return "no_content"
	default:
		return "error"
	}
}

// StatusCode maps a request-level error to the HTTP status returned to the
// client. Upstream search failures keep the upstream's own status.
func StatusCode(err error) int {
	var upstream *UpstreamSearchError
	if errors.As(err, &upstream) && upstream.StatusCode > 0 {
		return upstream.StatusCode
	}
	return http.StatusInternalServerError
}

// ClientMessage is the error string placed in the response body.
func ClientMessage(err error) string {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return MissingCredentialsMessage
	}
	var upstream *UpstreamSearchError
	if errors.As(err, &upstream) {
		return upstream.Body
	}
	return err.Error()
}
