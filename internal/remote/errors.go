package remote

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrorKind partitions remote-adapter failures. Transport errors, tool
// errors and shape errors are kept orthogonal so the watcher can classify
// rate limiting precisely and create-responses with missing fields can
// fall back on input values instead of retrying.
type ErrorKind string

const (
	// KindNotReady: initialization not complete; callers must not invoke
	// tools before Connect returns.
	KindNotReady ErrorKind = "not-ready"
	// KindProtocol: malformed or error-coded tool response.
	KindProtocol ErrorKind = "protocol"
	// KindAuth: the tracker rejected the credentials.
	KindAuth ErrorKind = "auth"
	// KindNotFound: the issue, user or project does not exist.
	KindNotFound ErrorKind = "not-found"
	// KindRateLimited: the tracker is throttling us.
	KindRateLimited ErrorKind = "rate-limited"
	// KindTransport: the subprocess or its stdio channel failed.
	KindTransport ErrorKind = "transport"
	// KindResponseShape: a declared-successful response is missing an
	// expected nested field.
	KindResponseShape ErrorKind = "response-shape"
)

// Error is a classified remote-adapter failure with the original message
// preserved.
type Error struct {
	Kind    ErrorKind
	Tool    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("remote adapter")
	if e.Tool != "" {
		fmt.Fprintf(&b, " (%s)", e.Tool)
	}
	fmt.Fprintf(&b, ": %s", e.Kind)
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the error kind, or KindTransport for unclassified errors.
func KindOf(err error) ErrorKind {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Kind
	}
	return KindTransport
}

// IsRateLimited reports whether err (or its message) indicates throttling.
// Used by the watcher to pick the long backoff tier.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var remoteErr *Error
	if errors.As(err, &remoteErr) && remoteErr.Kind == KindRateLimited {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}

var httpErrorRe = regexp.MustCompile(`\b(4\d\d|5\d\d)\b`)

// classifyToolError maps an error-shaped tool response body to a kind.
// String payloads beginning with `Error:` or mentioning an HTTP 4xx/5xx
// code are tool failures, not transport failures.
func classifyToolError(text string) ErrorKind {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return KindRateLimited
	case strings.Contains(lower, "401") || strings.Contains(lower, "403") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "forbidden"):
		return KindAuth
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist"):
		return KindNotFound
	default:
		return KindProtocol
	}
}

// isToolErrorText reports whether a text payload declares a tool failure.
func isToolErrorText(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "Error:") {
		return true
	}
	lower := strings.ToLower(trimmed)
	return strings.Contains(lower, "error") && httpErrorRe.MatchString(trimmed)
}
