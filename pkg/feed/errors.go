package feed

import "fmt"

// RequestFailedError is an HTTP-level failure: the server answered with a
// non-2xx, non-304 status. RetryAfter carries the Retry-After header
// verbatim when the server sent one.
type RequestFailedError struct {
	StatusCode int
	Message    string
	RetryAfter string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("http request failed with status %d: %s", e.StatusCode, e.Message)
}

// NetworkError is a transport-level failure: DNS, connect, TLS or timeout.
// The request never produced an HTTP response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError means the body was fetched but is not a parseable feed
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("feed parsing failed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
