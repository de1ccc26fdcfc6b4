package quote

import (
	"errors"
	"fmt"
)

// Kind classifies a quote-layer failure. Validation kinds surface before
// any cache or network interaction; the rest come back from the upstream
// boundary embedded in a Quote.
type Kind string

const (
	KindInvalidSymbol       Kind = "INVALID_SYMBOL"
	KindInvalidBatchSize    Kind = "INVALID_BATCH_SIZE"
	KindNotFound            Kind = "NOT_FOUND"
	KindRateLimited         Kind = "RATE_LIMITED"
	KindUpstreamThrottled   Kind = "UPSTREAM_THROTTLED"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindTimeout             Kind = "TIMEOUT"
	KindParseError          Kind = "PARSE_ERROR"
)

// Error is a typed quote-layer error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so callers can compare
// against the sentinel values below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError builds a typed error with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError builds a typed error wrapping an underlying cause.
func WrapError(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidSymbol       = &Error{Kind: KindInvalidSymbol, Msg: "invalid symbol"}
	ErrInvalidBatchSize    = &Error{Kind: KindInvalidBatchSize, Msg: "invalid batch size"}
	ErrNotFound            = &Error{Kind: KindNotFound, Msg: "symbol not found"}
	ErrRateLimited         = &Error{Kind: KindRateLimited, Msg: "rate limit exhausted"}
	ErrUpstreamThrottled   = &Error{Kind: KindUpstreamThrottled, Msg: "upstream throttled"}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable, Msg: "upstream unavailable"}
	ErrTimeout             = &Error{Kind: KindTimeout, Msg: "upstream timeout"}
	ErrParseError          = &Error{Kind: KindParseError, Msg: "malformed upstream payload"}
)

// KindOf extracts the Kind from err, defaulting to UPSTREAM_UNAVAILABLE
// for untyped failures.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindUpstreamUnavailable
}
