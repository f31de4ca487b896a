// Package errs provides the structured error envelope returned by exchange clients.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies an exchange failure category.
type Code string

const (
	// CodeRateLimited indicates that the request exceeded rate limits.
	CodeRateLimited Code = "rate_limited"
	// CodeAuth indicates authentication or authorization errors.
	CodeAuth Code = "auth"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeExchange indicates an exchange-side business failure.
	CodeExchange Code = "exchange_error"
	// CodeNetwork indicates a network transport failure.
	CodeNetwork Code = "network"
	// CodeNotFound indicates a missing resource, usually an unknown symbol.
	CodeNotFound Code = "not_found"
	// CodeGeoBlocked indicates the exchange refused the caller's region (HTTP 451).
	CodeGeoBlocked Code = "geo_blocked"
)

// E is the error envelope produced by exchange clients.
type E struct {
	Exchange    string
	Code        Code
	HTTP        int
	RawCode     string
	RawMsg      string
	Message     string
	Remediation string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the exchange and error code.
func New(exchange string, code Code, opts ...Option) *E {
	e := &E{
		Exchange: strings.TrimSpace(exchange),
		Code:     code,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithRemediation attaches remediation guidance to the error.
func WithRemediation(remediation string) Option {
	trimmed := strings.TrimSpace(remediation)
	return func(e *E) {
		e.Remediation = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithRawCode captures the raw exchange error code.
func WithRawCode(code string) Option {
	trimmed := strings.TrimSpace(code)
	return func(e *E) {
		e.RawCode = trimmed
	}
}

// WithRawMessage captures the raw exchange error message.
func WithRawMessage(msg string) Option {
	return func(e *E) {
		e.RawMsg = msg
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	exchange := e.Exchange
	if exchange == "" {
		exchange = "unknown"
	}
	parts = append(parts, "exchange="+exchange)

	code := string(e.Code)
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RawCode != "" {
		parts = append(parts, "raw_code="+strconv.Quote(e.RawCode))
	}
	if e.RawMsg != "" {
		parts = append(parts, "raw_msg="+strconv.Quote(e.RawMsg))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// Detail returns the most specific human-readable text carried by err:
// the raw exchange message, then the envelope message, then err.Error().
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var e *E
	if errors.As(err, &e) {
		switch {
		case e.RawMsg != "":
			return e.RawMsg
		case e.Message != "":
			return e.Message
		case e.cause != nil:
			return e.cause.Error()
		}
	}
	return err.Error()
}

// CodeOf reports the envelope code of err, or "" when err carries none.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Retryable reports whether err is a throttling or server-side failure worth
// retrying against the same endpoint. Transport failures are not retried
// here; callers with alternate endpoints fail over instead.
func Retryable(err error) bool {
	var e *E
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case CodeRateLimited:
		return true
	case CodeExchange:
		return e.HTTP >= 500
	}
	return false
}
