package envelope

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jmgilman/go/errors"
)

// Messages used by the cache-only path.
const (
	MessageNoCache       = "No Cache Available"
	MessageCacheExpired  = "Cache has expired"
	MessageSomethingWent = "Something went wrong"
)

// UnknownStatus is the status code of errors that never received a response.
const UnknownStatus = -1

// Error is delivered to a callback when a request fails.
type Error struct {
	Message     string
	NetworkTime time.Duration
	StatusCode  int
	Data        []byte
	Headers     http.Header

	err errors.PlatformError
}

// Error implements error.
func (e *Error) Error() string {
	if e.StatusCode != UnknownStatus {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

// Unwrap exposes the classified cause.
func (e *Error) Unwrap() error {
	if e.err == nil {
		return nil
	}
	return e.err
}

// Code returns the error classification code.
func (e *Error) Code() errors.ErrorCode {
	return errors.GetCode(e.err)
}

// Retryable reports whether repeating the request might succeed.
func (e *Error) Retryable() bool {
	return errors.IsRetryable(e.err)
}

// NewError builds an error envelope with an unknown status.
func NewError(code errors.ErrorCode, message string) *Error {
	if message == "" {
		message = MessageSomethingWent
	}
	return &Error{
		Message:    message,
		StatusCode: UnknownStatus,
		err:        errors.New(code, message),
	}
}

// WrapError builds an error envelope around cause.
func WrapError(cause error, code errors.ErrorCode, message string) *Error {
	if cause == nil {
		return NewError(code, message)
	}
	if message == "" {
		message = cause.Error()
	}
	return &Error{
		Message:    message,
		StatusCode: UnknownStatus,
		err:        errors.Wrap(cause, code, message),
	}
}

// NoCache is delivered when an offline request finds no entry.
func NoCache() *Error {
	return NewError(errors.CodeNotFound, MessageNoCache)
}

// CacheExpired is delivered when an offline request finds an expired entry.
func CacheExpired() *Error {
	return NewError(errors.CodeUnavailable, MessageCacheExpired)
}

// CacheFailure wraps a cache store error.
func CacheFailure(cause error) *Error {
	return WrapError(cause, errors.CodeDatabase, "cache lookup failed: "+errString(cause))
}

// DecodeFailure wraps a decoder error for the given result type name.
func DecodeFailure(cause error, typeName string) *Error {
	return WrapError(cause, errors.CodeSchemaFailed,
		fmt.Sprintf("could not decode response into %s: %s", typeName, errString(cause)))
}

// FromStatus builds an error envelope from an unsuccessful HTTP response.
func FromStatus(res *Response) *Error {
	code := errors.CodeInternal
	switch {
	case res.StatusCode == http.StatusNotFound:
		code = errors.CodeNotFound
	case res.StatusCode == http.StatusUnauthorized:
		code = errors.CodeUnauthorized
	case res.StatusCode == http.StatusForbidden:
		code = errors.CodeForbidden
	case res.StatusCode == http.StatusConflict:
		code = errors.CodeConflict
	case res.StatusCode == http.StatusRequestTimeout:
		code = errors.CodeTimeout
	case res.StatusCode == http.StatusTooManyRequests:
		code = errors.CodeRateLimit
	case res.StatusCode >= 400 && res.StatusCode < 500:
		code = errors.CodeInvalidInput
	case res.StatusCode == http.StatusServiceUnavailable,
		res.StatusCode == http.StatusBadGateway,
		res.StatusCode == http.StatusGatewayTimeout:
		code = errors.CodeUnavailable
	}
	message := fmt.Sprintf("%d %s", res.StatusCode, http.StatusText(res.StatusCode))
	return &Error{
		Message:     message,
		NetworkTime: res.NetworkTime,
		StatusCode:  res.StatusCode,
		Data:        res.Data,
		Headers:     res.Headers,
		err:         errors.New(code, message),
	}
}

func errString(err error) string {
	if err == nil {
		return MessageSomethingWent
	}
	return err.Error()
}
