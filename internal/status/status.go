// Package status defines the categorical error taxonomy used across the
// runtime core. Errors carry a code and a human-readable message; the
// transport layers map the code onto their own wire status (HTTP or gRPC)
// at the boundary, never inside the core.
package status

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Code is the categorical classification of a runtime failure.
type Code int

const (
	// CodeInternal covers unregistered model types, failed backend
	// resolution, invalid manifest values, instantiation failures and
	// batch size mismatches.
	CodeInternal Code = iota
	// CodeNotFound covers missing artifact paths, invalid archives and
	// missing manifest files.
	CodeNotFound
	// CodeInvalidArgument covers malformed caller input.
	CodeInvalidArgument
	// CodeConflict covers duplicate registrations and duplicate model ids.
	CodeConflict
	// CodeUnavailable covers calls against a stopped or draining component.
	CodeUnavailable
)

func (c Code) String() string {
	switch c {
	case CodeNotFound:
		return "not_found"
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeConflict:
		return "conflict"
	case CodeUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is a categorized runtime failure. It is constructed at the point
// of detection with full context and propagates unchanged to the caller.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the proximate cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus maps the categorical code onto an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GRPCStatus maps the categorical code onto a gRPC status. grpc-go picks
// this up automatically when the error crosses an RPC boundary.
func (e *Error) GRPCStatus() *grpcstatus.Status {
	switch e.Code {
	case CodeNotFound:
		return grpcstatus.New(codes.NotFound, e.Error())
	case CodeInvalidArgument:
		return grpcstatus.New(codes.InvalidArgument, e.Error())
	case CodeConflict:
		return grpcstatus.New(codes.AlreadyExists, e.Error())
	case CodeUnavailable:
		return grpcstatus.New(codes.Unavailable, e.Error())
	default:
		return grpcstatus.New(codes.Internal, e.Error())
	}
}

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error that records cause as the proximate failure.
// A nil cause yields a plain Error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf returns the categorical code carried by err, or CodeInternal when
// err is not a status error.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool { return is(err, CodeNotFound) }

// IsInternal reports whether err carries CodeInternal. A non-status error
// does not count as internal; callers decide how to classify those.
func IsInternal(err error) bool { return is(err, CodeInternal) }

// IsInvalidArgument reports whether err carries CodeInvalidArgument.
func IsInvalidArgument(err error) bool { return is(err, CodeInvalidArgument) }

// IsConflict reports whether err carries CodeConflict.
func IsConflict(err error) bool { return is(err, CodeConflict) }

// IsUnavailable reports whether err carries CodeUnavailable.
func IsUnavailable(err error) bool { return is(err, CodeUnavailable) }

func is(err error, code Code) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == code
}
