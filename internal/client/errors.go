package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// ErrorKind classifies invocation failures into the four stable kinds
// callers branch on. Kinds are wire-stable strings so they can appear
// in logs, metrics labels, and session results unchanged.
type ErrorKind string

const (
	// KindUnknownOperation means the server does not expose the
	// requested operation (HTTP 404).
	KindUnknownOperation ErrorKind = "unknown_operation"

	// KindOperationError means the operation was reached but rejected
	// the arguments or failed while executing (HTTP 400), or timed out
	// before completing.
	KindOperationError ErrorKind = "operation_error"

	// KindTransportError means the server could not be reached or did
	// not produce a usable response.
	KindTransportError ErrorKind = "transport_error"

	// KindPlanningProtocolError means a planned call was malformed
	// before it ever reached the wire. Produced by the agent loop, not
	// by this package's mappers.
	KindPlanningProtocolError ErrorKind = "planning_protocol_error"
)

// InvokeError is the error type for everything that can go wrong while
// invoking a tool operation.
type InvokeError struct {
	Kind      ErrorKind
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *InvokeError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("%s: %s: %s", e.Operation, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *InvokeError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from an error chain. Errors that did
// not originate from an invocation are classified as transport errors.
func KindOf(err error) ErrorKind {
	var invErr *InvokeError
	if errors.As(err, &invErr) {
		return invErr.Kind
	}
	return KindTransportError
}

// MapHTTPStatus converts a non-2xx tool server status and its decoded
// detail message into an InvokeError. Returns nil for 2xx.
func MapHTTPStatus(status int, detail string) *InvokeError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 400:
		msg := "bad request"
		if detail != "" {
			msg = detail
		}
		return &InvokeError{Kind: KindOperationError, Message: msg}
	case status == 404:
		msg := "not found"
		if detail != "" {
			msg = detail
		}
		return &InvokeError{Kind: KindUnknownOperation, Message: msg}
	default:
		msg := fmt.Sprintf("unexpected status %d", status)
		if detail != "" {
			msg = fmt.Sprintf("unexpected status %d: %s", status, detail)
		}
		return &InvokeError{Kind: KindTransportError, Message: msg}
	}
}

// MapError converts a request-level error from the HTTP client into an
// InvokeError. Deadline expiry counts as an operation error: the call
// was attempted but did not complete inside its budget. Everything
// below that, name resolution and connection failures, is transport.
func MapError(err error) *InvokeError {
	if err == nil {
		return nil
	}

	var invErr *InvokeError
	if errors.As(err, &invErr) {
		return invErr
	}

	if errors.Is(err, context.Canceled) {
		return &InvokeError{Kind: KindOperationError, Message: "operation cancelled", Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &InvokeError{Kind: KindOperationError, Message: "request timeout exceeded", Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &InvokeError{
			Kind:    KindTransportError,
			Message: fmt.Sprintf("DNS lookup failed for %s: %s", dnsErr.Name, dnsErr.Err),
			Err:     err,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return mapNetOpError(opErr, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &InvokeError{
				Kind:    KindOperationError,
				Message: fmt.Sprintf("request timeout: %s", urlErr.Op),
				Err:     err,
			}
		}
		return MapError(urlErr.Err)
	}

	return &InvokeError{Kind: KindTransportError, Message: err.Error(), Err: err}
}

func mapNetOpError(opErr *net.OpError, cause error) *InvokeError {
	if opErr.Timeout() && opErr.Op != "dial" {
		return &InvokeError{
			Kind:    KindOperationError,
			Message: fmt.Sprintf("%s timeout", opErr.Op),
			Err:     cause,
		}
	}

	if opErr.Err != nil {
		var errno syscall.Errno
		if errors.As(opErr.Err, &errno) {
			return mapSyscallError(errno, opErr, cause)
		}

		errStr := opErr.Err.Error()
		switch {
		case strings.Contains(errStr, "connection refused"):
			return &InvokeError{
				Kind:    KindTransportError,
				Message: fmt.Sprintf("connection refused to %s", opErr.Addr),
				Err:     cause,
			}
		case strings.Contains(errStr, "connection reset"):
			return &InvokeError{
				Kind:    KindTransportError,
				Message: fmt.Sprintf("connection reset by %s", opErr.Addr),
				Err:     cause,
			}
		case strings.Contains(errStr, "network is unreachable"):
			return &InvokeError{Kind: KindTransportError, Message: "network is unreachable", Err: cause}
		}
	}

	return &InvokeError{Kind: KindTransportError, Message: opErr.Error(), Err: cause}
}

func mapSyscallError(errno syscall.Errno, opErr *net.OpError, cause error) *InvokeError {
	switch errno {
	case syscall.ECONNREFUSED:
		return &InvokeError{
			Kind:    KindTransportError,
			Message: fmt.Sprintf("connection refused to %s", opErr.Addr),
			Err:     cause,
		}
	case syscall.ECONNRESET:
		return &InvokeError{Kind: KindTransportError, Message: "connection reset by peer", Err: cause}
	case syscall.ENETUNREACH:
		return &InvokeError{Kind: KindTransportError, Message: "network is unreachable", Err: cause}
	case syscall.ETIMEDOUT:
		return &InvokeError{Kind: KindTransportError, Message: "connection timed out", Err: cause}
	default:
		return &InvokeError{Kind: KindTransportError, Message: errno.Error(), Err: cause}
	}
}
