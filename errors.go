//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/vitessio/vitess/blob/main/go/mysql/sql_error.go
//

package sessx

import (
	"errors"
	"fmt"
	"time"
)

// ResolveError is returned when resolving a candidate host fails.
//
// It wraps the underlying resolver error. A ResolveError is retryable: the
// session builder proceeds to the next candidate.
type ResolveError struct {
	// Host is the host name that failed to resolve.
	Host string

	// Err is the underlying resolver error.
	Err error
}

var _ error = &ResolveError{}

// Error implements error.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("sessx: resolve %s: %s", e.Host, e.Err.Error())
}

// Unwrap returns the underlying resolver error.
func (e *ResolveError) Unwrap() error {
	return e.Err
}

// ConnectTimeoutError is returned when the per-candidate connect deadline
// expires before a connection is established.
//
// The deadline is computed once at the beginning of the candidate attempt
// and covers resolution plus every resolved address of that candidate. A
// ConnectTimeoutError is retryable.
type ConnectTimeoutError struct {
	// Address is the candidate address that timed out.
	Address string

	// Timeout is the configured per-candidate timeout.
	Timeout time.Duration
}

var _ error = &ConnectTimeoutError{}

// Error implements error.
//
// The timeout is reported in milliseconds, matching what callers configure
// at the coarser layers above this package.
func (e *ConnectTimeoutError) Error() string {
	return fmt.Sprintf("sessx: connect to %s: timeout after %d ms",
		e.Address, e.Timeout.Milliseconds())
}

// NetworkError wraps a network-level failure (refused, unreachable, reset,
// and similar) encountered while connecting to a candidate.
//
// A NetworkError is retryable: it indicates a problem with one specific
// candidate, not with the configuration or the credentials.
type NetworkError struct {
	// Op is the operation that failed (e.g., "connect").
	Op string

	// Address is the candidate address.
	Address string

	// Err is the underlying error.
	Err error
}

var _ error = &NetworkError{}

// Error implements error.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("sessx: %s %s: %s", e.Op, e.Address, e.Err.Error())
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Kind returns a coarse label for the underlying OS error ("refused",
// "reset", "unreachable", "timeout", "netdown") or "generic" when the
// error does not map to a known errno.
func (e *NetworkError) Kind() string {
	if kind := errnoKind(e.Err); kind != "" {
		return kind
	}
	return "generic"
}

// TLSError wraps a failure in TLS handshake setup or execution, including
// "no usable cipher" discovered while building the TLS configuration.
//
// A TLSError is fatal: it aborts the whole session-establishment run even
// if more candidates remain, because it would reproduce identically against
// every remaining candidate.
type TLSError struct {
	// Err is the underlying error.
	Err error
}

var _ error = &TLSError{}

// Error implements error.
func (e *TLSError) Error() string {
	return "sessx: tls: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TLSError) Unwrap() error {
	return e.Err
}

// AuthError wraps an authentication failure reported by the server.
//
// An AuthError is fatal: the same credentials would be rejected by every
// remaining candidate.
type AuthError struct {
	// Err is the underlying error.
	Err error
}

var _ error = &AuthError{}

// Error implements error.
func (e *AuthError) Error() string {
	return "sessx: auth: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// ProtocolError indicates a malformed or unexpected reply from the
// capability-negotiation exchange.
//
// A ProtocolError is fatal.
type ProtocolError struct {
	// Err is the underlying error.
	Err error
}

var _ error = &ProtocolError{}

// Error implements error.
func (e *ProtocolError) Error() string {
	return "sessx: protocol: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ConfigError indicates an invariant violation in [ConnectOptions]
// detected before any I/O.
//
// A ConfigError is always fatal and always raised before any socket
// is opened.
type ConfigError struct {
	// Msg describes the invariant violation.
	Msg string
}

var _ error = &ConfigError{}

// Error implements error.
func (e *ConfigError) Error() string {
	return "sessx: config: " + e.Msg
}

// ServerError is an error reply received during the capability-negotiation
// exchange: a numeric code, a severity, a five-character SQL-state-like
// string, and a text message.
//
// The protocol layer producing these replies is outside this package; we
// only interpret the (Code, Severity, SQLState) triple to recognize the
// "server has no TLS support" case and pass every other reply through.
type ServerError struct {
	// Code is the server-assigned error code.
	Code uint32

	// Severity is the server-assigned severity.
	Severity uint8

	// SQLState is the five-character SQL state.
	SQLState string

	// Msg is the human-readable message.
	Msg string
}

var _ error = &ServerError{}

// Error implements error.
func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d (%s): %s", e.Code, e.SQLState, e.Msg)
}

// ErrAllCandidatesFailed is returned by [*SessionFunc] when more than one
// candidate was attempted and every attempt failed with a retryable error.
//
// By design this error does not aggregate the per-candidate causes: only
// the most recent error is remembered internally, and it is surfaced
// verbatim only in the single-candidate case.
var ErrAllCandidatesFailed = errors.New("sessx: could not connect to any of the given data sources")

// isFatal reports whether err must abort the whole session-establishment
// run immediately instead of trying the next candidate.
//
// Authentication, protocol, TLS, and configuration errors are fatal, as is
// any error reply from the server: these indicate a problem that would
// reproduce identically against every remaining candidate. Everything else
// (resolution failures, refused, unreachable, timeouts) is retryable.
func isFatal(err error) bool {
	var (
		authErr   *AuthError
		cfgErr    *ConfigError
		protoErr  *ProtocolError
		serverErr *ServerError
		tlsErr    *TLSError
	)
	switch {
	case errors.As(err, &authErr):
		return true
	case errors.As(err, &cfgErr):
		return true
	case errors.As(err, &protoErr):
		return true
	case errors.As(err, &serverErr):
		return true
	case errors.As(err, &tlsErr):
		return true
	default:
		return false
	}
}
