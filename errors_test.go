// SPDX-License-Identifier: GPL-3.0-or-later

package sessx

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Error messages carry the failing target and the underlying cause.
func TestErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "resolve",
			err:  &ResolveError{Host: "db.example.com", Err: errors.New("no such host")},
			want: "sessx: resolve db.example.com: no such host",
		},
		{
			name: "connect timeout",
			err:  &ConnectTimeoutError{Address: "10.0.0.1:33060", Timeout: 1500 * time.Millisecond},
			want: "sessx: connect to 10.0.0.1:33060: timeout after 1500 ms",
		},
		{
			name: "network",
			err:  &NetworkError{Op: "connect", Address: "10.0.0.1:33060", Err: errors.New("connection refused")},
			want: "sessx: connect 10.0.0.1:33060: connection refused",
		},
		{
			name: "tls",
			err:  &TLSError{Err: errors.New("handshake failure")},
			want: "sessx: tls: handshake failure",
		},
		{
			name: "auth",
			err:  &AuthError{Err: errors.New("access denied")},
			want: "sessx: auth: access denied",
		},
		{
			name: "protocol",
			err:  &ProtocolError{Err: errors.New("unexpected frame")},
			want: "sessx: protocol: unexpected frame",
		},
		{
			name: "config",
			err:  &ConfigError{Msg: "no sources to connect"},
			want: "sessx: config: no sources to connect",
		},
		{
			name: "server",
			err:  &ServerError{Code: 1045, Severity: 2, SQLState: "28000", Msg: "access denied"},
			want: "server error 1045 (28000): access denied",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

// Wrapping errors expose the underlying cause through errors.Is.
func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")

	assert.ErrorIs(t, &ResolveError{Host: "h", Err: cause}, cause)
	assert.ErrorIs(t, &NetworkError{Op: "connect", Address: "a", Err: cause}, cause)
	assert.ErrorIs(t, &TLSError{Err: cause}, cause)
	assert.ErrorIs(t, &AuthError{Err: cause}, cause)
	assert.ErrorIs(t, &ProtocolError{Err: cause}, cause)
}

// Authentication, protocol, TLS, configuration, and server errors abort
// the whole run; resolution, timeout, and network errors allow failover.
func TestIsFatal(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"resolve", &ResolveError{Host: "h", Err: errors.New("x")}, false},
		{"connect timeout", &ConnectTimeoutError{Address: "a", Timeout: time.Second}, false},
		{"network", &NetworkError{Op: "connect", Address: "a", Err: errors.New("x")}, false},
		{"generic", errors.New("x"), false},
		{"tls", &TLSError{Err: errors.New("x")}, true},
		{"auth", &AuthError{Err: errors.New("x")}, true},
		{"protocol", &ProtocolError{Err: errors.New("x")}, true},
		{"config", &ConfigError{Msg: "x"}, true},
		{"server", &ServerError{Code: 1045, Severity: 2, SQLState: "28000", Msg: "x"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isFatal(tc.err))
		})
	}
}

// Kind falls back to "generic" when the cause wraps no known errno.
func TestNetworkErrorKindGeneric(t *testing.T) {
	err := &NetworkError{Op: "connect", Address: "a", Err: errors.New("odd failure")}
	assert.Equal(t, "generic", err.Kind())
}

// The aggregate failover error uses the documented message verbatim.
func TestErrAllCandidatesFailedMessage(t *testing.T) {
	require.EqualError(t, ErrAllCandidatesFailed,
		"sessx: could not connect to any of the given data sources")
}

// Only the exact (code, severity, state) triple identifies a server
// without TLS support.
func TestServerLacksTLS(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"exact triple", serverLacksTLSError(), true},
		{"wrong code", &ServerError{Code: 5002, Severity: 2, SQLState: "HY000"}, false},
		{"wrong severity", &ServerError{Code: 5001, Severity: 1, SQLState: "HY000"}, false},
		{"wrong state", &ServerError{Code: 5001, Severity: 2, SQLState: "28000"}, false},
		{"not a server error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, serverLacksTLS(tc.err))
		})
	}
}
