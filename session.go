// SPDX-License-Identifier: GPL-3.0-or-later

package sessx

import (
	"crypto/tls"
	"net"
	"sync"
)

// Session is the externally visible result of a successful [*SessionFunc] run.
//
// A Session owns exactly one connection: either the plain [net.Conn] or the
// [TLSConn] that wraps it, never both. It is created only by a successful
// run and is never partially constructed: either it is fully usable, or the
// run failed with an error and no resources leaked.
//
// A Session must not be copied. Closing it closes the owned connection
// (and, transitively, any plain connection a secure channel wraps).
type Session struct {
	// closeOnce ensures at most one underlying close.
	closeOnce sync.Once

	// conn is the owned connection.
	conn net.Conn
}

// newSession wraps the connection the session builder hands over.
func newSession(conn net.Conn) *Session {
	return &Session{conn: conn}
}

// Conn returns the owned connection for use by the protocol layer above.
//
// The connection remains owned by the Session: do not close it directly.
func (s *Session) Conn() net.Conn {
	return s.conn
}

// TLSConnectionState returns the TLS state of the owned connection and
// true when the session was upgraded to TLS, or a zero state and false
// when the session uses a plain connection.
func (s *Session) TLSConnectionState() (tls.ConnectionState, bool) {
	if tconn, ok := s.conn.(TLSConn); ok {
		return tconn.ConnectionState(), true
	}
	return tls.ConnectionState{}, false
}

// Close closes the owned connection.
//
// Close is idempotent: only the first call performs the underlying close;
// later calls are no-ops. I/O errors during shutdown are swallowed, so
// Close always returns nil.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
	return nil
}
