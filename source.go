// SPDX-License-Identifier: GPL-3.0-or-later

package sessx

import (
	"net"
	"strconv"
)

// DataSource is one connection target with its own [ConnectOptions].
//
// This is a closed union with exactly two members, [*TCPSource] and
// [*UnixSource]; the session builder dispatches on the concrete type.
//
// A DataSource has no lifecycle of its own: it is owned by the candidate
// list supplied to [*SessionFunc] for the duration of one call.
type DataSource interface {
	// Network returns the dial network ("tcp" or "unix").
	Network() string

	// Address returns the dial address (host:port or socket path).
	Address() string

	// Options returns the candidate's connection options.
	Options() *ConnectOptions

	// isDataSource seals the union.
	isDataSource()
}

// TCPSource is a TCP host+port candidate.
type TCPSource struct {
	// Host is the target host name or numeric address.
	Host string

	// Port is the target port.
	Port uint16

	// Opts is the per-candidate configuration.
	Opts ConnectOptions
}

var _ DataSource = &TCPSource{}

// Network implements [DataSource].
func (s *TCPSource) Network() string {
	return "tcp"
}

// Address implements [DataSource].
func (s *TCPSource) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

// Options implements [DataSource].
func (s *TCPSource) Options() *ConnectOptions {
	return &s.Opts
}

func (s *TCPSource) isDataSource() {}

// UnixSource is a Unix-domain-socket candidate.
type UnixSource struct {
	// Path is the socket path.
	Path string

	// Opts is the per-candidate configuration.
	Opts ConnectOptions
}

var _ DataSource = &UnixSource{}

// Network implements [DataSource].
func (s *UnixSource) Network() string {
	return "unix"
}

// Address implements [DataSource].
func (s *UnixSource) Address() string {
	return s.Path
}

// Options implements [DataSource].
func (s *UnixSource) Options() *ConnectOptions {
	return &s.Opts
}

func (s *UnixSource) isDataSource() {}

// NewSourcesFunc returns a [Func] that always returns the given candidate list.
//
// This is a convenience wrapper around [ConstFunc] for the common case of
// injecting a candidate list into a pipeline ending with [*SessionFunc].
//
// Candidates are tried strictly in the order given here: any priority
// grouping or shuffling must have been applied by the caller beforehand.
func NewSourcesFunc(sources ...DataSource) Func[Unit, []DataSource] {
	return ConstFunc(sources)
}
