//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/netxlite/dialer.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/dialer.go
//

package sessx

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/safeconn"
)

// Dialer abstracts the [*net.Dialer] behavior.
//
// By making [*ConnectFunc] depend on an abstract implementation we
// allow for unit testing and for using alternative dialers. The default
// [*net.Dialer] gives us non-blocking sockets with readiness polling and
// correct connect-in-progress handling through the runtime poller.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NewConnectFunc returns a new [*ConnectFunc] with default dialer and resolver.
//
// The cfg argument contains the common configuration for sessx operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewConnectFunc(cfg *Config, logger SLogger) *ConnectFunc {
	return &ConnectFunc{
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		Resolve:       NewResolveFunc(cfg, logger),
		TimeNow:       cfg.TimeNow,
	}
}

// ConnectFunc establishes the raw connection for one [DataSource].
//
// The candidate's deadline is computed exactly once at call entry
// (now + Timeout) and covers resolution plus every resolved address;
// a zero Timeout means no deadline. When a candidate host resolves to
// multiple addresses, each address is tried in turn transparently and
// an error is returned only after all of them failed.
//
// Returns either a valid [net.Conn] or an error, never both. Deadline
// expiry is reported as [*ConnectTimeoutError]; other dial failures as
// [*NetworkError]; resolution failures as [*ResolveError].
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type ConnectFunc struct {
	// Dialer is the [Dialer] to use.
	//
	// Set by [NewConnectFunc] from [Config.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConnectFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewConnectFunc] to the user-provided logger.
	Logger SLogger

	// Resolve resolves candidate host names.
	//
	// Set by [NewConnectFunc] using [NewResolveFunc].
	Resolve Func[string, []netip.Addr]

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewConnectFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[DataSource, net.Conn] = &ConnectFunc{}

// Call invokes the [*ConnectFunc] to connect to the given [DataSource].
func (op *ConnectFunc) Call(ctx context.Context, src DataSource) (net.Conn, error) {
	opts := src.Options()

	// The candidate's deadline is computed here, exactly once, and
	// threaded through explicitly: timeout classification must reflect
	// this deadline, not whatever deadline the caller's context carries.
	var deadline time.Time
	if timeout := opts.Timeout; timeout > 0 {
		deadline = op.TimeNow().Add(timeout)
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	switch src := src.(type) {
	case *TCPSource:
		return op.connectTCP(ctx, src, deadline)
	case *UnixSource:
		return op.dial(ctx, "unix", src.Path, opts.Timeout, deadline)
	default:
		panic("sessx: unknown DataSource type; this is a programming error")
	}
}

// connectTCP resolves the host and tries each resolved address in turn.
func (op *ConnectFunc) connectTCP(
	ctx context.Context, src *TCPSource, deadline time.Time) (net.Conn, error) {
	addrs, err := op.Resolve.Call(ctx, src.Host)
	if err != nil {
		return nil, op.maybeTimeout(src.Address(), src.Opts.Timeout, deadline, err)
	}
	var lastErr error
	for _, addr := range addrs {
		endpoint := netip.AddrPortFrom(addr, src.Port).String()
		conn, err := op.dial(ctx, "tcp", endpoint, src.Opts.Timeout, deadline)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// dial performs a single dial attempt with logging and error wrapping.
func (op *ConnectFunc) dial(ctx context.Context, network, address string,
	timeout time.Duration, deadline time.Time) (net.Conn, error) {
	t0 := op.TimeNow()
	op.logConnectStart(network, address, t0, deadline)
	conn, err := op.Dialer.DialContext(ctx, network, address)
	if err != nil {
		err = op.wrapDialError(address, timeout, deadline, err)
		conn = nil
	}
	op.logConnectDone(network, address, t0, deadline, conn, err)
	return conn, err
}

// wrapDialError converts a raw dial error into this package's taxonomy.
//
// The dialer may report a spurious timeout while the connection is still
// pending; we only classify as [*ConnectTimeoutError] once the candidate's
// own deadline has actually passed, and otherwise report a [*NetworkError].
// Expiry of a caller-supplied context deadline is a [*NetworkError] too.
func (op *ConnectFunc) wrapDialError(
	address string, timeout time.Duration, deadline time.Time, err error) error {
	if !deadline.IsZero() && !op.TimeNow().Before(deadline) {
		return &ConnectTimeoutError{Address: address, Timeout: timeout}
	}
	return &NetworkError{Op: "connect", Address: address, Err: err}
}

// maybeTimeout reclassifies a resolution error as [*ConnectTimeoutError]
// when the candidate's deadline expired while resolving.
func (op *ConnectFunc) maybeTimeout(
	address string, timeout time.Duration, deadline time.Time, err error) error {
	if !deadline.IsZero() && !op.TimeNow().Before(deadline) {
		return &ConnectTimeoutError{Address: address, Timeout: timeout}
	}
	return err
}

func (op *ConnectFunc) logConnectStart(network, address string, t0 time.Time, deadline time.Time) {
	op.Logger.Info(
		"connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t", t0),
	)
}

func (op *ConnectFunc) logConnectDone(
	network, address string, t0 time.Time, deadline time.Time, conn net.Conn, err error) {
	op.Logger.Info(
		"connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
}
