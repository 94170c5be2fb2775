//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/nop/blob/main/connect.go
//

package sessx

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"
)

// Resolver abstracts the [*net.Resolver] behavior.
//
// By making [*ResolveFunc] depend on an abstract implementation we
// allow for unit testing and for using alternative resolvers.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// NewResolveFunc returns a new [*ResolveFunc] with default resolver.
//
// The cfg argument contains the common configuration for sessx operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewResolveFunc(cfg *Config, logger SLogger) *ResolveFunc {
	return &ResolveFunc{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		Resolver:      cfg.Resolver,
		TimeNow:       cfg.TimeNow,
	}
}

// ResolveFunc resolves a host name to the list of its IP addresses.
//
// Numeric IP literals bypass the resolver entirely and pin the exact
// address family of the literal.
//
// Returns either a non-empty address list or an error, never both. A
// failure is reported as [*ResolveError] wrapping the resolver error.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type ResolveFunc struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewResolveFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewResolveFunc] to the user-provided logger.
	Logger SLogger

	// Resolver is the [Resolver] to use.
	//
	// Set by [NewResolveFunc] from [Config.Resolver].
	Resolver Resolver

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewResolveFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[string, []netip.Addr] = &ResolveFunc{}

// Call invokes the [*ResolveFunc] to resolve the given host name.
func (op *ResolveFunc) Call(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{addr}, nil
	}
	t0 := op.TimeNow()
	deadline, _ := ctx.Deadline()
	op.logResolveStart(host, t0, deadline)
	addrs, err := op.Resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		err = &ResolveError{Host: host, Err: err}
		addrs = nil
	} else if len(addrs) == 0 {
		// A resolver returning no addresses and no error would otherwise
		// leak an empty list to the connect loop.
		err = &ResolveError{Host: host, Err: errors.New("resolver returned no addresses")}
	}
	op.logResolveDone(host, t0, deadline, addrs, err)
	return addrs, err
}

func (op *ResolveFunc) logResolveStart(host string, t0 time.Time, deadline time.Time) {
	op.Logger.Info(
		"resolveStart",
		slog.Time("deadline", deadline),
		slog.String("hostname", host),
		slog.Time("t", t0),
	)
}

func (op *ResolveFunc) logResolveDone(
	host string, t0 time.Time, deadline time.Time, addrs []netip.Addr, err error) {
	op.Logger.Info(
		"resolveDone",
		slog.Time("deadline", deadline),
		slog.Any("addresses", addrs),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("hostname", host),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
}
