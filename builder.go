// SPDX-License-Identifier: GPL-3.0-or-later

package sessx

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// NewSessionFunc returns a new [*SessionFunc] with default connect and
// TLS-upgrade primitives.
//
// The cfg argument contains the common configuration for sessx operations.
//
// The negotiator argument performs the TLS capability exchange with the
// server; it belongs to the protocol layer above this package.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewSessionFunc(cfg *Config, negotiator CapabilityNegotiator, logger SLogger) *SessionFunc {
	return &SessionFunc{
		Connect:       NewConnectFunc(cfg, logger),
		ErrClassifier: cfg.ErrClassifier,
		FailFast:      false,
		Logger:        logger,
		TLS:           NewTLSUpgradeFunc(cfg, negotiator, logger),
		TimeNow:       cfg.TimeNow,
	}
}

// SessionFunc establishes a [*Session] from a list of candidate data sources.
//
// Candidates are tried strictly in the order given, never concurrently;
// the first success wins and no attempt is made to find a "best" reachable
// host. A retryable failure (resolution, refused, unreachable, timeout)
// moves on to the next candidate; a fatal failure (authentication,
// protocol, TLS, configuration) aborts immediately even if more candidates
// remain, because it would reproduce identically against each of them.
//
// Each candidate's connect deadline is independent: a timeout on one
// candidate does not reduce the budget of the next. There is no overall
// failover budget.
//
// Configuration errors in any candidate's options are detected and
// returned before any socket is opened.
//
// Returns either a valid [*Session] or an error, never both. When every
// candidate failed with a retryable error, the surfaced error is the one
// underlying error, verbatim, if exactly one candidate was attempted, and
// [ErrAllCandidatesFailed] otherwise; intermediate per-candidate errors
// are not aggregated.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type SessionFunc struct {
	// Connect establishes the raw connection for one candidate.
	//
	// Set by [NewSessionFunc] using [NewConnectFunc].
	Connect Func[DataSource, net.Conn]

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewSessionFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// FailFast, when true, surfaces the first connect error immediately
	// instead of trying the next candidate. Use this for single-explicit-host
	// construction, where the caller wants the exact underlying error.
	//
	// Set by [NewSessionFunc] to false (failover behavior).
	FailFast bool

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewSessionFunc] to the user-provided logger.
	Logger SLogger

	// TLS upgrades established connections to TLS.
	//
	// Set by [NewSessionFunc] using [NewTLSUpgradeFunc].
	TLS *TLSUpgradeFunc

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewSessionFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[[]DataSource, *Session] = &SessionFunc{}

// Call invokes the [*SessionFunc] to establish a session using the given
// candidate list.
func (op *SessionFunc) Call(ctx context.Context, sources []DataSource) (*Session, error) {
	if len(sources) == 0 {
		return nil, &ConfigError{Msg: "no sources to connect"}
	}

	// Validate every candidate's options before opening any socket.
	for _, src := range sources {
		if err := src.Options().validate(); err != nil {
			return nil, err
		}
	}

	t0 := op.TimeNow()
	op.logSessionStart(t0, len(sources))

	attempts := 0
	var lastErr error
	for _, src := range sources {
		attempts++
		conn, err := op.Connect.Call(ctx, src)
		if err != nil {
			if op.FailFast || isFatal(err) {
				op.logSessionDone(t0, attempts, err)
				return nil, err
			}
			lastErr = err
			continue
		}

		// Raw connection established: upgrade to TLS per the candidate's
		// options. On upgrade failure the plain connection has already
		// been closed and the whole run aborts.
		tconn, err := op.TLS.Upgrade(ctx, conn, op.upgradeOptions(src))
		if err != nil {
			op.logSessionDone(t0, attempts, err)
			return nil, err
		}
		if tconn != nil {
			conn = tconn
		}
		op.logSessionDone(t0, attempts, nil)
		return newSession(conn), nil
	}

	// Loop exhausted without success: preserve the original error detail
	// in the single-candidate case, otherwise report the generic failure.
	if attempts == 1 && lastErr != nil {
		op.logSessionDone(t0, attempts, lastErr)
		return nil, lastErr
	}
	op.logSessionDone(t0, attempts, ErrAllCandidatesFailed)
	return nil, ErrAllCandidatesFailed
}

// upgradeOptions returns the candidate's options with the target host name
// filled in for certificate identity verification, leaving the caller's
// options untouched.
func (op *SessionFunc) upgradeOptions(src DataSource) *ConnectOptions {
	opts := *src.Options()
	if opts.ServerName == "" {
		if tcp, ok := src.(*TCPSource); ok {
			opts.ServerName = tcp.Host
		}
	}
	return &opts
}

func (op *SessionFunc) logSessionStart(t0 time.Time, numSources int) {
	op.Logger.Info(
		"sessionStart",
		slog.Int("numSources", numSources),
		slog.Time("t", t0),
	)
}

func (op *SessionFunc) logSessionDone(t0 time.Time, attempts int, err error) {
	op.Logger.Info(
		"sessionDone",
		slog.Int("attempts", attempts),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
}
