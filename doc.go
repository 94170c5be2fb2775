// SPDX-License-Identifier: GPL-3.0-or-later

// Package sessx establishes client-side network sessions with multi-host
// failover and opportunistic TLS upgrade.
//
// # Core Abstraction
//
// The package is built around a single interface:
//
//	type Func[A, B any] interface {
//		Call(ctx context.Context, input A) (B, error)
//	}
//
// Each Func represents an atomic operation with exactly one success mode
// and one failure mode. This design enables type-safe composition via
// [Compose2], [Compose3], etc., where the compiler verifies that outputs
// match inputs across pipeline stages.
//
// # Available Primitives
//
// Session establishment:
//   - [SessionFunc]: tries each [DataSource] candidate in order and returns
//     a [*Session] wrapping the first connection it establishes
//   - [ConnectFunc]: resolves and dials one candidate with a per-candidate
//     deadline computed once at call entry
//   - [ResolveFunc]: resolves a host name, bypassing the resolver for
//     numeric literals
//   - [TLSUpgradeFunc]: negotiates the TLS capability with the server and
//     performs the handshake over an existing connection
//
// Connection utilities:
//   - [ObserveConnFunc]: observes connections for logging I/O operations
//   - [CancelWatchFunc]: closes the connection on context cancellation
//     (for responsive ^C handling)
//
// Composition utilities:
//   - [Compose2] through [Compose4]: chain Funcs into pipelines
//   - [FuncAdapter]: wrap a function as a Func for ad-hoc custom behavior
//   - [Apply]: bind a fixed input to a Func
//   - [ConstFunc]: lift a pure value into a Func
//   - [NewSourcesFunc]: convenience wrapper for ConstFunc with candidate lists
//
// # Failover Model
//
// A caller supplies an ordered list of candidates, each a TCP host+port or
// a Unix socket path with its own [ConnectOptions]. Candidates are tried
// strictly sequentially; the first success wins. Network-level failures
// (resolution, refused, unreachable, timeout) are retryable and move the
// loop to the next candidate; authentication, protocol, TLS, and
// configuration failures are fatal and abort the whole run, because they
// would reproduce identically against every remaining candidate.
//
// Per-candidate connect deadlines are independent: there is no overall
// failover budget, so the worst-case latency is the sum of the individual
// candidate timeouts.
//
// # Connection Lifecycle
//
// Ownership is single-holder at every point in time. During an attempt the
// connect primitive owns the socket; a failed attempt closes it. The TLS
// upgrade is a three-way handoff: the caller keeps the plain connection
// (TLS disabled, or server has no TLS and the mode permits fallback), or
// the secure channel takes ownership of it, or the upgrade fails and the
// plain connection is closed as part of error cleanup. A [*Session] owns
// exactly one connection and closes it exactly once.
//
// # Observability
//
// All primitives support structured logging via [SLogger] (compatible with
// [log/slog]).
//
// By default, logging is disabled. Set the Logger field to a custom
// [*slog.Logger] to enable logging. Error classification is configurable
// via [ErrClassifier]; by default, a no-op classifier is used.
//
// All events share a common set of fields: localAddr, remoteAddr, protocol,
// and t (timestamp). Completion events (*Done) additionally include t0
// (start time), err, and errClass. I/O-level events (read, write, deadline
// changes) are emitted at [slog.LevelDebug]; all other events use
// [slog.LevelInfo].
//
// Use [NewSpanID] to generate a unique, time-ordered identifier (UUIDv7)
// for each run of [SessionFunc], then attach it to the logger with
// [*slog.Logger.With]. All log entries from that run will share the same
// spanID, enabling correlation across candidates and upgrade stages.
//
// # Timeout and Context Philosophy
//
// The per-candidate connect timeout in [ConnectOptions] is applied by
// [ConnectFunc] itself: the deadline is computed once at call entry and
// covers resolution plus every resolved address of that candidate.
// Everything else is context-transparent: the caller controls overall
// timeouts externally via [context.WithTimeout], [context.WithDeadline],
// or [signal.NotifyContext]. Once the TLS handshake has started no
// additional timeout is enforced on it beyond the caller's context.
//
// # Design Boundaries
//
// This package intentionally stops at session establishment. The following
// are out of scope and belong to the layers above or below:
//
//   - The wire format of protocol messages (the capability exchange is
//     delegated to a caller-supplied [CapabilityNegotiator])
//   - Credential exchange and authentication
//   - Connection pooling and reuse policies
//   - DNS-SRV resolution and candidate priority shuffling (candidates are
//     tried exactly in the order given)
package sessx
