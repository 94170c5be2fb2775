//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/tlsdialer.go
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/measurexlite/tls.go
//

package sessx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/safeconn"
)

// TLSEngine is the engine to create a new [TLSConn].
type TLSEngine interface {
	// Client builds a new client [TLSConn].
	Client(conn net.Conn, config *tls.Config) TLSConn

	// Name returns the engine name.
	Name() string
}

// TLSEngineStdlib implements [TLSEngine] for the standard library.
//
// The zero value is ready to use.
type TLSEngineStdlib struct{}

var _ TLSEngine = TLSEngineStdlib{}

// Client implements [TLSEngine].
//
// This function uses [tls.Client] to build a new [*tls.Conn].
func (TLSEngineStdlib) Client(conn net.Conn, config *tls.Config) TLSConn {
	return tls.Client(conn, config)
}

// Name implements [TLSEngine].
//
// This function returns "stdlib".
func (TLSEngineStdlib) Name() string {
	return "stdlib"
}

// TLSConn abstracts over [*tls.Conn].
//
// By using an abstraction we allow for alternative TLS implementations.
type TLSConn interface {
	// ConnectionState returns the connection state.
	ConnectionState() tls.ConnectionState

	// HandshakeContext performs the handshake unless interrupted by the context.
	HandshakeContext(ctx context.Context) error

	// Embedding Conn means we can use this type as a [net.Conn].
	net.Conn
}

// CapabilityNegotiator performs the opaque protocol-level exchange asking
// the server whether the current connection may be upgraded to TLS.
//
// The wire format of the request and reply belongs to the protocol layer
// above this package. SetTLSCapability returns nil when the server accepted
// the capability; an error reply from the server is returned as a
// [*ServerError]; transport failures are returned as other error types.
type CapabilityNegotiator interface {
	SetTLSCapability(ctx context.Context, conn net.Conn) error
}

// The exact reply tuple a server emits when it has no TLS support. Only a
// reply matching all three fields triggers the plain-connection fallback;
// any other error reply is fatal. Relaxing this match could silently
// swallow real TLS errors.
const (
	tlsNotSupportedCode     = 5001
	tlsNotSupportedSeverity = 2
	tlsNotSupportedState    = "HY000"
)

// serverLacksTLS recognizes the "server has no TLS support" error reply.
func serverLacksTLS(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) &&
		serverErr.Code == tlsNotSupportedCode &&
		serverErr.Severity == tlsNotSupportedSeverity &&
		serverErr.SQLState == tlsNotSupportedState
}

// NewTLSUpgradeFunc returns a new [*TLSUpgradeFunc] using the given negotiator.
//
// The cfg argument contains the common configuration for sessx operations.
//
// The negotiator argument performs the capability exchange with the server.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewTLSUpgradeFunc(cfg *Config, negotiator CapabilityNegotiator, logger SLogger) *TLSUpgradeFunc {
	runtimex.Assert(negotiator != nil)
	return &TLSUpgradeFunc{
		Engine:        TLSEngineStdlib{},
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		Negotiator:    negotiator,
		TimeNow:       cfg.TimeNow,
	}
}

// TLSUpgradeFunc upgrades an established plain connection to TLS.
//
// Ownership contract (three-way):
//
//  1. Returns (nil, nil): the caller keeps the plain connection and must
//     use it as-is. This happens when the TLS mode is [TLSModeDisabled],
//     or when the server reports that it has no TLS support and the mode
//     is [TLSModePreferred] (fallback).
//
//  2. Returns (tconn, nil): the secure channel now owns the plain
//     connection; closing tconn closes it. The caller must not close the
//     plain connection separately.
//
//  3. Returns (nil, err): the plain connection has already been closed as
//     part of error cleanup. The caller must not close it again.
//
// Exactly one of these holds on every return path, so the caller never
// needs defensive cleanup.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Upgrade].
type TLSUpgradeFunc struct {
	// Engine is the [TLSEngine] to use to handshake.
	//
	// Set by [NewTLSUpgradeFunc] to [TLSEngineStdlib].
	Engine TLSEngine

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewTLSUpgradeFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewTLSUpgradeFunc] to the user-provided logger.
	Logger SLogger

	// Negotiator performs the capability exchange.
	//
	// Set by [NewTLSUpgradeFunc] to the user-provided negotiator.
	Negotiator CapabilityNegotiator

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewTLSUpgradeFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

// Upgrade negotiates and performs the TLS upgrade of conn per opts.
//
// See [TLSUpgradeFunc] for the ownership contract of the return values.
func (op *TLSUpgradeFunc) Upgrade(
	ctx context.Context, conn net.Conn, opts *ConnectOptions) (TLSConn, error) {
	if err := opts.validate(); err != nil {
		conn.Close()
		return nil, err
	}
	if opts.TLSMode == TLSModeDisabled {
		return nil, nil
	}

	// 1. Capability query on the established plain connection.
	t0 := op.TimeNow()
	deadline, _ := ctx.Deadline()
	op.logNegotiateStart(conn, t0, deadline, opts)
	err := op.Negotiator.SetTLSCapability(ctx, conn)
	op.logNegotiateDone(conn, t0, deadline, opts, err)
	if err != nil {
		if serverLacksTLS(err) && opts.TLSMode == TLSModePreferred {
			// Fallback: the caller keeps the plain connection.
			return nil, nil
		}
		conn.Close()
		return nil, err
	}

	// 2. Handshake setup: may still fail before any TLS bytes are sent.
	config, err := op.tlsConfig(opts)
	if err != nil {
		conn.Close()
		return nil, err
	}

	// 3. Handshake execution. From here on the TLS connection wraps the
	// plain one, so closing it on failure also closes the plain one.
	tconn := op.Engine.Client(conn, config)
	op.logHandshakeStart(conn, t0, deadline, config)
	err = tconn.HandshakeContext(ctx)
	state := tconn.ConnectionState()
	op.logHandshakeDone(conn, t0, deadline, config, err, state)
	if err != nil {
		tconn.Close()
		if !isFatal(err) {
			err = &TLSError{Err: err}
		}
		return nil, err
	}
	return tconn, nil
}

// tlsConfig builds the [*tls.Config] for the given options.
func (op *TLSUpgradeFunc) tlsConfig(opts *ConnectOptions) (*tls.Config, error) {
	minVersion, maxVersion, err := selectTLSVersions(opts.TLSVersions)
	if err != nil {
		return nil, err
	}
	v12, v13, err := selectCipherSuites(opts.TLSCiphersuites)
	if err != nil {
		return nil, err
	}
	config := &tls.Config{
		CipherSuites: v12,
		MinVersion:   minVersion,
		MaxVersion:   maxVersion,
		ServerName:   opts.ServerName,
		Time:         op.TimeNow,
	}
	if len(v12) == 0 && len(v13) > 0 {
		// Only TLS 1.3 suites selected: the library cannot restrict 1.3
		// suites, so restrict the version range instead.
		config.MinVersion = tls.VersionTLS13
	}
	if opts.TLSMode < TLSModeVerifyCA {
		config.InsecureSkipVerify = true
		return config, nil
	}
	pool, err := op.loadCA(opts)
	if err != nil {
		return nil, err
	}
	config.RootCAs = pool

	// We verify the chain (and, for VERIFY_IDENTITY, the certificate
	// identity) ourselves: the library's default verification does
	// wildcard host matching, which this package must not do.
	config.InsecureSkipVerify = true
	config.VerifyPeerCertificate = op.verifyPeerCertificate(pool, opts)
	return config, nil
}

// loadCA loads the CA certificate pool from CAFile and, optionally, from
// every readable certificate file inside CAPath.
//
// Paths are not validated up front: a missing or malformed CA file
// surfaces here, during handshake setup, as a [*TLSError].
func (op *TLSUpgradeFunc) loadCA(opts *ConnectOptions) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	pem, err := os.ReadFile(opts.CAFile)
	if err != nil {
		return nil, &TLSError{Err: err}
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, &TLSError{Err: fmt.Errorf("no certificates in CA file %s", opts.CAFile)}
	}
	if opts.CAPath != "" {
		entries, err := os.ReadDir(opts.CAPath)
		if err != nil {
			return nil, &TLSError{Err: err}
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			pem, err := os.ReadFile(filepath.Join(opts.CAPath, entry.Name()))
			if err != nil {
				continue
			}
			// Non-certificate files in the CA directory are skipped.
			pool.AppendCertsFromPEM(pem)
		}
	}
	return pool, nil
}

// verifyPeerCertificate returns the callback verifying the peer chain
// against pool and, under [TLSModeVerifyIdentity], the certificate
// identity against the target host name.
func (op *TLSUpgradeFunc) verifyPeerCertificate(
	pool *x509.CertPool, opts *ConnectOptions) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return &TLSError{Err: errors.New("server presented no certificate")}
		}
		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return &TLSError{Err: err}
			}
			certs = append(certs, cert)
		}
		intermediates := x509.NewCertPool()
		for _, cert := range certs[1:] {
			intermediates.AddCert(cert)
		}
		if _, err := certs[0].Verify(x509.VerifyOptions{
			Roots:         pool,
			Intermediates: intermediates,
			CurrentTime:   op.TimeNow(),
		}); err != nil {
			return &TLSError{Err: err}
		}
		if opts.TLSMode == TLSModeVerifyIdentity && !matchesIdentity(opts.ServerName, certs[0]) {
			return &TLSError{Err: fmt.Errorf(
				"certificate identity does not match %q", opts.ServerName)}
		}
		return nil
	}
}

// matchesIdentity reports whether the certificate subject matches the
// target host name: the common name or any DNS subject-alternative name,
// compared with a case-sensitive exact string match. Wildcards are not
// supported.
func matchesIdentity(host string, cert *x509.Certificate) bool {
	if host == "" {
		return false
	}
	if cert.Subject.CommonName == host {
		return true
	}
	for _, name := range cert.DNSNames {
		if name == host {
			return true
		}
	}
	return false
}

func (op *TLSUpgradeFunc) logNegotiateStart(
	conn net.Conn, t0 time.Time, deadline time.Time, opts *ConnectOptions) {
	op.Logger.Info(
		"tlsNegotiateStart",
		slog.Time("deadline", deadline),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", t0),
		slog.String("tlsMode", opts.TLSMode.String()),
	)
}

func (op *TLSUpgradeFunc) logNegotiateDone(
	conn net.Conn, t0 time.Time, deadline time.Time, opts *ConnectOptions, err error) {
	op.Logger.Info(
		"tlsNegotiateDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
		slog.String("tlsMode", opts.TLSMode.String()),
		slog.Bool("tlsFallback", serverLacksTLS(err) && opts.TLSMode == TLSModePreferred),
	)
}

func (op *TLSUpgradeFunc) logHandshakeStart(
	conn net.Conn, t0 time.Time, deadline time.Time, config *tls.Config) {
	op.Logger.Info(
		"tlsHandshakeStart",
		slog.Time("deadline", deadline),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", t0),
		slog.String("tlsEngineName", op.Engine.Name()),
		slog.String("tlsServerName", config.ServerName),
		slog.Bool("tlsSkipVerify", config.InsecureSkipVerify),
	)
}

func (op *TLSUpgradeFunc) logHandshakeDone(
	conn net.Conn, t0 time.Time, deadline time.Time,
	config *tls.Config, err error, state tls.ConnectionState) {
	op.Logger.Info(
		"tlsHandshakeDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
		slog.String("tlsCipherSuite", tls.CipherSuiteName(state.CipherSuite)),
		slog.String("tlsEngineName", op.Engine.Name()),
		slog.String("tlsServerName", config.ServerName),
		slog.Bool("tlsSkipVerify", config.InsecureSkipVerify),
		slog.String("tlsVersion", tls.VersionName(state.Version)),
	)
}
