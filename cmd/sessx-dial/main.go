// SPDX-License-Identifier: GPL-3.0-or-later

// Command sessx-dial establishes a session against one or more candidate
// hosts and reports the outcome, emitting structured logs on stderr.
//
// This is a diagnostic tool: it does not speak any application protocol.
// The TLS capability exchange is replaced by an implicit accept, which
// works against servers that speak TLS directly on the dialed port.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bassosimone/errclass"
	"github.com/bassosimone/runtimex"
	flag "github.com/spf13/pflag"

	"github.com/bassosimone/sessx"
)

// acceptNegotiator assumes the server accepts the TLS capability without
// any wire exchange.
type acceptNegotiator struct{}

var _ sessx.CapabilityNegotiator = acceptNegotiator{}

// SetTLSCapability implements [sessx.CapabilityNegotiator].
func (acceptNegotiator) SetTLSCapability(ctx context.Context, conn net.Conn) error {
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sessx-dial: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sessx-dial", flag.ContinueOnError)

	var (
		hosts       []string
		port        uint16
		unixPath    string
		timeout     time.Duration
		sslMode     string
		sslCA       string
		sslCAPath   string
		tlsVersions []string
		tlsCiphers  []string
		serverName  string
		failFast    bool
		verbose     bool
	)
	fs.StringArrayVar(&hosts, "host", nil, "Candidate host (repeatable, tried in order)")
	fs.Uint16Var(&port, "port", 33060, "Port for every TCP candidate")
	fs.StringVar(&unixPath, "unix", "", "Unix socket path candidate (tried after the hosts)")
	fs.DurationVarP(&timeout, "timeout", "w", 10*time.Second, "Per-candidate connect timeout (0 = none)")
	fs.StringVar(&sslMode, "ssl-mode", "PREFERRED",
		"TLS mode: DISABLED, PREFERRED, REQUIRED, VERIFY_CA, VERIFY_IDENTITY")
	fs.StringVar(&sslCA, "ssl-ca", "", "CA certificate file (requires VERIFY_CA or above)")
	fs.StringVar(&sslCAPath, "ssl-capath", "", "Directory with additional CA certificate files")
	fs.StringSliceVar(&tlsVersions, "tls-versions", nil, "Allowed TLS versions (e.g. TLSv1.2,TLSv1.3)")
	fs.StringSliceVar(&tlsCiphers, "tls-ciphersuites", nil, "Allowed cipher suites (IANA names)")
	fs.StringVar(&serverName, "server-name", "", "Host name for certificate identity verification")
	fs.BoolVar(&failFast, "fail-fast", false, "Surface the first connect error instead of failing over")
	fs.BoolVarP(&verbose, "verbose", "v", false, "Emit debug-level logs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mode, err := sessx.TLSModeFromString(sslMode)
	if err != nil {
		return err
	}
	opts := sessx.ConnectOptions{
		Timeout:         timeout,
		TLSMode:         mode,
		TLSVersions:     tlsVersions,
		TLSCiphersuites: tlsCiphers,
		CAFile:          sslCA,
		CAPath:          sslCAPath,
		ServerName:      serverName,
	}

	var sources []sessx.DataSource
	for _, host := range hosts {
		sources = append(sources, &sessx.TCPSource{Host: host, Port: port, Opts: opts})
	}
	if unixPath != "" {
		unixOpts := opts
		unixOpts.TLSMode = sessx.TLSModeDisabled
		unixOpts.CAFile = ""
		sources = append(sources, &sessx.UnixSource{Path: unixPath, Opts: unixOpts})
	}
	if len(sources) == 0 {
		return fmt.Errorf("no candidates: pass --host and/or --unix")
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})).With(slog.String("spanID", sessx.NewSpanID()))

	cfg := sessx.NewConfig()
	cfg.ErrClassifier = sessx.ErrClassifierFunc(errclass.New)

	fn := sessx.NewSessionFunc(cfg, acceptNegotiator{}, logger)
	fn.FailFast = failFast
	sess, err := fn.Call(ctx, sources)
	if err != nil {
		return err
	}

	// Close the connection as soon as the signal context is done and,
	// when verbose, log every I/O operation on it.
	conn := runtimex.PanicOnError1(sessx.NewCancelWatchFunc().Call(ctx, sess.Conn()))
	if verbose {
		conn = runtimex.PanicOnError1(sessx.NewObserveConnFunc(cfg, logger).Call(ctx, conn))
	}
	defer conn.Close()

	fmt.Printf("connected: %s\n", conn.RemoteAddr())
	if state, ok := sess.TLSConnectionState(); ok {
		fmt.Printf("tls: %s %s\n",
			tls.VersionName(state.Version), tls.CipherSuiteName(state.CipherSuite))
	} else {
		fmt.Printf("tls: none\n")
	}
	return nil
}
