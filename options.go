//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/go-sql-driver/mysql/blob/master/dsn.go
//

package sessx

import (
	"fmt"
	"time"
)

// TLSMode selects whether and how strictly a candidate connection is
// upgraded to TLS.
type TLSMode int

const (
	// TLSModeDisabled never upgrades to TLS: the plain connection is
	// used as-is and no capability negotiation takes place.
	TLSModeDisabled = TLSMode(iota)

	// TLSModePreferred upgrades to TLS when the server supports it and
	// silently falls back to the plain connection when the server reports
	// that it does not.
	TLSModePreferred

	// TLSModeRequired upgrades to TLS and fails when the server does not
	// support it. The peer certificate is not verified.
	TLSModeRequired

	// TLSModeVerifyCA behaves like TLSModeRequired and additionally
	// verifies the certificate chain against the configured CA.
	TLSModeVerifyCA

	// TLSModeVerifyIdentity behaves like TLSModeVerifyCA and additionally
	// requires the certificate identity (common name or any DNS subject
	// alternative name) to exactly match the target host name. The match
	// is case-sensitive and wildcards are not supported.
	TLSModeVerifyIdentity
)

// String returns the canonical configuration-layer name of the mode.
func (m TLSMode) String() string {
	switch m {
	case TLSModeDisabled:
		return "DISABLED"
	case TLSModePreferred:
		return "PREFERRED"
	case TLSModeRequired:
		return "REQUIRED"
	case TLSModeVerifyCA:
		return "VERIFY_CA"
	case TLSModeVerifyIdentity:
		return "VERIFY_IDENTITY"
	default:
		return fmt.Sprintf("TLSMode(%d)", int(m))
	}
}

// TLSModeFromString parses the canonical configuration-layer name of a
// TLS mode. Returns a [*ConfigError] for unknown names.
func TLSModeFromString(name string) (TLSMode, error) {
	switch name {
	case "DISABLED":
		return TLSModeDisabled, nil
	case "PREFERRED":
		return TLSModePreferred, nil
	case "REQUIRED":
		return TLSModeRequired, nil
	case "VERIFY_CA":
		return TLSModeVerifyCA, nil
	case "VERIFY_IDENTITY":
		return TLSModeVerifyIdentity, nil
	default:
		return TLSModeDisabled, &ConfigError{Msg: "unknown TLS mode: " + name}
	}
}

// ConnectOptions is the per-candidate connection configuration.
//
// The zero value means: no connect deadline, TLS disabled, default TLS
// versions and cipher suites, no CA material.
type ConnectOptions struct {
	// Timeout is the per-candidate connect timeout. The deadline is
	// computed once at the beginning of the candidate attempt and covers
	// resolution plus every resolved address. Zero means no deadline.
	//
	// The granularity is the microsecond; callers using coarser units
	// must convert before reaching this layer.
	Timeout time.Duration

	// TLSMode selects whether and how strictly to upgrade to TLS.
	TLSMode TLSMode

	// TLSVersions is the ordered list of allowed TLS protocol versions
	// ("TLSv1", "TLSv1.1", "TLSv1.2", "TLSv1.3"). Empty means the
	// built-in default. Unknown names are a configuration error.
	TLSVersions []string

	// TLSCiphersuites is the list of allowed cipher suites using
	// protocol-standard (IANA) names. Empty means the built-in default
	// priority-ordered list. Unknown names are silently dropped; if no
	// known name remains, that is a configuration error.
	TLSCiphersuites []string

	// CAFile is the path of the CA certificate file. Requires a TLS mode
	// of at least [TLSModeVerifyCA], and vice versa.
	CAFile string

	// CAPath is the path of a directory holding CA certificate files.
	CAPath string

	// ServerName is the host name used for certificate identity
	// verification under [TLSModeVerifyIdentity]. When empty, the
	// session builder fills in the candidate's host name.
	ServerName string
}

// validate checks every option invariant that needs no I/O: the CA/mode
// pairing, the TLS version names, and the cipher suite names. The session
// builder calls it for each candidate up front, so a violation is reported
// as [*ConfigError] without touching the network.
func (o *ConnectOptions) validate() error {
	if o.CAFile != "" && o.TLSMode < TLSModeVerifyCA {
		return &ConfigError{Msg: "CA file set but TLS mode is " + o.TLSMode.String()}
	}
	if o.TLSMode >= TLSModeVerifyCA && o.CAFile == "" {
		return &ConfigError{Msg: "TLS mode " + o.TLSMode.String() + " requires a CA file"}
	}
	if _, _, err := selectTLSVersions(o.TLSVersions); err != nil {
		return err
	}
	if _, _, err := selectCipherSuites(o.TLSCiphersuites); err != nil {
		return err
	}
	return nil
}
