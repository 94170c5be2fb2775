// SPDX-License-Identifier: GPL-3.0-or-later

package sessx

import "crypto/tls"

// Cipher suite priority tiers. Lower is stronger: when assembling the
// negotiated list, mandatory suites always precede approved ones, which
// precede the legacy-compatibility ones, regardless of the order in which
// the caller listed them.
const (
	tierMandatory = iota
	tierApproved1
	tierApproved2
	tierCompat
)

// cipherSuite maps a protocol-standard (IANA) suite name to the
// implementation identifier and its priority tier.
type cipherSuite struct {
	name  string
	id    uint16
	tier  int
	tls13 bool
}

// cipherSuites is the static priority-ordered table of suites this package
// understands, restricted to what [crypto/tls] implements. Entries appear
// in tier order and, within a tier, in preference order; the filtering in
// [selectCipherSuites] preserves this order.
//
// Note: TLS 1.3 suites are tracked separately because [crypto/tls] does
// not allow configuring them; they still participate in validation so
// that a caller list reduced to zero known names is detected.
var cipherSuites = [...]cipherSuite{
	{"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256", tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256, tierMandatory, false},
	{"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384", tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384, tierMandatory, false},
	{"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256", tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, tierMandatory, false},

	{"TLS_AES_128_GCM_SHA256", tls.TLS_AES_128_GCM_SHA256, tierApproved1, true},
	{"TLS_AES_256_GCM_SHA384", tls.TLS_AES_256_GCM_SHA384, tierApproved1, true},
	{"TLS_CHACHA20_POLY1305_SHA256", tls.TLS_CHACHA20_POLY1305_SHA256, tierApproved1, true},
	{"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384", tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384, tierApproved1, false},
	{"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256", tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256, tierApproved1, false},
	{"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256", tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256, tierApproved1, false},

	{"TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256", tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256, tierApproved2, false},
	{"TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256", tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256, tierApproved2, false},

	{"TLS_RSA_WITH_AES_128_GCM_SHA256", tls.TLS_RSA_WITH_AES_128_GCM_SHA256, tierCompat, false},
	{"TLS_RSA_WITH_AES_256_GCM_SHA384", tls.TLS_RSA_WITH_AES_256_GCM_SHA384, tierCompat, false},
	{"TLS_RSA_WITH_AES_256_CBC_SHA", tls.TLS_RSA_WITH_AES_256_CBC_SHA, tierCompat, false},
}

// selectCipherSuites filters the caller's cipher list against the static
// table and reassembles it preserving tier order, not caller order.
//
// An empty caller list selects the full default table. Unrecognized names
// are silently dropped; when zero known names remain the result is a
// [*ConfigError], raised before any I/O.
//
// The first return value holds the TLS 1.2-and-below suite identifiers to
// install into the TLS configuration; the second holds the names of the
// selected TLS 1.3 suites, which the TLS library negotiates on its own.
func selectCipherSuites(names []string) (v12 []uint16, v13 []string, err error) {
	requested := func(string) bool { return true }
	if len(names) > 0 {
		set := make(map[string]bool, len(names))
		for _, name := range names {
			set[name] = true
		}
		requested = func(name string) bool { return set[name] }
	}
	for _, suite := range cipherSuites {
		if !requested(suite.name) {
			continue
		}
		if suite.tls13 {
			v13 = append(v13, suite.name)
			continue
		}
		v12 = append(v12, suite.id)
	}
	if len(v12) == 0 && len(v13) == 0 {
		return nil, nil, &ConfigError{Msg: "no valid ciphers in the TLS cipher list"}
	}
	return v12, v13, nil
}

// tlsVersions maps configuration-layer TLS version names to the
// implementation identifiers, in increasing version order.
var tlsVersions = [...]struct {
	name string
	id   uint16
}{
	{"TLSv1", tls.VersionTLS10},
	{"TLSv1.1", tls.VersionTLS11},
	{"TLSv1.2", tls.VersionTLS12},
	{"TLSv1.3", tls.VersionTLS13},
}

// selectTLSVersions maps the caller's allowed-version list to the minimum
// and maximum enabled versions; the TLS library enables exactly the
// contiguous range between them.
//
// An empty list selects the default range (minimum TLSv1, no maximum).
// Unknown version names are a [*ConfigError].
func selectTLSVersions(names []string) (minVersion, maxVersion uint16, err error) {
	if len(names) == 0 {
		return tls.VersionTLS10, 0, nil
	}
	for _, name := range names {
		var id uint16
		for _, version := range tlsVersions {
			if version.name == name {
				id = version.id
				break
			}
		}
		if id == 0 {
			return 0, 0, &ConfigError{Msg: "unknown TLS version: " + name}
		}
		if minVersion == 0 || id < minVersion {
			minVersion = id
		}
		if id > maxVersion {
			maxVersion = id
		}
	}
	return minVersion, maxVersion, nil
}
