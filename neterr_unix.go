//go:build unix

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/errclass/unix.go
//

package sessx

import (
	"errors"

	"golang.org/x/sys/unix"
)

// errnoKind maps the errnos produced by failed connect attempts to the
// coarse kinds reported by [*NetworkError.Kind]. Returns an empty string
// when the error does not wrap a known errno.
func errnoKind(err error) string {
	switch {
	case errors.Is(err, unix.ECONNREFUSED):
		return "refused"
	case errors.Is(err, unix.ECONNRESET), errors.Is(err, unix.ECONNABORTED):
		return "reset"
	case errors.Is(err, unix.EHOSTUNREACH), errors.Is(err, unix.ENETUNREACH):
		return "unreachable"
	case errors.Is(err, unix.ETIMEDOUT):
		return "timeout"
	case errors.Is(err, unix.ENETDOWN):
		return "netdown"
	default:
		return ""
	}
}
