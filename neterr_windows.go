//go:build windows

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/errclass/windows.go
//

package sessx

import (
	"errors"

	"golang.org/x/sys/windows"
)

// errnoKind maps the errnos produced by failed connect attempts to the
// coarse kinds reported by [*NetworkError.Kind]. Returns an empty string
// when the error does not wrap a known errno.
func errnoKind(err error) string {
	switch {
	case errors.Is(err, windows.WSAECONNREFUSED):
		return "refused"
	case errors.Is(err, windows.WSAECONNRESET), errors.Is(err, windows.WSAECONNABORTED):
		return "reset"
	case errors.Is(err, windows.WSAEHOSTUNREACH), errors.Is(err, windows.WSAENETUNREACH):
		return "unreachable"
	case errors.Is(err, windows.WSAETIMEDOUT):
		return "timeout"
	case errors.Is(err, windows.WSAENETDOWN):
		return "netdown"
	default:
		return ""
	}
}
