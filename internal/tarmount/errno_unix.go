// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build unix

package tarmount

import (
	"errors"

	"golang.org/x/sys/unix"
)

// errnoName gives the symbolic name of a system error, such as EACCES.
func errnoName(err error) string {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return unix.ErrnoName(errno)
	}
	return ""
}
