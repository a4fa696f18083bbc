// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build unix && !linux

package fileid

import (
	"os"

	"golang.org/x/sys/unix"
)

func fstat(f *os.File) (*unix.Stat_t, error) {
	conn, err := f.SyscallConn()
	if err != nil {
		return nil, err
	}
	var st unix.Stat_t
	var inerr error
	err = conn.Control(func(fd uintptr) {
		inerr = unix.Fstat(int(fd), &st)
	})
	if err != nil {
		return nil, err
	} else if inerr != nil {
		return nil, &os.PathError{Op: "fstat", Path: f.Name(), Err: inerr}
	}
	return &st, nil
}
