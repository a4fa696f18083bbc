// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build unix

package tar

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

var errNotRegular = errors.New("not a regular file")

// checkRegular rejects directories with EISDIR, as read(2) would.
func checkRegular(f *os.File) error {
	conn, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var st unix.Stat_t
	var inerr error
	err = conn.Control(func(fd uintptr) {
		inerr = unix.Fstat(int(fd), &st)
	})
	if err == nil {
		err = inerr
	}
	if err != nil {
		return &fs.PathError{Op: "fstat", Path: f.Name(), Err: err}
	}

	switch st.Mode & unix.S_IFMT {
	case unix.S_IFREG:
		return nil
	case unix.S_IFDIR:
		return &fs.PathError{Op: "read", Path: f.Name(), Err: unix.EISDIR}
	default:
		return &fs.PathError{Op: "read", Path: f.Name(), Err: errNotRegular}
	}
}
