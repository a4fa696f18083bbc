// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package fileid

import (
	"os"

	"golang.org/x/sys/unix"
)

// Get uses statx to get access to the birth time of the file,
// which catches a file replaced by one of the same size and mtime.
func Get(f *os.File) (ID, error) {
	conn, err := f.SyscallConn()
	if err != nil {
		return ID{}, err
	}

	var stat unix.Statx_t
	var inerr error
	err = conn.Control(func(fd uintptr) {
		inerr = unix.Statx(int(fd), "",
			unix.AT_EMPTY_PATH|unix.AT_STATX_SYNC_AS_STAT,
			unix.STATX_INO|unix.STATX_SIZE|unix.STATX_MTIME|unix.STATX_BTIME,
			&stat)
	})
	if err != nil {
		return ID{}, err
	} else if inerr != nil {
		return ID{}, &os.PathError{Op: "statx", Path: f.Name(), Err: inerr}
	}

	return newID(stat.Ino,
		int64(stat.Dev_major)<<32|int64(stat.Dev_minor),
		int64(stat.Size),
		stat.Mtime.Sec, int64(stat.Mtime.Nsec),
		stat.Btime.Sec, int64(stat.Btime.Nsec),
	), nil
}
