// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build unix && !linux && !darwin

package fileid

import (
	"os"
)

func Get(f *os.File) (ID, error) {
	st, err := fstat(f)
	if err != nil {
		return ID{}, err
	}
	return newID(uint64(st.Ino), int64(st.Dev), int64(st.Size), int64(st.Mtim.Sec), int64(st.Mtim.Nsec)), nil
}
