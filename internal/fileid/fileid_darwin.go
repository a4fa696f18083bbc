// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package fileid

import (
	"os"
)

func Get(f *os.File) (ID, error) {
	st, err := fstat(f)
	if err != nil {
		return ID{}, err
	}
	msec, mnsec := st.Mtim.Unix()
	bsec, bnsec := st.Btim.Unix()
	return newID(st.Ino, int64(st.Dev), st.Size, msec, mnsec, bsec, bnsec), nil
}
