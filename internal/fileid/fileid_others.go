// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build !unix

package fileid

import (
	"os"

	"github.com/cespare/xxhash/v2"
)

// Get falls back on the name, size and mtime where there is no inode.
func Get(f *os.File) (ID, error) {
	fi, err := f.Stat()
	if err != nil {
		return ID{}, err
	}
	return newID(xxhash.Sum64String(f.Name()), fi.Size(), fi.ModTime().UnixNano()), nil
}
