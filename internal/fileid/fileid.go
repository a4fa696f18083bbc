// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package fileid identifies an open file well enough to notice when it has
// been rewritten or replaced, so that anything derived from its contents
// can be cached against the ID.
package fileid

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

type ID [16]byte

func (id ID) String() string { return hex.EncodeToString(id[:]) }

// newID = (64 bits of inode number) + (64 bits of hash of the other fields)
func newID(ino uint64, fields ...int64) ID {
	var id ID
	binary.BigEndian.PutUint64(id[:], ino)
	h := xxhash.New()
	for _, f := range fields {
		binary.Write(h, binary.BigEndian, f)
	}
	binary.BigEndian.PutUint64(id[8:], h.Sum64())
	return id
}
