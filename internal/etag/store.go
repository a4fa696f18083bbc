// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package etag

import (
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/elliotnunn/tarmount/internal/fileid"
)

// Key names one member of one version of an archive file.
type Key [32]byte

func MakeKey(id fileid.ID, off, size int64) Key {
	var k Key
	copy(k[:], id[:])
	binary.BigEndian.PutUint64(k[16:], uint64(off))
	binary.BigEndian.PutUint64(k[24:], uint64(size))
	return k
}

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// A Store remembers digests. Implementations must be safe for concurrent use.
type Store interface {
	Load(Key) (Digest, bool, error)
	Save(Key, Digest) error
}

// Tiered consults the stores in order, copying a hit into the stores
// before it, and saves to them all.
func Tiered(stores ...Store) Store { return tiered(stores) }

type tiered []Store

func (t tiered) Load(k Key) (Digest, bool, error) {
	for i, s := range t {
		d, ok, err := s.Load(k)
		if err != nil {
			return Digest{}, false, err
		} else if !ok {
			continue
		}
		for _, faster := range t[:i] {
			if err := faster.Save(k, d); err != nil {
				return Digest{}, false, err
			}
		}
		return d, true, nil
	}
	return Digest{}, false, nil
}

func (t tiered) Save(k Key, d Digest) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Save(k, d))
	}
	return errors.Join(errs...)
}
