// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package etag computes entity tags for archive members.
package etag

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/elliotnunn/tarmount/internal/fileid"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"
)

// Method selects how an entity tag is derived.
type Method string

const (
	MethodHash   Method = "hash"   // digest of the member's bytes
	MethodSimple Method = "simple" // size and modification time
	MethodNone   Method = "none"   // no tag at all
)

// ParseMethod accepts the method names, plus "" for the default of
// MethodHash and "false" as a synonym for MethodNone.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", string(MethodHash):
		return MethodHash, nil
	case string(MethodSimple):
		return MethodSimple, nil
	case string(MethodNone), "false":
		return MethodNone, nil
	default:
		return "", fmt.Errorf("unknown etag method %q", s)
	}
}

// Simple formats the tag from size and mtime, as hex "size-milliseconds".
func Simple(size int64, modTime time.Time) string {
	return fmt.Sprintf(`"%x-%x"`, size, modTime.UnixMilli())
}

// A Tagger hands out entity tags. Digests are computed at most once per
// member of a given archive file, however many requests arrive together.
// A Tagger is safe for concurrent use by multiple goroutines.
type Tagger struct {
	method Method
	store  Store
	group  singleflight.Group
}

// New returns a Tagger. The store may be nil for methods other than
// MethodHash, or to digest on every request.
func New(method Method, store Store) *Tagger {
	return &Tagger{method: method, store: store}
}

func (t *Tagger) Method() Method { return t.method }

// Tag returns the quoted ETag value for size bytes at off in the archive f,
// or "" for MethodNone.
func (t *Tagger) Tag(f *os.File, off, size int64, modTime time.Time) (string, error) {
	switch t.method {
	case MethodNone:
		return "", nil
	case MethodSimple:
		return Simple(size, modTime), nil
	}

	id, err := fileid.Get(f)
	if err != nil {
		return "", err
	}
	key := MakeKey(id, off, size)

	v, err, _ := t.group.Do(key.String(), func() (any, error) {
		if t.store != nil {
			if d, ok, err := t.store.Load(key); err != nil {
				return nil, err
			} else if ok {
				return d, nil
			}
		}
		d, err := digest(io.NewSectionReader(f, off, size))
		if err != nil {
			return nil, err
		}
		if t.store != nil {
			if err := t.store.Save(key, d); err != nil {
				return nil, err
			}
		}
		return d, nil
	})
	if err != nil {
		return "", err
	}
	return `"` + v.(Digest).String() + `"`, nil
}

// Digest is a truncated BLAKE3 hash.
type Digest [16]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

func digest(r io.Reader) (Digest, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, err
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}
