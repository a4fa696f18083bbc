// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package etag

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/pebble/v2"
	"github.com/fxamacker/cbor/v2"
)

// A DiskStore keeps digests in a pebble database, so that they survive
// a restart. Records are never deleted: a rewritten archive gets a new
// file ID, and so new keys.
type DiskStore struct {
	db *pebble.DB
}

type record struct {
	Digest   []byte `cbor:"1,keyasint"`
	Computed int64  `cbor:"2,keyasint"` // unix seconds
}

func diskKey(k Key) []byte { return append([]byte("etag/"), k[:]...) }

// OpenDiskStore opens or creates the database in dir. The database's own
// messages go to logger at debug level, or to slog.Default() if it is nil.
func OpenDiskStore(dir string, logger *slog.Logger) (*DiskStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := pebble.Open(dir, &pebble.Options{Logger: pebbleLogger{logger.With("component", "pebble")}})
	if err != nil {
		return nil, fmt.Errorf("open digest store: %w", err)
	}
	return &DiskStore{db: db}, nil
}

// pebbleLogger adapts slog to the database's printf-style logger.
type pebbleLogger struct{ l *slog.Logger }

func (p pebbleLogger) Infof(format string, args ...any) {
	p.l.Debug("pebbleInfo", "text", fmt.Sprintf(format, args...))
}

func (p pebbleLogger) Errorf(format string, args ...any) {
	p.l.Warn("pebbleError", "text", fmt.Sprintf(format, args...))
}

func (p pebbleLogger) Fatalf(format string, args ...any) {
	p.l.Error("pebbleFatal", "text", fmt.Sprintf(format, args...))
	os.Exit(1)
}

func (s *DiskStore) Close() error { return s.db.Close() }

func (s *DiskStore) Load(k Key) (Digest, bool, error) {
	val, closer, err := s.db.Get(diskKey(k))
	if errors.Is(err, pebble.ErrNotFound) {
		return Digest{}, false, nil
	} else if err != nil {
		return Digest{}, false, err
	}
	defer closer.Close()

	var rec record
	if err := cbor.Unmarshal(val, &rec); err != nil || len(rec.Digest) != len(Digest{}) {
		return Digest{}, false, nil // unreadable records are recomputed
	}
	var d Digest
	copy(d[:], rec.Digest)
	return d, true, nil
}

func (s *DiskStore) Save(k Key, d Digest) error {
	val, err := cbor.Marshal(record{Digest: d[:], Computed: time.Now().Unix()})
	if err != nil {
		return err
	}
	return s.db.Set(diskKey(k), val, pebble.NoSync)
}
