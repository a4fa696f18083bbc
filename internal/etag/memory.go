// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package etag

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"
)

// A MemoryStore keeps the most popular digests in memory.
type MemoryStore struct {
	mu sync.Mutex
	c  *tinylfu.T[Key, Digest]
}

// NewMemoryStore holds up to n digests.
func NewMemoryStore(n int) *MemoryStore {
	n = max(n, 1)
	return &MemoryStore{c: tinylfu.New[Key, Digest](n, n*10, keyHasher)}
}

func keyHasher(k Key) uint64 { return xxhash.Sum64(k[:]) }

func (m *MemoryStore) Load(k Key) (Digest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.c.Get(k)
	return d, ok, nil
}

func (m *MemoryStore) Save(k Key, d Digest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Add(k, d)
	return nil
}
