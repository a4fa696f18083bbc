// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package etag

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zeebo/blake3"
)

func tempFile(t *testing.T, data string) *os.File {
	t.Helper()
	name := filepath.Join(t.TempDir(), "a.tar")
	if err := os.WriteFile(name, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestParseMethod(t *testing.T) {
	cases := map[string]Method{"": MethodHash, "hash": MethodHash, "simple": MethodSimple, "none": MethodNone, "false": MethodNone}
	for s, expect := range cases {
		if got, err := ParseMethod(s); got != expect || err != nil {
			t.Errorf("ParseMethod(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := ParseMethod("md5"); err == nil {
		t.Error("expected an error for an unknown method")
	}
}

func TestSimple(t *testing.T) {
	f := tempFile(t, "xxxhello")
	tag, err := New(MethodSimple, nil).Tag(f, 3, 5, time.UnixMilli(0x1234))
	if err != nil {
		t.Fatal(err)
	}
	if tag != `"5-1234"` {
		t.Errorf("expected \"5-1234\", got %s", tag)
	}
	if !regexp.MustCompile(`^".+-.+"$`).MatchString(tag) {
		t.Errorf("tag %s has the wrong shape", tag)
	}
}

func TestNone(t *testing.T) {
	f := tempFile(t, "hello")
	if tag, err := New(MethodNone, nil).Tag(f, 0, 5, time.Now()); tag != "" || err != nil {
		t.Errorf("expected no tag, got %q %v", tag, err)
	}
}

func TestHash(t *testing.T) {
	f := tempFile(t, "xxxhelloyyy")
	tag, err := New(MethodHash, NewMemoryStore(10)).Tag(f, 3, 5, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	sum := blake3.Sum256([]byte("hello"))
	var d Digest
	copy(d[:], sum[:])
	if expect := `"` + d.String() + `"`; tag != expect {
		t.Errorf("expected %s, got %s", expect, tag)
	}

	other, _ := New(MethodHash, nil).Tag(f, 0, 5, time.Now())
	if other == tag {
		t.Errorf("different ranges share tag %s", tag)
	}
}

type countingStore struct {
	Store
	loads, saves atomic.Int32
}

func (c *countingStore) Load(k Key) (Digest, bool, error) {
	c.loads.Add(1)
	return c.Store.Load(k)
}

func (c *countingStore) Save(k Key, d Digest) error {
	c.saves.Add(1)
	return c.Store.Save(k, d)
}

func TestHashCached(t *testing.T) {
	f := tempFile(t, "hello")
	store := &countingStore{Store: NewMemoryStore(10)}
	tagger := New(MethodHash, store)

	var wg sync.WaitGroup
	tags := make([]string, 8)
	for i := range tags {
		wg.Go(func() {
			tags[i], _ = tagger.Tag(f, 0, 5, time.Now())
		})
	}
	wg.Wait()
	for _, tag := range tags {
		if tag != tags[0] || tag == "" {
			t.Errorf("inconsistent tags %q", tags)
			break
		}
	}
	if n := store.saves.Load(); n != 1 {
		t.Errorf("expected one digest to be saved, got %d", n)
	}
}

func TestDiskStore(t *testing.T) {
	dir := t.TempDir()
	k := Key{1, 2, 3}
	d := Digest{4, 5, 6}

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := OpenDiskStore(dir, logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Load(k); ok || err != nil {
		t.Errorf("expected an empty store, got %v %v", ok, err)
	}
	if err := s.Save(k, d); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = OpenDiskStore(dir, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, ok, err := s.Load(k)
	if !ok || err != nil || got != d {
		t.Errorf("expected the digest to survive reopening, got %v %v %v", got, ok, err)
	}

	// The database reports through slog rather than straight to stderr.
	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	if logs.Len() == 0 {
		t.Fatal("expected database messages in the log")
	}
	for _, line := range lines {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Errorf("not a JSON record: %q", line)
		} else if rec["component"] != "pebble" || rec["text"] == nil {
			t.Errorf("unexpected record %v", rec)
		}
	}
}

func TestTiered(t *testing.T) {
	fast, slow := NewMemoryStore(10), NewMemoryStore(10)
	k, d := Key{9}, Digest{8}
	slow.Save(k, d)

	s := Tiered(fast, slow)
	if got, ok, _ := s.Load(k); !ok || got != d {
		t.Fatalf("expected a hit from the slow store, got %v %v", got, ok)
	}
	if got, ok, _ := fast.Load(k); !ok || got != d {
		t.Errorf("expected the hit to be copied to the fast store, got %v %v", got, ok)
	}

	k2 := Key{7}
	s.Save(k2, d)
	for i, store := range []Store{fast, slow} {
		if _, ok, _ := store.Load(k2); !ok {
			t.Errorf("store %d missed a save", i)
		}
	}
}
