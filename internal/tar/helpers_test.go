// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package tar

import (
	gotar "archive/tar"
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"golang.org/x/tools/txtar"
)

var testTime = time.Unix(1700000000, 0)

type member struct {
	hdr  gotar.Header
	body string
}

func file(name, body string) member {
	return member{gotar.Header{Name: name, Mode: 0o644, ModTime: testTime, Typeflag: gotar.TypeReg, Size: int64(len(body))}, body}
}

// fromTxtar turns every file of a txtar archive into a member.
// Names ending in a slash become directories; a body of the form
// "-> target" becomes a symlink.
func fromTxtar(src string) []member {
	var ms []member
	for _, f := range txtar.Parse([]byte(src)).Files {
		m := file(f.Name, string(f.Data))
		switch {
		case strings.HasSuffix(f.Name, "/"):
			m.hdr.Typeflag, m.hdr.Mode, m.hdr.Size, m.body = gotar.TypeDir, 0o755, 0, ""
		case strings.HasPrefix(m.body, "-> "):
			m.hdr.Typeflag, m.hdr.Size = gotar.TypeSymlink, 0
			m.hdr.Linkname = strings.TrimSpace(strings.TrimPrefix(m.body, "-> "))
			m.body = ""
		}
		ms = append(ms, m)
	}
	return ms
}

// pack writes members with the standard library, forcing one format
// unless format is FormatUnknown.
func pack(t testing.TB, format gotar.Format, ms ...member) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gotar.NewWriter(&buf)
	for _, m := range ms {
		hdr := m.hdr
		if format != gotar.FormatUnknown {
			hdr.Format = format
		}
		if err := w.WriteHeader(&hdr); err != nil {
			t.Fatalf("WriteHeader(%q): %v", hdr.Name, err)
		}
		if _, err := w.Write([]byte(m.body)); err != nil {
			t.Fatalf("Write(%q): %v", hdr.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func packTxtar(t testing.TB, format gotar.Format, src string) []byte {
	t.Helper()
	return pack(t, format, fromTxtar(src)...)
}

// rawHeader builds a USTAR header block by hand, for fields that the
// standard library refuses to write.
func rawHeader(name string, flag byte, size int64) *[blockSize]byte {
	var b [blockSize]byte
	copy(b[0:100], name)
	copy(b[100:], "0000644\x00")
	copy(b[124:], fmt.Sprintf("%011o\x00", size))
	copy(b[136:], fmt.Sprintf("%011o\x00", testTime.Unix()))
	b[156] = flag
	copy(b[257:], magicUSTAR)
	copy(b[263:], versionUSTAR)
	setChecksum(&b)
	return &b
}

func setChecksum(b *[blockSize]byte) {
	unsigned, _ := (*block)(b).computeChecksum()
	copy(b[148:156], fmt.Sprintf("%06o\x00 ", unsigned))
}

// setBase256 stores n in a numeric field using the GNU binary encoding.
func setBase256(field []byte, n int64) {
	for i := len(field) - 1; i >= 0; i-- {
		field[i] = byte(n)
		n >>= 8
	}
	field[0] |= 0x80
}

// rawArchive concatenates headers and bodies, padding each to a block.
// The end-of-archive marker is not added.
func rawArchive(parts ...[]byte) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		buf.Write(p)
		buf.Write(make([]byte, blockPadding(int64(len(p)))))
	}
	return buf.Bytes()
}

func trailer() []byte { return make([]byte, 2*blockSize) }
