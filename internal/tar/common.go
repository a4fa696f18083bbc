// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tar locates members of uncompressed tar archives in place.
//
// It borrows the block decoding of the standard [archive/tar] package,
// but instead of streaming members it walks the headers of an [io.ReaderAt]
// and reports where each member's data lives, so that a caller can serve
// that byte range straight out of the archive file.
// Nothing is indexed: every lookup is a fresh forward scan.
package tar

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrHeader       = errors.New("tar: invalid tar header")
	ErrEmptyBlock   = errors.New("tar: zero block")
	ErrTruncated    = errors.New("tar: archive truncated")
	ErrFieldTooLong = errors.New("tar: header field too long")

	// ErrSourceAbsent means the archive file does not exist.
	// Callers holding several candidate archives move on to the next one.
	ErrSourceAbsent = errors.New("tar: archive does not exist")

	// ErrSourceUnreadable wraps failures to open, stat or read an archive
	// that does exist, including paths that are not regular files.
	ErrSourceUnreadable = errors.New("tar: archive unreadable")

	// ErrNotFound means the archive was scanned to its end without a match.
	ErrNotFound = errors.New("tar: no such member")
)

// Type flags for Header.Typeflag.
const (
	// Type '0' indicates a regular file.
	TypeReg = '0'

	// Pre-POSIX archives leave the flag NUL; a trailing slash marks a directory.
	TypeRegA = '\x00'

	// Type '1' to '6' normally have no data, but any Size they declare is skipped.
	TypeLink    = '1' // Hard link
	TypeSymlink = '2' // Symbolic link
	TypeChar    = '3' // Character device node
	TypeBlock   = '4' // Block device node
	TypeDir     = '5' // Directory
	TypeFifo    = '6' // FIFO node

	// Type '7' is reserved.
	TypeCont = '7'

	// Type 'x' is used by the PAX format to store key-value records that
	// are only relevant to the next file.
	TypeXHeader = 'x'

	// Type 'g' is used by the PAX format to store key-value records that
	// are relevant to all subsequent files. They are skipped.
	TypeXGlobalHeader = 'g'

	// Types 'L' and 'K' are used by the GNU format for a meta file
	// used to store the path or link name for the next file.
	TypeGNULongName = 'L'
	TypeGNULongLink = 'K'
)

// Keywords for PAX extended header records.
const (
	paxPath     = "path"
	paxLinkpath = "linkpath"
	paxSize     = "size"
	paxMtime    = "mtime"
)

// Kind classifies a header by its type flag.
type Kind int

const (
	KindOther Kind = iota
	KindFile
	KindDirectory
	KindSymlink
	KindPAXHeader
	KindPAXGlobal
	KindGNULongPath
	KindGNULongLink
)

var kindNames = [...]string{
	KindOther:       "other",
	KindFile:        "file",
	KindDirectory:   "directory",
	KindSymlink:     "symlink",
	KindPAXHeader:   "pax-header",
	KindPAXGlobal:   "pax-global-header",
	KindGNULongPath: "gnu-long-path",
	KindGNULongLink: "gnu-long-link-path",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// isExtension reports whether headers of this kind only decorate the
// header that follows them, and are never yielded as entries.
func (k Kind) isExtension() bool {
	switch k {
	case KindPAXHeader, KindPAXGlobal, KindGNULongPath, KindGNULongLink:
		return true
	default:
		return false
	}
}

// classify maps a type flag onto the closed set of entry types.
// Every flag not named here lands in KindOther, with the raw byte kept
// alongside in Header.Typeflag so that it can be reported.
func classify(flag byte, name string) Kind {
	switch flag {
	case TypeReg:
		return KindFile
	case TypeRegA:
		if len(name) > 0 && name[len(name)-1] == '/' {
			return KindDirectory // Legacy archives use trailing slash for directories
		}
		return KindFile
	case TypeDir:
		return KindDirectory
	case TypeSymlink:
		return KindSymlink
	case TypeXHeader:
		return KindPAXHeader
	case TypeXGlobalHeader:
		return KindPAXGlobal
	case TypeGNULongName:
		return KindGNULongPath
	case TypeGNULongLink:
		return KindGNULongLink
	default:
		return KindOther
	}
}

// A Header is the decoded form of one 512-byte header block.
type Header struct {
	Name     string    // Name field, joined to the USTAR prefix when one is present
	Linkname string    // Target name of link (valid for TypeLink or TypeSymlink)
	Typeflag byte      // Raw type flag
	Kind     Kind      // Classification of Typeflag
	Size     int64     // Length of the data section that follows the header
	ModTime  time.Time // Modification time, whole seconds
	Format   Format
}

// TypeString names the entry kind, spelling out the raw flag for KindOther.
func (h *Header) TypeString() string { return typeString(h.Kind, h.Typeflag) }

func typeString(k Kind, flag byte) string {
	if k == KindOther {
		return fmt.Sprintf("other(%q)", flag)
	}
	return k.String()
}

// OffsetError records a failure while scanning the header at Offset.
type OffsetError struct {
	Offset int64
	Err    error
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("%v at offset %d", e.Err, e.Offset)
}

func (e *OffsetError) Unwrap() error { return e.Err }

// UnsupportedTypeError reports a member that is neither a regular file
// nor a directory, such as a symlink or a device node.
type UnsupportedTypeError struct {
	Path     string
	Kind     Kind
	Typeflag byte
}

func (e *UnsupportedTypeError) Error() string {
	return "tar: unknown file type: " + typeString(e.Kind, e.Typeflag)
}
