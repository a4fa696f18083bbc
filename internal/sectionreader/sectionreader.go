// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package sectionreader provides bounded windows onto an io.ReaderAt,
// such as a member's data inside an archive file.
package sectionreader

import (
	"io"
	"math"
)

// Section returns a window of n bytes starting at off.
// Windows onto windows are flattened where the inner one fully contains
// the outer, so that reads go straight to the underlying reader.
func Section(r io.ReaderAt, off int64, n int64) *ReaderAt {
	for {
		var outer io.ReaderAt
		var outerOff, outerN int64
		switch t := r.(type) {
		case *io.SectionReader:
			outer, outerOff, outerN = t.Outer()
		case *ReaderAt:
			outer, outerOff, outerN = t.Outer()
		default:
			return &ReaderAt{r, off, n}
		}
		if off < 0 || n < 0 || off+n < off || off+n > outerN {
			return &ReaderAt{r, off, n}
		}
		r, off = outer, off+outerOff
	}
}

type ReaderAt struct {
	r      io.ReaderAt
	off, n int64
}

func (s *ReaderAt) Outer() (io.ReaderAt, int64, int64) { return s.r, s.off, s.n }

func (s *ReaderAt) Size() int64 { return s.n }

func (s *ReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	if s.n < 0 || s.off < 0 || off < 0 || s.off+off < 0 || off >= s.n {
		return 0, io.EOF
	}

	ourlimit := s.off + s.n
	if ourlimit < s.off { // integer overflow
		ourlimit = math.MaxInt64
	}

	off += s.off
	if max := ourlimit - off; int64(len(p)) > max {
		p = p[:max]
		n, err = s.r.ReadAt(p, off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return s.r.ReadAt(p, off)
}

// Bytes reads the whole window, which must be no larger than limit.
// A window that runs past the end of the underlying data
// gives io.ErrUnexpectedEOF.
func (s *ReaderAt) Bytes(limit int64) ([]byte, error) {
	if s.n > limit {
		return nil, ErrTooLarge
	}
	buf := make([]byte, s.n)
	n, err := s.ReadAt(buf, 0)
	if n == len(buf) {
		return buf, nil
	} else if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

// Reader returns a seekable reader over the window, positioned at its start.
func (s *ReaderAt) Reader() *io.SectionReader {
	return io.NewSectionReader(s.r, s.off, s.n)
}
