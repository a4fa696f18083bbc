// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package tar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"time"

	"github.com/elliotnunn/tarmount/internal/sectionreader"
)

// An Entry is a member header resolved against any extension records that
// preceded it, together with its position in the archive.
type Entry struct {
	Header
	Path         string // Name after pax and GNU long names are applied
	HeaderOffset int64  // Start of the header block
	DataOffset   int64  // Start of the data, always HeaderOffset+512
	BlockSpan    int64  // Length of the data rounded up to whole blocks
}

// Next is the offset of the header that follows this entry.
func (e *Entry) Next() int64 { return e.DataOffset + e.BlockSpan }

// Entries walks the archive from offset zero, yielding every member that is
// not itself an extension record. The sequence ends cleanly at the
// end-of-archive marker or at the end of the data, and otherwise stops after
// yielding one error.
func Entries(r io.ReaderAt) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		s := scanner{r: r}
		for {
			e, err := s.next(context.Background())
			if err == io.EOF {
				return
			} else if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Find returns the first entry whose resolved path equals target exactly.
// If the archive ends first it returns false and a nil error.
func Find(r io.ReaderAt, target string) (Entry, bool, error) {
	return FindContext(context.Background(), r, target)
}

// FindContext is like Find but gives up with ctx.Err() once ctx is done.
// The context is checked before every block read.
func FindContext(ctx context.Context, r io.ReaderAt, target string) (Entry, bool, error) {
	s := scanner{r: r}
	for {
		e, err := s.next(ctx)
		if err == io.EOF {
			return Entry{}, false, nil
		} else if err != nil {
			return Entry{}, false, err
		}
		if e.Path == target {
			return e, true, nil
		}
	}
}

type scanner struct {
	r   io.ReaderAt
	off int64
	ext pending
	blk [blockSize]byte
}

// pending is what extension records have said about the next real header.
// Each field is replaced by a later record of the same kind.
type pending struct {
	name, linkname       string
	hasName, hasLinkname bool
	size                 int64
	hasSize              bool
	modTime              time.Time
	hasModTime           bool
}

// next returns the next non-extension entry, or io.EOF at the end.
func (s *scanner) next(ctx context.Context) (Entry, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Entry{}, err
		}

		hdrOff := s.off
		n, err := s.r.ReadAt(s.blk[:], hdrOff)
		if n < blockSize {
			switch {
			case err != nil && err != io.EOF:
				return Entry{}, &OffsetError{hdrOff, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)}
			case n == 0:
				return Entry{}, io.EOF // archive without an end marker
			default:
				return Entry{}, &OffsetError{hdrOff, ErrTruncated}
			}
		}

		hdr, err := Decode(&s.blk)
		if err == ErrEmptyBlock {
			return Entry{}, io.EOF
		} else if err != nil {
			return Entry{}, &OffsetError{hdrOff, err}
		}

		dataOff, ok := addOffset(hdrOff, blockSize)
		if !ok {
			return Entry{}, &OffsetError{hdrOff, fmt.Errorf("%w: offset overflows int64", ErrHeader)}
		}

		if hdr.Kind.isExtension() {
			_, next, err := extent(dataOff, hdr.Size)
			if err != nil {
				return Entry{}, &OffsetError{hdrOff, err}
			}
			if err := s.extend(hdr, dataOff); err != nil {
				return Entry{}, &OffsetError{hdrOff, err}
			}
			s.off = next
			continue
		}

		s.ext.apply(hdr)
		s.ext = pending{}

		// Every type, even a directory or link, is followed by Size bytes.
		span, next, err := extent(dataOff, hdr.Size)
		if err != nil {
			return Entry{}, &OffsetError{hdrOff, err}
		}
		s.off = next

		return Entry{
			Header:       *hdr,
			Path:         hdr.Name,
			HeaderOffset: hdrOff,
			DataOffset:   dataOff,
			BlockSpan:    span,
		}, nil
	}
}

// extent rounds size up to whole blocks and finds the following header.
func extent(dataOff, size int64) (span, next int64, err error) {
	span, ok := addOffset(size, blockPadding(size))
	if ok {
		next, ok = addOffset(dataOff, span)
	}
	if !ok {
		return 0, 0, fmt.Errorf("%w: size %d overflows int64", ErrHeader, size)
	}
	return span, next, nil
}

// extend records what an extension header says about the next header.
// An empty long name leaves the header's own name in place.
func (s *scanner) extend(hdr *Header, dataOff int64) error {
	if hdr.Kind == KindPAXGlobal {
		return nil // not applied, and its payload is never read
	}

	payload, err := readSpecialFile(s.r, dataOff, hdr.Size)
	if err != nil {
		return err
	}

	var p parser
	switch hdr.Kind {
	case KindGNULongPath:
		if name := p.parseString(payload); name != "" {
			s.ext.name, s.ext.hasName = name, true
		}
	case KindGNULongLink:
		if name := p.parseString(payload); name != "" {
			s.ext.linkname, s.ext.hasLinkname = name, true
		}
	case KindPAXHeader:
		return s.ext.parsePAX(string(payload))
	}
	return nil
}

// readSpecialFile reads exactly size bytes of an extension payload.
func readSpecialFile(r io.ReaderAt, off, size int64) ([]byte, error) {
	buf, err := sectionreader.Section(r, off, size).Bytes(maxSpecialFileSize)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, sectionreader.ErrTooLarge):
		return nil, fmt.Errorf("%w: %d byte extension record", ErrFieldTooLong, size)
	case err == io.ErrUnexpectedEOF:
		return nil, ErrTruncated
	default:
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
}

// parsePAX applies the records of interest and ignores the rest.
// An empty value leaves the field in the header as it was.
func (ext *pending) parsePAX(sbuf string) error {
	for len(sbuf) > 0 {
		key, value, residual, err := parsePAXRecord(sbuf)
		if err != nil {
			return fmt.Errorf("%w: malformed pax record", err)
		}
		sbuf = residual
		if value == "" {
			continue
		}

		switch key {
		case paxPath:
			ext.name, ext.hasName = value, true
		case paxLinkpath:
			ext.linkname, ext.hasLinkname = value, true
		case paxSize:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("%w: pax size %q", ErrHeader, value)
			}
			ext.size, ext.hasSize = n, true
		case paxMtime:
			t, err := parsePAXTime(value)
			if err != nil {
				return fmt.Errorf("%w: pax mtime %q", ErrHeader, value)
			}
			ext.modTime, ext.hasModTime = t, true
		}
	}
	return nil
}

func (ext *pending) apply(hdr *Header) {
	if ext.hasName {
		hdr.Name = ext.name
	}
	if ext.hasLinkname {
		hdr.Linkname = ext.linkname
	}
	if ext.hasSize {
		hdr.Size = ext.size
	}
	if ext.hasModTime {
		hdr.ModTime = ext.modTime
	}
	hdr.Kind = classify(hdr.Typeflag, hdr.Name)
}

// IsCorrupt reports whether err means the archive could not be parsed,
// as opposed to being absent, unreadable or merely lacking a member.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrHeader) || errors.Is(err, ErrTruncated) || errors.Is(err, ErrFieldTooLong)
}
