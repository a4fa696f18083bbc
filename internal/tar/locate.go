// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package tar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/elliotnunn/tarmount/internal/sectionreader"
)

// A Location says where a member's data lives inside an archive file.
type Location struct {
	Archive  string // Path of the archive file
	Path     string // Resolved member path
	Kind     Kind
	Typeflag byte
	Offset   int64 // First byte of the data
	Size     int64 // Length of the data
	ModTime  time.Time
	Linkname string
}

// Unsupported returns an *UnsupportedTypeError unless the member is a
// regular file or a directory.
func (l *Location) Unsupported() error {
	switch l.Kind {
	case KindFile, KindDirectory:
		return nil
	default:
		return &UnsupportedTypeError{Path: l.Path, Kind: l.Kind, Typeflag: l.Typeflag}
	}
}

// Locate opens the archive file read-only, scans it for target and closes it.
//
// A missing archive yields an error wrapping ErrSourceAbsent, and a scan that
// reaches the end without a match yields one wrapping ErrNotFound. Callers
// with several candidate archives treat both as a reason to move on.
// Anything else is fatal: ErrSourceUnreadable for an archive that exists but
// cannot be read as a regular file, or an *OffsetError for a corrupt one.
func Locate(ctx context.Context, archive, target string) (Location, error) {
	f, err := openArchive(archive)
	if err != nil {
		return Location{}, err
	}
	defer f.Close()

	e, ok, err := FindContext(ctx, f, target)
	if err != nil {
		return Location{}, fmt.Errorf("%s: %w", archive, err)
	} else if !ok {
		return Location{}, fmt.Errorf("%w: %q in %s", ErrNotFound, target, archive)
	}

	return Location{
		Archive:  archive,
		Path:     e.Path,
		Kind:     e.Kind,
		Typeflag: e.Typeflag,
		Offset:   e.DataOffset,
		Size:     e.Size,
		ModTime:  e.ModTime,
		Linkname: e.Linkname,
	}, nil
}

// A Member is an open window onto one member's data.
// Closing it closes the archive file.
type Member struct {
	*io.SectionReader
	f *os.File
}

func (m *Member) Close() error { return m.f.Close() }

// File is the underlying archive file, for identifying it.
func (m *Member) File() *os.File { return m.f }

// Open reopens the archive and returns the member's data.
// An archive that has shrunk below the end of the member is reported as
// truncated instead of yielding a short read later.
func (l *Location) Open() (*Member, error) {
	f, err := openArchive(l.Archive)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, unreadable(err)
	}
	if end, ok := addOffset(l.Offset, l.Size); !ok || end > fi.Size() {
		f.Close()
		return nil, fmt.Errorf("%s: %w", l.Archive, &OffsetError{l.Offset, ErrTruncated})
	}
	return &Member{sectionreader.Section(f, l.Offset, l.Size).Reader(), f}, nil
}

func openArchive(name string) (*os.File, error) {
	f, err := os.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceAbsent, name)
	} else if err != nil {
		return nil, unreadable(err)
	}
	if err := checkRegular(f); err != nil {
		f.Close()
		return nil, unreadable(err)
	}
	return f, nil
}

func unreadable(err error) error {
	return fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
}
