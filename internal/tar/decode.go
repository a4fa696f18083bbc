// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package tar

import (
	"fmt"
	"time"
)

// Decode decodes one raw header block without regard to its position.
//
// The all-zero block that terminates an archive yields ErrEmptyBlock.
// A bad checksum or a malformed numeric field yields an error wrapping
// ErrHeader. Unknown type flags are not an error: they decode to KindOther.
func Decode(raw *[blockSize]byte) (*Header, error) {
	blk := (*block)(raw)
	if *blk == zeroBlock {
		return nil, ErrEmptyBlock
	}

	var p parser
	v7 := blk.toV7()

	stored := p.parseOctal("checksum", v7.chksum())
	if p.err != nil {
		return nil, p.err
	}
	unsigned, signed := blk.computeChecksum()
	if stored != unsigned && stored != signed {
		return nil, fmt.Errorf("%w: checksum mismatch (stored %d, computed %d)", ErrHeader, stored, unsigned)
	}

	hdr := &Header{
		Typeflag: v7.typeFlag()[0],
		Name:     p.parseString(v7.name()),
		Linkname: p.parseString(v7.linkName()),
		Size:     p.parseNumeric("size", v7.size()),
		ModTime:  time.Unix(p.parseNumeric("mtime", v7.modTime()), 0),
		Format:   blk.getFormat(),
	}
	if p.err != nil {
		return nil, p.err
	}
	if hdr.Size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrHeader, hdr.Size)
	}

	// GNU headers keep timestamps where USTAR keeps the prefix.
	if hdr.Format == FormatUSTAR {
		if prefix := p.parseString(blk.toUSTAR().prefix()); prefix != "" {
			hdr.Name = prefix + "/" + hdr.Name
		}
	}

	hdr.Kind = classify(hdr.Typeflag, hdr.Name)
	return hdr, nil
}
