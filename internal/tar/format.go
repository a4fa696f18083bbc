// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tar

// Format is a best guess at the header layout of a block.
// Only the distinctions that change how a header is decoded are kept.
type Format int

const (
	// FormatUnknown is reported for blocks whose magic is not recognised.
	FormatUnknown Format = iota

	// FormatV7 is the original Unix V7 layout, with no magic at all.
	FormatV7

	// FormatUSTAR is POSIX.1-1988 USTAR, which pax archives also use.
	// Long names may be split across the prefix and name fields.
	FormatUSTAR

	// FormatGNU is the GNU layout. Its prefix area holds timestamps instead.
	FormatGNU
)

var formatNames = [...]string{"<unknown>", "V7", "USTAR", "GNU"}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return formatNames[0]
	}
	return formatNames[f]
}

// Magics used to identify various formats.
const (
	magicGNU, versionGNU     = "ustar ", " \x00"
	magicUSTAR, versionUSTAR = "ustar\x00", "00"
)

// Size constants from various tar specifications.
const (
	blockSize = 512 // Size of each block in a tar stream

	// maxSpecialFileSize bounds the payload of pax and GNU long name records.
	maxSpecialFileSize = 1 << 20
)

// blockPadding computes the number of bytes needed to pad offset up to the
// nearest block edge where 0 <= n < blockSize.
func blockPadding(offset int64) (n int64) {
	return -offset & (blockSize - 1)
}

type block [blockSize]byte

var zeroBlock block

// Convert block to any number of formats.
func (b *block) toV7() *headerV7       { return (*headerV7)(b) }
func (b *block) toUSTAR() *headerUSTAR { return (*headerUSTAR)(b) }

// getFormat guesses the layout from the magic and version fields.
// It does not look at the checksum.
func (b *block) getFormat() Format {
	magic := string(b.toUSTAR().magic())
	version := string(b.toUSTAR().version())
	switch {
	case magic == magicUSTAR:
		return FormatUSTAR
	case magic == magicGNU && version == versionGNU:
		return FormatGNU
	case magic == "\x00\x00\x00\x00\x00\x00":
		return FormatV7
	default:
		return FormatUnknown
	}
}

// computeChecksum computes the checksum for the header block.
// POSIX specifies a sum of the unsigned byte values, but the Sun tar used
// signed byte values.
// We compute and return both.
func (b *block) computeChecksum() (unsigned, signed int64) {
	for i, c := range b {
		if 148 <= i && i < 156 {
			c = ' ' // Treat the checksum field itself as all spaces.
		}
		unsigned += int64(c)
		signed += int64(int8(c))
	}
	return unsigned, signed
}

type headerV7 [blockSize]byte

func (h *headerV7) name() []byte     { return h[000:][:100] }
func (h *headerV7) size() []byte     { return h[124:][:12] }
func (h *headerV7) modTime() []byte  { return h[136:][:12] }
func (h *headerV7) chksum() []byte   { return h[148:][:8] }
func (h *headerV7) typeFlag() []byte { return h[156:][:1] }
func (h *headerV7) linkName() []byte { return h[157:][:100] }

type headerUSTAR [blockSize]byte

func (h *headerUSTAR) magic() []byte   { return h[257:][:6] }
func (h *headerUSTAR) version() []byte { return h[263:][:2] }
func (h *headerUSTAR) prefix() []byte  { return h[345:][:155] }
