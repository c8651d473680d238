package tpsdb

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// pageHeaderSize is the fixed header prefixing every page.
	pageHeaderSize = 13

	// refShift converts page refs to byte offsets: refs address
	// 0x100-byte units.
	refShift = 8
)

// Page is one node of the directory tree. A page's identity is its start
// ref, not an object reference; lookups always go back through the
// PageList by address.
type Page struct {
	StartRef uint32
	// EndRef is exclusive: StartRef + the number of 0x100-byte units the
	// page spans.
	EndRef         uint32
	Size           uint16
	UnabridgedSize uint16
	RecordCount    uint16
	HierarchyLevel uint8

	// Data is the decrypted, RLE-expanded record stream.
	Data []byte
}

// IsLeaf reports whether the page holds records rather than child slots.
func (p *Page) IsLeaf() bool { return p.HierarchyLevel == 0 }

// parsePage decodes the 13-byte page header stored at ref<<8 and expands
// the payload when the page is stored abridged (size != uncompressed
// size).
func parsePage(ref uint32, buf []byte) (*Page, error) {
	if len(buf) < pageHeaderSize {
		return nil, errors.Wrapf(ErrFormat, "page 0x%X: header truncated", ref)
	}
	addr := binary.LittleEndian.Uint32(buf[0:])
	size := binary.LittleEndian.Uint16(buf[4:])
	uncompressed := binary.LittleEndian.Uint16(buf[6:])
	unabridged := binary.LittleEndian.Uint16(buf[8:])
	recordCount := binary.LittleEndian.Uint16(buf[10:])
	level := buf[12]

	if addr != ref<<refShift {
		return nil, errors.Wrapf(ErrFormat, "page 0x%X: stored address 0x%X does not match", ref, addr)
	}
	if int(size) < pageHeaderSize || int(size) > len(buf) {
		return nil, errors.Wrapf(ErrFormat, "page 0x%X: size %d out of range", ref, size)
	}
	if uncompressed < pageHeaderSize {
		return nil, errors.Wrapf(ErrFormat, "page 0x%X: uncompressed size %d below header size", ref, uncompressed)
	}

	p := &Page{
		StartRef:       ref,
		EndRef:         ref + (uint32(size)+0xFF)>>refShift,
		Size:           size,
		UnabridgedSize: unabridged,
		RecordCount:    recordCount,
		HierarchyLevel: level,
	}
	body := buf[pageHeaderSize:size]
	if size == uncompressed {
		p.Data = append([]byte(nil), body...)
		return p, nil
	}
	data, err := expandRLE(body, int(uncompressed)-pageHeaderSize)
	if err != nil {
		return nil, errors.Wrapf(err, "page 0x%X", ref)
	}
	p.Data = data
	return p, nil
}

// expandRLE undoes the abridged-page encoding: a literal run (count then
// bytes), then while the output is still short, a count repeating the
// last emitted byte, alternating until the declared uncompressed length
// is reached. Counts with the high bit set extend into the following
// byte (low 7 bits | next<<7). A zero literal count is malformed.
func expandRLE(in []byte, want int) ([]byte, error) {
	out := make([]byte, 0, want)
	pos := 0
	next := func() (int, error) {
		if pos >= len(in) {
			return 0, errors.Wrap(ErrFormat, "run length truncated")
		}
		c := int(in[pos])
		pos++
		if c > 0x7F {
			if pos >= len(in) {
				return 0, errors.Wrap(ErrFormat, "run length truncated")
			}
			c = (c & 0x7F) | int(in[pos])<<7
			pos++
		}
		return c, nil
	}
	for len(out) < want {
		n, err := next()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, errors.Wrap(ErrFormat, "zero-length literal run")
		}
		if pos+n > len(in) || len(out)+n > want {
			return nil, errors.Wrap(ErrFormat, "literal run overruns page")
		}
		out = append(out, in[pos:pos+n]...)
		pos += n
		if len(out) >= want {
			break
		}
		r, err := next()
		if err != nil {
			return nil, err
		}
		if len(out)+r > want {
			return nil, errors.Wrap(ErrFormat, "repeat run overruns page")
		}
		last := out[len(out)-1]
		for i := 0; i < r; i++ {
			out = append(out, last)
		}
	}
	return out, nil
}
