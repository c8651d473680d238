package tpsdb

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// headerRegion is the fixed slice of the file the header occupies.
	headerRegion = 0x200
	// headerFixed is the size of the header before the block arrays.
	headerFixed = 0x20
)

// topSpeedMark must appear at offset 0x0E of every TPS file. After a
// decryption pass with the wrong password it won't, which is the only
// signal the format gives that the password was wrong.
var topSpeedMark = []byte{'t', 'O', 'p', 'S', 0x00, 0x00}

var (
	// ErrFormat marks any structural violation of the TPS layout.
	ErrFormat = errors.New("malformed TopSpeed file")

	// ErrBadKeys is returned when the header mark does not match after
	// decryption. A wrong password and a corrupt file are
	// indistinguishable at this layer.
	ErrBadKeys = errors.Wrap(ErrFormat, "bad cryptographic keys")
)

// FileHeader is the decoded 0x200-byte file header. All fields are
// little-endian on disk except LastIssuedRow, which the format stores
// big-endian.
type FileHeader struct {
	Offset            uint32
	Size              uint16
	FileSize          uint32
	AllocatedFileSize uint32
	LastIssuedRow     uint32
	ChangeCount       uint32
	PageRootRef       uint32

	// BlockStartRef/BlockEndRef describe every allocated block's address
	// range, in page-ref units. Both arrays hold (Size-0x20)/8 entries.
	BlockStartRef []uint32
	BlockEndRef   []uint32
}

// parseHeader decodes the first 0x200 decrypted bytes of the file.
func parseHeader(buf []byte) (*FileHeader, error) {
	if len(buf) < headerRegion {
		return nil, errors.Wrapf(ErrFormat, "header region truncated to %d bytes", len(buf))
	}
	if !bytes.Equal(buf[0x0E:0x14], topSpeedMark) {
		return nil, ErrBadKeys
	}
	h := &FileHeader{
		Offset:            binary.LittleEndian.Uint32(buf[0x00:]),
		Size:              binary.LittleEndian.Uint16(buf[0x04:]),
		FileSize:          binary.LittleEndian.Uint32(buf[0x06:]),
		AllocatedFileSize: binary.LittleEndian.Uint32(buf[0x0A:]),
		LastIssuedRow:     binary.BigEndian.Uint32(buf[0x14:]),
		ChangeCount:       binary.LittleEndian.Uint32(buf[0x18:]),
		PageRootRef:       binary.LittleEndian.Uint32(buf[0x1C:]),
	}
	if h.Size < headerFixed || (h.Size-headerFixed)%8 != 0 {
		return nil, errors.Wrapf(ErrFormat, "header size 0x%X yields no integral block array", h.Size)
	}
	if int(h.Size) > headerRegion {
		return nil, errors.Wrapf(ErrFormat, "header size 0x%X exceeds the 0x%X header region", h.Size, headerRegion)
	}
	n := int(h.Size-headerFixed) / 8
	h.BlockStartRef = make([]uint32, n)
	h.BlockEndRef = make([]uint32, n)
	pos := headerFixed
	for i := range h.BlockStartRef {
		h.BlockStartRef[i] = binary.LittleEndian.Uint32(buf[pos:])
		pos += 4
	}
	for i := range h.BlockEndRef {
		h.BlockEndRef[i] = binary.LittleEndian.Uint32(buf[pos:])
		pos += 4
	}
	return h, nil
}

// BlockContains reports whether [startRef, endRef] lies entirely inside
// one of the declared blocks.
func (h *FileHeader) BlockContains(startRef, endRef uint32) bool {
	for i := range h.BlockStartRef {
		if h.BlockStartRef[i] <= startRef && endRef <= h.BlockEndRef[i] {
			return true
		}
	}
	return false
}
