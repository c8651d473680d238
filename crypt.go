package tpsdb

import (
	"encoding/binary"
	"io"
	"math/bits"

	"github.com/pkg/errors"
)

const (
	// cryptBlockSize is the granularity of TPS block encryption.
	cryptBlockSize = 0x40
	cryptWords     = cryptBlockSize / 4
)

// Decryptor returns plaintext for arbitrary (position, size) windows of
// an encrypted file. With no password it degrades to a pass-through over
// the raw source. Calls carry no state between them, so repeated reads of
// the same region are idempotent and order-independent.
type Decryptor struct {
	src  io.ReaderAt
	size int
	key  [cryptWords]uint32
	on   bool
}

// NewDecryptor derives the block key from password. An empty password
// means the file is plaintext.
func NewDecryptor(src io.ReaderAt, size int, password string) *Decryptor {
	d := &Decryptor{src: src, size: size}
	if password == "" {
		return d
	}
	d.on = true
	d.key = initKey(password)
	return d
}

// IsEncrypted reports whether a password was configured.
func (d *Decryptor) IsEncrypted() bool { return d.on }

// Decrypt returns size plaintext bytes corresponding to ciphertext at
// pos. Whole 0x40-byte blocks overlapping [pos, pos+size) are decrypted
// and the requested window sliced out.
func (d *Decryptor) Decrypt(size, pos int) ([]byte, error) {
	if size < 0 || pos < 0 {
		return nil, errors.Wrapf(ErrFormat, "invalid read [%d, %d)", pos, pos+size)
	}
	if !d.on {
		return d.readRaw(size, pos)
	}
	lo := pos &^ (cryptBlockSize - 1)
	hi := (pos + size + cryptBlockSize - 1) &^ (cryptBlockSize - 1)
	if hi > d.size {
		// A trailing partial block has no full ciphertext and cannot be
		// decrypted; windows reaching into it are malformed, never
		// silently returned raw.
		hi = d.size &^ (cryptBlockSize - 1)
	}
	if pos+size > hi {
		return nil, errors.Wrapf(ErrFormat, "read [0x%X, 0x%X) past the last whole 0x40-byte block", pos, pos+size)
	}
	buf, err := d.readRaw(hi-lo, lo)
	if err != nil {
		return nil, err
	}
	for off := 0; off+cryptBlockSize <= len(buf); off += cryptBlockSize {
		d.cryptBlock(buf[off:off+cryptBlockSize], false)
	}
	return buf[pos-lo : pos-lo+size], nil
}

func (d *Decryptor) readRaw(size, pos int) ([]byte, error) {
	buf := make([]byte, size)
	if size == 0 {
		return buf, nil
	}
	if _, err := d.src.ReadAt(buf, int64(pos)); err != nil {
		return nil, errors.Wrapf(err, "read %d bytes at 0x%X", size, pos)
	}
	return buf, nil
}

// encryptRegion encrypts whole 0x40-byte blocks of b in place. The read
// path never needs it; fixture builders do.
func (d *Decryptor) encryptRegion(b []byte) {
	for off := 0; off+cryptBlockSize <= len(b); off += cryptBlockSize {
		d.cryptBlock(b[off:off+cryptBlockSize], true)
	}
}

// cryptBlock transforms one 0x40-byte block as 16 little-endian words.
// Each word is mixed with two schedule words; the decrypt direction is
// the exact inverse of the encrypt direction.
func (d *Decryptor) cryptBlock(b []byte, encrypt bool) {
	for i := 0; i < cryptWords; i++ {
		k1 := d.key[i]
		k2 := d.key[cryptWords-1-i]
		r := int(k1 & 31)
		v := binary.LittleEndian.Uint32(b[i*4:])
		if encrypt {
			v = bits.RotateLeft32(v^k1, r) + k2
		} else {
			v = bits.RotateLeft32(v-k2, -r) ^ k1
		}
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
}

// initKey expands the password into the 16-word block key: the password
// is seeded cyclically over 64 bytes, then mixed for 64 swap rounds.
func initKey(password string) [cryptWords]uint32 {
	seed := []byte(password)
	var kb [cryptBlockSize]byte
	for i := range kb {
		kb[i] = seed[i%len(seed)] + byte(i)
	}
	var w [cryptWords]uint32
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(kb[i*4:])
	}
	for r := 0; r < cryptBlockSize; r++ {
		a := r & (cryptWords - 1)
		b := int((w[a] >> 8) & 0xF)
		sum := w[a] + w[b] + uint32(r)
		w[a] = bits.RotateLeft32(w[a]^sum, 3)
		w[b] += sum
	}
	return w
}
