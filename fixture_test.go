package tpsdb

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// Test fixtures are whole synthetic TPS files built in memory: a header,
// one internal root page and a few leaves, laid out exactly as the
// on-disk format demands so Open exercises the full read path.

type fixRecord struct {
	key  []byte
	data []byte
}

func fixCommonPrefix(a, b []byte) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] && n < 255 {
		n++
	}
	return n
}

// encodeRecords prefix-compresses keys into a page payload.
func encodeRecords(recs []fixRecord) []byte {
	var out []byte
	var prev []byte
	for _, r := range recs {
		p := fixCommonPrefix(prev, r.key)
		suffix := r.key[p:]
		out = append(out, byte(p))
		out = append(out, byte(len(suffix)), byte(len(suffix)>>8))
		out = append(out, suffix...)
		out = append(out, byte(len(r.data)), byte(len(r.data)>>8))
		out = append(out, r.data...)
		prev = r.key
	}
	return out
}

func nameKey(name string) []byte {
	return append([]byte{typeTableName}, name...)
}

func nameData(number uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], number)
	return b[:]
}

func defKey(number uint32, portion uint16) []byte {
	b := make([]byte, 7)
	binary.BigEndian.PutUint32(b, number)
	b[4] = typeTableDefinition
	binary.BigEndian.PutUint16(b[5:], portion)
	return b
}

func dataKey(number, rowID uint32) []byte {
	b := make([]byte, 9)
	binary.BigEndian.PutUint32(b, number)
	b[4] = typeData
	binary.BigEndian.PutUint32(b[5:], rowID)
	return b
}

// childSlot is one internal-page slot: the child ref rides in the
// trailing 4 bytes of the data.
func childSlot(key string, child uint32) fixRecord {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], child)
	return fixRecord{key: []byte(key), data: b[:]}
}

// pageBytes assembles a page image: 13-byte header plus payload.
func pageBytes(ref uint32, level uint8, recordCount int, payload []byte) []byte {
	size := pageHeaderSize + len(payload)
	b := make([]byte, size)
	binary.LittleEndian.PutUint32(b[0:], ref<<refShift)
	binary.LittleEndian.PutUint16(b[4:], uint16(size))
	binary.LittleEndian.PutUint16(b[6:], uint16(size))
	binary.LittleEndian.PutUint16(b[8:], uint16(size))
	binary.LittleEndian.PutUint16(b[10:], uint16(recordCount))
	b[12] = level
	return b
}

func putPage(file []byte, ref uint32, level uint8, recs []fixRecord) {
	payload := encodeRecords(recs)
	page := pageBytes(ref, level, len(recs), payload)
	copy(page[pageHeaderSize:], payload)
	copy(file[int(ref)<<refShift:], page)
}

// putRawLeaf places a leaf whose payload is taken verbatim, valid or not.
func putRawLeaf(file []byte, ref uint32, payload []byte) {
	page := pageBytes(ref, 0, 1, payload)
	copy(page[pageHeaderSize:], payload)
	copy(file[int(ref)<<refShift:], page)
}

func putHeader(file []byte, rootRef uint32, blocks [][2]uint32) {
	size := headerFixed + 8*len(blocks)
	binary.LittleEndian.PutUint32(file[0x00:], 0)
	binary.LittleEndian.PutUint16(file[0x04:], uint16(size))
	binary.LittleEndian.PutUint32(file[0x06:], uint32(len(file)))
	binary.LittleEndian.PutUint32(file[0x0A:], uint32(len(file)))
	copy(file[0x0E:], topSpeedMark)
	binary.BigEndian.PutUint32(file[0x14:], 0x01020304)
	binary.LittleEndian.PutUint32(file[0x18:], 1)
	binary.LittleEndian.PutUint32(file[0x1C:], rootRef)
	pos := headerFixed
	for _, b := range blocks {
		binary.LittleEndian.PutUint32(file[pos:], b[0])
		pos += 4
	}
	for _, b := range blocks {
		binary.LittleEndian.PutUint32(file[pos:], b[1])
		pos += 4
	}
}

var (
	fixDef1 = []byte{0x01, 0x00, 0x10, 0x20}
	fixDef2 = []byte{0x02, 0x00, 0x30, 0x40}
	fixRow1 = []byte("first row")
	fixRow2 = []byte("second row")
)

// buildCatalogFile lays out a 2-table file. Discovery order is
// [2, 3, 4, 5]; the reverse scan therefore sees the "orders" name first
// (ref 5) and completes the catalog only on ref 3, where the "items"
// definition lives behind its data rows.
func buildCatalogFile() []byte {
	file := make([]byte, 0x600)
	putHeader(file, 2, [][2]uint32{{2, 6}})
	putPage(file, 2, 1, []fixRecord{
		childSlot("a", 3),
		childSlot("b", 4),
		childSlot("c", 5),
	})
	putPage(file, 3, 0, []fixRecord{
		{key: dataKey(1, 1), data: fixRow1},
		{key: dataKey(1, 2), data: fixRow2},
		{key: defKey(1, 0), data: fixDef1},
	})
	putPage(file, 4, 0, []fixRecord{
		{key: nameKey("items"), data: nameData(1)},
		{key: defKey(2, 0), data: fixDef2},
	})
	putPage(file, 5, 0, []fixRecord{
		{key: nameKey("orders"), data: nameData(2)},
	})
	return file
}

func writeFixture(t *testing.T, file []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.tps")
	if err := os.WriteFile(path, file, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// encryptFixture encrypts a whole file image with password.
func encryptFixture(file []byte, password string) {
	d := NewDecryptor(bytes.NewReader(nil), len(file), password)
	d.encryptRegion(file)
}
