package tpsdb

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// RecordType classifies a decoded record.
type RecordType uint8

const (
	RecordNull RecordType = iota
	RecordData
	RecordMetadata
	RecordTableDefinition
	RecordTableName
	RecordIndex
)

func (t RecordType) String() string {
	switch t {
	case RecordNull:
		return "NULL"
	case RecordData:
		return "DATA"
	case RecordMetadata:
		return "METADATA"
	case RecordTableDefinition:
		return "TABLE_DEFINITION"
	case RecordTableName:
		return "TABLE_NAME"
	case RecordIndex:
		return "INDEX"
	}
	return "UNKNOWN"
}

// Type markers embedded in record keys. A table-name key starts with
// 0xFE; every other key starts with a big-endian table number followed by
// the type byte. Bytes below 0xF3 name an index.
const (
	typeData            = 0xF3
	typeMetadata        = 0xF6
	typeTableDefinition = 0xFA
	typeTableName       = 0xFE
)

// Record is one decoded unit of a page's record stream.
type Record struct {
	Type RecordType
	// Key is the full key after prefix reconstruction.
	Key  []byte
	Data []byte

	TableNumber uint32
	// TableName is set for RecordTableName records.
	TableName string
	// DefinitionPortion orders the chunks of a multi-part table
	// definition (RecordTableDefinition only).
	DefinitionPortion uint16
	// IndexNumber is the index a RecordIndex slot belongs to.
	IndexNumber uint8
}

// ChildRef extracts the child page ref an index slot carries in the
// trailing 4 bytes of its data.
func (r *Record) ChildRef() (uint32, bool) {
	if len(r.Data) < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(r.Data[len(r.Data)-4:]), true
}

// classify derives the record type and its typed sub-fields from the key
// and data. Unknown type bytes stay opaque DATA records; classification
// never fails.
func classify(r *Record) {
	if len(r.Data) == 0 {
		r.Type = RecordNull
		return
	}
	r.Type = RecordData
	if len(r.Key) == 0 {
		return
	}
	if r.Key[0] == typeTableName {
		r.Type = RecordTableName
		r.TableName = strings.TrimRight(string(r.Key[1:]), " \x00")
		if len(r.Data) >= 4 {
			r.TableNumber = binary.BigEndian.Uint32(r.Data)
		}
		return
	}
	if len(r.Key) < 5 {
		return
	}
	r.TableNumber = binary.BigEndian.Uint32(r.Key)
	switch t := r.Key[4]; {
	case t == typeData:
		r.Type = RecordData
	case t == typeMetadata:
		r.Type = RecordMetadata
	case t == typeTableDefinition:
		r.Type = RecordTableDefinition
		if len(r.Key) >= 7 {
			r.DefinitionPortion = binary.BigEndian.Uint16(r.Key[5:])
		}
	case t < typeData:
		r.Type = RecordIndex
		r.IndexNumber = t
	}
}

// RecordIterator decodes one page's record stream in on-disk order. The
// stream is prefix compressed, so decoding is strictly sequential: the
// iterator carries the previous record's full key across calls and a
// fresh iterator must be created per page.
type RecordIterator struct {
	data    []byte
	pos     int
	prevKey []byte
	check   bool
	done    bool
}

// NewRecordIterator iterates over page's records. With check set, a
// trailing partial record is an error; otherwise it is dropped with a
// warning.
func NewRecordIterator(page *Page, check bool) *RecordIterator {
	return &RecordIterator{data: page.Data, check: check}
}

// Next returns the next record, or io.EOF once the payload is exhausted.
func (it *RecordIterator) Next() (*Record, error) {
	if it.done || it.pos >= len(it.data) {
		it.done = true
		return nil, io.EOF
	}
	rec, err := it.decode()
	if err != nil {
		it.done = true
		if it.check {
			return nil, err
		}
		log.Warnf("tpsdb: dropping partial record: %v", err)
		return nil, io.EOF
	}
	return rec, nil
}

// Record wire layout: prefixLen u8, suffixLen u16le, suffix bytes,
// dataLen u16le, data bytes. The full key is the first prefixLen bytes of
// the previous record's key plus the suffix; the first record of a page
// has prefixLen 0.
func (it *RecordIterator) decode() (*Record, error) {
	if it.pos+3 > len(it.data) {
		return nil, errors.Wrapf(ErrFormat, "record header truncated at %d", it.pos)
	}
	prefixLen := int(it.data[it.pos])
	suffixLen := int(binary.LittleEndian.Uint16(it.data[it.pos+1:]))
	it.pos += 3
	if prefixLen > len(it.prevKey) {
		return nil, errors.Wrapf(ErrFormat, "prefix length %d exceeds previous key of %d bytes", prefixLen, len(it.prevKey))
	}
	if it.pos+suffixLen+2 > len(it.data) {
		return nil, errors.Wrapf(ErrFormat, "key suffix overruns page at %d", it.pos)
	}
	key := make([]byte, 0, prefixLen+suffixLen)
	key = append(key, it.prevKey[:prefixLen]...)
	key = append(key, it.data[it.pos:it.pos+suffixLen]...)
	it.pos += suffixLen

	dataLen := int(binary.LittleEndian.Uint16(it.data[it.pos:]))
	it.pos += 2
	if it.pos+dataLen > len(it.data) {
		return nil, errors.Wrapf(ErrFormat, "record data overruns page at %d", it.pos)
	}
	data := append([]byte(nil), it.data[it.pos:it.pos+dataLen]...)
	it.pos += dataLen

	it.prevKey = key
	rec := &Record{Key: key, Data: data}
	classify(rec)
	return rec, nil
}
