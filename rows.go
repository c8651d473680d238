package tpsdb

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrNoCurrentTable is returned by Rows before a table was selected.
var ErrNoCurrentTable = errors.New("no current table selected")

// Row is one DATA record of a table.
type Row struct {
	ID   uint32
	Data []byte
}

// RowIterator streams a table's DATA records, visiting leaf pages in
// discovery order.
type RowIterator struct {
	tps   *TPS
	table uint32
	refs  []uint32
	cur   *RecordIterator
	cont  func() bool
}

// Rows streams the current table's records. cont, when non-nil, is
// consulted between page visits; returning false ends the stream cleanly
// with io.EOF.
func (t *TPS) Rows(cont func() bool) (*RowIterator, error) {
	if !t.hasCurrent {
		return nil, ErrNoCurrentTable
	}
	return &RowIterator{
		tps:   t,
		table: t.currentTable,
		refs:  t.pages.List(),
		cont:  cont,
	}, nil
}

// Next returns the next row, or io.EOF when the table is exhausted or
// the continue predicate stopped the scan.
func (it *RowIterator) Next() (*Row, error) {
	for {
		if it.cur == nil {
			if len(it.refs) == 0 {
				return nil, io.EOF
			}
			if it.cont != nil && !it.cont() {
				it.refs = nil
				return nil, io.EOF
			}
			ref := it.refs[0]
			it.refs = it.refs[1:]
			page, err := it.tps.pages.Page(ref)
			if err != nil {
				return nil, err
			}
			if !page.IsLeaf() {
				continue
			}
			it.cur = NewRecordIterator(page, it.tps.check)
		}
		rec, err := it.cur.Next()
		if err == io.EOF {
			it.cur = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.Type != RecordData || rec.TableNumber != it.table {
			continue
		}
		row := &Row{Data: rec.Data}
		// DATA keys carry the row id after the table number and type
		// byte.
		if len(rec.Key) >= 9 {
			row.ID = binary.BigEndian.Uint32(rec.Key[5:9])
		}
		return row, nil
	}
}
