package tpsdb

import "sort"

// Table accumulates the name and definition of one table number. Fields
// only move from absent to present, never back.
type Table struct {
	Number uint32
	Name   string

	// Definitions arrive as chunks keyed by portion index; pages are
	// visited newest-first, so portions may land out of order.
	portions map[uint16][]byte
}

// IsComplete reports whether the table has both a name and at least one
// definition portion.
func (t *Table) IsComplete() bool {
	return t.Name != "" && len(t.portions) > 0
}

// Definition concatenates the definition portions in ascending portion
// order.
func (t *Table) Definition() []byte {
	idx := make([]int, 0, len(t.portions))
	for i := range t.portions {
		idx = append(idx, int(i))
	}
	sort.Ints(idx)
	var out []byte
	for _, i := range idx {
		out = append(out, t.portions[uint16(i)]...)
	}
	return out
}

// TableList is the catalog of every table number seen during the scan.
// It is owned by the file handle, never package state, so multiple open
// files do not interfere.
type TableList struct {
	tables map[uint32]*Table
}

func NewTableList() *TableList {
	return &TableList{tables: map[uint32]*Table{}}
}

// Add registers a table number. Adding a known number is a no-op.
func (l *TableList) Add(number uint32) *Table {
	t, ok := l.tables[number]
	if !ok {
		t = &Table{Number: number, portions: map[uint16][]byte{}}
		l.tables[number] = t
	}
	return t
}

// SetName upserts the table's name, creating the table if necessary.
func (l *TableList) SetName(number uint32, name string) {
	l.Add(number).Name = name
}

// AddDefinition upserts one definition portion, creating the table if
// necessary.
func (l *TableList) AddDefinition(number uint32, portion uint16, def []byte) {
	l.Add(number).portions[portion] = append([]byte(nil), def...)
}

// Get returns the table registered under number.
func (l *TableList) Get(number uint32) (*Table, bool) {
	t, ok := l.tables[number]
	return t, ok
}

// Len returns the number of known table numbers.
func (l *TableList) Len() int { return len(l.tables) }

// GetNumbers returns every known table number in ascending order.
func (l *TableList) GetNumbers() []uint32 {
	out := make([]uint32, 0, len(l.tables))
	for n := range l.tables {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GetNumber resolves a table name to its number.
func (l *TableList) GetNumber(name string) (uint32, bool) {
	for n, t := range l.tables {
		if t.Name == name {
			return n, true
		}
	}
	return 0, false
}

// IsComplete reports whether every known table has both a name and a
// definition. The catalog scan stops as soon as this turns true, even
// mid-page.
func (l *TableList) IsComplete() bool {
	for _, t := range l.tables {
		if !t.IsComplete() {
			return false
		}
	}
	return true
}
