package tpsdb

import (
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// PageList walks the page directory from the root ref and indexes every
// discovered page by its start ref. The tree is keyed by file offset:
// child pointers are just refs re-read through the owning handle, never
// owning object references.
type PageList struct {
	tps   *TPS
	check bool
	// cont is consulted before every page visit; returning false
	// aborts the walk with ErrCanceled.
	cont func() bool
	// order is the discovery order: visit a page, then each child slot
	// in slot order.
	order []uint32
	pages map[uint32]*Page
}

func newPageList(t *TPS, rootRef uint32, check bool, cont func() bool) (*PageList, error) {
	pl := &PageList{tps: t, check: check, cont: cont, pages: map[uint32]*Page{}}
	if err := pl.walk(rootRef); err != nil {
		return nil, err
	}
	return pl, nil
}

func (pl *PageList) walk(ref uint32) error {
	// Refs are raw file offsets; a cycle would mean corruption but must
	// not hang the walk.
	if _, ok := pl.pages[ref]; ok {
		return nil
	}
	if pl.cont != nil && !pl.cont() {
		return errors.WithStack(ErrCanceled)
	}
	page, err := pl.tps.readPage(ref)
	if err != nil {
		if pl.check {
			return err
		}
		log.Warnf("tpsdb: skipping unreadable page 0x%X: %v", ref, err)
		return nil
	}
	if !pl.tps.header.BlockContains(page.StartRef, page.EndRef) {
		if pl.check {
			return errors.Wrapf(ErrFormat, "page 0x%X: range [0x%X, 0x%X) outside every declared block", ref, page.StartRef, page.EndRef)
		}
		log.Warnf("tpsdb: page 0x%X lies outside every declared block", ref)
	}
	pl.pages[ref] = page
	pl.order = append(pl.order, ref)
	if page.IsLeaf() {
		return nil
	}
	it := NewRecordIterator(page, pl.check)
	for {
		rec, err := it.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "page 0x%X", ref)
		}
		child, ok := rec.ChildRef()
		if !ok {
			if pl.check {
				return errors.Wrapf(ErrFormat, "page 0x%X: slot carries no child ref", ref)
			}
			log.Warnf("tpsdb: page 0x%X: slot carries no child ref", ref)
			continue
		}
		if err := pl.walk(child); err != nil {
			return err
		}
	}
}

// List returns every page ref in discovery order.
func (pl *PageList) List() []uint32 {
	out := make([]uint32, len(pl.order))
	copy(out, pl.order)
	return out
}

// ReverseList returns the refs newest-discovered first, without
// re-walking the tree. Schema scans use it: recently added tables are
// described in later pages, so the reverse order completes the catalog
// after the fewest visits.
func (pl *PageList) ReverseList() []uint32 {
	out := make([]uint32, len(pl.order))
	for i, ref := range pl.order {
		out[len(out)-1-i] = ref
	}
	return out
}

// Page returns the page at ref, re-reading it from the file if it is not
// retained.
func (pl *PageList) Page(ref uint32) (*Page, error) {
	if p, ok := pl.pages[ref]; ok {
		return p, nil
	}
	return pl.tps.readPage(ref)
}

// Len returns the number of discovered pages.
func (pl *PageList) Len() int { return len(pl.order) }
