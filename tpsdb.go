package tpsdb

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrTableNotFound is returned when a table name resolves to nothing.
var ErrTableNotFound = errors.New("table not found")

// ErrCanceled is returned when a Continue predicate stops a walk or
// scan before it finishes.
var ErrCanceled = errors.New("scan canceled")

// Options represents the options that can be set when opening a file.
type Options struct {
	// Password decrypts the file. Empty means the file is plaintext.
	Password string

	// Check promotes consistency warnings to errors, enables the
	// 64-byte file-size advisory and makes partial records fatal.
	Check bool

	// CurrentTable selects the table Rows will stream after opening.
	CurrentTable string

	// Continue, when non-nil, is consulted between page visits during
	// the directory walk and the definition scan. Returning false
	// aborts the open with ErrCanceled. The check is cooperative:
	// never mid-record, only between pages.
	Continue func() bool
}

var DefaultOptions = &Options{}

// TPS is an open TopSpeed file: the decrypted header, the page directory
// and the table catalog, all owned by this handle while the file stays
// open. The handle is single-threaded; concurrent readers should each
// open their own.
type TPS struct {
	// Name is the lowercased base name without extension.
	Name string

	path     string
	file     *os.File
	dataref  []byte // mmap'ed readonly
	fileSize int
	check    bool

	decryptor *Decryptor
	header    *FileHeader
	pages     *PageList
	tables    *TableList

	currentTable uint32
	hasCurrent   bool
}

// Open opens a TPS file read-only, parses its header, walks the page
// directory and scans for table definitions. A missing file surfaces the
// os error untouched; a wrong password surfaces as ErrBadKeys, since the
// format only reveals it through the header mark.
func Open(path string, o *Options) (*TPS, error) {
	if o == nil {
		o = DefaultOptions
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	t := &TPS{
		Name:     strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))),
		path:     path,
		fileSize: int(fi.Size()),
		check:    o.Check,
		tables:   NewTableList(),
	}
	if o.Check && t.fileSize&0x3F != 0 {
		log.Warnf("tpsdb: %s: file size 0x%X is not a multiple of 64 bytes", path, t.fileSize)
	}
	if t.file, err = os.OpenFile(path, os.O_RDONLY, 0); err != nil {
		return nil, err
	}
	if err = flock(t.file); err != nil {
		_ = t.file.Close()
		return nil, err
	}
	if err = mmap(t); err != nil {
		_ = funlock(t.file)
		_ = t.file.Close()
		return nil, err
	}
	t.decryptor = NewDecryptor(bytes.NewReader(t.dataref), t.fileSize, o.Password)

	buf, err := t.Read(headerRegion, 0)
	if err != nil {
		_ = t.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if t.header, err = parseHeader(buf); err != nil {
		_ = t.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if t.pages, err = newPageList(t, t.header.PageRootRef, o.Check, o.Continue); err != nil {
		_ = t.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if err = t.readDefinitions(o.Continue); err != nil {
		_ = t.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if o.CurrentTable != "" {
		if err = t.SetCurrentTable(o.CurrentTable); err != nil {
			_ = t.Close()
			return nil, err
		}
	}
	return t, nil
}

// Close unmaps and closes the underlying file.
func (t *TPS) Close() error {
	if t.file == nil {
		return nil
	}
	if err := munmap(t); err != nil {
		return errors.Wrap(err, "munmap")
	}
	if err := funlock(t.file); err != nil {
		log.Warnf("tpsdb: funlock: %v", err)
	}
	err := t.file.Close()
	t.file = nil
	return errors.Wrap(err, "close file")
}

// Read returns size decrypted bytes at pos. With no password configured
// this is a plain copy out of the mapped file.
func (t *TPS) Read(size, pos int) ([]byte, error) {
	if pos < 0 || size < 0 || pos+size > t.fileSize {
		return nil, errors.Wrapf(ErrFormat, "read [0x%X, 0x%X) outside file of 0x%X bytes", pos, pos+size, t.fileSize)
	}
	return t.decryptor.Decrypt(size, pos)
}

// readPage reads and parses the page stored at ref<<8. The header is
// read first so only the page's declared size is fetched.
func (t *TPS) readPage(ref uint32) (*Page, error) {
	pos := int(ref) << refShift
	hdr, err := t.Read(pageHeaderSize, pos)
	if err != nil {
		return nil, err
	}
	size := int(binary.LittleEndian.Uint16(hdr[4:]))
	if size < pageHeaderSize {
		return nil, errors.Wrapf(ErrFormat, "page 0x%X: size %d below header size", ref, size)
	}
	buf, err := t.Read(size, pos)
	if err != nil {
		return nil, err
	}
	return parsePage(ref, buf)
}

// readDefinitions scans leaf pages newest-first until every table seen
// so far has both a name and a definition. Most files describe their
// tables within the last few pages, so the reverse order lets the scan
// stop after the fewest visits; completion stops it even mid-page. cont,
// when non-nil, is consulted between page visits for cooperative
// cancellation.
func (t *TPS) readDefinitions(cont func() bool) error {
	for _, ref := range t.pages.ReverseList() {
		if cont != nil && !cont() {
			return errors.WithStack(ErrCanceled)
		}
		page, err := t.pages.Page(ref)
		if err != nil {
			if t.check {
				return err
			}
			log.Warnf("tpsdb: skipping page 0x%X during schema scan: %v", ref, err)
			continue
		}
		if !page.IsLeaf() {
			continue
		}
		it := NewRecordIterator(page, t.check)
		for {
			rec, err := it.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return errors.Wrapf(err, "page 0x%X", ref)
			}
			if rec.Type != RecordNull {
				t.tables.Add(rec.TableNumber)
			}
			switch rec.Type {
			case RecordTableName:
				t.tables.SetName(rec.TableNumber, rec.TableName)
			case RecordTableDefinition:
				t.tables.AddDefinition(rec.TableNumber, rec.DefinitionPortion, rec.Data)
			}
			if t.tables.Len() > 0 && t.tables.IsComplete() {
				break
			}
		}
		// Completion can only stop the scan once something was
		// observed: an empty or all-NULL leaf says nothing about
		// tables described in earlier pages.
		if t.tables.Len() > 0 && t.tables.IsComplete() {
			break
		}
	}
	return nil
}

// SetCurrentTable selects the table Rows streams from.
func (t *TPS) SetCurrentTable(name string) error {
	n, ok := t.tables.GetNumber(name)
	if !ok {
		return errors.Wrap(ErrTableNotFound, name)
	}
	t.currentTable = n
	t.hasCurrent = true
	return nil
}

// Header returns the decoded file header.
func (t *TPS) Header() *FileHeader { return t.header }

// Pages returns the page directory.
func (t *TPS) Pages() *PageList { return t.pages }

// Tables returns the table catalog.
func (t *TPS) Tables() *TableList { return t.tables }
