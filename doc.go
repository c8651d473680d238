// Package tpsdb reads Clarion TopSpeed (.tps) database files.
//
// A TPS file is a paged B-tree: the 0x200-byte header points at a root
// page, internal pages hold (key, child ref) slots and leaf pages hold a
// prefix-compressed record stream. Table names and schema definitions
// are ordinary records scattered through the leaves; Open walks the
// directory, scans the leaves newest-first and stops as soon as every
// table seen has both a name and a definition.
//
// Encrypted files are handled transparently: reads go through a
// Decryptor that decrypts the 0x40-byte blocks overlapping the requested
// window. A wrong password is only detectable as a header mark mismatch
// and surfaces as ErrBadKeys.
//
//	t, err := tpsdb.Open("orders.tps", &tpsdb.Options{Password: pw})
//	if err != nil { ... }
//	defer t.Close()
//	for _, n := range t.Tables().GetNumbers() { ... }
//
// The format is read-only by design; nothing here writes.
package tpsdb
