package tpsdb

import (
	"os"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
)

var ErrLocked = errors.New("file locked for writing by another process")

// flock takes a shared advisory lock; the format is read-only, so
// readers never exclude each other, only a writer does.
func flock(f *os.File) error {
	err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB)
	if err == nil {
		return nil
	}
	if errno, ok := err.(syscall.Errno); ok && (errno == syscall.EWOULDBLOCK || errno == syscall.EAGAIN) {
		return ErrLocked
	}
	return errors.Wrap(err, "flock")
}

// funlock releases the advisory lock on a file descriptor.
func funlock(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}

// mmap maps the file read-only. All reads go through this mapping.
func mmap(t *TPS) error {
	if t.fileSize == 0 {
		t.dataref = nil
		return nil
	}
	b, err := syscall.Mmap(int(t.file.Fd()), 0, t.fileSize, syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return errors.Wrap(err, "mmap")
	}
	// Page reads jump around the directory tree.
	if err := madvise(b, syscall.MADV_RANDOM); err != nil {
		return errors.Wrap(err, "madvise")
	}
	t.dataref = b
	return nil
}

// munmap unmaps the file.
func munmap(t *TPS) error {
	if t.dataref == nil {
		return nil
	}
	err := syscall.Munmap(t.dataref)
	t.dataref = nil
	return err
}

// NOTE: This function is copied from stdlib because it is not available on darwin.
func madvise(b []byte, advice int) (err error) {
	_, _, e1 := syscall.Syscall(syscall.SYS_MADVISE, uintptr(unsafe.Pointer(&b[0])), uintptr(len(b)), uintptr(advice))
	if e1 != 0 {
		err = e1
	}
	return
}
