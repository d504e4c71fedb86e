package flash

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// File is an area backed by a flash image file. A missing or short image
// is extended with erased bytes on open.
type File struct {
	layout
	f *os.File
}

// OpenFile opens or creates the image at path.
func OpenFile(path string, size, sectorSize uint32) (*File, error) {
	l, err := newLayout(size, sectorSize)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open flash image")
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "stat flash image")
	}
	if cur := info.Size(); cur < int64(size) {
		pad := make([]byte, int64(size)-cur)
		fillErased(pad)
		if _, err := f.WriteAt(pad, cur); err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, "extend flash image")
		}
	}
	return &File{layout: l, f: f}, nil
}

func (a *File) Size() uint32 {
	return a.size
}

func (a *File) Read(off uint32, p []byte) error {
	if a.f == nil {
		return ErrClosed
	}
	if err := a.check(off, len(p)); err != nil {
		return err
	}
	if _, err := a.f.ReadAt(p, int64(off)); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrapf(err, "read %d@%d", len(p), off)
	}
	return nil
}

func (a *File) Write(off uint32, p []byte) error {
	if a.f == nil {
		return ErrClosed
	}
	if err := a.check(off, len(p)); err != nil {
		return err
	}
	cur := make([]byte, len(p))
	if err := a.Read(off, cur); err != nil {
		return err
	}
	program(cur, p)
	if _, err := a.f.WriteAt(cur, int64(off)); err != nil {
		return errors.Wrapf(err, "write %d@%d", len(p), off)
	}
	return nil
}

func (a *File) Erase(off, size uint32) error {
	if a.f == nil {
		return ErrClosed
	}
	if err := a.checkErase(off, size); err != nil {
		return err
	}
	buf := make([]byte, a.sectorSize)
	fillErased(buf)
	for o := off; o < off+size; o += a.sectorSize {
		if _, err := a.f.WriteAt(buf, int64(o)); err != nil {
			return errors.Wrapf(err, "erase sector@%d", o)
		}
	}
	return nil
}

func (a *File) Sectors(max int) ([]Sector, error) {
	return a.sectors(max)
}

// Sync flushes the image to stable storage.
func (a *File) Sync() error {
	if a.f == nil {
		return ErrClosed
	}
	return a.f.Sync()
}

func (a *File) Close() error {
	if a.f == nil {
		return nil
	}
	err := a.f.Sync()
	if cerr := a.f.Close(); err == nil {
		err = cerr
	}
	a.f = nil
	return err
}
