package pager

import (
	"errors"
	"fmt"
	"os"

	"github.com/ncw/directio"
	"golang.org/x/sys/unix"

	"pmhash/pkg/config"
)

// Error for when a file exists but is smaller than the layout requires.
var ErrShortFile = errors.New("file is shorter than expected")

// Mapping is a file made addressable as a byte slice.
type Mapping interface {
	// Bytes returns the mapped contents. Writes to it are writes to the file.
	Bytes() []byte
	// Flush makes every write to Bytes durable.
	Flush() error
	// Close releases the mapping without flushing.
	Close() error
}

// Backend maps files into memory.
type Backend interface {
	// Map opens the file at path and returns its first size bytes.
	// With grow set the file is created or extended as needed; otherwise a
	// missing file reports an os.ErrNotExist error and a short one ErrShortFile.
	Map(path string, size int64, grow bool) (Mapping, error)
	Name() string
}

// NewBackend returns the backend with the given configured name.
func NewBackend(name string) (Backend, error) {
	switch name {
	case config.BackendMmap, "":
		return MmapBackend{}, nil
	case config.BackendDirect:
		return DirectBackend{}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}

func openForMapping(open func(string, int, os.FileMode) (*os.File, error), path string, size int64, grow bool) (*os.File, int64, error) {
	flags := os.O_RDWR
	if grow {
		flags |= os.O_CREATE
	}
	file, err := open(path, flags, 0666)
	if err != nil {
		return nil, 0, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, err
	}
	if info.Size() < size && !grow {
		file.Close()
		return nil, 0, fmt.Errorf("%w: %s is %d bytes, expected %d", ErrShortFile, path, info.Size(), size)
	}
	return file, info.Size(), nil
}

/////////////////////////////////////////////////////////////////////////////
//////////////////////////////// mmap backend ///////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// MmapBackend maps files with MAP_SHARED so that stores are visible to the
// backing medium without an explicit write; Flush is an msync barrier.
type MmapBackend struct{}

func (MmapBackend) Name() string { return config.BackendMmap }

func (MmapBackend) Map(path string, size int64, grow bool) (Mapping, error) {
	file, fileSize, err := openForMapping(os.OpenFile, path, size, grow)
	if err != nil {
		return nil, err
	}
	if fileSize < size {
		if err := file.Truncate(size); err != nil {
			file.Close()
			return nil, fmt.Errorf("truncate %s: %w", path, err)
		}
	}
	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &mmapMapping{file: file, data: data}, nil
}

type mmapMapping struct {
	file *os.File
	data []byte
}

func (m *mmapMapping) Bytes() []byte { return m.data }

func (m *mmapMapping) Flush() error {
	return unix.Msync(m.data, unix.MS_SYNC)
}

func (m *mmapMapping) Close() error {
	err := unix.Munmap(m.data)
	m.data = nil
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	return err
}

/////////////////////////////////////////////////////////////////////////////
/////////////////////////////// direct backend //////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// DirectBackend keeps each file in an aligned in-memory frame and writes the
// whole frame back with O_DIRECT on Flush. Sizes must be multiples of
// directio.BlockSize.
type DirectBackend struct{}

func (DirectBackend) Name() string { return config.BackendDirect }

func (DirectBackend) Map(path string, size int64, grow bool) (Mapping, error) {
	if size%directio.BlockSize != 0 {
		return nil, fmt.Errorf("direct mapping of %s: size %d is not block aligned", path, size)
	}
	file, fileSize, err := openForMapping(directio.OpenFile, path, size, grow)
	if err != nil {
		return nil, err
	}
	if fileSize%directio.BlockSize != 0 {
		file.Close()
		return nil, fmt.Errorf("%w: %s is not block aligned", ErrShortFile, path)
	}
	frame := directio.AlignedBlock(int(size))
	readable := min(fileSize, size)
	if readable > 0 {
		if _, err := file.ReadAt(frame[:readable], 0); err != nil {
			file.Close()
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	m := &directMapping{file: file, data: frame}
	if fileSize < size {
		// Extend the file right away so a reopen sees the full size.
		if err := m.Flush(); err != nil {
			file.Close()
			return nil, err
		}
	}
	return m, nil
}

type directMapping struct {
	file *os.File
	data []byte
}

func (m *directMapping) Bytes() []byte { return m.data }

func (m *directMapping) Flush() error {
	if _, err := m.file.WriteAt(m.data, 0); err != nil {
		return err
	}
	return m.file.Sync()
}

func (m *directMapping) Close() error {
	m.data = nil
	return m.file.Close()
}
