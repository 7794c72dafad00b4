package fatfs

import (
	"fmt"
	"io"

	"github.com/aligator/fatfs/checkpoint"
)

// BootstrapSectorSize is the sector size used to read the boot sector.
// The real sector size is a field of the boot sector itself, so mounting is a
// two phase protocol: the boot sector is read with this fixed size and every
// later read uses the sector size from the geometry.
// The FAT32 boot record always fits into the first 512 bytes.
const BootstrapSectorSize = 512

// sectorReader provides the sector I/O needed by FatTable.
// It mainly exists to be able to mock the store in tests.
// Generated mock using mockgen:
//  mockgen -source=sector.go -destination=sector_mock.go -package fatfs
type sectorReader interface {
	// ReadSectors reads count sectors starting at lba into p.
	ReadSectors(count uint32, lba uint32, p []byte) (int, error)
}

// SectorReader reads fixed-size sectors from a seekable store.
type SectorReader struct {
	store      io.ReadSeeker
	sectorSize uint32
}

// NewSectorReader creates a SectorReader for the given sector size.
func NewSectorReader(store io.ReadSeeker, sectorSize uint32) *SectorReader {
	return &SectorReader{
		store:      store,
		sectorSize: sectorSize,
	}
}

// SectorSize returns the size of one sector in bytes.
func (r *SectorReader) SectorSize() uint32 {
	return r.sectorSize
}

// ReadSectors seeks to lba * sector size and reads count sectors into p.
// p has to hold at least count sectors.
// It returns the number of bytes actually read and an ErrIO if that is less than requested.
func (r *SectorReader) ReadSectors(count uint32, lba uint32, p []byte) (int, error) {
	want := int64(count) * int64(r.sectorSize)
	if int64(len(p)) < want {
		return 0, checkpoint.Wrap(io.ErrShortBuffer, fmt.Errorf("%w, need %v bytes for %v sectors but got %v", ErrIO, want, count, len(p)))
	}

	_, err := r.store.Seek(int64(lba)*int64(r.sectorSize), io.SeekStart)
	if err != nil {
		return 0, checkpoint.Wrap(err, fmt.Errorf("%w, seek to sector %v", ErrIO, lba))
	}

	n, err := io.ReadFull(r.store, p[:want])
	if err == io.EOF {
		// Nothing at all was left, which is still a short read.
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return n, checkpoint.Wrap(err, fmt.Errorf("%w, read %v of %v bytes at sector %v", ErrIO, n, want, lba))
	}

	return n, nil
}
