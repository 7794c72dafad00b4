package fatfs

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/aligator/fatfs/checkpoint"
	"github.com/golang/glog"
)

// entrySize is the size of one FAT32 entry in bytes.
const entrySize = 4

// maxSectorSize is the biggest sector size FAT allows.
const maxSectorSize = 4096

// Entry is a single FAT32 entry.
// Only the low 28 bits are used, the upper 4 bits are reserved.
type Entry uint32

// Special entry values.
const (
	entryMask            = 0x0FFFFFFF
	entryFree            = 0x00000000
	entryReserved        = 0x00000001
	entryReservedFirst   = 0x0FFFFFF0
	entryBad             = 0x0FFFFFF7
	entryEndOfChainFirst = 0x0FFFFFF8
)

// Value returns the entry without the reserved upper bits.
func (e Entry) Value() uint32 {
	return uint32(e) & entryMask
}

func (e Entry) IsFree() bool {
	return e.Value() == entryFree
}

func (e Entry) IsReserved() bool {
	return e.Value() == entryReserved
}

// IsNextCluster reports if the entry points to the next cluster of a chain.
func (e Entry) IsNextCluster() bool {
	return e.Value() >= 2 && e.Value() < entryReservedFirst
}

// IsReservedSometimes reports values which are reserved and should not be used, but
// may be found on some volumes.
func (e Entry) IsReservedSometimes() bool {
	return e.Value() >= entryReservedFirst && e.Value() < entryBad
}

func (e Entry) IsBad() bool {
	return e.Value() == entryBad
}

func (e Entry) IsEndOfChain() bool {
	return e.Value() >= entryEndOfChainFirst
}

func (e Entry) String() string {
	switch {
	case e.IsFree():
		return "free"
	case e.IsReserved():
		return "reserved"
	case e.IsNextCluster():
		return fmt.Sprintf("next %v", e.Value())
	case e.IsReservedSometimes():
		return fmt.Sprintf("reserved (%#x)", e.Value())
	case e.IsBad():
		return "bad"
	default:
		return "end of chain"
	}
}

// allocator provides the buffers for the sector cache.
type allocator func(size int) ([]byte, error)

func allocateSector(size int) ([]byte, error) {
	if size <= 0 || size > maxSectorSize {
		return nil, checkpoint.From(fmt.Errorf("%w: invalid sector buffer size %v", ErrAllocation, size))
	}
	return make([]byte, size), nil
}

// FatTable reads entries of the file allocation table.
// It keeps exactly one sector of the FAT in memory, which is replaced whenever an
// entry of another sector is read.
//
// FatTable is not safe for concurrent use. Reading an entry may replace the cache,
// so concurrent readers need to hold a lock around every read.
type FatTable struct {
	reader     sectorReader
	sectorSize uint32
	allocate   allocator

	start  uint32
	size   uint32
	copies uint8

	// cache contains the sector cachedLBA if cached is set.
	cache     []byte
	cachedLBA uint32
	cached    bool
	closed    bool
}

func newFatTable(reader sectorReader, bpb *BootParameterBlock, geometry DriveGeometry) (*FatTable, error) {
	return newFatTableWithAllocator(reader, bpb, geometry, allocateSector)
}

func newFatTableWithAllocator(reader sectorReader, bpb *BootParameterBlock, geometry DriveGeometry, allocate allocator) (*FatTable, error) {
	if geometry.SectorSize < entrySize || geometry.SectorSize%entrySize != 0 {
		return nil, checkpoint.From(fmt.Errorf("%w: sector size %v cannot hold FAT32 entries", ErrInvalidBootSector, geometry.SectorSize))
	}

	cache, err := allocate(int(geometry.SectorSize))
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrAllocation)
	}

	return &FatTable{
		reader:     reader,
		sectorSize: geometry.SectorSize,
		allocate:   allocate,
		start:      uint32(bpb.FATStartSector),
		size:       bpb.FATSize,
		copies:     bpb.FATCount,
		cache:      cache,
	}, nil
}

// StartLBA returns the first sector of the first FAT.
func (t *FatTable) StartLBA() uint32 {
	return t.start
}

// Size returns the size of one FAT in sectors.
func (t *FatTable) Size() uint32 {
	return t.size
}

// Copies returns how many copies of the FAT the volume contains.
func (t *FatTable) Copies() uint8 {
	return t.copies
}

func (t *FatTable) EntriesPerSector() uint32 {
	return t.sectorSize / entrySize
}

// EntryCount returns the number of entries which fit into one FAT.
func (t *FatTable) EntryCount() uint64 {
	return uint64(t.size) * uint64(t.EntriesPerSector())
}

// Locate translates an entry index into the sector of the first FAT containing it
// and the position of the entry inside of that sector.
func (t *FatTable) Locate(index uint32) (lba uint32, offset uint32) {
	perSector := t.EntriesPerSector()
	return t.start + index/perSector, index % perSector
}

// CachedLBA returns the sector which is currently in the cache.
// ok is false if no sector is cached.
func (t *FatTable) CachedLBA() (lba uint32, ok bool) {
	return t.cachedLBA, t.cached
}

// ReadEntry returns the entry with the given index from the first FAT.
func (t *FatTable) ReadEntry(index uint32) (Entry, error) {
	return t.ReadMirrorEntry(0, index)
}

// ReadMirrorEntry returns the entry with the given index from the FAT copy mirror.
// Copy 0 is the first FAT.
func (t *FatTable) ReadMirrorEntry(mirror uint8, index uint32) (Entry, error) {
	if t.closed {
		return 0, checkpoint.From(ErrClosed)
	}

	if mirror >= t.copies {
		return 0, checkpoint.From(fmt.Errorf("%w: FAT copy %v, the volume has %v", ErrEntryOutOfRange, mirror, t.copies))
	}

	if uint64(index) >= t.EntryCount() {
		return 0, checkpoint.From(fmt.Errorf("%w: index %v, the FAT has %v entries", ErrEntryOutOfRange, index, t.EntryCount()))
	}

	lba, offset := t.Locate(index)
	mirrorLBA := uint64(lba) + uint64(mirror)*uint64(t.size)
	if mirrorLBA > math.MaxUint32 {
		return 0, checkpoint.From(fmt.Errorf("%w: FAT copy %v lies behind the addressable sectors", ErrEntryOutOfRange, mirror))
	}

	if !t.cached || t.cachedLBA != uint32(mirrorLBA) {
		if err := t.refresh(uint32(mirrorLBA)); err != nil {
			return 0, err
		}
	}

	return Entry(binary.LittleEndian.Uint32(t.cache[offset*entrySize:])), nil
}

// refresh replaces the cache by the sector lba.
// The new sector is loaded completely before the old one is dropped, so on any error
// the previous cache stays valid.
func (t *FatTable) refresh(lba uint32) error {
	fresh, err := t.allocate(int(t.sectorSize))
	if err != nil {
		return checkpoint.Wrap(err, ErrAllocation)
	}
	if uint32(len(fresh)) < t.sectorSize {
		return checkpoint.From(fmt.Errorf("%w: got a buffer of %v bytes for a sector of %v", ErrAllocation, len(fresh), t.sectorSize))
	}

	n, err := t.reader.ReadSectors(1, lba, fresh)
	if err != nil {
		return checkpoint.Wrap(err, ErrIO)
	}
	if uint32(n) < t.sectorSize {
		return checkpoint.Wrap(io.ErrUnexpectedEOF, fmt.Errorf("%w, read %v of %v bytes at sector %v", ErrIO, n, t.sectorSize, lba))
	}

	glog.V(2).Infof("FAT cache: sector %v replaces sector %v (cached: %v)", lba, t.cachedLBA, t.cached)

	t.cache = fresh[:t.sectorSize]
	t.cachedLBA = lba
	t.cached = true
	return nil
}

// Close releases the cache. Every following read fails with ErrClosed.
// Closing twice does nothing.
func (t *FatTable) Close() error {
	if t.closed {
		return nil
	}

	t.cache = nil
	t.cached = false
	t.cachedLBA = 0
	t.closed = true
	return nil
}
