package fatfs

import (
	"encoding/binary"
	"fmt"

	"github.com/aligator/fatfs/checkpoint"
	"github.com/go-restruct/restruct"
)

// Signatures of a valid FSInfo sector.
const (
	FsInfoLeadSignature     uint32 = 0x41615252
	FsInfoStructSignature   uint32 = 0x61417272
	FsInfoTrailingSignature uint32 = 0xAA550000
)

// UnknownCluster is the on-disk value for a free cluster count or next free cluster which is not known.
const UnknownCluster uint32 = 0xFFFFFFFF

// noFsInfoSector values in the boot sector mean that the volume has no FSInfo sector.
var noFsInfoSector = map[uint16]bool{0: true, 0xFFFF: true}

// FsInfo is the decoded FSInfo sector.
type FsInfo struct {
	LeadSignature     uint32
	StructSignature   uint32
	TrailingSignature uint32
	FreeClusterCount  ClusterHint
	NextFreeCluster   ClusterHint
}

// ClusterHint is a cluster value from the FSInfo sector which may be unknown.
// The zero value is unknown.
type ClusterHint struct {
	value uint32
	known bool
}

// KnownCluster creates a ClusterHint which is known to be value.
// UnknownCluster results in an unknown hint.
func KnownCluster(value uint32) ClusterHint {
	if value == UnknownCluster {
		return ClusterHint{}
	}
	return ClusterHint{value: value, known: true}
}

// Get returns the value and if it is known.
func (h ClusterHint) Get() (uint32, bool) {
	return h.value, h.known
}

// Raw returns the value as it would be stored on disk, which is UnknownCluster if it is not known.
func (h ClusterHint) Raw() uint32 {
	if !h.known {
		return UnknownCluster
	}
	return h.value
}

func (h ClusterHint) String() string {
	if !h.known {
		return "unknown"
	}
	return fmt.Sprint(h.value)
}

// Validate checks all three signatures.
func (i *FsInfo) Validate() error {
	if i.LeadSignature != FsInfoLeadSignature {
		return checkpoint.From(fmt.Errorf("%w: lead signature is %#x, want %#x", ErrValidation, i.LeadSignature, FsInfoLeadSignature))
	}
	if i.StructSignature != FsInfoStructSignature {
		return checkpoint.From(fmt.Errorf("%w: struct signature is %#x, want %#x", ErrValidation, i.StructSignature, FsInfoStructSignature))
	}
	if i.TrailingSignature != FsInfoTrailingSignature {
		return checkpoint.From(fmt.Errorf("%w: trailing signature is %#x, want %#x", ErrValidation, i.TrailingSignature, FsInfoTrailingSignature))
	}
	return nil
}

// ParseFsInfo decodes and validates an FSInfo sector.
// The FSInfo structure always occupies the first 512 bytes, also for bigger sectors.
func ParseFsInfo(data []byte) (*FsInfo, error) {
	if len(data) < fsInfoSectorSize {
		return nil, checkpoint.From(fmt.Errorf("%w: got only %v bytes", ErrValidation, len(data)))
	}

	raw := fsInfoSector{}
	if err := restruct.Unpack(data[:fsInfoSectorSize], binary.LittleEndian, &raw); err != nil {
		return nil, checkpoint.Wrap(err, ErrValidation)
	}

	info := &FsInfo{
		LeadSignature:     raw.LeadSignature,
		StructSignature:   raw.StructSignature,
		TrailingSignature: raw.TrailingSignature,
		FreeClusterCount:  KnownCluster(raw.FreeClusterCount),
		NextFreeCluster:   KnownCluster(raw.NextFreeCluster),
	}

	if err := info.Validate(); err != nil {
		return nil, err
	}

	return info, nil
}

// ReadFsInfo reads the FSInfo sector with the given sector number.
// An I/O failure results in ErrIO, a bad sector in ErrValidation.
// If the boot sector says that there is no FSInfo sector an FsInfo with unknown values is returned
// without reading anything.
func ReadFsInfo(r *SectorReader, sector uint16) (*FsInfo, error) {
	if noFsInfoSector[sector] {
		return &FsInfo{
			LeadSignature:     FsInfoLeadSignature,
			StructSignature:   FsInfoStructSignature,
			TrailingSignature: FsInfoTrailingSignature,
		}, nil
	}

	staging := make([]byte, r.SectorSize())
	if _, err := r.ReadSectors(1, uint32(sector), staging); err != nil {
		return nil, checkpoint.From(err)
	}

	return ParseFsInfo(staging)
}
