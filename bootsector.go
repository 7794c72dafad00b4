package fatfs

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"

	"github.com/aligator/fatfs/checkpoint"
	"github.com/go-restruct/restruct"
	"golang.org/x/text/encoding/charmap"
)

// BootParameterBlock contains the values of the boot sector which are needed to access the volume.
// It is read once while mounting and never changed.
type BootParameterBlock struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	FATCount          uint8
	SectorCount16     uint16
	SectorCount32     uint32
	HiddenSectors     uint32

	// FATSize is the size of one FAT in sectors.
	FATSize uint32
	// FsInfoSector is the sector number of the FSInfo sector.
	FsInfoSector uint16
	// FATStartSector is the first sector of the first FAT, which is the reserved sector count.
	FATStartSector   uint16
	RootCluster      uint32
	BackupBootSector uint16

	JumpBoot       [3]byte
	Media          uint8
	VolumeID       uint32
	OEMName        string
	VolumeLabel    string
	FileSystemType string
}

// ReadBootSector reads the first sector using r and decodes it.
// r has to use the BootstrapSectorSize as the real sector size is not known yet.
// If skipChecks is set, only the checks which are needed to access the volume safely are done.
func ReadBootSector(r *SectorReader, skipChecks bool) (*BootParameterBlock, error) {
	if r.SectorSize() != BootstrapSectorSize {
		return nil, checkpoint.From(fmt.Errorf("the boot sector has to be read with a sector size of %v, not %v", BootstrapSectorSize, r.SectorSize()))
	}

	staging := make([]byte, BootstrapSectorSize)
	if _, err := r.ReadSectors(1, 0, staging); err != nil {
		return nil, checkpoint.From(err)
	}

	return ParseBootSector(staging, skipChecks)
}

// ParseBootSector decodes a raw boot sector.
func ParseBootSector(data []byte, skipChecks bool) (*BootParameterBlock, error) {
	if len(data) < bootSectorSize {
		return nil, checkpoint.From(fmt.Errorf("%w: got only %v bytes", ErrInvalidBootSector, len(data)))
	}

	raw := bootSector{}
	err := restruct.Unpack(data[:bootSectorSize], binary.LittleEndian, &raw)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrInvalidBootSector)
	}

	if err := checkBootSector(&raw, skipChecks); err != nil {
		return nil, err
	}

	return &BootParameterBlock{
		BytesPerSector:    raw.BytesPerSector,
		SectorsPerCluster: raw.SectorsPerCluster,
		FATCount:          raw.FATCount,
		SectorCount16:     raw.SectorCount16,
		SectorCount32:     raw.SectorCount32,
		HiddenSectors:     raw.HiddenSectors,
		FATSize:           raw.FATSize32,
		FsInfoSector:      raw.FsInfoSector,
		FATStartSector:    raw.ReservedSectors,
		RootCluster:       raw.RootCluster,
		BackupBootSector:  raw.BackupBootSector,
		JumpBoot:          raw.JumpBoot,
		Media:             raw.Media,
		VolumeID:          raw.VolumeID,
		OEMName:           decodeOEMString(raw.OEMName[:]),
		VolumeLabel:       decodeOEMString(raw.VolumeLabel[:]),
		FileSystemType:    decodeOEMString(raw.FileSystemType[:]),
	}, nil
}

func checkBootSector(raw *bootSector, skipChecks bool) error {
	// The signature is the only thing that identifies a boot sector at all.
	if raw.Signature != [2]byte{0x55, 0xAA} {
		return checkpoint.From(fmt.Errorf("%w: missing signature 0x55 0xAA, got %#x %#x", ErrInvalidBootSector, raw.Signature[0], raw.Signature[1]))
	}

	// FAT only supports 512, 1024, 2048 and 4096.
	switch raw.BytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return checkpoint.From(fmt.Errorf("%w: invalid sector size %v", ErrInvalidBootSector, raw.BytesPerSector))
	}

	// Sectors per cluster has to be a power of two and greater than 0.
	if bits.OnesCount8(raw.SectorsPerCluster) != 1 {
		return checkpoint.From(fmt.Errorf("%w: invalid sectors per cluster %v", ErrInvalidBootSector, raw.SectorsPerCluster))
	}

	// The FAT starts after the reserved sectors, which at least contain the boot sector.
	if raw.ReservedSectors == 0 {
		return checkpoint.From(fmt.Errorf("%w: invalid reserved sector count 0", ErrInvalidBootSector))
	}

	if raw.FATSize32 == 0 {
		return checkpoint.From(fmt.Errorf("%w: FAT size is 0, no FAT32 volume", ErrInvalidBootSector))
	}

	if raw.FATCount == 0 {
		return checkpoint.From(fmt.Errorf("%w: no FAT on the volume", ErrInvalidBootSector))
	}

	if skipChecks {
		return nil
	}

	// Check for valid jump instructions.
	if !(raw.JumpBoot[0] == 0xEB && raw.JumpBoot[2] == 0x90) && raw.JumpBoot[0] != 0xE9 {
		return checkpoint.From(fmt.Errorf("%w: no valid jump instructions at the beginning", ErrInvalidBootSector))
	}

	if raw.Media != 0xF0 && raw.Media < 0xF8 {
		return checkpoint.From(fmt.Errorf("%w: invalid media value %#x", ErrInvalidBootSector, raw.Media))
	}

	// The whole cluster should not be bigger than 32K.
	if uint32(raw.BytesPerSector)*uint32(raw.SectorsPerCluster) > 32*1024 {
		return checkpoint.From(fmt.Errorf("%w: cluster size %v exceeds 32K", ErrInvalidBootSector, uint32(raw.BytesPerSector)*uint32(raw.SectorsPerCluster)))
	}

	if raw.RootCluster < 2 {
		return checkpoint.From(fmt.Errorf("%w: invalid root cluster %v", ErrInvalidBootSector, raw.RootCluster))
	}

	return nil
}

// decodeOEMString decodes a space padded string field of the boot sector.
// These fields use the OEM code page, which is 437 nearly everywhere.
func decodeOEMString(field []byte) string {
	decoded, err := charmap.CodePage437.NewDecoder().Bytes(field)
	if err != nil {
		decoded = field
	}

	return strings.TrimRight(string(decoded), " \x00")
}
