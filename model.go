// File model contains the structs which match the direct on-disk structures of a FAT32 volume.
// They are decoded with restruct, little endian, field by field in declaration order.

package fatfs

// bootSector is the complete FAT32 boot sector of 512 bytes.
type bootSector struct {
	JumpBoot          [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	FATCount          uint8
	RootEntryCount    uint16
	SectorCount16     uint16
	Media             uint8
	FATSize16         uint16
	SectorsPerTrack   uint16
	HeadCount         uint16
	HiddenSectors     uint32
	SectorCount32     uint32

	// FAT32 specific part.
	FATSize32        uint32
	ExtFlags         uint16
	Version          uint16
	RootCluster      uint32
	FsInfoSector     uint16
	BackupBootSector uint16
	Reserved         [12]byte
	DriveNumber      uint8
	Reserved1        uint8
	ExtBootSignature uint8
	VolumeID         uint32
	VolumeLabel      [11]byte
	FileSystemType   [8]byte
	BootCode         [420]byte

	// Signature is 0x55, 0xAA.
	Signature [2]byte
}

// fsInfoSector is the 512 byte FSInfo structure at the start of the FSInfo sector.
type fsInfoSector struct {
	LeadSignature     uint32
	Reserved1         [480]byte
	StructSignature   uint32
	FreeClusterCount  uint32
	NextFreeCluster   uint32
	Reserved2         [12]byte
	TrailingSignature uint32
}

const (
	bootSectorSize   = 512
	fsInfoSectorSize = 512
)
