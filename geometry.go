package fatfs

import (
	"fmt"

	"github.com/aligator/fatfs/checkpoint"
)

// DriveGeometry describes the layout of the volume. It is derived once from the BootParameterBlock.
type DriveGeometry struct {
	SectorSize        uint32
	SectorsPerCluster uint32
	// ClusterSize is always SectorsPerCluster * SectorSize.
	ClusterSize uint32
	SectorCount uint32
	// PartitionLBA is the hidden sector count, the position of the volume on its medium.
	// All LBAs used by this package are relative to the volume itself.
	PartitionLBA uint32
	// DataStartLBA is the first sector of cluster 2, directly after all FATs.
	DataStartLBA uint32
}

// NewDriveGeometry derives the geometry from bpb.
func NewDriveGeometry(bpb *BootParameterBlock) DriveGeometry {
	sectorCount := uint32(bpb.SectorCount16)
	if sectorCount == 0 {
		sectorCount = bpb.SectorCount32
	}

	return DriveGeometry{
		SectorSize:        uint32(bpb.BytesPerSector),
		SectorsPerCluster: uint32(bpb.SectorsPerCluster),
		ClusterSize:       uint32(bpb.SectorsPerCluster) * uint32(bpb.BytesPerSector),
		SectorCount:       sectorCount,
		PartitionLBA:      bpb.HiddenSectors,
		DataStartLBA:      uint32(bpb.FATStartSector) + uint32(bpb.FATCount)*bpb.FATSize,
	}
}

// ClusterLBA returns the first sector of the given data cluster.
// Data clusters start at 2.
func (g DriveGeometry) ClusterLBA(cluster uint32) (uint32, error) {
	if cluster < 2 {
		return 0, checkpoint.From(fmt.Errorf("%w: cluster %v is no data cluster", ErrEntryOutOfRange, cluster))
	}

	lba := uint64(g.DataStartLBA) + uint64(cluster-2)*uint64(g.SectorsPerCluster)
	if g.SectorCount != 0 && lba >= uint64(g.SectorCount) {
		return 0, checkpoint.From(fmt.Errorf("%w: cluster %v starts at sector %v behind the last sector %v", ErrEntryOutOfRange, cluster, lba, g.SectorCount-1))
	}

	return uint32(lba), nil
}

func (g DriveGeometry) String() string {
	return fmt.Sprintf("sector size %v, %v sectors per cluster (%v bytes), %v sectors, partition at %v, data at %v",
		g.SectorSize, g.SectorsPerCluster, g.ClusterSize, g.SectorCount, g.PartitionLBA, g.DataStartLBA)
}
