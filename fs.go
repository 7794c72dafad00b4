package fatfs

import (
	"errors"
	"io"

	"github.com/aligator/fatfs/checkpoint"
	"github.com/golang/glog"
	"github.com/spf13/afero"
)

// FileSystem is a mounted, read-only FAT32 volume.
// It owns the FAT table and the geometry of the volume.
// Directory and cluster chain handling is left to the users of FAT and RootCluster.
type FileSystem struct {
	bpb      BootParameterBlock
	geometry DriveGeometry
	fat      *FatTable

	rootCluster      uint32
	nextFreeCluster  ClusterHint
	freeClusterCount ClusterHint

	// closer is only set if the FileSystem opened the store itself.
	closer  io.Closer
	mounted bool
}

// Mount opens a FAT32 filesystem from the given store.
func Mount(store io.ReadSeeker) (*FileSystem, error) {
	return mount(store, false)
}

// MountSkipChecks opens a FAT32 filesystem from the given store just like Mount but
// it skips some boot sector validations which may allow you to open not perfectly standard FAT filesystems.
// The boot signature is still required.
// Use with caution!
func MountSkipChecks(store io.ReadSeeker) (*FileSystem, error) {
	return mount(store, true)
}

// MountFile opens the image name from fsys and mounts it.
// The image is closed by Unmount.
func MountFile(fsys afero.Fs, name string, skipChecks bool) (*FileSystem, error) {
	file, err := fsys.Open(name)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrIO)
	}

	fs, err := mount(file, skipChecks)
	if err != nil {
		file.Close()
		return nil, err
	}

	fs.closer = file
	return fs, nil
}

func mount(store io.ReadSeeker, skipChecks bool) (*FileSystem, error) {
	// The boot sector is read with the bootstrap sector size as the real one is inside of it.
	bpb, err := ReadBootSector(NewSectorReader(store, BootstrapSectorSize), skipChecks)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	// From now on every read uses the real sector size.
	geometry := NewDriveGeometry(bpb)
	reader := NewSectorReader(store, geometry.SectorSize)

	fat, err := newFatTable(reader, bpb, geometry)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	fs := &FileSystem{
		bpb:         *bpb,
		geometry:    geometry,
		fat:         fat,
		rootCluster: bpb.RootCluster,
		mounted:     true,
	}

	info, err := ReadFsInfo(reader, bpb.FsInfoSector)
	switch {
	case err == nil:
		fs.freeClusterCount = info.FreeClusterCount
		fs.nextFreeCluster = info.NextFreeCluster
	case errors.Is(err, ErrValidation):
		// The FSInfo only provides hints, so the volume is still usable without it.
		glog.Warningf("ignoring FSInfo sector %v, free space is unknown: %v", bpb.FsInfoSector, err)
	default:
		fat.Close()
		return nil, checkpoint.From(err)
	}

	glog.V(1).Infof("mounted FAT32 volume %q: %v, FAT at %v with %v sectors x %v, root cluster %v",
		bpb.VolumeLabel, geometry, fat.StartLBA(), fat.Size(), fat.Copies(), fs.rootCluster)

	return fs, nil
}

// Unmount releases the FAT table and, if it was opened by MountFile, closes the image.
// Nothing is written back. Unmounting twice does nothing.
func (fs *FileSystem) Unmount() error {
	if !fs.mounted {
		return nil
	}
	fs.mounted = false

	err := fs.fat.Close()
	fs.geometry = DriveGeometry{}

	if fs.closer != nil {
		if closeErr := fs.closer.Close(); closeErr != nil && err == nil {
			err = checkpoint.Wrap(closeErr, ErrIO)
		}
		fs.closer = nil
	}

	return checkpoint.From(err)
}

// RootCluster returns the first cluster of the root directory.
func (fs *FileSystem) RootCluster() uint32 {
	return fs.rootCluster
}

// FreeClusterCount returns the free cluster count as stored in the FSInfo sector.
func (fs *FileSystem) FreeClusterCount() ClusterHint {
	return fs.freeClusterCount
}

// NextFreeCluster returns the hint where to look for free clusters as stored in the FSInfo sector.
func (fs *FileSystem) NextFreeCluster() ClusterHint {
	return fs.nextFreeCluster
}

func (fs *FileSystem) Geometry() DriveGeometry {
	return fs.geometry
}

// FAT returns the FAT table of the volume. It stays owned by the FileSystem.
func (fs *FileSystem) FAT() *FatTable {
	return fs.fat
}

// BootParameterBlock returns a copy of the boot parameters.
func (fs *FileSystem) BootParameterBlock() BootParameterBlock {
	return fs.bpb
}

// Label returns the volume label from the boot sector.
func (fs *FileSystem) Label() string {
	return fs.bpb.VolumeLabel
}

// FSType returns the filesystem type string from the boot sector, usually "FAT32".
// It is informational only.
func (fs *FileSystem) FSType() string {
	return fs.bpb.FileSystemType
}
