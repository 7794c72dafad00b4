package fatfs

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// testImage describes a small FAT32 image which is built in memory for tests.
type testImage struct {
	jumpBoot          [3]byte
	media             uint8
	sectorSize        uint16
	sectorsPerCluster uint8
	reservedSectors   uint16
	fatCount          uint8
	fatSize           uint32
	sectorCount16     uint16
	sectorCount32     uint32
	hiddenSectors     uint32
	rootCluster       uint32
	fsInfoSector      uint16
	freeCount         uint32
	nextFree          uint32
	label             string
	noSignature       bool

	// Overrides for the FSInfo signatures, 0 means the correct value.
	leadSignature   uint32
	structSignature uint32
	trailSignature  uint32

	// dataSectors are appended after the FATs.
	dataSectors uint32
}

func defaultTestImage() testImage {
	return testImage{
		jumpBoot:          [3]byte{0xEB, 0x58, 0x90},
		media:             0xF8,
		sectorSize:        512,
		sectorsPerCluster: 1,
		reservedSectors:   32,
		fatCount:          2,
		fatSize:           4,
		sectorCount32:     32 + 2*4 + 16,
		rootCluster:       2,
		fsInfoSector:      1,
		freeCount:         12,
		nextFree:          5,
		label:             "TESTVOLUME",
		dataSectors:       16,
	}
}

func (i testImage) bootSector() []byte {
	sector := make([]byte, bootSectorSize)
	copy(sector[0:3], i.jumpBoot[:])
	copy(sector[3:11], "MSWIN4.1")
	binary.LittleEndian.PutUint16(sector[11:13], i.sectorSize)
	sector[13] = i.sectorsPerCluster
	binary.LittleEndian.PutUint16(sector[14:16], i.reservedSectors)
	sector[16] = i.fatCount
	binary.LittleEndian.PutUint16(sector[19:21], i.sectorCount16)
	sector[21] = i.media
	binary.LittleEndian.PutUint16(sector[24:26], 63)
	binary.LittleEndian.PutUint16(sector[26:28], 255)
	binary.LittleEndian.PutUint32(sector[28:32], i.hiddenSectors)
	binary.LittleEndian.PutUint32(sector[32:36], i.sectorCount32)
	binary.LittleEndian.PutUint32(sector[36:40], i.fatSize)
	binary.LittleEndian.PutUint32(sector[44:48], i.rootCluster)
	binary.LittleEndian.PutUint16(sector[48:50], i.fsInfoSector)
	binary.LittleEndian.PutUint16(sector[50:52], 6)
	sector[64] = 0x80
	sector[66] = 0x29
	binary.LittleEndian.PutUint32(sector[67:71], 0x12345678)
	copy(sector[71:82], padRight(i.label, 11))
	copy(sector[82:90], padRight("FAT32", 8))

	if !i.noSignature {
		sector[510] = 0x55
		sector[511] = 0xAA
	}
	return sector
}

func (i testImage) fsInfo() []byte {
	sector := make([]byte, i.sectorSize)
	binary.LittleEndian.PutUint32(sector[0:], orDefault(i.leadSignature, FsInfoLeadSignature))
	binary.LittleEndian.PutUint32(sector[484:], orDefault(i.structSignature, FsInfoStructSignature))
	binary.LittleEndian.PutUint32(sector[488:], i.freeCount)
	binary.LittleEndian.PutUint32(sector[492:], i.nextFree)
	binary.LittleEndian.PutUint32(sector[508:], orDefault(i.trailSignature, FsInfoTrailingSignature))
	return sector
}

// build creates the image. fats contains the entries for each FAT copy,
// if only one is given it is used for all copies.
func (i testImage) build(fats ...map[uint32]uint32) []byte {
	sectorSize := uint32(i.sectorSize)
	total := uint32(i.reservedSectors) + uint32(i.fatCount)*i.fatSize + i.dataSectors
	image := make([]byte, total*sectorSize)

	copy(image, i.bootSector())
	// An FSInfo sector outside of the image is simply not written.
	if i.fsInfoSector != 0 && i.fsInfoSector != 0xFFFF && uint32(i.fsInfoSector) < total {
		copy(image[uint32(i.fsInfoSector)*sectorSize:], i.fsInfo())
	}

	for c := uint32(0); c < uint32(i.fatCount); c++ {
		var entries map[uint32]uint32
		switch {
		case len(fats) == 1:
			entries = fats[0]
		case int(c) < len(fats):
			entries = fats[c]
		}

		fatStart := (uint32(i.reservedSectors) + c*i.fatSize) * sectorSize
		for index, value := range entries {
			binary.LittleEndian.PutUint32(image[fatStart+index*entrySize:], value)
		}
	}

	return image
}

func (i testImage) reader(fats ...map[uint32]uint32) *bytes.Reader {
	return bytes.NewReader(i.build(fats...))
}

func padRight(s string, n int) []byte {
	b := bytes.Repeat([]byte{' '}, n)
	copy(b, s)
	return b
}

func orDefault(value, def uint32) uint32 {
	if value == 0 {
		return def
	}
	return value
}

// testingMount mounts the image or fails the test.
func testingMount(t *testing.T, image testImage, fats ...map[uint32]uint32) *FileSystem {
	t.Helper()
	fs, err := Mount(image.reader(fats...))
	if err != nil {
		t.Fatalf("could not mount the test image: %v", err)
	}
	t.Cleanup(func() {
		fs.Unmount()
	})
	return fs
}
