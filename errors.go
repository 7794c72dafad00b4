package fatfs

import "errors"

// These errors describe why a mount or a FAT read failed.
// Returned errors are decorated with checkpoint, use errors.Is to check for them.
var (
	// ErrIO is a seek or read failure against the backing store, including short reads.
	ErrIO = errors.New("could not read from the backing store")
	// ErrAllocation is returned when a sector buffer could not be allocated.
	ErrAllocation = errors.New("could not allocate a sector buffer")
	// ErrInvalidBootSector is returned if the first sector is no usable FAT32 boot sector.
	ErrInvalidBootSector = errors.New("invalid boot sector")
	// ErrValidation is returned if the FSInfo sector has a wrong signature.
	// Mount treats it as non-fatal.
	ErrValidation = errors.New("invalid FSInfo sector")

	ErrEntryOutOfRange = errors.New("FAT entry index out of range")
	ErrClosed          = errors.New("the FAT table is already closed")
)
