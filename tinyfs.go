// Package tinyfs implements TFS, a minimal hierarchical file system for
// small block devices such as SD/MMC cards or raw image files.
//
// The on-disk layout is fixed: 512-byte blocks, a rotating bitmap
// allocator, chained directory blocks with fixed-size item slots, and a
// doubly-linked chain of data blocks per file. The byte-exact layout is
// documented on the codecs in dirent.go and datablk.go.
package tinyfs

// BlockSize is the size in bytes of every block on a TFS image. It is a
// compile-time constant: the format has no notion of a variable block size.
const BlockSize = 512

// NameLen is the fixed width, in bytes, of a directory item's name field.
// Names shorter than this are zero-padded; TFS has no long-name support.
const NameLen = 16

// FirstBitmapBlk is the block number of the first (and lowest-numbered)
// bitmap block.
const FirstBitmapBlk BlockID = 0

// RootDirBlk is the block number of the root directory's first block.
const RootDirBlk BlockID = 1

// BitmapRegionBlocks is the number of blocks a single bitmap block covers:
// 512 bytes * 8 bits per byte.
const BitmapRegionBlocks = BlockSize * 8

// BlockID identifies a block by its absolute position on the device.
type BlockID uint32

// DriveType tags the kind of physical or emulated medium backing a
// BlockDevice.
type DriveType uint8

const (
	DriveTypeEmu DriveType = iota
	DriveTypeMMC
	DriveTypeSDv1
	DriveTypeSDv2
	DriveTypeSDHC
)

// DriveInfo describes the medium a BlockDevice exposes. It is informational;
// the core never changes it.
type DriveInfo struct {
	Model    string
	Serno    string
	Type     DriveType
	BlkCount BlockID
}

// BlockDevice is the abstract block-level I/O contract the core consumes.
// Implementations back it with a raw SPI/SD driver, a host file, or an
// in-memory buffer; the core does not care which.
//
// Select and Deselect bracket a logical filesystem operation the way a chip
// select line brackets an SPI transaction. Every public TFS operation calls
// Select on entry and is guaranteed to call Deselect exactly once before
// returning, on every exit path.
type BlockDevice interface {
	Select()
	Deselect()

	// ReadBlock reads exactly BlockSize bytes from block blk into buf.
	// len(buf) must be BlockSize.
	ReadBlock(blk BlockID, buf []byte) error

	// WriteBlock writes exactly BlockSize bytes from buf to block blk.
	// len(buf) must be BlockSize.
	WriteBlock(blk BlockID, buf []byte) error

	// Info returns the drive's metadata, including its block count.
	Info() DriveInfo
}
