package tinyfs

import (
	bitmaplib "github.com/boljen/go-bitmap"
)

// invalidBitmapBlk is the sentinel cached in loadedBitmapBlk when a prior
// Allocate call wrapped all the way around without finding a free block.
// It is distinct from FirstBitmapBlk (0) so the zero value isn't mistaken
// for "disk full cached".
const invalidBitmapBlk = BlockID(0xffffffff)

// bitmapAllocator is a rotating bitmap allocator. It keeps exactly one
// bitmap block buffered at a time and advances its cursor across the
// device's bitmap regions (one region per 4096 blocks) as each region
// fills up.
type bitmapAllocator struct {
	device BlockDevice

	loadedBitmapBlk BlockID
	bitmapBlk       [BlockSize]byte

	// lastBitmapBlk is the block number of the highest bitmap block on the
	// device; lastBitmapLen is the number of valid (real) bits in it.
	lastBitmapBlk BlockID
	lastBitmapLen uint
}

func newBitmapAllocator(device BlockDevice, blkCount BlockID) bitmapAllocator {
	last := (uint(blkCount) - 1) / BitmapRegionBlocks * BitmapRegionBlocks
	lastLen := ((uint(blkCount) - 1) % BitmapRegionBlocks) + 1
	return bitmapAllocator{
		device:        device,
		lastBitmapBlk: BlockID(last),
		lastBitmapLen: lastLen,
	}
}

// load reads the bitmap block at blk into the buffer and remembers it as
// the loaded block.
func (a *bitmapAllocator) load(blk BlockID) error {
	if err := a.device.ReadBlock(blk, a.bitmapBlk[:]); err != nil {
		return ErrIO
	}
	a.loadedBitmapBlk = blk
	return nil
}

// init is called once at mount time; it loads the first bitmap block.
func (a *bitmapAllocator) init() error {
	return a.load(FirstBitmapBlk)
}

// bits wraps the currently-loaded bitmap block as a bit-addressable view.
// go-bitmap addresses bits LSB-first within each byte, which is exactly
// the on-disk bit order, so no translation is needed.
func (a *bitmapAllocator) bits() bitmaplib.Bitmap {
	return bitmapBitsView(a.bitmapBlk[:])
}

// bitmapBitsView wraps any BlockSize-byte buffer as a bit-addressable
// view, used directly by Format to prepare bitmap blocks before an
// allocator is attached to them.
func bitmapBitsView(buf []byte) bitmaplib.Bitmap {
	return bitmaplib.Bitmap(buf)
}

// allocate scans forward from the cursor for the first clear bit, sets it,
// persists the bitmap block, and returns the allocated block's absolute
// number. It reports ErrDiskFull once a full wrap finds nothing, and caches
// that result until a Free call clears a bit somewhere.
func (a *bitmapAllocator) allocate() (BlockID, error) {
	if a.loadedBitmapBlk == invalidBitmapBlk {
		return 0, ErrDiskFull
	}

	start := a.loadedBitmapBlk
	for {
		bits := a.bits()
		for i := 0; i < BitmapRegionBlocks; i++ {
			if !bits.Get(i) {
				bits.Set(i, true)
				if err := a.device.WriteBlock(a.loadedBitmapBlk, a.bitmapBlk[:]); err != nil {
					return 0, ErrIO
				}
				return a.loadedBitmapBlk + BlockID(i), nil
			}
		}

		var next BlockID
		if a.loadedBitmapBlk == a.lastBitmapBlk {
			next = FirstBitmapBlk
		} else {
			next = a.loadedBitmapBlk + BitmapRegionBlocks
		}

		if next == start {
			a.loadedBitmapBlk = invalidBitmapBlk
			return 0, ErrDiskFull
		}

		if err := a.load(next); err != nil {
			a.loadedBitmapBlk = invalidBitmapBlk
			return 0, err
		}
	}
}

// free clears block's bit in its containing bitmap region and persists the
// region's block. This also un-caches a prior disk-full result.
func (a *bitmapAllocator) free(block BlockID) error {
	region := block &^ BlockID(BitmapRegionBlocks-1)
	if a.loadedBitmapBlk != region {
		if err := a.load(region); err != nil {
			return err
		}
	}

	bits := a.bits()
	bits.Set(int(block-region), false)
	return a.device.WriteBlock(a.loadedBitmapBlk, a.bitmapBlk[:])
}

// usedCount walks every bitmap region front to back, popcounts its bits,
// then subtracts the synthetic "beyond device end" padding of the final
// region to yield the true number of allocated blocks.
func (a *bitmapAllocator) usedCount() (uint, error) {
	savedBlk := a.loadedBitmapBlk
	var savedBuf [BlockSize]byte
	copy(savedBuf[:], a.bitmapBlk[:])

	total := uint(0)
	pos := FirstBitmapBlk
	for {
		if a.loadedBitmapBlk != pos {
			if err := a.load(pos); err != nil {
				return 0, err
			}
		}

		bits := a.bits()
		for i := 0; i < BitmapRegionBlocks; i++ {
			if bits.Get(i) {
				total++
			}
		}

		if pos == a.lastBitmapBlk {
			break
		}
		pos += BitmapRegionBlocks
	}

	total -= BitmapRegionBlocks - a.lastBitmapLen

	// Restore whatever was cached before this scan; usedCount must not
	// disturb the allocator's cursor position.
	if savedBlk == invalidBitmapBlk {
		a.loadedBitmapBlk = invalidBitmapBlk
	} else {
		a.loadedBitmapBlk = savedBlk
		copy(a.bitmapBlk[:], savedBuf[:])
	}
	return total, nil
}
