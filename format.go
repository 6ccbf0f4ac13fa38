package tinyfs

// FormatState identifies a phase of a Format call, reported to an optional
// progress observer. It is purely informational.
type FormatState uint8

const (
	FormatStateStart FormatState = iota
	FormatStateBitmapStart
	FormatStateBitmapDone
	FormatStateRootDir
	FormatStateDone
)

// FormatProgress is an optional observer for Format's progress. It is not
// part of the core contract: callers that don't care pass nil.
type FormatProgress interface {
	State(state FormatState)
	Progress(pos, max uint32)
}

// Format initializes a blank TFS image on device: it lays down every
// bitmap region (marking each bitmap block's own bit, and the trailing
// padding bits of the final region, as permanently used) and creates an
// empty root directory. progress may be nil.
func Format(device BlockDevice, progress FormatProgress) (*Filesystem, error) {
	info := device.Info()
	fs := &Filesystem{
		device:        device,
		alloc:         newBitmapAllocator(device, info.BlkCount),
		currentDirBlk: RootDirBlk,
	}

	device.Select()
	defer device.Deselect()

	if progress != nil {
		progress.State(FormatStateStart)
		progress.State(FormatStateBitmapStart)
	}

	if err := fs.writeBitmapRegions(info.BlkCount, progress); err != nil {
		return nil, err
	}

	if err := fs.alloc.init(); err != nil {
		return nil, err
	}
	if progress != nil {
		progress.State(FormatStateBitmapDone)
		progress.State(FormatStateRootDir)
	}

	rootBlk, err := fs.alloc.allocate()
	if err != nil {
		return nil, err
	}

	fs.dir = dirBlock{header: dirBlockHeader{prev: 0, next: 0, parent: 0}}
	fs.loadedDirBlk = rootBlk
	if err := fs.writeDir(); err != nil {
		return nil, err
	}

	if progress != nil {
		progress.State(FormatStateDone)
	}
	return fs, nil
}

// writeBitmapRegions lays down every bitmap block from FirstBitmapBlk to
// the device's last bitmap region, stepping by BitmapRegionBlocks. The
// first bit of every region (the bitmap block's own bit) is set; on the
// final region, every bit from lastBitmapLen through the end of the block
// is also set, marking the padding beyond the device's true end as
// permanently used so the allocator never returns it.
func (fs *Filesystem) writeBitmapRegions(blkCount BlockID, progress FormatProgress) error {
	last := BlockID((uint(blkCount) - 1) / BitmapRegionBlocks * BitmapRegionBlocks)
	lastLen := uint(((uint(blkCount) - 1) % BitmapRegionBlocks) + 1)

	var buf [BlockSize]byte
	pos := FirstBitmapBlk
	for {
		for i := range buf {
			buf[i] = 0
		}
		buf[0] = 1

		if pos == last {
			bits := bitmapBitsView(buf[:])
			for i := lastLen; i < BitmapRegionBlocks; i++ {
				bits.Set(int(i), true)
			}
		}

		if err := fs.device.WriteBlock(pos, buf[:]); err != nil {
			return ErrIO
		}
		if progress != nil {
			progress.Progress(uint32(pos), uint32(blkCount))
		}

		if pos == last {
			return nil
		}
		pos += BitmapRegionBlocks
	}
}
