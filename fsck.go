package tinyfs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Check walks the bitmap, every directory chain reachable from the root,
// and every file's data chain. It verifies directory prev links and
// parent pointers, unique names per directory, each data chain's length
// against its recorded size, and that reachable blocks are in range, and
// it compares the bitmap's total used-block count with the number of
// reachable blocks; individual bitmap bits are not matched against
// individual blocks, and reserved names are not checked. It never mutates
// the image. It returns nil if the image is fully consistent, or a
// *multierror.Error aggregating every violation found.
func (fs *Filesystem) Check() error {
	fs.device.Select()
	defer fs.device.Deselect()

	blkCount := fs.device.Info().BlkCount
	reachable := make(map[BlockID]bool)

	// Bitmap block positions are computed arithmetically (0, 4096, 8192,
	// ...), not chained via an in-block pointer; mirror the allocator's
	// own region math here.
	var result error
	last := BlockID((uint(blkCount) - 1) / BitmapRegionBlocks * BitmapRegionBlocks)
	for bitmapBlk := FirstBitmapBlk; ; bitmapBlk += BitmapRegionBlocks {
		reachable[bitmapBlk] = true
		if bitmapBlk == last {
			break
		}
	}

	if err := fs.checkDirChain(RootDirBlk, 0, reachable, &result); err != nil {
		result = multierror.Append(result, err)
	}

	used, err := fs.alloc.usedCount()
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("computing used block count: %w", err))
	} else if uint(len(reachable)) != used {
		result = multierror.Append(
			result,
			fmt.Errorf(
				"bitmap reports %d used blocks, but only %d are reachable from the root",
				used, len(reachable)))
	}

	for blk := range reachable {
		if blk >= blkCount {
			result = multierror.Append(
				result, fmt.Errorf("reachable block %d is out of range [0, %d)", blk, blkCount))
		}
	}

	return result
}

// checkDirChain validates one directory's chain (prev/next consistency,
// unique names, matching parent) and recurses into subdirectories and
// files, marking every block it visits as reachable.
func (fs *Filesystem) checkDirChain(head BlockID, parent BlockID, reachable map[BlockID]bool, result *error) error {
	names := make(map[string]bool)
	pos := head
	prevBlk := BlockID(0)

	for {
		reachable[pos] = true
		var buf [BlockSize]byte
		if err := fs.device.ReadBlock(pos, buf[:]); err != nil {
			return fmt.Errorf("reading directory block %d: %w", pos, err)
		}
		block := decodeDirBlock(buf[:])

		if block.header.prev != prevBlk {
			*result = multierror.Append(*result, fmt.Errorf(
				"directory block %d: prev=%d, expected %d", pos, block.header.prev, prevBlk))
		}
		if block.header.parent != parent {
			*result = multierror.Append(*result, fmt.Errorf(
				"directory block %d: parent=%d, expected %d", pos, block.header.parent, parent))
		}

		for i := range block.items {
			item := block.items[i]
			if item.Type == ItemFree {
				continue
			}
			name := item.NameString()
			if names[name] {
				*result = multierror.Append(*result, fmt.Errorf(
					"directory block %d: duplicate name %q", pos, name))
			}
			names[name] = true

			switch item.Type {
			case ItemDir:
				if err := fs.checkDirChain(item.Blk, head, reachable, result); err != nil {
					*result = multierror.Append(*result, err)
				}
			case ItemFile:
				if err := fs.checkDataChain(item.Blk, item.Size, reachable, result); err != nil {
					*result = multierror.Append(*result, err)
				}
			}
		}

		if block.header.next == 0 {
			break
		}
		prevBlk = pos
		pos = block.header.next
	}

	return nil
}

// checkDataChain validates that a file's chain has exactly the block
// count its recorded size implies, marking every block visited as
// reachable.
func (fs *Filesystem) checkDataChain(first BlockID, size uint32, reachable map[BlockID]bool, result *error) error {
	want := chainLengthForSize(size)
	if want == 0 {
		if first != 0 {
			*result = multierror.Append(*result, fmt.Errorf(
				"zero-length file has non-zero first block %d", first))
		}
		return nil
	}

	got := uint32(0)
	pos := first
	for pos != 0 {
		reachable[pos] = true
		var buf [BlockSize]byte
		if err := fs.device.ReadBlock(pos, buf[:]); err != nil {
			return fmt.Errorf("reading data block %d: %w", pos, err)
		}
		header := decodeDataBlockHeader(buf[:dataHeaderSize])
		got++
		pos = header.Next
	}

	if got != want {
		*result = multierror.Append(*result, fmt.Errorf(
			"file with size %d should have %d data blocks, chain from %d has %d", size, want, first, got))
	}
	return nil
}
