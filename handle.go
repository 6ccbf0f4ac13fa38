package tinyfs

import (
	"github.com/pkg/errors"
)

// MaxFDs is the fixed size of a Handles table.
const MaxFDs = 16

// handle is one open file's bookkeeping. cursorPos is the byte offset, in
// the file, of the start of cursorBlk: always a multiple of DataLen.
type handle struct {
	usageCount int
	dirBlk     BlockID
	itemIdx    int
	size       uint32
	firstBlk   BlockID
	cursorBlk  BlockID
	cursorPos  uint32
}

// Handles is a fixed table of open file descriptors layered on top of a
// Filesystem. It adds a seekable, random-access API: open/close/read/
// write/trunc with an independent seek cursor per handle.
//
// Handles borrows its Filesystem's block device and allocator rather than
// owning a second copy of either: a caller who never constructs a Handles
// table never pays for this layer, playing the role conditional
// compilation plays in a build where this is an optional feature.
type Handles struct {
	fs      *Filesystem
	entries [MaxFDs]handle
}

// NewHandles attaches an extended file-handle table to fs. Once attached,
// fs's basic WriteFile/Delete operations consult it and refuse to
// overwrite, delete, or remove anything a live handle still refers to.
func NewHandles(fs *Filesystem) *Handles {
	h := &Handles{fs: fs}
	fs.handles = h
	return h
}

// findOpen returns the index of an existing handle targeting the same
// (dirBlk, itemIdx), or -1.
func (h *Handles) findOpen(dirBlk BlockID, itemIdx int) int {
	for i := range h.entries {
		e := &h.entries[i]
		if e.usageCount > 0 && e.dirBlk == dirBlk && e.itemIdx == itemIdx {
			return i
		}
	}
	return -1
}

// busy reports whether any open handle currently targets (dirBlk, itemIdx).
func (h *Handles) busy(dirBlk BlockID, itemIdx int) bool {
	return h.findOpen(dirBlk, itemIdx) >= 0
}

// Open locates name, which must be a file, and returns a descriptor for
// it. Opening the same file twice shares one handle slot and bumps its
// reference count.
func (h *Handles) Open(name string) (int, error) {
	fs := h.fs
	fs.device.Select()
	defer fs.device.Deselect()

	idx, found, err := fs.find(name, false)
	if err != nil {
		return -1, err
	}
	if !found || fs.dir.items[idx].Type != ItemFile {
		return -1, ErrNotExist
	}
	item := fs.dir.items[idx]
	dirBlk := fs.loadedDirBlk

	if fd := h.findOpen(dirBlk, idx); fd >= 0 {
		h.entries[fd].usageCount++
		return fd, nil
	}

	for fd := range h.entries {
		if h.entries[fd].usageCount == 0 {
			h.entries[fd] = handle{
				usageCount: 1,
				dirBlk:     dirBlk,
				itemIdx:    idx,
				size:       item.Size,
				firstBlk:   item.Blk,
				cursorBlk:  item.Blk,
				cursorPos:  0,
			}
			return fd, nil
		}
	}
	return -1, ErrNoFreeFD
}

// Close releases one reference to fd.
func (h *Handles) Close(fd int) error {
	if fd < 0 || fd >= MaxFDs || h.entries[fd].usageCount == 0 {
		return ErrInvalFD
	}
	h.entries[fd].usageCount--
	return nil
}

// Stat returns the directory item for name, or found=false if it does not
// exist. A missing name is not an error.
func (h *Handles) Stat(name string) (DirItem, bool, error) {
	fs := h.fs
	fs.device.Select()
	defer fs.device.Deselect()

	idx, found, err := fs.find(name, false)
	if err != nil || !found {
		return DirItem{}, false, err
	}
	return fs.dir.items[idx], true, nil
}

// Touch creates name as an empty file if it does not already exist; it is
// a no-op if it does.
func (h *Handles) Touch(name string) error {
	_, found, err := h.Stat(name)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	return h.fs.WriteFile(name, nil)
}

// reloadItem re-reads the directory item a handle refers to from disk.
func (fs *Filesystem) reloadItem(dirBlk BlockID, itemIdx int) (DirItem, error) {
	if err := fs.forceLoadDir(dirBlk); err != nil {
		return DirItem{}, err
	}
	return fs.dir.items[itemIdx], nil
}

// persistItem writes back a handle's directory item after its size or
// first block has changed.
func (fs *Filesystem) persistItem(dirBlk BlockID, itemIdx int, item DirItem) error {
	if err := fs.forceLoadDir(dirBlk); err != nil {
		return err
	}
	fs.dir.items[itemIdx] = item
	return fs.writeDir()
}

// seekResult reports where Handles.seek landed.
type seekResult int

const (
	seekOK seekResult = iota
	seekEOF
	seekAppend
)

// seek moves h's cursor to byte offset target. If appending is true and
// target lands past the end of the current chain, it extends the chain
// with newly allocated, zero-filled blocks and reports seekAppend; the
// caller is responsible for writing the final block's real contents.
// Otherwise, landing past the end reports seekEOF without allocating.
func (fs *Filesystem) seek(h *handle, target uint32, appending bool) (seekResult, error) {
	if target == 0 || h.cursorBlk == 0 {
		h.cursorBlk = h.firstBlk
		h.cursorPos = 0
	}

	var buf [BlockSize]byte
	for h.cursorPos > target {
		if err := fs.device.ReadBlock(h.cursorBlk, buf[:]); err != nil {
			return seekEOF, ErrIO
		}
		header := decodeDataBlockHeader(buf[:dataHeaderSize])
		if header.Prev == 0 {
			return seekEOF, errors.Wrapf(ErrUnexpectedEOF, "seek to %d overshot block %d with no prev", target, h.cursorBlk)
		}
		h.cursorBlk = header.Prev
		h.cursorPos -= DataLen
	}

	var lastValid BlockID
	for h.cursorBlk != 0 && h.cursorPos+DataLen <= target {
		if err := fs.device.ReadBlock(h.cursorBlk, buf[:]); err != nil {
			return seekEOF, ErrIO
		}
		header := decodeDataBlockHeader(buf[:dataHeaderSize])
		lastValid = h.cursorBlk
		h.cursorBlk = header.Next
		h.cursorPos += DataLen
	}

	if h.cursorBlk != 0 {
		return seekOK, nil
	}
	if !appending {
		return seekEOF, nil
	}

	// Extend the chain from lastValid (or allocate the very first block if
	// the file was empty) until the cursor covers target.
	for {
		next, err := fs.alloc.allocate()
		if err != nil {
			return seekEOF, err
		}

		var zero [BlockSize]byte
		header := dataBlockHeader{Prev: lastValid, Next: 0}
		header.encode(zero[:dataHeaderSize])
		if err := fs.device.WriteBlock(next, zero[:]); err != nil {
			return seekEOF, ErrIO
		}

		if lastValid != 0 {
			var prevBuf [BlockSize]byte
			if err := fs.device.ReadBlock(lastValid, prevBuf[:]); err != nil {
				return seekEOF, ErrIO
			}
			prevHeader := decodeDataBlockHeader(prevBuf[:dataHeaderSize])
			prevHeader.Next = next
			prevHeader.encode(prevBuf[:dataHeaderSize])
			if err := fs.device.WriteBlock(lastValid, prevBuf[:]); err != nil {
				return seekEOF, ErrIO
			}
		} else {
			h.firstBlk = next
		}

		lastValid = next
		h.cursorBlk = next
		if h.cursorPos+DataLen > target {
			break
		}
		h.cursorPos += DataLen
	}

	return seekAppend, nil
}

// Read reads up to len bytes of fd's contents starting at offset.
func (h *Handles) Read(fd int, buf []byte, offset uint32) (int, error) {
	if fd < 0 || fd >= MaxFDs || h.entries[fd].usageCount == 0 {
		return 0, ErrInvalFD
	}
	e := &h.entries[fd]
	fs := h.fs

	fs.device.Select()
	defer fs.device.Deselect()

	if offset >= e.size {
		return 0, nil
	}
	want := uint32(len(buf))
	if want > e.size-offset {
		want = e.size - offset
	}

	if _, err := fs.seek(e, offset, false); err != nil {
		return 0, errors.Wrapf(err, "seeking fd %d to offset %d", fd, offset)
	}

	read := uint32(0)
	var blockBuf [BlockSize]byte
	for read < want {
		if err := fs.device.ReadBlock(e.cursorBlk, blockBuf[:]); err != nil {
			return int(read), ErrIO
		}
		inBlock := offset + read - e.cursorPos
		chunk := want - read
		if chunk > DataLen-inBlock {
			chunk = DataLen - inBlock
		}
		copy(buf[read:read+chunk], blockBuf[dataHeaderSize+inBlock:dataHeaderSize+inBlock+chunk])
		read += chunk

		if read < want {
			header := decodeDataBlockHeader(blockBuf[:dataHeaderSize])
			if header.Next == 0 {
				return int(read), errors.Wrap(ErrUnexpectedEOF, "read ran past end of chain")
			}
			e.cursorBlk = header.Next
			e.cursorPos += DataLen
		}
	}
	return int(read), nil
}

// Write writes buf to fd starting at offset, extending the file (and its
// recorded size) as needed.
func (h *Handles) Write(fd int, buf []byte, offset uint32) (int, error) {
	if fd < 0 || fd >= MaxFDs || h.entries[fd].usageCount == 0 {
		return 0, ErrInvalFD
	}
	e := &h.entries[fd]
	fs := h.fs

	fs.device.Select()
	defer fs.device.Deselect()

	if h.busyOthers(fd, e.dirBlk, e.itemIdx) {
		return 0, ErrFileBusy
	}

	if len(buf) == 0 {
		return 0, nil
	}

	firstBlkBeforeWrite := e.firstBlk
	if _, err := fs.seek(e, offset, true); err != nil {
		return 0, errors.Wrapf(err, "seeking fd %d to offset %d", fd, offset)
	}

	written := uint32(0)
	want := uint32(len(buf))
	var blockBuf [BlockSize]byte

	for written < want {
		if err := fs.device.ReadBlock(e.cursorBlk, blockBuf[:]); err != nil {
			return int(written), ErrIO
		}
		inBlock := offset + written - e.cursorPos
		chunk := want - written
		if chunk > DataLen-inBlock {
			chunk = DataLen - inBlock
		}
		copy(blockBuf[dataHeaderSize+inBlock:dataHeaderSize+inBlock+chunk], buf[written:written+chunk])
		if err := fs.device.WriteBlock(e.cursorBlk, blockBuf[:]); err != nil {
			return int(written), ErrIO
		}
		written += chunk

		if written < want {
			header := decodeDataBlockHeader(blockBuf[:dataHeaderSize])
			next := header.Next

			if next == 0 {
				// seek only extended the chain far enough to cover the
				// start offset; pre-allocate the next block ourselves
				// before advancing, the same way seek's own extend loop
				// does.
				var err error
				next, err = fs.alloc.allocate()
				if err != nil {
					return int(written), err
				}

				header.Next = next
				header.encode(blockBuf[:dataHeaderSize])
				if err := fs.device.WriteBlock(e.cursorBlk, blockBuf[:]); err != nil {
					return int(written), ErrIO
				}

				var zero [BlockSize]byte
				newHeader := dataBlockHeader{Prev: e.cursorBlk, Next: 0}
				newHeader.encode(zero[:dataHeaderSize])
				if err := fs.device.WriteBlock(next, zero[:]); err != nil {
					return int(written), ErrIO
				}
			}

			e.cursorBlk = next
			e.cursorPos += DataLen
		}
	}

	newEnd := offset + written
	sizeChanged := newEnd > e.size
	if sizeChanged {
		e.size = newEnd
	}
	firstChanged := e.firstBlk != firstBlkBeforeWrite

	if sizeChanged || firstChanged {
		item, err := fs.reloadItem(e.dirBlk, e.itemIdx)
		if err != nil {
			return int(written), err
		}
		item.Size = e.size
		item.Blk = e.firstBlk
		if err := fs.persistItem(e.dirBlk, e.itemIdx, item); err != nil {
			return int(written), err
		}
	}

	return int(written), nil
}

// busyOthers reports whether a handle other than excludeFD targets
// (dirBlk, itemIdx). Write and Trunc exclude their own descriptor, which
// always targets the item; otherwise this is the same scan the busy-file
// interlock uses elsewhere.
func (h *Handles) busyOthers(excludeFD int, dirBlk BlockID, itemIdx int) bool {
	for i := range h.entries {
		if i == excludeFD {
			continue
		}
		e := &h.entries[i]
		if e.usageCount > 0 && e.dirBlk == dirBlk && e.itemIdx == itemIdx {
			return true
		}
	}
	return false
}

// Trunc resizes fd to newSize, freeing any blocks beyond it (or the whole
// chain, if newSize is zero).
func (h *Handles) Trunc(fd int, newSize uint32) error {
	if fd < 0 || fd >= MaxFDs || h.entries[fd].usageCount == 0 {
		return ErrInvalFD
	}
	e := &h.entries[fd]
	fs := h.fs

	fs.device.Select()
	defer fs.device.Deselect()

	if h.busyOthers(fd, e.dirBlk, e.itemIdx) {
		return ErrFileBusy
	}

	if newSize == 0 {
		if err := fs.freeDataChain(e.firstBlk); err != nil {
			return err
		}
		e.firstBlk = 0
		e.cursorBlk = 0
		e.cursorPos = 0
		e.size = 0
	} else {
		// Seek to the last byte kept, so that a newSize on a DataLen
		// boundary keeps exactly newSize/DataLen blocks.
		result, err := fs.seek(e, newSize-1, true)
		if err != nil {
			return errors.Wrapf(err, "seeking fd %d to new size %d", fd, newSize)
		}
		if result != seekAppend {
			// Landed inside the existing chain: clip it here and free the
			// old tail.
			var buf [BlockSize]byte
			if err := fs.device.ReadBlock(e.cursorBlk, buf[:]); err != nil {
				return ErrIO
			}
			header := decodeDataBlockHeader(buf[:dataHeaderSize])
			oldNext := header.Next
			header.Next = 0
			header.encode(buf[:dataHeaderSize])
			if err := fs.device.WriteBlock(e.cursorBlk, buf[:]); err != nil {
				return ErrIO
			}
			if err := fs.freeDataChain(oldNext); err != nil {
				return err
			}
		}
		e.size = newSize
	}

	item, err := fs.reloadItem(e.dirBlk, e.itemIdx)
	if err != nil {
		return err
	}
	item.Size = e.size
	item.Blk = e.firstBlk
	return fs.persistItem(e.dirBlk, e.itemIdx, item)
}
