package tinyfs

// Filesystem is a mounted TFS image. It owns the shared directory buffer,
// the bitmap allocator (which caches one bitmap block in its own buffer)
// with its rotating cursor, and the "current directory" cursor.
//
// A Filesystem is not safe for concurrent use: the core is
// single-threaded and cooperative, and all externally observable
// operations must be serialized by the caller.
type Filesystem struct {
	device BlockDevice
	alloc  bitmapAllocator

	// currentDirBlk is the head block of the directory the filesystem is
	// currently "in" (the cwd cursor). It starts, and is reset by
	// ChangeDirRoot, to RootDirBlk.
	currentDirBlk BlockID

	// loadedDirBlk and dir are the shared directory buffer: the block
	// number currently decoded into dir. A value of 0 means nothing is
	// loaded. Every directory operation must reload through loadDir
	// before trusting dir's contents; no caller may hold a reference into
	// dir across a call that loads a different block.
	loadedDirBlk BlockID
	dir          dirBlock

	// handles is set by NewHandles when an extended file-handle table is
	// attached to this filesystem. It lets the basic API refuse to
	// overwrite or delete a file whose slot some handle still has open.
	// Directory removal does not consult it. A Filesystem with no attached
	// table (handles == nil) never blocks on this check.
	handles *Handles
}

// busy reports whether dirBlk/itemIdx is held open by any attached
// handle table. Safe to call with handles == nil.
func (fs *Filesystem) busy(dirBlk BlockID, itemIdx int) bool {
	return fs.handles != nil && fs.handles.busy(dirBlk, itemIdx)
}

// Mount opens an existing TFS image on device. It loads the first bitmap
// block and positions the cwd cursor at the root directory.
func Mount(device BlockDevice) (*Filesystem, error) {
	info := device.Info()
	fs := &Filesystem{
		device:        device,
		alloc:         newBitmapAllocator(device, info.BlkCount),
		currentDirBlk: RootDirBlk,
	}

	device.Select()
	defer device.Deselect()

	if err := fs.alloc.init(); err != nil {
		return nil, err
	}
	return fs, nil
}

// UsedCount returns the number of allocated blocks on the device, computed
// from the bitmap.
func (fs *Filesystem) UsedCount() (uint, error) {
	fs.device.Select()
	defer fs.device.Deselect()
	return fs.alloc.usedCount()
}

// Info returns the underlying device's drive metadata.
func (fs *Filesystem) Info() DriveInfo {
	return fs.device.Info()
}

// loadDir reads block blk into the shared directory buffer, unless it is
// already loaded there.
func (fs *Filesystem) loadDir(blk BlockID) error {
	if fs.loadedDirBlk == blk && blk != 0 {
		return nil
	}
	var buf [BlockSize]byte
	if err := fs.device.ReadBlock(blk, buf[:]); err != nil {
		return ErrIO
	}
	fs.dir = decodeDirBlock(buf[:])
	fs.loadedDirBlk = blk
	return nil
}

// forceLoadDir behaves like loadDir but always re-reads the block, even if
// it believes that block is already buffered. It exists for the rare case
// where the buffer may have been mutated in memory without being written
// back yet and a caller needs the on-disk truth.
func (fs *Filesystem) forceLoadDir(blk BlockID) error {
	fs.loadedDirBlk = 0
	return fs.loadDir(blk)
}

// writeDir persists the shared directory buffer's current contents to
// loadedDirBlk.
func (fs *Filesystem) writeDir() error {
	var buf [BlockSize]byte
	fs.dir.encode(buf[:])
	if err := fs.device.WriteBlock(fs.loadedDirBlk, buf[:]); err != nil {
		return ErrIO
	}
	return nil
}
