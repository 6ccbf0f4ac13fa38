package tinyfs

// find walks the current directory's chain looking for name. If a match is
// found, it returns its slot index with found=true, and the shared
// directory buffer is left holding the block that owns it.
//
// If no match is found and wantFreeSlot is false, it returns found=false.
// If wantFreeSlot is true, it returns a slot ready to receive a new item:
// either the first FREE slot encountered during the walk, or, if the
// chain had none, a freshly allocated and chain-linked block whose first
// slot is returned.
func (fs *Filesystem) find(name string, wantFreeSlot bool) (int, bool, error) {
	if name == "" {
		return 0, false, ErrNoName
	}

	pos := fs.currentDirBlk
	freeBlk := BlockID(0)
	freeIdx := -1

	for {
		if err := fs.loadDir(pos); err != nil {
			return 0, false, err
		}

		for i := 0; i < ItemsPerDirBlock; i++ {
			item := &fs.dir.items[i]
			if item.Type == ItemFree {
				if freeIdx < 0 {
					freeBlk = pos
					freeIdx = i
				}
			} else if item.nameEquals(name) {
				return i, true, nil
			}
		}

		next := fs.dir.header.next
		if next == 0 {
			break
		}
		pos = next
	}

	if !wantFreeSlot {
		return 0, false, nil
	}

	if freeIdx >= 0 {
		if err := fs.loadDir(freeBlk); err != nil {
			return 0, false, err
		}
		return freeIdx, false, nil
	}

	// No free slot anywhere in the chain: extend it. fs.dir/loadedDirBlk
	// still hold the tail block (the loop above only exits when next==0).
	tailBlk := fs.loadedDirBlk
	parent := fs.dir.header.parent

	newBlk, err := fs.alloc.allocate()
	if err != nil {
		return 0, false, err
	}

	fs.dir.header.next = newBlk
	if err := fs.writeDir(); err != nil {
		return 0, false, err
	}

	fs.dir = dirBlock{header: dirBlockHeader{prev: tailBlk, next: 0, parent: parent}}
	fs.loadedDirBlk = newBlk
	if err := fs.writeDir(); err != nil {
		return 0, false, err
	}
	return 0, false, nil
}

// writeDirCleanup persists the shared directory buffer after an item in it
// has been marked FREE, compacting the chain if the block the item lived
// in is now entirely empty.
func (fs *Filesystem) writeDirCleanup() error {
	header := fs.dir.header

	if header.prev == 0 && header.next == 0 {
		return fs.writeDir()
	}

	allFree := true
	for i := range fs.dir.items {
		if fs.dir.items[i].Type != ItemFree {
			allFree = false
			break
		}
	}
	if !allFree {
		return fs.writeDir()
	}

	if header.prev == 0 {
		return fs.collapseHead(header.next)
	}
	return fs.spliceOut(header.prev, header.next)
}

// collapseHead handles the case where the head block of a chain has
// emptied out. The head's block number is externally referenced (by a
// parent directory item, or, for the root directory, by the well-known
// constant RootDirBlk) and must never change, so its number is kept and
// the successor's contents are relocated into it; the successor's old
// number is what gets freed.
func (fs *Filesystem) collapseHead(nextBlk BlockID) error {
	headBlk := fs.loadedDirBlk

	if err := fs.loadDir(nextBlk); err != nil {
		return err
	}
	successor := fs.dir
	successor.header.prev = 0

	if successor.header.next != 0 {
		if err := fs.loadDir(successor.header.next); err != nil {
			return err
		}
		fs.dir.header.prev = headBlk
		if err := fs.writeDir(); err != nil {
			return err
		}
	}

	fs.dir = successor
	fs.loadedDirBlk = headBlk
	if err := fs.writeDir(); err != nil {
		return err
	}
	return fs.alloc.free(nextBlk)
}

// spliceOut removes an emptied interior or tail block from its chain by
// relinking its neighbors, then frees the emptied block.
func (fs *Filesystem) spliceOut(prevBlk, nextBlk BlockID) error {
	emptyBlk := fs.loadedDirBlk

	if err := fs.loadDir(prevBlk); err != nil {
		return err
	}
	fs.dir.header.next = nextBlk
	if err := fs.writeDir(); err != nil {
		return err
	}

	if nextBlk != 0 {
		if err := fs.loadDir(nextBlk); err != nil {
			return err
		}
		fs.dir.header.prev = prevBlk
		if err := fs.writeDir(); err != nil {
			return err
		}
	}

	return fs.alloc.free(emptyBlk)
}

// List returns every named item (files and subdirectories) in the current
// directory, walking its whole chain.
func (fs *Filesystem) List() ([]DirItem, error) {
	fs.device.Select()
	defer fs.device.Deselect()

	var out []DirItem
	pos := fs.currentDirBlk
	for {
		if err := fs.loadDir(pos); err != nil {
			return nil, err
		}
		for i := range fs.dir.items {
			if fs.dir.items[i].Type != ItemFree {
				out = append(out, fs.dir.items[i])
			}
		}
		next := fs.dir.header.next
		if next == 0 {
			return out, nil
		}
		pos = next
	}
}

// CreateDir creates an empty subdirectory of the current directory.
func (fs *Filesystem) CreateDir(name string) error {
	fs.device.Select()
	defer fs.device.Deselect()

	if err := validateName(name); err != nil {
		return err
	}

	parentOfNew := fs.currentDirBlk

	idx, found, err := fs.find(name, true)
	if err != nil {
		return err
	}
	if found {
		return ErrFileExist
	}

	newBlk, err := fs.alloc.allocate()
	if err != nil {
		return err
	}

	fs.dir.items[idx] = DirItem{Blk: newBlk, Size: 0, Type: ItemDir}
	fs.dir.items[idx].SetName(name)
	if err := fs.writeDir(); err != nil {
		return err
	}

	fs.dir = dirBlock{header: dirBlockHeader{prev: 0, next: 0, parent: parentOfNew}}
	fs.loadedDirBlk = newBlk
	if err := fs.writeDir(); err != nil {
		return err
	}

	return nil
}

// ChangeDirRoot resets the cwd cursor to the root directory.
func (fs *Filesystem) ChangeDirRoot() {
	fs.device.Select()
	defer fs.device.Deselect()
	fs.currentDirBlk = RootDirBlk
}

// ChangeDirParent moves the cwd cursor to the current directory's parent.
// It fails with ErrNotExist at the root, which has no parent.
func (fs *Filesystem) ChangeDirParent() error {
	fs.device.Select()
	defer fs.device.Deselect()

	if err := fs.loadDir(fs.currentDirBlk); err != nil {
		return err
	}
	if fs.dir.header.parent == 0 {
		return ErrNotExist
	}
	fs.currentDirBlk = fs.dir.header.parent
	return nil
}

// ChangeDir moves the cwd cursor into the named child directory. The
// literals "/" and ".." are recognized here rather than pushed onto
// callers as separate pseudo-entries.
func (fs *Filesystem) ChangeDir(name string) error {
	if name == "/" {
		fs.ChangeDirRoot()
		return nil
	}
	if name == ".." {
		return fs.ChangeDirParent()
	}

	fs.device.Select()
	defer fs.device.Deselect()

	idx, found, err := fs.find(name, false)
	if err != nil {
		return err
	}
	if !found || fs.dir.items[idx].Type != ItemDir {
		return ErrNotExist
	}
	fs.currentDirBlk = fs.dir.items[idx].Blk
	return nil
}

// Rename changes a directory item's name in place. It fails with
// ErrFileExist if to is already taken, and ErrNotExist if from does not
// exist.
func (fs *Filesystem) Rename(from, to string) error {
	fs.device.Select()
	defer fs.device.Deselect()

	if _, found, err := fs.find(to, false); err != nil {
		return err
	} else if found {
		return ErrFileExist
	}

	idx, found, err := fs.find(from, false)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotExist
	}

	fs.dir.items[idx].SetName(to)
	return fs.writeDir()
}

// Delete removes a directory item by name. If typeFilter is non-nil, the
// item must match it or ErrNotExist is returned. Deleting a non-empty
// directory fails with ErrNotEmpty.
func (fs *Filesystem) Delete(name string, typeFilter *ItemType) error {
	fs.device.Select()
	defer fs.device.Deselect()

	idx, found, err := fs.find(name, false)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotExist
	}

	item := fs.dir.items[idx]
	if typeFilter != nil && item.Type != *typeFilter {
		return ErrNotExist
	}

	switch item.Type {
	case ItemFile:
		if fs.busy(fs.loadedDirBlk, idx) {
			return ErrFileBusy
		}
		fs.dir.items[idx] = DirItem{}
		if err := fs.writeDirCleanup(); err != nil {
			return err
		}
		return fs.freeDataChain(item.Blk)

	case ItemDir:
		if err := fs.loadDir(item.Blk); err != nil {
			return err
		}
		if fs.dir.header.next != 0 {
			return ErrNotEmpty
		}
		for i := range fs.dir.items {
			if fs.dir.items[i].Type != ItemFree {
				return ErrNotEmpty
			}
		}

		// The shared buffer currently holds the (empty) subdirectory we
		// just inspected, not its owning block in the parent chain. Walk
		// the parent chain again to land the buffer back on that block.
		ownerIdx, found, err := fs.find(name, false)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotExist
		}
		fs.dir.items[ownerIdx] = DirItem{}
		if err := fs.writeDirCleanup(); err != nil {
			return err
		}
		return fs.alloc.free(item.Blk)

	default:
		return ErrNotExist
	}
}
