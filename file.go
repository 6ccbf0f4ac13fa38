package tinyfs

// WriteFile creates name with the contents of data. It fails with
// ErrFileExist if name already exists, whether as a file or a directory.
func (fs *Filesystem) WriteFile(name string, data []byte) error {
	return fs.writeFile(name, data, false)
}

// OverwriteFile is WriteFile with overwrite semantics: an existing file by
// this name is replaced instead of rejected. It still fails with
// ErrFileExist if name is a directory.
func (fs *Filesystem) OverwriteFile(name string, data []byte) error {
	return fs.writeFile(name, data, true)
}

func (fs *Filesystem) writeFile(name string, data []byte, overwrite bool) error {
	fs.device.Select()
	defer fs.device.Deselect()

	if err := validateName(name); err != nil {
		return err
	}

	idx, found, err := fs.find(name, true)
	if err != nil {
		return err
	}

	if found {
		existing := fs.dir.items[idx]
		if existing.Type != ItemFree {
			if !overwrite || existing.Type != ItemFile {
				return ErrFileExist
			}
			if fs.busy(fs.loadedDirBlk, idx) {
				return ErrFileBusy
			}
			if err := fs.freeDataChain(existing.Blk); err != nil {
				return err
			}
		}
	}

	// Neither freeDataChain nor writeDataChain touch the shared directory
	// buffer, so fs.dir/fs.loadedDirBlk still point at the block holding
	// idx from the find() call above.
	first, err := fs.writeDataChain(data)
	if err != nil {
		return err
	}

	fs.dir.items[idx] = DirItem{Blk: first, Size: uint32(len(data)), Type: ItemFile}
	fs.dir.items[idx].SetName(name)
	return fs.writeDir()
}

// writeDataChain writes data as a chain of data blocks and returns the
// first block's number, or 0 if data is empty.
func (fs *Filesystem) writeDataChain(data []byte) (BlockID, error) {
	if len(data) == 0 {
		return 0, nil
	}

	first, err := fs.alloc.allocate()
	if err != nil {
		return 0, err
	}

	var buf [BlockSize]byte
	prev := BlockID(0)
	cur := first
	offset := 0

	for {
		remaining := len(data) - offset
		chunk := remaining
		if chunk > DataLen {
			chunk = DataLen
		}

		var next BlockID
		more := remaining > chunk
		if more {
			next, err = fs.alloc.allocate()
			if err != nil {
				return 0, err
			}
		}

		header := dataBlockHeader{Prev: prev, Next: next}
		header.encode(buf[:dataHeaderSize])
		copy(buf[dataHeaderSize:], data[offset:offset+chunk])
		for i := dataHeaderSize + chunk; i < BlockSize; i++ {
			buf[i] = 0
		}

		if err := fs.device.WriteBlock(cur, buf[:]); err != nil {
			return 0, ErrIO
		}

		offset += chunk
		if !more {
			break
		}
		prev = cur
		cur = next
	}

	return first, nil
}

// freeDataChain walks a file's data-block chain, freeing every block in
// it through the bitmap allocator.
func (fs *Filesystem) freeDataChain(first BlockID) error {
	var buf [BlockSize]byte
	pos := first
	for pos != 0 {
		if err := fs.device.ReadBlock(pos, buf[:]); err != nil {
			return ErrIO
		}
		header := decodeDataBlockHeader(buf[:dataHeaderSize])
		if err := fs.alloc.free(pos); err != nil {
			return err
		}
		pos = header.Next
	}
	return nil
}

// ReadFile reads up to len(buf) bytes of name's contents into buf and
// returns the number of bytes copied. It fails with ErrNotExist if name
// does not exist or is not a file, and ErrUnexpectedEOF if the on-disk
// chain ends before the recorded size is exhausted.
func (fs *Filesystem) ReadFile(name string, buf []byte) (int, error) {
	fs.device.Select()
	defer fs.device.Deselect()

	idx, found, err := fs.find(name, false)
	if err != nil {
		return 0, err
	}
	if !found || fs.dir.items[idx].Type != ItemFile {
		return 0, ErrNotExist
	}

	item := fs.dir.items[idx]
	total := int(item.Size)
	if total > len(buf) {
		total = len(buf)
	}

	remaining := total
	pos := item.Blk
	var blockBuf [BlockSize]byte
	dst := buf[:total]

	for remaining > 0 {
		if pos == 0 {
			return 0, ErrUnexpectedEOF
		}
		if err := fs.device.ReadBlock(pos, blockBuf[:]); err != nil {
			return 0, ErrIO
		}
		header := decodeDataBlockHeader(blockBuf[:dataHeaderSize])

		chunk := remaining
		if chunk > DataLen {
			chunk = DataLen
		}
		copy(dst[:chunk], blockBuf[dataHeaderSize:dataHeaderSize+chunk])
		dst = dst[chunk:]
		remaining -= chunk
		pos = header.Next
	}

	return total, nil
}
