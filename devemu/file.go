// Package devemu provides tinyfs.BlockDevice implementations: a host-file
// backed device for real disk images, and an in-memory one for tests. Both
// are grounded on the reference implementation's Linux backend
// (linux/drive.c), which lseeks to blkno*blocksize and reads or writes one
// block at a time; Select and Deselect are no-ops in both, mirroring that
// backend's dummy chip-select hooks.
package devemu

import (
	"os"

	"github.com/sittner/tinyfs"
)

// FileBlockDevice backs a tinyfs.BlockDevice with an *os.File: a raw disk
// image, or a regular file sized to an exact multiple of tinyfs.BlockSize.
type FileBlockDevice struct {
	f    *os.File
	info tinyfs.DriveInfo
}

// OpenFile opens path as a file-backed block device. The file's size must
// be an exact multiple of tinyfs.BlockSize; model and serno are purely
// descriptive and reported back through Info.
func OpenFile(path, model, serno string) (*FileBlockDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.Size()%tinyfs.BlockSize != 0 {
		f.Close()
		return nil, tinyfs.ErrIO
	}

	return &FileBlockDevice{
		f: f,
		info: tinyfs.DriveInfo{
			Model:    model,
			Serno:    serno,
			Type:     tinyfs.DriveTypeEmu,
			BlkCount: tinyfs.BlockID(st.Size() / tinyfs.BlockSize),
		},
	}, nil
}

// CreateFile creates a new file-backed block device of blkCount blocks,
// all zero-filled, at path.
func CreateFile(path, model, serno string, blkCount tinyfs.BlockID) (*FileBlockDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(blkCount) * tinyfs.BlockSize); err != nil {
		f.Close()
		return nil, err
	}

	return &FileBlockDevice{
		f: f,
		info: tinyfs.DriveInfo{
			Model:    model,
			Serno:    serno,
			Type:     tinyfs.DriveTypeEmu,
			BlkCount: blkCount,
		},
	}, nil
}

// Close closes the underlying file.
func (d *FileBlockDevice) Close() error {
	return d.f.Close()
}

// Select is a no-op; file-backed devices need no bus arbitration.
func (d *FileBlockDevice) Select() {}

// Deselect is a no-op; see Select.
func (d *FileBlockDevice) Deselect() {}

func (d *FileBlockDevice) ReadBlock(blk tinyfs.BlockID, buf []byte) error {
	if _, err := d.f.ReadAt(buf[:tinyfs.BlockSize], int64(blk)*tinyfs.BlockSize); err != nil {
		return tinyfs.ErrIO
	}
	return nil
}

func (d *FileBlockDevice) WriteBlock(blk tinyfs.BlockID, buf []byte) error {
	if _, err := d.f.WriteAt(buf[:tinyfs.BlockSize], int64(blk)*tinyfs.BlockSize); err != nil {
		return tinyfs.ErrIO
	}
	return nil
}

func (d *FileBlockDevice) Info() tinyfs.DriveInfo {
	return d.info
}
