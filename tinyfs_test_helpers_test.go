package tinyfs_test

import (
	"io"

	"github.com/sittner/tinyfs"
	"github.com/xaionaro-go/bytesextra"
)

// memDevice is a minimal tinyfs.BlockDevice over a plain byte slice,
// sized to blkCount blocks, used directly by the core package's own
// tests (devemu is exercised separately by its own tests and by the
// CLI).
type memDevice struct {
	rws      io.ReadWriteSeeker
	blkCount tinyfs.BlockID
}

func newMemDevice(blkCount tinyfs.BlockID) *memDevice {
	buf := make([]byte, int(blkCount)*tinyfs.BlockSize)
	return &memDevice{
		rws:      bytesextra.NewReadWriteSeeker(buf),
		blkCount: blkCount,
	}
}

func (d *memDevice) Select()   {}
func (d *memDevice) Deselect() {}

func (d *memDevice) ReadBlock(blk tinyfs.BlockID, buf []byte) error {
	if _, err := d.rws.Seek(int64(blk)*tinyfs.BlockSize, io.SeekStart); err != nil {
		return tinyfs.ErrIO
	}
	if _, err := d.rws.Read(buf[:tinyfs.BlockSize]); err != nil {
		return tinyfs.ErrIO
	}
	return nil
}

func (d *memDevice) WriteBlock(blk tinyfs.BlockID, buf []byte) error {
	if _, err := d.rws.Seek(int64(blk)*tinyfs.BlockSize, io.SeekStart); err != nil {
		return tinyfs.ErrIO
	}
	if _, err := d.rws.Write(buf[:tinyfs.BlockSize]); err != nil {
		return tinyfs.ErrIO
	}
	return nil
}

func (d *memDevice) Info() tinyfs.DriveInfo {
	return tinyfs.DriveInfo{
		Model:    "mem-test",
		Serno:    "N/A",
		Type:     tinyfs.DriveTypeEmu,
		BlkCount: d.blkCount,
	}
}
