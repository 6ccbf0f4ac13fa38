package devemu

import (
	"io"

	"github.com/sittner/tinyfs"
	"github.com/xaionaro-go/bytesextra"
)

// MemBlockDevice is an in-memory tinyfs.BlockDevice, sized exactly to
// blkCount*tinyfs.BlockSize and backed by an io.ReadWriteSeeker over a
// plain byte slice.
type MemBlockDevice struct {
	rws  io.ReadWriteSeeker
	info tinyfs.DriveInfo
}

// NewMem creates a zero-filled in-memory device of blkCount blocks.
func NewMem(model, serno string, blkCount tinyfs.BlockID) *MemBlockDevice {
	buf := make([]byte, int64(blkCount)*tinyfs.BlockSize)
	return &MemBlockDevice{
		rws: bytesextra.NewReadWriteSeeker(buf),
		info: tinyfs.DriveInfo{
			Model:    model,
			Serno:    serno,
			Type:     tinyfs.DriveTypeEmu,
			BlkCount: blkCount,
		},
	}
}

// NewMemFromBytes wraps an existing image buffer, whose length must be an
// exact multiple of tinyfs.BlockSize, without copying it.
func NewMemFromBytes(model, serno string, image []byte) (*MemBlockDevice, error) {
	if len(image)%tinyfs.BlockSize != 0 {
		return nil, tinyfs.ErrIO
	}
	return &MemBlockDevice{
		rws: bytesextra.NewReadWriteSeeker(image),
		info: tinyfs.DriveInfo{
			Model:    model,
			Serno:    serno,
			Type:     tinyfs.DriveTypeEmu,
			BlkCount: tinyfs.BlockID(len(image) / tinyfs.BlockSize),
		},
	}, nil
}

func (d *MemBlockDevice) Select()   {}
func (d *MemBlockDevice) Deselect() {}

func (d *MemBlockDevice) ReadBlock(blk tinyfs.BlockID, buf []byte) error {
	if _, err := d.rws.Seek(int64(blk)*tinyfs.BlockSize, io.SeekStart); err != nil {
		return tinyfs.ErrIO
	}
	if _, err := io.ReadFull(d.rws, buf[:tinyfs.BlockSize]); err != nil {
		return tinyfs.ErrIO
	}
	return nil
}

func (d *MemBlockDevice) WriteBlock(blk tinyfs.BlockID, buf []byte) error {
	if _, err := d.rws.Seek(int64(blk)*tinyfs.BlockSize, io.SeekStart); err != nil {
		return tinyfs.ErrIO
	}
	if _, err := d.rws.Write(buf[:tinyfs.BlockSize]); err != nil {
		return tinyfs.ErrIO
	}
	return nil
}

func (d *MemBlockDevice) Info() tinyfs.DriveInfo {
	return d.info
}
