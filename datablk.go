package tinyfs

import (
	"encoding/binary"

	"github.com/noxer/bytewriter"
)

// dataHeaderSize is the byte width of a data block's chain header: prev
// and next, each a 32-bit little-endian block number.
const dataHeaderSize = 4 + 4

// DataLen is the number of payload bytes available in one data block
// after its header.
const DataLen = BlockSize - dataHeaderSize

// dataBlockHeader is the chain header at the start of every data block.
// Both prev and next are always present: this keeps an image written by
// WriteFile fully seekable by the extended handle API without a
// format-time flag.
type dataBlockHeader struct {
	Prev BlockID
	Next BlockID
}

func (h *dataBlockHeader) encode(dst []byte) {
	w := bytewriter.New(dst)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(h.Prev))
	w.Write(tmp[:])
	binary.LittleEndian.PutUint32(tmp[:], uint32(h.Next))
	w.Write(tmp[:])
}

func decodeDataBlockHeader(src []byte) dataBlockHeader {
	return dataBlockHeader{
		Prev: BlockID(binary.LittleEndian.Uint32(src[0:4])),
		Next: BlockID(binary.LittleEndian.Uint32(src[4:8])),
	}
}

// chainLengthForSize returns the number of data blocks a file of byte
// length size occupies: ceil(size / DataLen), or zero for an empty file.
func chainLengthForSize(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	return (size + DataLen - 1) / DataLen
}
