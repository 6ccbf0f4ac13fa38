package tinyfs

import (
	"encoding/binary"

	"github.com/noxer/bytewriter"
)

// ItemType is the state of one directory item slot.
type ItemType uint8

const (
	ItemFree ItemType = 0
	ItemDir  ItemType = 1
	ItemFile ItemType = 2
)

// dirItemSize is the exact, padding-free byte width of one DirItem record
// on disk: 4 (blk) + 4 (size) + 1 (type) + 16 (name).
const dirItemSize = 4 + 4 + 1 + NameLen

// dirHeaderSize is the byte width of a directory block's chain header:
// prev, next, parent, each a 32-bit little-endian block number.
const dirHeaderSize = 4 + 4 + 4

// ItemsPerDirBlock is the number of DirItem slots that fit after the
// header in one BlockSize-byte directory block.
const ItemsPerDirBlock = (BlockSize - dirHeaderSize) / dirItemSize

// DirItem is one child entry (file or subdirectory) of a directory.
type DirItem struct {
	Blk  BlockID
	Size uint32
	Type ItemType
	Name [NameLen]byte
}

// SetName copies name into the fixed-width Name field, zero-padding any
// remainder. Names longer than NameLen are truncated to it.
func (item *DirItem) SetName(name string) {
	var buf [NameLen]byte
	copy(buf[:], name)
	item.Name = buf
}

// NameString returns the item's name with trailing zero padding trimmed.
func (item *DirItem) NameString() string {
	n := 0
	for n < NameLen && item.Name[n] != 0 {
		n++
	}
	return string(item.Name[:n])
}

// nameEquals compares name against the item's stored name the way the
// reference implementation's strncmp-over-a-fixed-buffer comparison does:
// both operands stop at NameLen bytes or at an embedded null, whichever
// comes first.
func (item *DirItem) nameEquals(name string) bool {
	var candidate [NameLen]byte
	copy(candidate[:], name)
	for i := 0; i < NameLen; i++ {
		a, b := candidate[i], item.Name[i]
		if a == 0 && b == 0 {
			return true
		}
		if a != b {
			return false
		}
	}
	return true
}

// encode writes the item's 21-byte on-disk image into dst, which must be
// at least dirItemSize bytes long.
func (item *DirItem) encode(dst []byte) {
	w := bytewriter.New(dst)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(item.Blk))
	w.Write(tmp[:])
	binary.LittleEndian.PutUint32(tmp[:], item.Size)
	w.Write(tmp[:])
	w.Write([]byte{byte(item.Type)})
	w.Write(item.Name[:])
}

// decodeDirItem parses a 21-byte on-disk image.
func decodeDirItem(src []byte) DirItem {
	var item DirItem
	item.Blk = BlockID(binary.LittleEndian.Uint32(src[0:4]))
	item.Size = binary.LittleEndian.Uint32(src[4:8])
	item.Type = ItemType(src[8])
	copy(item.Name[:], src[9:9+NameLen])
	return item
}

// dirBlockHeader is the 12-byte chain header at the start of every
// directory block.
type dirBlockHeader struct {
	prev   BlockID
	next   BlockID
	parent BlockID
}

func (h *dirBlockHeader) encode(dst []byte) {
	w := bytewriter.New(dst)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(h.prev))
	w.Write(tmp[:])
	binary.LittleEndian.PutUint32(tmp[:], uint32(h.next))
	w.Write(tmp[:])
	binary.LittleEndian.PutUint32(tmp[:], uint32(h.parent))
	w.Write(tmp[:])
}

func decodeDirBlockHeader(src []byte) dirBlockHeader {
	return dirBlockHeader{
		prev:   BlockID(binary.LittleEndian.Uint32(src[0:4])),
		next:   BlockID(binary.LittleEndian.Uint32(src[4:8])),
		parent: BlockID(binary.LittleEndian.Uint32(src[8:12])),
	}
}

// dirBlock is the decoded in-memory form of one directory block: its chain
// header plus all 23 item slots. It is always produced from, and written
// back as, a single BlockSize-byte buffer — callers must not hold a
// *dirBlock across a load of a different block.
type dirBlock struct {
	header dirBlockHeader
	items  [ItemsPerDirBlock]DirItem
}

func decodeDirBlock(buf []byte) dirBlock {
	var b dirBlock
	b.header = decodeDirBlockHeader(buf[:dirHeaderSize])
	for i := 0; i < ItemsPerDirBlock; i++ {
		off := dirHeaderSize + i*dirItemSize
		b.items[i] = decodeDirItem(buf[off : off+dirItemSize])
	}
	return b
}

func (b *dirBlock) encode(buf []byte) {
	b.header.encode(buf[:dirHeaderSize])
	for i := 0; i < ItemsPerDirBlock; i++ {
		off := dirHeaderSize + i*dirItemSize
		b.items[i].encode(buf[off : off+dirItemSize])
	}
}

// reservedNames are the literal item names a user may never create: the
// path separator and the two directory-navigation pseudo-entries.
var reservedNames = [...]string{"/", ".", ".."}

// validateName rejects empty names and the reserved literals. It does not
// check for collisions with existing items; that's Filesystem.find's job.
func validateName(name string) error {
	if name == "" {
		return ErrNoName
	}
	for _, r := range reservedNames {
		if name == r {
			return ErrNameInvalid
		}
	}
	return nil
}
