package tinyfs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sittner/tinyfs"
)

func TestDirItemsPerBlockFitsExactlyOneBlock(t *testing.T) {
	// 12-byte chain header plus one 21-byte record per item.
	require.LessOrEqual(t, 12+tinyfs.ItemsPerDirBlock*21, tinyfs.BlockSize)
	require.Greater(t, tinyfs.ItemsPerDirBlock, 0)
}

func TestNamesLongerThanFieldCollideOnPrefix(t *testing.T) {
	fs, _ := formatMem(t, 64)
	longName := ""
	for i := 0; i < tinyfs.NameLen+4; i++ {
		longName += "x"
	}
	// WriteFile truncates silently at the codec layer; the interesting
	// behavior under test is that distinct over-length names truncating
	// to the same NameLen-byte prefix collide as the same directory item.
	require.NoError(t, fs.WriteFile(longName, []byte("a")))
	err := fs.WriteFile(longName+"more", []byte("b"))
	require.ErrorIs(t, err, tinyfs.ErrFileExist)
}

func TestReservedNamesRejected(t *testing.T) {
	fs, _ := formatMem(t, 64)
	for _, name := range []string{"/", ".", ".."} {
		err := fs.WriteFile(name, []byte("x"))
		require.ErrorIs(t, err, tinyfs.ErrNameInvalid)
	}
}

func TestEmptyNameRejected(t *testing.T) {
	fs, _ := formatMem(t, 64)
	err := fs.WriteFile("", []byte("x"))
	require.ErrorIs(t, err, tinyfs.ErrNoName)
}
