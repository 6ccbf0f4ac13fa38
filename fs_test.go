package tinyfs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sittner/tinyfs"
)

func formatMem(t *testing.T, blkCount tinyfs.BlockID) (*tinyfs.Filesystem, *memDevice) {
	t.Helper()
	dev := newMemDevice(blkCount)
	fs, err := tinyfs.Format(dev, nil)
	require.NoError(t, err)
	return fs, dev
}

func TestFormatFreshImageUsesTwoBlocks(t *testing.T) {
	fs, _ := formatMem(t, 64)
	used, err := fs.UsedCount()
	require.NoError(t, err)
	require.EqualValues(t, 2, used, "bitmap block + root directory block")
}

func TestSingleSmallFileRoundTrip(t *testing.T) {
	fs, _ := formatMem(t, 64)

	content := []byte("hello, tiny world")
	require.NoError(t, fs.WriteFile("hello.txt", content))

	buf := make([]byte, 128)
	n, err := fs.ReadFile("hello.txt", buf)
	require.NoError(t, err)
	require.Equal(t, content, buf[:n])
}

func TestWriteFileRejectsExistingFileWithoutOverwrite(t *testing.T) {
	fs, _ := formatMem(t, 64)
	require.NoError(t, fs.WriteFile("a.txt", []byte("one")))
	err := fs.WriteFile("a.txt", []byte("two"))
	require.ErrorIs(t, err, tinyfs.ErrFileExist)
}

func TestOverwriteFileGrowsChainAndFreesOldBlocks(t *testing.T) {
	fs, _ := formatMem(t, 64)

	small := []byte("x")
	require.NoError(t, fs.WriteFile("grow.bin", small))
	before, err := fs.UsedCount()
	require.NoError(t, err)

	big := make([]byte, tinyfs.DataLen*3+10)
	for i := range big {
		big[i] = byte(i)
	}
	require.NoError(t, fs.OverwriteFile("grow.bin", big))

	buf := make([]byte, len(big)+16)
	n, err := fs.ReadFile("grow.bin", buf)
	require.NoError(t, err)
	require.Equal(t, big, buf[:n])

	after, err := fs.UsedCount()
	require.NoError(t, err)
	require.Greater(t, after, before, "chain should have grown past the single-block original")
	require.EqualValues(t, before-1+4, after, "the original data block is freed and four new ones allocated")
}

func TestDirectoryBlockSplitsPastCapacity(t *testing.T) {
	fs, _ := formatMem(t, 256)

	for i := 0; i < tinyfs.ItemsPerDirBlock+1; i++ {
		name := string(rune('a'+i%26)) + string(rune('0'+i/26))
		require.NoError(t, fs.WriteFile(name, []byte{byte(i)}))
	}

	items, err := fs.List()
	require.NoError(t, err)
	require.Len(t, items, tinyfs.ItemsPerDirBlock+1)
}

func TestDeleteLastItemCollapsesExtraDirBlock(t *testing.T) {
	fs, _ := formatMem(t, 256)

	names := make([]string, 0, tinyfs.ItemsPerDirBlock+1)
	for i := 0; i < tinyfs.ItemsPerDirBlock+1; i++ {
		name := string(rune('a'+i%26)) + string(rune('0'+i/26))
		names = append(names, name)
		require.NoError(t, fs.WriteFile(name, []byte{byte(i)}))
	}

	before, err := fs.UsedCount()
	require.NoError(t, err)

	require.NoError(t, fs.Delete(names[len(names)-1], nil))

	after, err := fs.UsedCount()
	require.NoError(t, err)
	require.Less(t, after, before, "compaction should free the now-empty directory block")

	items, err := fs.List()
	require.NoError(t, err)
	require.Len(t, items, tinyfs.ItemsPerDirBlock)
}

func TestRenameRejectsCollision(t *testing.T) {
	fs, _ := formatMem(t, 64)
	require.NoError(t, fs.WriteFile("a.txt", []byte("a")))
	require.NoError(t, fs.WriteFile("b.txt", []byte("b")))

	err := fs.Rename("a.txt", "b.txt")
	require.ErrorIs(t, err, tinyfs.ErrFileExist)
}

func TestRenameThenFindByNewName(t *testing.T) {
	fs, _ := formatMem(t, 64)
	require.NoError(t, fs.WriteFile("a.txt", []byte("a")))
	require.NoError(t, fs.Rename("a.txt", "c.txt"))

	buf := make([]byte, 8)
	n, err := fs.ReadFile("c.txt", buf)
	require.NoError(t, err)
	require.Equal(t, "a", string(buf[:n]))
}

func TestChangeDirRoundTrip(t *testing.T) {
	fs, _ := formatMem(t, 64)
	require.NoError(t, fs.CreateDir("sub"))
	require.NoError(t, fs.ChangeDir("sub"))
	require.NoError(t, fs.WriteFile("inner.txt", []byte("deep")))

	require.NoError(t, fs.ChangeDirParent())
	require.NoError(t, fs.ChangeDir("sub"))

	buf := make([]byte, 8)
	n, err := fs.ReadFile("inner.txt", buf)
	require.NoError(t, err)
	require.Equal(t, "deep", string(buf[:n]))
}

func TestChangeDirParentAtRootFails(t *testing.T) {
	fs, _ := formatMem(t, 64)
	err := fs.ChangeDirParent()
	require.ErrorIs(t, err, tinyfs.ErrNotExist)
}

func TestDeleteNonEmptyDirectoryFails(t *testing.T) {
	fs, _ := formatMem(t, 64)
	require.NoError(t, fs.CreateDir("sub"))
	require.NoError(t, fs.ChangeDir("sub"))
	require.NoError(t, fs.WriteFile("x.txt", []byte("x")))
	require.NoError(t, fs.ChangeDirParent())

	err := fs.Delete("sub", nil)
	require.ErrorIs(t, err, tinyfs.ErrNotEmpty)
}

func TestDiskFullOnSmallImage(t *testing.T) {
	fs, _ := formatMem(t, 8)

	big := make([]byte, tinyfs.DataLen*10)
	err := fs.WriteFile("toobig.bin", big)
	require.ErrorIs(t, err, tinyfs.ErrDiskFull)
}

func TestCheckReportsNoErrorsOnFreshImage(t *testing.T) {
	fs, _ := formatMem(t, 64)
	require.NoError(t, fs.WriteFile("a.txt", []byte("hello")))
	require.NoError(t, fs.CreateDir("sub"))

	require.NoError(t, fs.Check())
}
