package devemu_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sittner/tinyfs"
	"github.com/sittner/tinyfs/devemu"
)

func truncateBy(path string, delta int64) error {
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Truncate(path, st.Size()-delta)
}

func TestFileBlockDeviceCreateFormatAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.tfs")

	dev, err := devemu.CreateFile(path, "test", "N/A", 32)
	require.NoError(t, err)

	fs, err := tinyfs.Format(dev, nil)
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile("a.txt", []byte("persisted")))
	require.NoError(t, dev.Close())

	dev2, err := devemu.OpenFile(path, "test", "N/A")
	require.NoError(t, err)
	defer dev2.Close()

	fs2, err := tinyfs.Mount(dev2)
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := fs2.ReadFile("a.txt", buf)
	require.NoError(t, err)
	require.Equal(t, "persisted", string(buf[:n]))
}

func TestOpenFileRejectsWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tfs")
	dev, err := devemu.CreateFile(path, "test", "N/A", 4)
	require.NoError(t, err)
	require.NoError(t, dev.Close())

	// Truncate to a size that isn't a multiple of the block size.
	require.NoError(t, truncateBy(path, 1))

	_, err = devemu.OpenFile(path, "test", "N/A")
	require.ErrorIs(t, err, tinyfs.ErrIO)
}
