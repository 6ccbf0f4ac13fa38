package devemu_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sittner/tinyfs"
	"github.com/sittner/tinyfs/devemu"
)

func TestMemBlockDeviceRoundTrip(t *testing.T) {
	dev := devemu.NewMem("test", "N/A", 16)

	var write [tinyfs.BlockSize]byte
	for i := range write {
		write[i] = byte(i)
	}
	require.NoError(t, dev.WriteBlock(3, write[:]))

	var read [tinyfs.BlockSize]byte
	require.NoError(t, dev.ReadBlock(3, read[:]))
	require.Equal(t, write, read)
}

func TestMemBlockDeviceFormatAndMount(t *testing.T) {
	dev := devemu.NewMem("test", "N/A", 32)

	fs, err := tinyfs.Format(dev, nil)
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile("hi.txt", []byte("hi")))

	fs2, err := tinyfs.Mount(dev)
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := fs2.ReadFile("hi.txt", buf)
	require.NoError(t, err)
	require.Equal(t, "hi", string(buf[:n]))
}

func TestNewMemFromBytesRejectsWrongSize(t *testing.T) {
	_, err := devemu.NewMemFromBytes("test", "N/A", make([]byte, tinyfs.BlockSize+1))
	require.ErrorIs(t, err, tinyfs.ErrIO)
}
