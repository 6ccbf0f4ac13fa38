package tinyfs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sittner/tinyfs"
)

func TestHandleOpenReadMatchesBasicWrite(t *testing.T) {
	fs, _ := formatMem(t, 64)
	require.NoError(t, fs.WriteFile("a.txt", []byte("0123456789")))

	h := tinyfs.NewHandles(fs)
	fd, err := h.Open("a.txt")
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := h.Read(fd, buf, 3)
	require.NoError(t, err)
	require.Equal(t, "3456", string(buf[:n]))

	require.NoError(t, h.Close(fd))
}

func TestHandleWriteExtendsFileAcrossBlocks(t *testing.T) {
	fs, _ := formatMem(t, 64)

	h := tinyfs.NewHandles(fs)
	require.NoError(t, h.Touch("grow.bin"))
	fd, err := h.Open("grow.bin")
	require.NoError(t, err)

	payload := make([]byte, tinyfs.DataLen+50)
	for i := range payload {
		payload[i] = byte(i)
	}
	n, err := h.Write(fd, payload, 0)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	item, found, err := h.Stat("grow.bin")
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, len(payload), item.Size)

	readBack := make([]byte, len(payload))
	m, err := h.Read(fd, readBack, 0)
	require.NoError(t, err)
	require.Equal(t, payload, readBack[:m])

	require.NoError(t, h.Close(fd))
}

func TestHandleWriteMidFileDoesNotChangeSize(t *testing.T) {
	fs, _ := formatMem(t, 64)
	require.NoError(t, fs.WriteFile("a.txt", []byte("0123456789")))

	h := tinyfs.NewHandles(fs)
	fd, err := h.Open("a.txt")
	require.NoError(t, err)

	n, err := h.Write(fd, []byte("XY"), 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	buf := make([]byte, 10)
	m, err := h.Read(fd, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "01XY456789", string(buf[:m]))

	item, found, err := h.Stat("a.txt")
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 10, item.Size)

	require.NoError(t, h.Close(fd))
}

func TestHandleTruncShrinksAndFreesBlocks(t *testing.T) {
	fs, _ := formatMem(t, 64)

	h := tinyfs.NewHandles(fs)
	require.NoError(t, h.Touch("shrink.bin"))
	fd, err := h.Open("shrink.bin")
	require.NoError(t, err)

	payload := make([]byte, tinyfs.DataLen*3)
	_, err = h.Write(fd, payload, 0)
	require.NoError(t, err)

	before, err := fs.UsedCount()
	require.NoError(t, err)

	require.NoError(t, h.Trunc(fd, 5))

	after, err := fs.UsedCount()
	require.NoError(t, err)
	require.Less(t, after, before)

	item, found, err := h.Stat("shrink.bin")
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 5, item.Size)

	require.NoError(t, h.Close(fd))
}

func TestOverwriteFailsWhileHandleOpen(t *testing.T) {
	fs, _ := formatMem(t, 64)
	require.NoError(t, fs.WriteFile("busy.bin", []byte("data")))

	h := tinyfs.NewHandles(fs)
	fd, err := h.Open("busy.bin")
	require.NoError(t, err)

	err = fs.OverwriteFile("busy.bin", []byte("new"))
	require.ErrorIs(t, err, tinyfs.ErrFileBusy)

	require.NoError(t, h.Close(fd))
	require.NoError(t, fs.OverwriteFile("busy.bin", []byte("new")))
}

func TestHandleTableExhaustion(t *testing.T) {
	fs, _ := formatMem(t, 64)
	h := tinyfs.NewHandles(fs)

	names := make([]string, 0, tinyfs.MaxFDs+1)
	for i := 0; i < tinyfs.MaxFDs+1; i++ {
		name := string(rune('a'+i)) + ".bin"
		names = append(names, name)
		require.NoError(t, fs.WriteFile(name, []byte{byte(i)}))
	}

	for i := 0; i < tinyfs.MaxFDs; i++ {
		_, err := h.Open(names[i])
		require.NoError(t, err)
	}

	_, err := h.Open(names[tinyfs.MaxFDs])
	require.ErrorIs(t, err, tinyfs.ErrNoFreeFD)
}
