package tinyfs_test

import (
	"errors"
	"testing"

	"github.com/sittner/tinyfs"
	"github.com/stretchr/testify/assert"
)

func TestErrorImplementsErrorInterface(t *testing.T) {
	var err error = tinyfs.ErrNotExist
	assert.EqualError(t, err, "no such file or directory")
}

func TestErrorIsComparable(t *testing.T) {
	err := tinyfs.ErrDiskFull
	assert.True(t, errors.Is(err, tinyfs.ErrDiskFull))
	assert.False(t, errors.Is(err, tinyfs.ErrIO))
}
