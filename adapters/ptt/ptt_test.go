package ptt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenValidatesGPIORange(t *testing.T) {
	_, err := Open("/dev/hidraw0", 0)
	assert.Error(t, err)

	_, err = Open("/dev/hidraw0", 9)
	assert.Error(t, err)

	k, err := Open("/dev/hidraw0", 3)
	require.NoError(t, err)
	assert.Equal(t, uint(3), k.gpio)
}

func TestSetFailsOnMissingDevice(t *testing.T) {
	k, err := Open("/dev/hidraw-does-not-exist", 3)
	require.NoError(t, err)

	err = k.Set(true)
	assert.Error(t, err)
}
