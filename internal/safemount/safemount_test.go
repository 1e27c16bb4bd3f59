// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package safemount

import (
	"os"
	"testing"

	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()
	os.Exit(m.Run())
}

func TestVerifyUnmountedEmptyTree(t *testing.T) {
	assert.NoError(t, VerifyUnmounted(t.TempDir()))
}

func TestMountAndCleanClose(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("Test must be run as root because it mounts a filesystem")
	}

	target := t.TempDir() + "/mnt"

	mount, err := NewMount("tmpfs", target, "tmpfs", 0, "", true /*makeAndDeleteDir*/)
	assert.NoError(t, err)
	assert.Equal(t, target, mount.Target())

	err = VerifyUnmounted(target)
	assert.Error(t, err)

	err = mount.CleanClose()
	assert.NoError(t, err)

	assert.NoError(t, VerifyUnmounted(target))

	// The created target directory is removed on a clean close.
	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))

	// Close after CleanClose is a no-op.
	assert.NoError(t, mount.Close())
}

func TestMountBind(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("Test must be run as root because it mounts a filesystem")
	}

	source := t.TempDir()
	target := t.TempDir() + "/bind"

	mount, err := NewMount(source, target, "", unix.MS_BIND, "", true /*makeAndDeleteDir*/)
	assert.NoError(t, err)

	assert.NoError(t, mount.CleanClose())
}
