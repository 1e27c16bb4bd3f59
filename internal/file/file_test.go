// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteAndReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "fstab")

	err := WriteLines([]string{"LABEL=/ / ext4 defaults,noatime 1 1"}, path)
	assert.NoError(t, err)

	lines, err := ReadLines(path)
	assert.NoError(t, err)
	assert.Equal(t, []string{"LABEL=/ / ext4 defaults,noatime 1 1"}, lines)
}

func TestWriteWithPerm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fragment.sh")

	err := WriteWithPerm("export PS1\n", path, 0o755)
	assert.NoError(t, err)

	info, err := os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestAppendLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inittab")

	err := WriteLines([]string{"::sysinit:/sbin/openrc sysinit"}, path)
	assert.NoError(t, err)
	err = AppendLines([]string{"ttyS0::respawn:/sbin/getty ttyS0"}, path)
	assert.NoError(t, err)

	lines, err := ReadLines(path)
	assert.NoError(t, err)
	assert.Equal(t, []string{
		"::sysinit:/sbin/openrc sysinit",
		"ttyS0::respawn:/sbin/getty ttyS0",
	}, lines)
}

func TestCopyPreservesPermissions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "sub", "dst")

	err := WriteWithPerm("contents", src, 0o700)
	assert.NoError(t, err)

	err = Copy(src, dst)
	assert.NoError(t, err)

	contents, err := Read(dst)
	assert.NoError(t, err)
	assert.Equal(t, "contents", contents)

	info, err := os.Stat(dst)
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()

	exists, err := PathExists(dir)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = PathExists(filepath.Join(dir, "missing"))
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestRemoveFileIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolv.conf")
	assert.NoError(t, Write("nameserver 10.0.0.2\n", path))

	assert.NoError(t, RemoveFileIfExists(path))
	assert.NoError(t, RemoveFileIfExists(path))
}
