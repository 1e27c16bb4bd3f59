// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeleteEditBackups(t *testing.T) {
	etcDir := filepath.Join(t.TempDir(), "etc")
	assert.NoError(t, os.MkdirAll(filepath.Join(etcDir, "chrony"), 0o755))

	keep := []string{"inittab", "chrony/chrony.conf"}
	remove := []string{"inittab-", "chrony/chrony.conf-"}
	for _, name := range append(append([]string{}, keep...), remove...) {
		err := os.WriteFile(filepath.Join(etcDir, name), []byte("x"), 0o644)
		assert.NoError(t, err)
	}

	assert.NoError(t, deleteEditBackups(etcDir))

	for _, name := range keep {
		_, err := os.Stat(filepath.Join(etcDir, name))
		assert.NoError(t, err)
	}
	for _, name := range remove {
		_, err := os.Stat(filepath.Join(etcDir, name))
		assert.True(t, os.IsNotExist(err))
	}
}

func TestClearDirectory(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.MkdirAll(filepath.Join(dir, "APKINDEX"), 0o755))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "alpine-base.apk"), []byte("x"), 0o644))

	assert.NoError(t, clearDirectory(dir))

	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Empty(t, entries)

	// The directory itself survives.
	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestClearDirectoryMissing(t *testing.T) {
	assert.NoError(t, clearDirectory(filepath.Join(t.TempDir(), "missing")))
}
