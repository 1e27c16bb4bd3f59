// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package diskutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()
	os.Exit(m.Run())
}

// installFakeBlkid puts a stand-in blkid script first on $PATH for the
// duration of the test.
func installFakeBlkid(t *testing.T, script string) {
	t.Helper()

	binDir := t.TempDir()
	err := os.WriteFile(filepath.Join(binDir, "blkid"), []byte("#!/bin/sh\n"+script), 0o755)
	assert.NoError(t, err)

	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestHasFilesystemSignatureFound(t *testing.T) {
	installFakeBlkid(t, "echo 'TYPE=ext4'\nexit 0\n")

	hasSignature, err := HasFilesystemSignature("/dev/fake")
	assert.NoError(t, err)
	assert.True(t, hasSignature)
}

func TestHasFilesystemSignatureNoneFound(t *testing.T) {
	installFakeBlkid(t, "exit 2\n")

	hasSignature, err := HasFilesystemSignature("/dev/fake")
	assert.NoError(t, err)
	assert.False(t, hasSignature)
}

func TestHasFilesystemSignatureProbeFailure(t *testing.T) {
	// A failed probe must not be mistaken for a blank device.
	installFakeBlkid(t, "echo 'Permission denied' >&2\nexit 1\n")

	_, err := HasFilesystemSignature("/dev/fake")
	assert.ErrorContains(t, err, "failed to probe")
	assert.ErrorContains(t, err, "Permission denied")
}

func TestIsBlockDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regular")
	err := os.WriteFile(path, []byte("x"), 0o644)
	assert.NoError(t, err)

	isBlock, err := IsBlockDevice(path)
	assert.NoError(t, err)
	assert.False(t, isBlock)
}
