// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package initrdutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/cavaliercoder/go-cpio"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()
	os.Exit(m.Run())
}

func writeTestInitrd(t *testing.T, memberNames []string) string {
	t.Helper()

	initrdPath := filepath.Join(t.TempDir(), "initramfs-virt")
	f, err := os.Create(initrdPath)
	assert.NoError(t, err)
	defer f.Close()

	gzWriter := pgzip.NewWriter(f)
	cpioWriter := cpio.NewWriter(gzWriter)

	for _, name := range memberNames {
		contents := []byte("module")
		err := cpioWriter.WriteHeader(&cpio.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(contents)),
		})
		assert.NoError(t, err)

		_, err = cpioWriter.Write(contents)
		assert.NoError(t, err)
	}

	assert.NoError(t, cpioWriter.Close())
	assert.NoError(t, gzWriter.Close())

	return initrdPath
}

func TestReadInitrdFileNames(t *testing.T) {
	initrdPath := writeTestInitrd(t, []string{
		"lib/modules/6.6.0-0-virt/kernel/drivers/net/ethernet/amazon/ena/ena.ko",
		"lib/modules/6.6.0-0-virt/kernel/drivers/nvme/host/nvme.ko.gz",
	})

	names, err := ReadInitrdFileNames(initrdPath)
	assert.NoError(t, err)
	assert.Len(t, names, 2)
	assert.Contains(t, names, "lib/modules/6.6.0-0-virt/kernel/drivers/nvme/host/nvme.ko.gz")
}

func TestHasKernelModule(t *testing.T) {
	initrdPath := writeTestInitrd(t, []string{
		"lib/modules/6.6.0-0-virt/kernel/drivers/net/ethernet/amazon/ena/ena.ko",
		"lib/modules/6.6.0-0-virt/kernel/drivers/nvme/host/nvme.ko.gz",
	})

	hasEna, err := HasKernelModule(initrdPath, "ena")
	assert.NoError(t, err)
	assert.True(t, hasEna)

	// Compressed module names still match.
	hasNvme, err := HasKernelModule(initrdPath, "nvme")
	assert.NoError(t, err)
	assert.True(t, hasNvme)

	hasVirtio, err := HasKernelModule(initrdPath, "virtio_net")
	assert.NoError(t, err)
	assert.False(t, hasVirtio)
}

func TestHasKernelModuleMissingImage(t *testing.T) {
	_, err := HasKernelModule(filepath.Join(t.TempDir(), "missing"), "ena")
	assert.Error(t, err)
}
