// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

// Package diskutils inspects and formats block devices.
package diskutils

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/alpine-cloud/alpine-ami-tools/internal/shell"
	"golang.org/x/sys/unix"
)

// blkid exits with this status when the probe ran but found nothing.
const blkidNoSignatureExitCode = 2

// IsBlockDevice reports whether the path refers to a block device node.
func IsBlockDevice(path string) (bool, error) {
	var stat unix.Stat_t
	err := unix.Stat(path, &stat)
	if err != nil {
		return false, fmt.Errorf("failed to stat (%s):\n%w", path, err)
	}

	return stat.Mode&unix.S_IFMT == unix.S_IFBLK, nil
}

// HasFilesystemSignature reports whether blkid finds an existing filesystem
// or partition-table signature on the device.
func HasFilesystemSignature(device string) (bool, error) {
	stdout, stderr, err := shell.Execute("blkid", "-p", "-o", "export", device)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == blkidNoSignatureExitCode {
			return false, nil
		}

		// Any other failure means the device could not be probed at all.
		return false, fmt.Errorf("failed to probe (%s) with blkid (%s):\n%w",
			device, strings.TrimSpace(stderr), err)
	}

	for _, line := range strings.Split(stdout, "\n") {
		if strings.HasPrefix(line, "TYPE=") || strings.HasPrefix(line, "PTTYPE=") {
			return true, nil
		}
	}

	return false, nil
}

// FormatExt4 creates an ext4 filesystem on the device with the given label.
// The 64bit feature is disabled so that older bootloaders can read the
// filesystem.
func FormatExt4(device string, label string) error {
	logger.Log.Infof("Formatting (%s) as ext4", device)

	err := shell.ExecuteLive(true /*squashErrors*/, "mkfs.ext4",
		"-O", "^64bit",
		"-L", label,
		device)
	if err != nil {
		return fmt.Errorf("failed to format (%s) as ext4:\n%w", device, err)
	}

	return nil
}

// Sync flushes filesystem buffers to disk.
func Sync() {
	unix.Sync()
}
