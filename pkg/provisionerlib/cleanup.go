// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alpine-cloud/alpine-ami-tools/internal/diskutils"
	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/alpine-cloud/alpine-ami-tools/internal/safemount"
)

// runCleanup removes build-time residue from the image and releases the
// chroot and target mount. After this stage nothing remains mounted under
// the target directory.
func runCleanup(_ context.Context, state *provisionState) error {
	logger.Log.Infof("Cleaning up build residue")

	err := clearDirectory(filepath.Join(state.targetDir, apkCacheDirPath))
	if err != nil {
		return err
	}

	err = deleteResolvConf(state.targetDir)
	if err != nil {
		return err
	}

	err = deleteShellHistory(state.targetDir)
	if err != nil {
		return err
	}

	err = deleteEditBackups(filepath.Join(state.targetDir, "etc"))
	if err != nil {
		return err
	}

	err = state.chroot.Close(true /*leaveOnDisk*/)
	if err != nil {
		return err
	}
	state.chroot = nil

	diskutils.Sync()

	err = state.targetMount.CleanClose()
	if err != nil {
		return err
	}
	state.targetMount = nil

	return safemount.VerifyUnmounted(state.targetDir)
}

func clearDirectory(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to list directory (%s):\n%w", dirPath, err)
	}

	for _, entry := range entries {
		err = os.RemoveAll(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to clear directory (%s):\n%w", dirPath, err)
		}
	}

	return nil
}

func deleteShellHistory(targetDir string) error {
	matches, err := filepath.Glob(filepath.Join(targetDir, "root", ".*_history"))
	if err != nil {
		return fmt.Errorf("failed to search for shell history:\n%w", err)
	}

	for _, match := range matches {
		err = os.Remove(match)
		if err != nil {
			return fmt.Errorf("failed to delete shell history (%s):\n%w", match, err)
		}
	}

	return nil
}

// deleteEditBackups removes the `<name>-` backup files that in-place config
// edits leave behind.
func deleteEditBackups(dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("failed to walk (%s):\n%w", path, walkErr)
		}

		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), "-") {
			err := os.Remove(path)
			if err != nil {
				return fmt.Errorf("failed to delete backup file (%s):\n%w", path, err)
			}
		}

		return nil
	})
}
