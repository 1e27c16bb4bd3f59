// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alpine-cloud/alpine-ami-tools/internal/file"
)

const resolvConfPath = "etc/resolv.conf"

// overrideResolvConf copies the host's resolv.conf into the target tree so
// that name resolution works inside the chroot. The copy must not ship in
// the image; deleteResolvConf removes it during cleanup.
func overrideResolvConf(targetDir string) error {
	targetResolvConf := filepath.Join(targetDir, resolvConfPath)

	exists, err := file.PathExists("/" + resolvConfPath)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	err = file.CopyWithPerm("/"+resolvConfPath, targetResolvConf, 0o644)
	if err != nil {
		return fmt.Errorf("failed to override resolv.conf:\n%w", err)
	}

	return nil
}

func deleteResolvConf(targetDir string) error {
	err := os.Remove(filepath.Join(targetDir, resolvConfPath))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete resolv.conf:\n%w", err)
	}

	return nil
}
