// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/alpine-cloud/alpine-ami-tools/internal/file"
	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/alpine-cloud/alpine-ami-tools/internal/openrc"
	"github.com/alpine-cloud/alpine-ami-tools/internal/resources"
)

const (
	fstabPath      = "etc/fstab"
	interfacesPath = "etc/network/interfaces"
)

// configureRuntime writes the boot-time filesystem and network config and
// registers the service sets into their runlevels.
func configureRuntime(_ context.Context, state *provisionState) error {
	logger.Log.Infof("Writing runtime configuration")

	err := file.Write(renderFstab(rootFilesystemLabel), filepath.Join(state.targetDir, fstabPath))
	if err != nil {
		return err
	}

	interfaces, err := resources.ResourcesFS.ReadFile(resources.AssetsInterfacesFile)
	if err != nil {
		return fmt.Errorf("failed to read interfaces template:\n%w", err)
	}

	err = file.Write(string(interfaces), filepath.Join(state.targetDir, interfacesPath))
	if err != nil {
		return err
	}

	for runlevel, services := range state.config.Services.ByRunlevel() {
		for _, service := range services {
			err = openrc.EnableService(state.targetDir, service, runlevel)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// renderFstab produces the single-entry fstab referencing the format-time
// volume label.
func renderFstab(rootLabel string) string {
	return fmt.Sprintf("LABEL=%s\t/\text4\tdefaults,noatime\t1\t1\n", rootLabel)
}
