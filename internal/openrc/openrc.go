// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

// Package openrc enables OpenRC services by creating runlevel symlinks, the
// same way rc-update does, without needing to run inside the image.
package openrc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alpine-cloud/alpine-ami-tools/internal/file"
	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
)

// Runlevel names an OpenRC runlevel.
type Runlevel string

const (
	RunlevelSysinit  Runlevel = "sysinit"
	RunlevelBoot     Runlevel = "boot"
	RunlevelDefault  Runlevel = "default"
	RunlevelShutdown Runlevel = "shutdown"
)

// IsValid reports whether the runlevel is one OpenRC knows about.
func (r Runlevel) IsValid() error {
	switch r {
	case RunlevelSysinit, RunlevelBoot, RunlevelDefault, RunlevelShutdown:
		return nil

	default:
		return fmt.Errorf("invalid runlevel (%s)", string(r))
	}
}

// EnableService adds the service to the runlevel within the installation
// root, equivalent to `rc-update add <service> <runlevel>`.
func EnableService(installRoot string, serviceName string, runlevel Runlevel) error {
	err := runlevel.IsValid()
	if err != nil {
		return err
	}

	initScript := filepath.Join(installRoot, "etc/init.d", serviceName)
	exists, err := file.PathExists(initScript)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("service (%s) has no init script", serviceName)
	}

	runlevelDir := filepath.Join(installRoot, "etc/runlevels", string(runlevel))
	err = os.MkdirAll(runlevelDir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create runlevel directory (%s):\n%w", runlevelDir, err)
	}

	linkPath := filepath.Join(runlevelDir, serviceName)
	exists, err = file.PathExists(linkPath)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	logger.Log.Debugf("Enabling service (%s) in runlevel (%s)", serviceName, runlevel)

	err = os.Symlink(filepath.Join("/etc/init.d", serviceName), linkPath)
	if err != nil {
		return fmt.Errorf("failed to enable service (%s) in runlevel (%s):\n%w",
			serviceName, runlevel, err)
	}

	return nil
}

// EnabledServices lists the services enabled in the runlevel.
func EnabledServices(installRoot string, runlevel Runlevel) ([]string, error) {
	err := runlevel.IsValid()
	if err != nil {
		return nil, err
	}

	runlevelDir := filepath.Join(installRoot, "etc/runlevels", string(runlevel))
	entries, err := os.ReadDir(runlevelDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read runlevel directory (%s):\n%w", runlevelDir, err)
	}

	var services []string
	for _, entry := range entries {
		services = append(services, entry.Name())
	}

	return services, nil
}

