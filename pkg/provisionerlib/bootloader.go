// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/alpine-cloud/alpine-ami-tools/internal/diskutils"
	"github.com/alpine-cloud/alpine-ami-tools/internal/file"
	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"gopkg.in/ini.v1"
)

const extlinuxConfPath = "etc/update-extlinux.conf"

// installBootloader points extlinux at the labeled root filesystem and the
// EC2 serial console, then installs it into the boot sector.
func installBootloader(_ context.Context, state *provisionState) error {
	confPath := filepath.Join(state.targetDir, extlinuxConfPath)

	conf, err := file.Read(confPath)
	if err != nil {
		return err
	}

	patched, err := patchExtlinuxConf(conf, rootFilesystemLabel, state.config.BootTimeout)
	if err != nil {
		return err
	}

	err = file.Write(patched, confPath)
	if err != nil {
		return err
	}

	logger.Log.Infof("Installing extlinux bootloader")

	err = state.chroot.ExecuteLive(true /*squashErrors*/, "extlinux", "--install", "/boot")
	if err != nil {
		return NewProvisionerErrorWithCause(ExternalToolError, "failed to install extlinux", err)
	}

	err = state.chroot.ExecuteLive(true /*squashErrors*/, "update-extlinux", "--warn-only")
	if err != nil {
		return NewProvisionerErrorWithCause(ExternalToolError, "failed to update extlinux config", err)
	}

	// Boot sector writes bypass the filesystem; flush before continuing.
	diskutils.Sync()

	return nil
}

// patchExtlinuxConf rewrites update-extlinux.conf for label-based boot on a
// serial-console-only instance. The file is shell-sourced, so the key=value
// form must survive the rewrite.
func patchExtlinuxConf(conf string, rootLabel string, timeout int) (string, error) {
	cfg, err := ini.Load([]byte(conf))
	if err != nil {
		return "", fmt.Errorf("failed to parse update-extlinux.conf:\n%w", err)
	}

	section := cfg.Section("")
	overrides := map[string]string{
		"root":                "LABEL=" + rootLabel,
		"default_kernel_opts": `"console=ttyS0,115200 console=tty0"`,
		"serial_port":         "0",
		"serial_baud":         "115200",
		"modules":             "sd-mod,usb-storage,ext4,nvme,ena",
		"default":             "virt",
		"timeout":             strconv.Itoa(timeout),
	}
	for key, value := range overrides {
		section.Key(key).SetValue(value)
	}

	ini.PrettyFormat = false

	buffer := &bytes.Buffer{}
	_, err = cfg.WriteTo(buffer)
	if err != nil {
		return "", fmt.Errorf("failed to rewrite update-extlinux.conf:\n%w", err)
	}

	return buffer.String(), nil
}
