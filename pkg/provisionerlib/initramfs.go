// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alpine-cloud/alpine-ami-tools/internal/file"
	"github.com/alpine-cloud/alpine-ami-tools/internal/initrdutils"
	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/alpine-cloud/alpine-ami-tools/internal/resources"
	"github.com/alpine-cloud/alpine-ami-tools/internal/sliceutils"
	"gopkg.in/ini.v1"
)

const (
	mkinitfsConfPath     = "etc/mkinitfs/mkinitfs.conf"
	enaFeatureModules    = "etc/mkinitfs/features.d/ena.modules"
	kernelModulesDirPath = "lib/modules"
)

// requiredInitramfsFeatures must be present in the initramfs for the
// instance to find its boot volume and network adapter.
var requiredInitramfsFeatures = []string{"nvme", "ena"}

// requiredInitramfsModules are verified against the built initramfs.
var requiredInitramfsModules = []string{"nvme", "ena"}

// configureInitramfs teaches mkinitfs about the EC2 drivers, rebuilds the
// initramfs, and verifies the drivers actually made it in.
func configureInitramfs(_ context.Context, state *provisionState) error {
	enaModules, err := resources.ResourcesFS.ReadFile(resources.AssetsEnaModulesFile)
	if err != nil {
		return fmt.Errorf("failed to read ena feature modules:\n%w", err)
	}

	err = file.Write(string(enaModules), filepath.Join(state.targetDir, enaFeatureModules))
	if err != nil {
		return err
	}

	confPath := filepath.Join(state.targetDir, mkinitfsConfPath)
	conf, err := file.Read(confPath)
	if err != nil {
		return err
	}

	patched, err := patchMkinitfsFeatures(conf, requiredInitramfsFeatures)
	if err != nil {
		return err
	}

	err = file.Write(patched, confPath)
	if err != nil {
		return err
	}

	kernelVersion, err := findKernelVersion(state.targetDir)
	if err != nil {
		return err
	}
	state.kernelVersion = kernelVersion

	logger.Log.Infof("Building initramfs for kernel (%s)", kernelVersion)

	err = state.chroot.ExecuteLive(true /*squashErrors*/, "mkinitfs", kernelVersion)
	if err != nil {
		return NewProvisionerErrorWithCause(ExternalToolError, "failed to build initramfs", err)
	}

	return verifyInitramfs(state.targetDir, kernelVersion)
}

// patchMkinitfsFeatures adds the required features to the features= line of
// mkinitfs.conf, preserving the existing ones. The file is shell-sourced,
// so the key=value form must survive the rewrite.
func patchMkinitfsFeatures(conf string, required []string) (string, error) {
	loadOptions := ini.LoadOptions{
		// The file has no sections, just key=value lines.
		SpaceBeforeInlineComment: true,
	}

	cfg, err := ini.LoadSources(loadOptions, []byte(conf))
	if err != nil {
		return "", fmt.Errorf("failed to parse mkinitfs.conf:\n%w", err)
	}

	key := cfg.Section("").Key("features")
	features := strings.Fields(key.String())

	for _, feature := range required {
		if !sliceutils.ContainsValue(features, feature) {
			features = append(features, feature)
		}
	}

	key.SetValue(`"` + strings.Join(features, " ") + `"`)

	// Keep the key=value form shell-compatible.
	ini.PrettyFormat = false

	buffer := &bytes.Buffer{}
	_, err = cfg.WriteTo(buffer)
	if err != nil {
		return "", fmt.Errorf("failed to rewrite mkinitfs.conf:\n%w", err)
	}

	return buffer.String(), nil
}

// findKernelVersion discovers the installed kernel from /lib/modules.
// Exactly one kernel is expected in a freshly provisioned tree.
func findKernelVersion(targetDir string) (string, error) {
	modulesDir := filepath.Join(targetDir, kernelModulesDirPath)

	entries, err := os.ReadDir(modulesDir)
	if err != nil {
		return "", fmt.Errorf("failed to list kernel modules directory:\n%w", err)
	}

	var versions []string
	for _, entry := range entries {
		if entry.IsDir() {
			versions = append(versions, entry.Name())
		}
	}

	if len(versions) != 1 {
		return "", fmt.Errorf("expected exactly one installed kernel, found %d (%s)",
			len(versions), strings.Join(versions, ", "))
	}

	return versions[0], nil
}

func verifyInitramfs(targetDir string, kernelVersion string) error {
	initramfsPath, err := findInitramfs(targetDir)
	if err != nil {
		return err
	}

	for _, module := range requiredInitramfsModules {
		hasModule, err := initrdutils.HasKernelModule(initramfsPath, module)
		if err != nil {
			return err
		}
		if !hasModule {
			return NewProvisionerError(IntegrityError,
				fmt.Sprintf("initramfs (%s) is missing required kernel module (%s) for kernel (%s)",
					initramfsPath, module, kernelVersion))
		}
	}

	return nil
}

func findInitramfs(targetDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(targetDir, "boot", "initramfs-*"))
	if err != nil {
		return "", fmt.Errorf("failed to search for initramfs:\n%w", err)
	}

	if len(matches) != 1 {
		return "", fmt.Errorf("expected exactly one initramfs under /boot, found %d", len(matches))
	}

	return matches[0], nil
}
