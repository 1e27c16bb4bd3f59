// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"context"

	"github.com/alpine-cloud/alpine-ami-tools/internal/diskutils"
	"github.com/alpine-cloud/alpine-ami-tools/internal/safemount"
)

// rootFilesystemLabel is the volume label the bootloader config refers to.
// Label-based boot is required because NVMe device names enumerate
// unpredictably across instance types.
const rootFilesystemLabel = "/"

// provisionFilesystem formats the target device and mounts it at the work
// directory.
func provisionFilesystem(_ context.Context, state *provisionState) error {
	err := diskutils.FormatExt4(state.config.Device, rootFilesystemLabel)
	if err != nil {
		return NewProvisionerErrorWithCause(ExternalToolError, "failed to create root filesystem", err)
	}

	targetMount, err := safemount.NewMount(state.config.Device, state.targetDir, "ext4",
		0, "", true /*makeAndDeleteDir*/)
	if err != nil {
		return err
	}

	state.targetMount = targetMount
	return nil
}
