// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"context"
	"fmt"

	"github.com/alpine-cloud/alpine-ami-tools/internal/diskutils"
	"github.com/alpine-cloud/alpine-ami-tools/internal/file"
	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
)

// requiredHostTools are the external programs the pipeline shells out to.
var requiredHostTools = []string{
	"blkid",
	"mkfs.ext4",
}

// checkPreflight verifies the target device is safe to provision before any
// destructive action is taken.
func checkPreflight(_ context.Context, state *provisionState) error {
	device := state.config.Device

	logger.Log.Infof("Checking target device (%s)", device)

	for _, tool := range requiredHostTools {
		exists, err := file.CommandExists(tool)
		if err != nil {
			return err
		}
		if !exists {
			return NewProvisionerError(PreconditionError,
				fmt.Sprintf("required host tool (%s) not found", tool))
		}
	}

	exists, err := file.PathExists(device)
	if err != nil {
		return err
	}
	if !exists {
		return NewProvisionerError(PreconditionError,
			fmt.Sprintf("target device (%s) does not exist", device))
	}

	isBlock, err := diskutils.IsBlockDevice(device)
	if err != nil {
		return err
	}
	if !isBlock {
		return NewProvisionerErrorWithCause(PreconditionError,
			fmt.Sprintf("target device (%s) is invalid", device), DeviceNotBlockError)
	}

	hasSignature, err := diskutils.HasFilesystemSignature(device)
	if err != nil {
		return err
	}
	if hasSignature {
		return NewProvisionerErrorWithCause(PreconditionError,
			fmt.Sprintf("refusing to provision (%s)", device), DeviceAlreadyFormattedErr)
	}

	return nil
}
