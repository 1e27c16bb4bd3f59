// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"context"

	"github.com/alpine-cloud/alpine-ami-tools/internal/safechroot"
)

// activateChroot prepares the target tree for running the image's own
// tools: host resolv.conf inside, kernel filesystems bind-mounted.
func activateChroot(_ context.Context, state *provisionState) error {
	err := overrideResolvConf(state.targetDir)
	if err != nil {
		return err
	}

	chroot := safechroot.NewChroot(state.targetDir, true /*isExistingDir*/)
	err = chroot.Initialize(nil, true /*includeDefaultMounts*/)
	if err != nil {
		return err
	}

	state.chroot = chroot
	return nil
}
