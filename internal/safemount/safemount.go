// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

// Package safemount wraps mount(2) so that mounts are reliably torn down,
// including when a provisioning stage fails partway through.
package safemount

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/alpine-cloud/alpine-ami-tools/internal/retry"
	"golang.org/x/sys/unix"

	"github.com/moby/sys/mountinfo"
)

const (
	unmountAttempts = 3
	unmountSleep    = time.Second
)

// Mount represents a filesystem mount.
type Mount struct {
	source     string
	target     string
	fstype     string
	flags      uintptr
	data       string
	isMounted  bool
	dirCreated bool
}

// NewMount creates a new mount and attaches it immediately.
// If makeAndDeleteDir is set, the target directory is created before mounting
// and deleted again on a clean close.
func NewMount(source, target, fstype string, flags uintptr, data string, makeAndDeleteDir bool,
) (m *Mount, err error) {
	m = &Mount{
		source: source,
		target: target,
		fstype: fstype,
		flags:  flags,
		data:   data,
	}
	defer func() {
		if err != nil {
			cleanupErr := m.Close()
			if cleanupErr != nil {
				logger.Log.Warnf("failed to close mount (%s): %s", m.target, cleanupErr)
			}
		}
	}()

	err = m.mount(makeAndDeleteDir)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Mount) mount(makeAndDeleteDir bool) error {
	if makeAndDeleteDir {
		exists, err := os.Stat(m.target)
		if err == nil && exists.IsDir() {
			// Already there. Don't delete a directory we didn't create.
			makeAndDeleteDir = false
		} else {
			err = os.MkdirAll(m.target, 0o755)
			if err != nil {
				return fmt.Errorf("failed to create mount directory (%s):\n%w", m.target, err)
			}
			m.dirCreated = true
		}
	}

	logger.Log.Debugf("Mounting (%s) to (%s)", m.source, m.target)

	err := unix.Mount(m.source, m.target, m.fstype, m.flags, m.data)
	if err != nil {
		return fmt.Errorf("failed to mount (%s) to (%s):\n%w", m.source, m.target, err)
	}

	m.isMounted = true
	return nil
}

// Target returns the mount's target directory.
func (m *Mount) Target() string {
	return m.target
}

// CleanClose unmounts the mount and fails loudly if the unmount fails.
func (m *Mount) CleanClose() error {
	return m.close(false /*async*/)
}

// Close unmounts the mount in a best-effort manner.
// It is intended for defer statements where CleanClose has already been
// called on the success path.
func (m *Mount) Close() error {
	return m.close(true /*async*/)
}

func (m *Mount) close(async bool) error {
	if m.isMounted {
		logger.Log.Debugf("Unmounting (%s)", m.target)

		err := retry.Run(func() error {
			return unix.Unmount(m.target, 0)
		}, unmountAttempts, unmountSleep)
		if err != nil {
			if async {
				logger.Log.Warnf("failed to unmount (%s): %s", m.target, err)
				return nil
			}
			return fmt.Errorf("failed to unmount (%s):\n%w", m.target, err)
		}

		m.isMounted = false
	}

	if m.dirCreated {
		err := os.Remove(m.target)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete mount directory (%s):\n%w", m.target, err)
		}
		m.dirCreated = false
	}

	return nil
}

// VerifyUnmounted checks the mount table for any mounts remaining under the
// tree rooted at target.
func VerifyUnmounted(target string) error {
	mounts, err := mountinfo.GetMounts(mountinfo.PrefixFilter(target))
	if err != nil {
		return fmt.Errorf("failed to read mount table:\n%w", err)
	}

	if len(mounts) > 0 {
		leftover := []error(nil)
		for _, mount := range mounts {
			leftover = append(leftover, fmt.Errorf("mount still active: %s", mount.Mountpoint))
		}
		return fmt.Errorf("mounts remain under (%s):\n%w", target, errors.Join(leftover...))
	}

	return nil
}
