// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

// Package safechroot runs commands inside a chroot while guaranteeing that
// the process returns to the original root and that every bind mount the
// chroot set up is torn down again.
package safechroot

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/alpine-cloud/alpine-ami-tools/internal/safemount"
	"github.com/alpine-cloud/alpine-ami-tools/internal/shell"
	"golang.org/x/sys/unix"
)

// ChrootInterface is the subset of Chroot operations that provisioning
// helpers need, allowing them to be tested against fakes.
type ChrootInterface interface {
	HostPathFor(chrootPath string) string
	UnsafeRun(toRun func() error) error
}

// MountPoint describes a mount to set up inside the chroot.
type MountPoint struct {
	Source string
	Target string
	FSType string
	Flags  uintptr
	Data   string
}

// NewMountPoint creates a MountPoint with the given parameters.
func NewMountPoint(source, target, fstype string, flags uintptr, data string) *MountPoint {
	return &MountPoint{
		Source: source,
		Target: target,
		FSType: fstype,
		Flags:  flags,
		Data:   data,
	}
}

// Chroot represents a directory tree that commands can be run inside of.
type Chroot struct {
	rootDir       string
	isExistingDir bool
	mounts        []*safemount.Mount
}

// NewChroot creates a new Chroot for the given root directory.
// If isExistingDir is false, the directory is created on Initialize and
// removed again on Close.
func NewChroot(rootDir string, isExistingDir bool) *Chroot {
	return &Chroot{
		rootDir:       rootDir,
		isExistingDir: isExistingDir,
	}
}

// HostPathFor maps a path inside the chroot to the equivalent host path.
func (c *Chroot) HostPathFor(chrootPath string) string {
	return filepath.Join(c.rootDir, chrootPath)
}

// defaultMountPoints returns the kernel filesystems a working chroot needs.
func defaultMountPoints() []*MountPoint {
	return []*MountPoint{
		NewMountPoint("proc", "/proc", "proc", 0, ""),
		NewMountPoint("/dev", "/dev", "", unix.MS_BIND, ""),
		NewMountPoint("sysfs", "/sys", "sysfs", 0, ""),
	}
}

// Initialize prepares the chroot directory and sets up its mounts.
func (c *Chroot) Initialize(extraMountPoints []*MountPoint, includeDefaultMounts bool) (err error) {
	if !c.isExistingDir {
		err = os.MkdirAll(c.rootDir, 0o755)
		if err != nil {
			return fmt.Errorf("failed to create chroot directory (%s):\n%w", c.rootDir, err)
		}
	}

	defer func() {
		if err != nil {
			closeErr := c.Close(true /*leaveOnDisk*/)
			if closeErr != nil {
				logger.Log.Warnf("failed to close chroot (%s): %s", c.rootDir, closeErr)
			}
		}
	}()

	mountPoints := []*MountPoint(nil)
	if includeDefaultMounts {
		mountPoints = append(mountPoints, defaultMountPoints()...)
	}
	mountPoints = append(mountPoints, extraMountPoints...)

	for _, mountPoint := range mountPoints {
		target := filepath.Join(c.rootDir, mountPoint.Target)

		mount, err := safemount.NewMount(mountPoint.Source, target, mountPoint.FSType,
			mountPoint.Flags, mountPoint.Data, true /*makeAndDeleteDir*/)
		if err != nil {
			return fmt.Errorf("failed to set up chroot mount (%s):\n%w", mountPoint.Target, err)
		}

		c.mounts = append(c.mounts, mount)
	}

	return nil
}

// UnsafeRun runs the given function inside the chroot.
// The function must not spawn goroutines that touch the filesystem, as the
// chroot applies to the whole locked OS thread.
func (c *Chroot) UnsafeRun(toRun func() error) (err error) {
	originalRoot, err := os.Open("/")
	if err != nil {
		return fmt.Errorf("failed to open host root directory:\n%w", err)
	}
	defer originalRoot.Close()

	originalWd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to read working directory:\n%w", err)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	err = unix.Chroot(c.rootDir)
	if err != nil {
		return fmt.Errorf("failed to chroot into (%s):\n%w", c.rootDir, err)
	}

	err = os.Chdir("/")
	if err != nil {
		return fmt.Errorf("failed to change directory into chroot:\n%w", err)
	}

	defer func() {
		restoreErr := restoreRoot(originalRoot, originalWd)
		if restoreErr != nil {
			// Being stuck inside the chroot is unrecoverable.
			logger.Log.Panicf("failed to escape chroot (%s): %s", c.rootDir, restoreErr)
		}
	}()

	return toRun()
}

func restoreRoot(originalRoot *os.File, originalWd string) error {
	err := originalRoot.Chdir()
	if err != nil {
		return fmt.Errorf("failed to change directory to host root:\n%w", err)
	}

	err = unix.Chroot(".")
	if err != nil {
		return fmt.Errorf("failed to chroot to host root:\n%w", err)
	}

	err = os.Chdir(originalWd)
	if err != nil {
		return fmt.Errorf("failed to restore working directory:\n%w", err)
	}

	return nil
}

// Close tears down the chroot's mounts in reverse order.
// If leaveOnDisk is false and the chroot created its directory, the directory
// is removed as well.
func (c *Chroot) Close(leaveOnDisk bool) error {
	for i := len(c.mounts) - 1; i >= 0; i-- {
		err := c.mounts[i].CleanClose()
		if err != nil {
			return fmt.Errorf("failed to close chroot (%s):\n%w", c.rootDir, err)
		}
	}
	c.mounts = nil

	if !leaveOnDisk && !c.isExistingDir {
		err := os.RemoveAll(c.rootDir)
		if err != nil {
			return fmt.Errorf("failed to delete chroot directory (%s):\n%w", c.rootDir, err)
		}
	}

	return nil
}

// ExecuteLive runs a command inside the chroot, streaming its output to the
// log.
func (c *Chroot) ExecuteLive(squashErrors bool, program string, args ...string) error {
	return c.UnsafeRun(func() error {
		return shell.ExecuteLive(squashErrors, program, args...)
	})
}
