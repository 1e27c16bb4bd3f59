// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/alpine-cloud/alpine-ami-tools/internal/file"
	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/alpine-cloud/alpine-ami-tools/internal/resources"
)

const (
	inittabPath        = "etc/inittab"
	promptFragmentPath = "etc/profile.d/00-ami-prompt.sh"

	serialConsoleInittabLine = "ttyS0::respawn:/sbin/getty -L 115200 ttyS0 vt100"
)

var virtualTerminalRegexp = regexp.MustCompile(`^tty[0-9]+:`)

// installPackages installs the configured package set inside the chroot and
// adjusts the console setup for a serial-only EC2 instance.
func installPackages(_ context.Context, state *provisionState) error {
	logger.Log.Infof("Installing packages: %s", strings.Join(state.config.Packages, " "))

	args := append([]string{"add", "--no-progress"}, state.config.Packages...)
	err := state.chroot.ExecuteLive(false /*squashErrors*/, "apk", args...)
	if err != nil {
		return NewProvisionerErrorWithCause(ExternalToolError, "failed to install packages", err)
	}

	err = configureSerialConsole(state.targetDir)
	if err != nil {
		return err
	}

	prompt, err := resources.ResourcesFS.ReadFile(resources.AssetsPromptFile)
	if err != nil {
		return fmt.Errorf("failed to read prompt fragment:\n%w", err)
	}

	err = file.WriteWithPerm(string(prompt), filepath.Join(state.targetDir, promptFragmentPath), 0o755)
	if err != nil {
		return err
	}

	return nil
}

func configureSerialConsole(targetDir string) error {
	path := filepath.Join(targetDir, inittabPath)

	lines, err := file.ReadLines(path)
	if err != nil {
		return err
	}

	return file.WriteLines(enableSerialConsole(lines), path)
}

// enableSerialConsole disables the virtual-terminal gettys and ensures a
// getty runs on the EC2 serial console instead.
func enableSerialConsole(lines []string) []string {
	hasSerialGetty := false
	updated := make([]string, 0, len(lines)+1)

	for _, line := range lines {
		if virtualTerminalRegexp.MatchString(line) {
			line = "#" + line
		}
		if strings.HasPrefix(line, "ttyS0:") {
			hasSerialGetty = true
		}
		updated = append(updated, line)
	}

	if !hasSerialGetty {
		updated = append(updated, serialConsoleInittabLine)
	}

	return updated
}
