// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"context"
	"fmt"
	"strings"

	"github.com/alpine-cloud/alpine-ami-tools/internal/file"
	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/alpine-cloud/alpine-ami-tools/internal/userutils"
)

// provisionUser creates the admin login account and grants its privileged
// group passwordless sudo.
func provisionUser(_ context.Context, state *provisionState) error {
	user := state.config.AdminUser

	logger.Log.Infof("Provisioning admin user (%s)", user.Name)

	exists, err := userutils.UserExists(user.Name, state.chroot)
	if err != nil {
		return err
	}
	if !exists {
		err = userutils.AddUser(user.Name, user.Comment, user.HomeDirectory, user.Shell, state.chroot)
		if err != nil {
			return err
		}
	}

	err = userutils.AddGroup(user.PrivilegedGroup, state.chroot)
	if err != nil {
		return err
	}

	err = userutils.AddUserToGroup(user.Name, user.PrivilegedGroup, state.chroot)
	if err != nil {
		return err
	}

	err = userutils.UnlockUserPassword(user.Name, state.chroot)
	if err != nil {
		return err
	}

	return grantPrivilegedGroupSudo(state.chroot.HostPathFor(userutils.SudoersFile), user.PrivilegedGroup)
}

func grantPrivilegedGroupSudo(sudoersPath string, group string) error {
	lines, err := file.ReadLines(sudoersPath)
	if err != nil {
		return err
	}

	return file.WriteLines(rewriteSudoersGroupRule(lines, group), sudoersPath)
}

// rewriteSudoersGroupRule enables passwordless sudo for the group's rule,
// replacing any existing rule for the group. Root's own rule is never
// touched.
func rewriteSudoersGroupRule(lines []string, group string) []string {
	rule := fmt.Sprintf("%%%s ALL=(ALL) NOPASSWD: ALL", group)
	prefix := "%" + group

	found := false
	updated := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "#"))
		if strings.HasPrefix(trimmed, prefix+" ") || strings.HasPrefix(trimmed, prefix+"\t") {
			if found {
				// Drop duplicate rules for the group.
				continue
			}
			line = rule
			found = true
		}
		updated = append(updated, line)
	}

	if !found {
		updated = append(updated, rule)
	}

	return updated
}
