// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

// Package userutils manages users and groups inside a provisioned root
// filesystem using the busybox tooling the target image ships with.
package userutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alpine-cloud/alpine-ami-tools/internal/file"
	"github.com/alpine-cloud/alpine-ami-tools/internal/safechroot"
	"github.com/alpine-cloud/alpine-ami-tools/internal/shell"
	"github.com/alpine-cloud/alpine-ami-tools/internal/sliceutils"
)

const (
	PasswdFile  = "/etc/passwd"
	GroupFile   = "/etc/group"
	ShadowFile  = "/etc/shadow"
	SudoersFile = "/etc/sudoers"
)

var userNameRegexp = regexp.MustCompile(`^[a-z_][a-z0-9_-]*\$?$`)

// NameIsValid checks that the name is acceptable to busybox adduser and
// addgroup.
func NameIsValid(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if !userNameRegexp.MatchString(name) {
		return fmt.Errorf("invalid name (%s)", name)
	}

	return nil
}

func runChrooted(program string, args ...string) error {
	return shell.ExecuteLiveWithErr(1 /*stderrLines*/, program, args...)
}

// UserExists reports whether the user has an /etc/passwd entry inside the
// installation root.
func UserExists(username string, installChroot safechroot.ChrootInterface) (bool, error) {
	entries, err := file.ReadLines(installChroot.HostPathFor(PasswdFile))
	if err != nil {
		return false, fmt.Errorf("failed to read passwd database:\n%w", err)
	}

	_, found := sliceutils.FindValueFunc(entries, func(entry string) bool {
		return strings.HasPrefix(entry, username+":")
	})
	return found, nil
}

// AddUser creates a user with adduser. The account is created without a
// password; home directory and shell default to busybox's choices when
// empty.
func AddUser(username string, comment string, homeDirectory string, shell string,
	installChroot safechroot.ChrootInterface,
) error {
	args := adduserArgs(username, comment, homeDirectory, shell)

	err := installChroot.UnsafeRun(func() error {
		return runChrooted("adduser", args...)
	})
	if err != nil {
		return fmt.Errorf("failed to add user (%s):\n%w", username, err)
	}

	return nil
}

// adduserArgs builds the busybox adduser invocation for the account.
func adduserArgs(username string, comment string, homeDirectory string, shell string) []string {
	args := []string{"-D"}
	if comment != "" {
		args = append(args, "-g", comment)
	}
	if homeDirectory != "" {
		args = append(args, "-h", homeDirectory)
	}
	if shell != "" {
		args = append(args, "-s", shell)
	}
	return append(args, username)
}

// AddGroup creates a group with addgroup if it does not already exist.
func AddGroup(groupName string, installChroot safechroot.ChrootInterface) error {
	entries, err := file.ReadLines(installChroot.HostPathFor(GroupFile))
	if err != nil {
		return fmt.Errorf("failed to read group database:\n%w", err)
	}

	_, exists := sliceutils.FindValueFunc(entries, func(entry string) bool {
		return strings.HasPrefix(entry, groupName+":")
	})
	if exists {
		return nil
	}

	err = installChroot.UnsafeRun(func() error {
		return runChrooted("addgroup", groupName)
	})
	if err != nil {
		return fmt.Errorf("failed to add group (%s):\n%w", groupName, err)
	}

	return nil
}

// AddUserToGroup adds an existing user to an existing group.
func AddUserToGroup(username string, groupName string, installChroot safechroot.ChrootInterface) error {
	err := installChroot.UnsafeRun(func() error {
		return runChrooted("addgroup", username, groupName)
	})
	if err != nil {
		return fmt.Errorf("failed to add user (%s) to group (%s):\n%w", username, groupName, err)
	}

	return nil
}

// UnlockUserPassword replaces the '!' lock marker in the user's shadow entry
// with '*', leaving the account passwordless but usable with SSH keys.
func UnlockUserPassword(username string, installChroot safechroot.ChrootInterface) error {
	shadowPath := installChroot.HostPathFor(ShadowFile)

	entries, err := file.ReadLines(shadowPath)
	if err != nil {
		return fmt.Errorf("failed to read shadow database:\n%w", err)
	}

	updated, found := UnlockShadowEntry(entries, username)
	if !found {
		return fmt.Errorf("user (%s) has no shadow entry", username)
	}

	err = file.WriteLines(updated, shadowPath)
	if err != nil {
		return fmt.Errorf("failed to update shadow database:\n%w", err)
	}

	return nil
}

// UnlockShadowEntry rewrites the shadow entries so that the named user's
// password field is '*' instead of the '!' lock marker. It reports whether
// the user was found.
func UnlockShadowEntry(entries []string, username string) ([]string, bool) {
	found := false
	updated := make([]string, len(entries))

	for i, entry := range entries {
		fields := strings.Split(entry, ":")
		if len(fields) >= 2 && fields[0] == username {
			found = true
			if fields[1] == "!" || fields[1] == "!!" {
				fields[1] = "*"
			}
			entry = strings.Join(fields, ":")
		}
		updated[i] = entry
	}

	return updated, found
}
