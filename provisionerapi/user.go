// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerapi

import (
	"fmt"
	"path/filepath"

	"github.com/alpine-cloud/alpine-ami-tools/internal/userutils"
)

// AdminUser is the login account baked into the image.
type AdminUser struct {
	Name            string `yaml:"name"`
	Comment         string `yaml:"comment"`
	HomeDirectory   string `yaml:"homeDirectory"`
	Shell           string `yaml:"shell"`
	PrivilegedGroup string `yaml:"privilegedGroup"`
}

func (u *AdminUser) IsValid() error {
	err := userutils.NameIsValid(u.Name)
	if err != nil {
		return fmt.Errorf("admin user is invalid:\n%w", err)
	}

	if u.Name == "root" {
		return fmt.Errorf("admin user is invalid: direct root login is not supported")
	}

	if u.HomeDirectory != "" && !filepath.IsAbs(u.HomeDirectory) {
		return fmt.Errorf("admin user (%s) is invalid: home directory (%s) must be absolute",
			u.Name, u.HomeDirectory)
	}

	if u.Shell != "" && !filepath.IsAbs(u.Shell) {
		return fmt.Errorf("admin user (%s) is invalid: shell (%s) must be absolute",
			u.Name, u.Shell)
	}

	if u.PrivilegedGroup != "" {
		err = userutils.NameIsValid(u.PrivilegedGroup)
		if err != nil {
			return fmt.Errorf("admin user (%s) is invalid:\n%w", u.Name, err)
		}
	}

	return nil
}

func defaultAdminUser() AdminUser {
	return AdminUser{
		Name:            "alpine",
		Comment:         "Alpine admin user",
		HomeDirectory:   "/home/alpine",
		Shell:           "/bin/sh",
		PrivilegedGroup: "wheel",
	}
}
