// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package osinfo

import (
	"os"
	"strings"
)

// GetDistroAndVersion identifies the host distribution from /etc/os-release.
func GetDistroAndVersion() (string, string) {
	output, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return "Unknown Distro", "Unknown Version"
	}

	distro := "Unknown Distro"
	version := "Unknown Version"

	for _, line := range strings.Split(string(output), "\n") {
		if strings.HasPrefix(line, "NAME=") {
			distro = strings.Trim(strings.TrimPrefix(line, "NAME="), "\"")
		} else if strings.HasPrefix(line, "VERSION_ID=") {
			version = strings.Trim(strings.TrimPrefix(line, "VERSION_ID="), "\"")
		}
	}

	return distro, version
}
