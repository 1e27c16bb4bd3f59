// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alpine-cloud/alpine-ami-tools/internal/file"
	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
)

const chronyConfPath = "etc/chrony/chrony.conf"

// configureTimeSync points chrony at the link-local time server the
// instance's hypervisor exposes.
func configureTimeSync(_ context.Context, state *provisionState) error {
	logger.Log.Infof("Configuring time sync against (%s)", state.config.NTPServer)

	path := filepath.Join(state.targetDir, chronyConfPath)

	lines, err := file.ReadLines(path)
	if err != nil {
		return err
	}

	return file.WriteLines(rewriteChronyServers(lines, state.config.NTPServer), path)
}

// rewriteChronyServers replaces every server/pool directive with a single
// server directive for the given address.
func rewriteChronyServers(lines []string, server string) []string {
	directive := fmt.Sprintf("server %s prefer iburst", server)

	found := false
	updated := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) > 0 && (fields[0] == "server" || fields[0] == "pool") {
			if found {
				continue
			}
			line = directive
			found = true
		}
		updated = append(updated, line)
	}

	if !found {
		updated = append(updated, directive)
	}

	return updated
}
