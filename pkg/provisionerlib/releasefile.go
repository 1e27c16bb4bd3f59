// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/alpine-cloud/alpine-ami-tools/internal/file"
	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
)

const releaseFilePath = "etc/ami-release"

// writeRelease stamps the image with its build provenance. This is the only
// run-varying file the pipeline produces.
func writeRelease(_ context.Context, state *provisionState) error {
	logger.Log.Infof("Creating release file")

	lines := []string{
		fmt.Sprintf("%s=\"%s\"", "TOOL_VERSION", ToolVersion),
		fmt.Sprintf("%s=\"%s\"", "ALPINE_RELEASE", state.config.Release),
		fmt.Sprintf("%s=\"%s\"", "BUILD_DATE", state.buildTime),
		fmt.Sprintf("%s=\"%s\"", "IMAGE_UUID", state.imageUuid),
	}

	err := file.WriteLines(lines, filepath.Join(state.targetDir, releaseFilePath))
	if err != nil {
		return fmt.Errorf("failed to write release file:\n%w", err)
	}

	return nil
}
