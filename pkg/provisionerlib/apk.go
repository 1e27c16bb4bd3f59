// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alpine-cloud/alpine-ami-tools/internal/file"
	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/alpine-cloud/alpine-ami-tools/internal/resources"
	"github.com/alpine-cloud/alpine-ami-tools/internal/shell"
)

const (
	repositoriesPath = "etc/apk/repositories"
	apkKeysDirPath   = "etc/apk/keys"
	apkCacheDirPath  = "var/cache/apk"
)

// configureRepositories writes the repository list and installs the trusted
// signing keys into the target tree.
func configureRepositories(_ context.Context, state *provisionState) error {
	logger.Log.Infof("Configuring apk repositories for (%s)", state.config.Release)

	template, err := resources.ResourcesFS.ReadFile(resources.AssetsRepositoriesFile)
	if err != nil {
		return fmt.Errorf("failed to read repositories template:\n%w", err)
	}

	repositories := renderRepositories(string(template), state.config.Mirror, state.config.Release)
	err = file.Write(repositories, filepath.Join(state.targetDir, repositoriesPath))
	if err != nil {
		return err
	}

	keysDir := filepath.Join(state.targetDir, apkKeysDirPath)
	entries, err := os.ReadDir(state.keysDir)
	if err != nil {
		return fmt.Errorf("failed to list extracted keys:\n%w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		err = file.Copy(filepath.Join(state.keysDir, entry.Name()), filepath.Join(keysDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to install signing key (%s):\n%w", entry.Name(), err)
		}
	}

	return nil
}

// renderRepositories fills the {{mirror}} and {{release}} placeholders in
// the repositories template.
func renderRepositories(template string, mirror string, release string) string {
	replacer := strings.NewReplacer(
		"{{mirror}}", mirror,
		"{{release}}", release,
	)
	return replacer.Replace(template)
}

// installBase seeds the target tree with the alpine-base package set using
// the static apk binary from the host side.
func installBase(_ context.Context, state *provisionState) error {
	logger.Log.Infof("Installing alpine-base into (%s)", state.targetDir)

	err := os.MkdirAll(filepath.Join(state.targetDir, apkCacheDirPath), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create apk cache directory:\n%w", err)
	}

	err = shell.NewExecBuilder(state.apkStaticPath,
		"--root", state.targetDir,
		"--keys-dir", filepath.Join(state.targetDir, apkKeysDirPath),
		"--repositories-file", filepath.Join(state.targetDir, repositoriesPath),
		"--update-cache",
		"--initdb",
		"add", "alpine-base").
		ErrorStderrLines(1).
		Execute()
	if err != nil {
		return NewProvisionerErrorWithCause(ExternalToolError, "failed to install alpine-base", err)
	}

	return nil
}
