// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package provisionerlib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alpine-cloud/alpine-ami-tools/internal/network"
	"github.com/alpine-cloud/alpine-ami-tools/internal/tarutils"
)

const (
	apkToolsArchiveName = "apk-tools.tar.gz"
	alpineKeysArchive   = "alpine-keys.apk"
	apkStaticMemberName = "sbin/apk.static"
	alpineKeysTarPrefix = "usr/share/apk/keys/"
)

// fetchTools downloads the static apk binary and the Alpine signing keys,
// verifying both against their pinned digests before anything uses them.
func fetchTools(_ context.Context, state *provisionState) error {
	config := state.config

	apkToolsArchive := filepath.Join(state.toolsDir, apkToolsArchiveName)
	err := network.DownloadFileWithVerify(config.ApkToolsURL, apkToolsArchive, config.ApkToolsSHA256)
	if err != nil {
		return NewProvisionerErrorWithCause(IntegrityError, "failed to fetch apk-tools", err)
	}

	state.apkStaticPath = filepath.Join(state.toolsDir, "apk.static")
	err = tarutils.ExtractMember(apkToolsArchive, apkStaticMemberName, state.apkStaticPath)
	if err != nil {
		return fmt.Errorf("failed to extract apk.static:\n%w", err)
	}

	err = os.Chmod(state.apkStaticPath, 0o755)
	if err != nil {
		return fmt.Errorf("failed to mark apk.static executable:\n%w", err)
	}

	keysArchive := filepath.Join(state.toolsDir, alpineKeysArchive)
	err = network.DownloadFileWithVerify(config.AlpineKeysURL, keysArchive, config.AlpineKeysSHA256)
	if err != nil {
		return NewProvisionerErrorWithCause(IntegrityError, "failed to fetch alpine-keys", err)
	}

	// The keys package is itself a tar.gz; pull the key files out of it.
	err = tarutils.ExpandPrefix(keysArchive, alpineKeysTarPrefix, state.keysDir)
	if err != nil {
		return fmt.Errorf("failed to extract alpine keys:\n%w", err)
	}

	return nil
}
