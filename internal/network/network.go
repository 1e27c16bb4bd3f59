// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

// Package network downloads remote files with checksum verification.
package network

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
)

const downloadTimeout = 5 * time.Minute

// DownloadFileWithVerify downloads the URL to dstFile and verifies its
// SHA-256 digest against expectedSha256 before the file is considered usable.
// On a digest mismatch the file is deleted.
func DownloadFileWithVerify(url string, dstFile string, expectedSha256 string) (err error) {
	logger.Log.Infof("Downloading (%s)", url)

	err = os.MkdirAll(filepath.Dir(dstFile), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create download directory:\n%w", err)
	}

	client := &http.Client{
		Timeout: downloadTimeout,
	}

	response, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to download (%s):\n%w", url, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download (%s): unexpected status (%s)", url, response.Status)
	}

	out, err := os.Create(dstFile)
	if err != nil {
		return fmt.Errorf("failed to create file (%s):\n%w", dstFile, err)
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(dstFile)
		}
	}()

	hasher := sha256.New()
	_, err = io.Copy(io.MultiWriter(out, hasher), response.Body)
	if err != nil {
		return fmt.Errorf("failed to write download (%s):\n%w", dstFile, err)
	}

	err = out.Close()
	if err != nil {
		return fmt.Errorf("failed to close file (%s):\n%w", dstFile, err)
	}

	actualSha256 := hex.EncodeToString(hasher.Sum(nil))
	if !strings.EqualFold(actualSha256, expectedSha256) {
		return fmt.Errorf("checksum mismatch for (%s): expected (%s), got (%s)",
			url, expectedSha256, actualSha256)
	}

	return nil
}

// VerifyFileSha256 checks an existing file against the expected SHA-256
// digest.
func VerifyFileSha256(path string, expectedSha256 string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file (%s):\n%w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	_, err = io.Copy(hasher, f)
	if err != nil {
		return fmt.Errorf("failed to hash file (%s):\n%w", path, err)
	}

	actualSha256 := hex.EncodeToString(hasher.Sum(nil))
	if !strings.EqualFold(actualSha256, expectedSha256) {
		return fmt.Errorf("checksum mismatch for (%s): expected (%s), got (%s)",
			path, expectedSha256, actualSha256)
	}

	return nil
}
