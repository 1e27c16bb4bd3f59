// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package network

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()
	os.Exit(m.Run())
}

func sha256Hex(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

func TestDownloadFileWithVerify(t *testing.T) {
	contents := []byte("apk-tools-static payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(contents)
	}))
	defer server.Close()

	dstFile := filepath.Join(t.TempDir(), "apk-tools.tar.gz")
	err := DownloadFileWithVerify(server.URL, dstFile, sha256Hex(contents))
	assert.NoError(t, err)

	downloaded, err := os.ReadFile(dstFile)
	assert.NoError(t, err)
	assert.Equal(t, contents, downloaded)
}

func TestDownloadFileWithVerifyChecksumMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tampered payload"))
	}))
	defer server.Close()

	dstFile := filepath.Join(t.TempDir(), "apk-tools.tar.gz")
	err := DownloadFileWithVerify(server.URL, dstFile, sha256Hex([]byte("expected payload")))
	assert.ErrorContains(t, err, "checksum mismatch")

	// The unverified file must not be left behind.
	_, err = os.Stat(dstFile)
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadFileWithVerifyHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	dstFile := filepath.Join(t.TempDir(), "missing.tar.gz")
	err := DownloadFileWithVerify(server.URL, dstFile, sha256Hex([]byte("x")))
	assert.ErrorContains(t, err, "unexpected status")
}

func TestVerifyFileSha256(t *testing.T) {
	contents := []byte("alpine-keys payload")
	path := filepath.Join(t.TempDir(), "alpine-keys.apk")
	err := os.WriteFile(path, contents, 0o644)
	assert.NoError(t, err)

	assert.NoError(t, VerifyFileSha256(path, sha256Hex(contents)))
	assert.Error(t, VerifyFileSha256(path, sha256Hex([]byte("other"))))
}
