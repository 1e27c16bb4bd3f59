// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

package tarutils

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/alpine-cloud/alpine-ami-tools/internal/logger"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()
	os.Exit(m.Run())
}

type testMember struct {
	name     string
	mode     int64
	contents string
}

func writeTestArchive(t *testing.T, members []testMember) string {
	t.Helper()

	archivePath := filepath.Join(t.TempDir(), "archive.tar.gz")
	f, err := os.Create(archivePath)
	assert.NoError(t, err)
	defer f.Close()

	gzWriter := pgzip.NewWriter(f)
	tarWriter := tar.NewWriter(gzWriter)

	for _, member := range members {
		err := tarWriter.WriteHeader(&tar.Header{
			Name:     member.name,
			Mode:     member.mode,
			Size:     int64(len(member.contents)),
			Typeflag: tar.TypeReg,
		})
		assert.NoError(t, err)

		_, err = tarWriter.Write([]byte(member.contents))
		assert.NoError(t, err)
	}

	assert.NoError(t, tarWriter.Close())
	assert.NoError(t, gzWriter.Close())

	return archivePath
}

func TestExtractMember(t *testing.T) {
	archivePath := writeTestArchive(t, []testMember{
		{"sbin/apk.static", 0o755, "static binary"},
		{"sbin/other", 0o644, "other"},
	})

	dstFile := filepath.Join(t.TempDir(), "apk.static")
	err := ExtractMember(archivePath, "sbin/apk.static", dstFile)
	assert.NoError(t, err)

	contents, err := os.ReadFile(dstFile)
	assert.NoError(t, err)
	assert.Equal(t, "static binary", string(contents))

	info, err := os.Stat(dstFile)
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestExtractMemberNotFound(t *testing.T) {
	archivePath := writeTestArchive(t, []testMember{
		{"sbin/other", 0o644, "other"},
	})

	err := ExtractMember(archivePath, "sbin/apk.static", filepath.Join(t.TempDir(), "out"))
	assert.ErrorContains(t, err, "not found in archive")
}

func TestExpandPrefix(t *testing.T) {
	archivePath := writeTestArchive(t, []testMember{
		{"usr/share/apk/keys/alpine-devel@lists.alpinelinux.org-1.rsa.pub", 0o644, "key1"},
		{"usr/share/apk/keys/alpine-devel@lists.alpinelinux.org-2.rsa.pub", 0o644, "key2"},
		{"usr/bin/unrelated", 0o755, "skip"},
	})

	dstDir := filepath.Join(t.TempDir(), "keys")
	err := ExpandPrefix(archivePath, "usr/share/apk/keys/", dstDir)
	assert.NoError(t, err)

	entries, err := os.ReadDir(dstDir)
	assert.NoError(t, err)
	assert.Len(t, entries, 2)

	contents, err := os.ReadFile(filepath.Join(dstDir, "alpine-devel@lists.alpinelinux.org-1.rsa.pub"))
	assert.NoError(t, err)
	assert.Equal(t, "key1", string(contents))
}

func TestExpandPrefixRejectsTraversal(t *testing.T) {
	archivePath := writeTestArchive(t, []testMember{
		{"usr/share/apk/keys/../../../../escape", 0o644, "bad"},
	})

	err := ExpandPrefix(archivePath, "usr/share/apk/keys/", filepath.Join(t.TempDir(), "keys"))
	assert.Error(t, err)
}
