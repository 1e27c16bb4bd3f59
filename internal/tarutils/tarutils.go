// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

// Package tarutils extracts files from gzip-compressed tar archives.
package tarutils

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
)

// ExtractMember extracts a single named member from a .tar.gz archive to
// dstFile, preserving the archived permissions.
func ExtractMember(archivePath string, memberName string, dstFile string) error {
	found := false

	err := walkArchive(archivePath, func(header *tar.Header, reader io.Reader) (bool, error) {
		if cleanName(header.Name) != memberName {
			return false, nil
		}

		err := writeMember(reader, dstFile, os.FileMode(header.Mode).Perm())
		if err != nil {
			return false, err
		}

		found = true
		return true, nil
	})
	if err != nil {
		return err
	}

	if !found {
		return fmt.Errorf("member (%s) not found in archive (%s)", memberName, archivePath)
	}

	return nil
}

// ExpandPrefix extracts every regular file under the given prefix from a
// .tar.gz archive into dstDir, flattening the prefix.
func ExpandPrefix(archivePath string, prefix string, dstDir string) error {
	err := os.MkdirAll(dstDir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create directory (%s):\n%w", dstDir, err)
	}

	return walkArchive(archivePath, func(header *tar.Header, reader io.Reader) (bool, error) {
		// Match on the raw name so `..` components cannot dodge the
		// escape check below.
		name := strings.TrimPrefix(header.Name, "./")
		if header.Typeflag != tar.TypeReg || !strings.HasPrefix(name, prefix) {
			return false, nil
		}

		relative := strings.TrimPrefix(name, prefix)
		dstFile := filepath.Join(dstDir, relative)

		// Refuse entries that would escape the destination directory.
		if !strings.HasPrefix(dstFile, filepath.Clean(dstDir)+string(os.PathSeparator)) {
			return false, fmt.Errorf("archive member (%s) escapes destination directory", header.Name)
		}

		err := writeMember(reader, dstFile, os.FileMode(header.Mode).Perm())
		if err != nil {
			return false, err
		}

		return false, nil
	})
}

func walkArchive(archivePath string,
	callback func(header *tar.Header, reader io.Reader) (stop bool, err error),
) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive (%s):\n%w", archivePath, err)
	}
	defer f.Close()

	gzReader, err := pgzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read archive (%s):\n%w", archivePath, err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive (%s):\n%w", archivePath, err)
		}

		stop, err := callback(header, tarReader)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}

	return nil
}

func writeMember(reader io.Reader, dstFile string, perm os.FileMode) error {
	err := os.MkdirAll(filepath.Dir(dstFile), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create directory for (%s):\n%w", dstFile, err)
	}

	out, err := os.OpenFile(dstFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create file (%s):\n%w", dstFile, err)
	}
	defer out.Close()

	_, err = io.Copy(out, reader)
	if err != nil {
		return fmt.Errorf("failed to extract (%s):\n%w", dstFile, err)
	}

	return out.Close()
}

func cleanName(name string) string {
	return strings.TrimPrefix(filepath.Clean(name), "./")
}
