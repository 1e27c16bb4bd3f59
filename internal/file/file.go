// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

// Package file provides small helpers for reading and writing files.
package file

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	defaultFilePerm os.FileMode = 0o644
	defaultDirPerm  os.FileMode = 0o755
)

// Read reads the whole file as a string.
func Read(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file (%s):\n%w", path, err)
	}

	return string(content), nil
}

// ReadLines reads the file and splits it into lines.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file (%s):\n%w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to read lines from file (%s):\n%w", path, err)
	}

	return lines, nil
}

// Write writes the string to the file, creating it if needed.
func Write(data string, path string) error {
	return WriteWithPerm(data, path, defaultFilePerm)
}

// WriteWithPerm writes the string to the file with the given permissions.
func WriteWithPerm(data string, path string, perm os.FileMode) error {
	err := os.MkdirAll(filepath.Dir(path), defaultDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create directory for file (%s):\n%w", path, err)
	}

	err = os.WriteFile(path, []byte(data), perm)
	if err != nil {
		return fmt.Errorf("failed to write file (%s):\n%w", path, err)
	}

	// Reapply the permissions to avoid the umask changing the value.
	err = os.Chmod(path, perm)
	if err != nil {
		return fmt.Errorf("failed to set permissions on file (%s):\n%w", path, err)
	}

	return nil
}

// WriteLines joins the lines with newlines and writes them to the file. A
// trailing newline is always added.
func WriteLines(lines []string, path string) error {
	return Write(strings.Join(lines, "\n")+"\n", path)
}

// Append appends the string to the file, creating it if needed.
func Append(data string, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	if err != nil {
		return fmt.Errorf("failed to open file (%s) for append:\n%w", path, err)
	}
	defer f.Close()

	_, err = f.WriteString(data)
	if err != nil {
		return fmt.Errorf("failed to append to file (%s):\n%w", path, err)
	}

	return f.Close()
}

// AppendLines appends the lines to the file, one per line.
func AppendLines(lines []string, path string) error {
	return Append(strings.Join(lines, "\n")+"\n", path)
}

// Copy copies a file, creating the destination's directory if needed. The
// destination inherits the source's permissions.
func Copy(src string, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source file (%s):\n%w", src, err)
	}

	return CopyWithPerm(src, dst, info.Mode().Perm())
}

// CopyWithPerm copies a file with explicit destination permissions.
func CopyWithPerm(src string, dst string, perm os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file (%s):\n%w", src, err)
	}
	defer srcFile.Close()

	err = os.MkdirAll(filepath.Dir(dst), defaultDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create directory for file (%s):\n%w", dst, err)
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create destination file (%s):\n%w", dst, err)
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	if err != nil {
		return fmt.Errorf("failed to copy (%s) to (%s):\n%w", src, dst, err)
	}

	return dstFile.Close()
}

// PathExists reports whether the path exists.
func PathExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat path (%s):\n%w", path, err)
	}

	return true, nil
}

// RemoveFileIfExists removes the file, ignoring a missing file.
func RemoveFileIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file (%s):\n%w", path, err)
	}

	return nil
}

// CommandExists reports whether the command can be found in $PATH.
func CommandExists(command string) (bool, error) {
	_, err := exec.LookPath(command)
	if err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up command (%s):\n%w", command, err)
	}

	return true, nil
}
