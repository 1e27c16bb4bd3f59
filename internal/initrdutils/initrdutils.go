// Copyright (c) the Alpine AMI Tools authors.
// Licensed under the MIT License.

// Package initrdutils inspects gzip-compressed cpio initramfs images.
package initrdutils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cavaliercoder/go-cpio"
	"github.com/klauspost/pgzip"
)

// ReadInitrdFileNames lists the member names inside an initramfs image.
func ReadInitrdFileNames(initrdPath string) ([]string, error) {
	f, err := os.Open(initrdPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open initramfs image (%s):\n%w", initrdPath, err)
	}
	defer f.Close()

	return readFileNames(f, initrdPath)
}

func readFileNames(reader io.Reader, name string) ([]string, error) {
	gzReader, err := pgzip.NewReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress initramfs image (%s):\n%w", name, err)
	}
	defer gzReader.Close()

	var names []string
	cpioReader := cpio.NewReader(gzReader)
	for {
		header, err := cpioReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read initramfs image (%s):\n%w", name, err)
		}

		names = append(names, header.Name)
	}

	return names, nil
}

// HasKernelModule reports whether the initramfs image contains the given
// kernel module, compressed or not.
func HasKernelModule(initrdPath string, moduleName string) (bool, error) {
	names, err := ReadInitrdFileNames(initrdPath)
	if err != nil {
		return false, err
	}

	target := moduleName + ".ko"
	for _, name := range names {
		base := name[strings.LastIndex(name, "/")+1:]
		if base == target || strings.HasPrefix(base, target+".") {
			return true, nil
		}
	}

	return false, nil
}
