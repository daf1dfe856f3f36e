// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package pcr

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// espVendorNames are the vendor directories probed under EFI/, in
// probe order.
var espVendorNames = []string{"redhat", "fedora"}

// ESP locates the boot binaries inside an EFI System Partition tree.
// The fields are named after the files they point at, not after the
// role a boot assigns them.
type ESP struct {
	shimPath string // shimx64.efi
	grubPath string // grubx64.efi
}

// OpenESP resolves the shim and GRUB binaries under path, probing
// EFI/<vendor>/ for the known vendor directories.
func OpenESP(path string) (*ESP, error) {
	fi, err := appFs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open ESP: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("ESP path %s is not a directory", path)
	}

	vendorDir, err := espVendorDir(path)
	if err != nil {
		return nil, err
	}

	shim, err := espBinaryPath(vendorDir, "shimx64.efi")
	if err != nil {
		return nil, err
	}
	grub, err := espBinaryPath(vendorDir, "grubx64.efi")
	if err != nil {
		return nil, err
	}
	return &ESP{shimPath: shim, grubPath: grub}, nil
}

// ShimPath returns the path of shimx64.efi.
func (e *ESP) ShimPath() string { return e.shimPath }

// GrubPath returns the path of grubx64.efi.
func (e *ESP) GrubPath() string { return e.grubPath }

func espVendorDir(root string) (string, error) {
	for _, vendor := range espVendorNames {
		dir := filepath.Join(root, "EFI", vendor)
		fi, err := appFs.Stat(dir)
		if err == nil && fi.IsDir() {
			log.Debugf("using ESP vendor directory %s", dir)
			return dir, nil
		}
	}
	return "", fmt.Errorf("unknown ESP tree format under %s: %w", root, os.ErrNotExist)
}

func espBinaryPath(vendorDir, name string) (string, error) {
	path := filepath.Join(vendorDir, name)
	fi, err := appFs.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot find ESP binary: %w", err)
	}
	if fi.IsDir() {
		return "", fmt.Errorf("ESP binary path %s is a directory", path)
	}
	return path, nil
}
