// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package pcr

import (
	"fmt"
	"path/filepath"
)

const (
	relativeKernelsPath = "usr/lib/modules"
	relativeESPPath     = "usr/lib/bootupd/updates"
)

// RootFS derives the well-known boot input directories from a root
// filesystem tree, typically a mounted bootable container image.
type RootFS struct {
	kernelsPath string
	espPath     string
}

// OpenRootFS anchors the well-known paths under rootfsPath.
func OpenRootFS(rootfsPath string) (*RootFS, error) {
	abs, err := filepath.Abs(rootfsPath)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve root filesystem path: %w", err)
	}
	return &RootFS{
		kernelsPath: filepath.Join(abs, relativeKernelsPath),
		espPath:     filepath.Join(abs, relativeESPPath),
	}, nil
}

// Kernels returns the kernel modules directory, under which vmlinuz
// images live.
func (r *RootFS) Kernels() string { return r.kernelsPath }

// ESP returns the bootupd ESP staging directory.
func (r *RootFS) ESP() string { return r.espPath }
