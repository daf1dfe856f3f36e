// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package pcr

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// FindVmlinuz returns the first vmlinuz image under
// <kernelsDir>/<version>/vmlinuz, in lexicographic candidate order.
//
// TODO: when several kernels are installed this should surface every
// candidate so callers can compute one PCR set per kernel.
func FindVmlinuz(kernelsDir string) (string, error) {
	pattern := filepath.Join(kernelsDir, "*", "vmlinuz")
	matches, err := afero.Glob(appFs, pattern)
	if err != nil {
		return "", fmt.Errorf("cannot glob for vmlinuz candidates: %w", err)
	}

	for _, match := range matches {
		fi, err := appFs.Stat(match)
		if err != nil || fi.IsDir() {
			continue
		}
		log.Debugf("using vmlinuz candidate %s", match)
		return match, nil
	}
	return "", fmt.Errorf("no vmlinuz found under %s: %w", kernelsDir, os.ErrNotExist)
}
