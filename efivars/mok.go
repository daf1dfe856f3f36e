// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package efivars

import (
	"fmt"
	"path/filepath"

	"github.com/canonical/go-tpm2"
	"github.com/spf13/afero"
)

// mokVariableNames are the MOK mirror variables shim measures into
// PCR 14, in measurement order.
var mokVariableNames = []string{"MokListRT", "MokListXRT", "MokListTrustedRT"}

// ReadMokVariableFiles reads the MOK mirror variable files from dir.
// Unlike efivarfs files these carry no attribute header: each file's
// contents are the EV_IPL event digest exactly as shim computed it, so
// the payloads are returned as-is and never hashed again.
func ReadMokVariableFiles(dir string) ([][]byte, error) {
	digestSize := tpm2.HashAlgorithmSHA256.Size()

	var hashes [][]byte
	for _, name := range mokVariableNames {
		path := filepath.Join(dir, name)
		raw, err := afero.ReadFile(appFs, path)
		if err != nil {
			return nil, fmt.Errorf("cannot read MOK variable %s: %w", name, err)
		}
		if len(raw) != digestSize {
			return nil, fmt.Errorf("MOK variable file %s holds %d bytes, expected a %d byte digest", path, len(raw), digestSize)
		}
		hashes = append(hashes, raw)
	}
	return hashes, nil
}
