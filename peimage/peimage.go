// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package peimage reads PE/COFF boot artifacts (shim, GRUB, UKIs,
// signed kernels) and exposes the views a measured boot needs from
// them: the Authenticode digest, named sections, and the certificate
// chains of their embedded signatures.
package peimage

import (
	"bytes"
	"debug/pe"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// appFs is the filesystem images are loaded from. Tests swap in a
// memory-backed implementation.
var appFs afero.Fs = afero.NewOsFs()

// ErrNoSection is returned by Section when the image has no section
// with the requested resolved name.
var ErrNoSection = errors.New("no such section")

// PEImage is a parsed PE/COFF image held in memory. The backing
// buffer lives for the lifetime of the handle; Close releases the
// parser state and lets the buffer go.
type PEImage struct {
	path    string
	raw     []byte
	file    *pe.File
	vmlinuz bool
}

// Open loads and parses the PE image at path. vmlinuz marks images
// whose Authenticode digest should be taken from the embedded
// signature when one is present (see Authenticode).
func Open(path string, vmlinuz bool) (*PEImage, error) {
	raw, err := afero.ReadFile(appFs, path)
	if err != nil {
		return nil, fmt.Errorf("cannot read PE image: %w", err)
	}
	f, err := pe.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("cannot parse %s as a PE image: %w", path, err)
	}
	return &PEImage{path: path, raw: raw, file: f, vmlinuz: vmlinuz}, nil
}

// Path returns the path the image was loaded from.
func (img *PEImage) Path() string { return img.path }

// Close releases the image.
func (img *PEImage) Close() error {
	img.raw = nil
	return img.file.Close()
}

// Section returns the raw contents of the section whose resolved name
// is name. Short names are the 8-byte header field with zero padding
// stripped; long names of the form /NNN are resolved through the COFF
// string table.
func (img *PEImage) Section(name string) ([]byte, error) {
	for _, s := range img.file.Sections {
		if img.resolveSectionName(s.Name) != name {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("cannot read section %s of %s: %w", name, img.path, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrNoSection, name, img.path)
}

// HasSection reports whether the image has a section with the
// resolved name.
func (img *PEImage) HasSection(name string) bool {
	for _, s := range img.file.Sections {
		if img.resolveSectionName(s.Name) == name {
			return true
		}
	}
	return false
}

// resolveSectionName maps a header section name to its full name.
// debug/pe already resolves /NNN long names when it can read the
// string table; the manual lookup below covers images where the name
// survived unresolved. Long-name entries start at
// PointerToSymbolTable + 18*NumberOfSymbols (symbols are 18 bytes)
// plus the decimal offset, and run to the next NUL.
func (img *PEImage) resolveSectionName(name string) string {
	name = strings.TrimRight(name, "\x00")
	if !strings.HasPrefix(name, "/") {
		return name
	}

	var offset uint32
	if _, err := fmt.Sscanf(name, "/%d", &offset); err != nil {
		return name
	}
	start := int64(img.file.PointerToSymbolTable) + 18*int64(img.file.NumberOfSymbols) + int64(offset)
	if start < 0 || start >= int64(len(img.raw)) {
		return name
	}
	end := start
	for end < int64(len(img.raw)) && img.raw[end] != 0 {
		end++
	}
	return string(img.raw[start:end])
}
