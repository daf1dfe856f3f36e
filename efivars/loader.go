// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package efivars

import (
	"fmt"
	"path/filepath"

	efi "github.com/canonical/go-efilib"
	"github.com/spf13/afero"
)

// AttrHeaderLength is the length of the attribute header that the
// kernel's efivarfs prefixes to every variable file.
const AttrHeaderLength = 4

// secureBootVariables are the measured Secure Boot configuration
// variables, in the order the firmware extends them into PCR 7.
var secureBootVariables = []efi.VariableDescriptor{
	{Name: "PK", GUID: GlobalVariableGuid},
	{Name: "KEK", GUID: GlobalVariableGuid},
	{Name: "db", GUID: SecurityDatabaseGuid},
	{Name: "dbx", GUID: SecurityDatabaseGuid},
}

// VarLoader is the capability the PCR 7 generator needs from a Secure
// Boot variable source: iterate the measured configuration variables
// in firmware order, and expose the raw db payload for certificate
// matching.
type VarLoader interface {
	// Next returns the next variable. ok is false once the sequence
	// is exhausted.
	Next() (v UEFIVariable, ok bool, err error)
	// RawDB returns the raw contents of the db signature database.
	RawDB() ([]byte, error)
}

// DirLoader reads Secure Boot variables from a directory laid out
// like efivarfs: one <Name>-<guid> file per variable, each prefixed
// with a 4-byte attribute header.
type DirLoader struct {
	dir        string
	attrHeader int
	index      int
	targets    []efi.VariableDescriptor
}

// NewDirLoader returns a loader over the standard PK, KEK, db, dbx
// sequence in dir.
func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{
		dir:        dir,
		attrHeader: AttrHeaderLength,
		targets:    secureBootVariables,
	}
}

// Next implements VarLoader.
func (l *DirLoader) Next() (UEFIVariable, bool, error) {
	if l.index >= len(l.targets) {
		return UEFIVariable{}, false, nil
	}
	desc := l.targets[l.index]
	l.index++

	v, err := ReadVariableFile(l.dir, desc, l.attrHeader)
	if err != nil {
		return UEFIVariable{}, false, err
	}
	return v, true, nil
}

// RawDB implements VarLoader.
func (l *DirLoader) RawDB() ([]byte, error) {
	v, err := ReadVariableFile(l.dir, efi.VariableDescriptor{Name: "db", GUID: SecurityDatabaseGuid}, l.attrHeader)
	if err != nil {
		return nil, err
	}
	return v.Data, nil
}

// ReadVariableFile loads the variable described by desc from a
// <Name>-<guid> file in dir (GUID in canonical lowercase hyphenated
// form), discarding the first attrHeader bytes.
func ReadVariableFile(dir string, desc efi.VariableDescriptor, attrHeader int) (UEFIVariable, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s-%s", desc.Name, desc.GUID))
	raw, err := afero.ReadFile(appFs, path)
	if err != nil {
		return UEFIVariable{}, fmt.Errorf("cannot read EFI variable %s: %w", desc.Name, err)
	}
	if len(raw) < attrHeader {
		return UEFIVariable{}, fmt.Errorf("EFI variable file %s is shorter than its %d byte attribute header", path, attrHeader)
	}
	return NewUEFIVariable(desc.GUID, desc.Name, raw[attrHeader:]), nil
}
