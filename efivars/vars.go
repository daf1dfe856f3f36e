// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package efivars models UEFI variables the way the TCG PC Client
// Platform Firmware Profile measures them: each variable has a
// byte-exact UEFI_VARIABLE_DATA serialisation whose SHA-256 digest is
// what the firmware extends into a PCR.
package efivars

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	efi "github.com/canonical/go-efilib"
	"github.com/canonical/go-tpm2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// GlobalVariableGuid identifies the architecturally defined
	// variables (SecureBoot, PK, KEK).
	GlobalVariableGuid = efi.GlobalVariable

	// SecurityDatabaseGuid identifies the db and dbx signature
	// databases.
	SecurityDatabaseGuid = efi.ImageSecurityDatabaseGuid

	// ShimLockGuid is the vendor GUID shim uses for the variables it
	// owns (SbatLevel, MokList* and friends).
	ShimLockGuid = efi.MakeGUID(0x605dab50, 0xe046, 0x4300, 0xabb6, [...]uint8{0x3d, 0xd8, 0x10, 0xdd, 0x8b, 0x23})
)

// UEFIVariable is a UEFI variable identified by vendor GUID and
// unicode name, carrying the payload that gets measured.
type UEFIVariable struct {
	GUID        efi.GUID
	UnicodeName string
	Data        []byte
}

// NewUEFIVariable returns a variable ready for measurement.
func NewUEFIVariable(guid efi.GUID, name string, data []byte) UEFIVariable {
	return UEFIVariable{GUID: guid, UnicodeName: name, Data: data}
}

// Encode returns the UEFI_VARIABLE_DATA serialisation of the variable:
//
//	VariableName (16 bytes, mixed-endian GUID wire form)
//	UnicodeNameLength (LE u64, UTF-16 code units, not bytes)
//	VariableDataLength (LE u64, bytes)
//	UnicodeName (UTF-16LE, no BOM, no terminator)
//	VariableData
func (v UEFIVariable) Encode() []byte {
	name := utf16leBytes(v.UnicodeName)

	w := new(bytes.Buffer)
	w.Write(v.GUID[:])
	binary.Write(w, binary.LittleEndian, uint64(len(name)/2))
	binary.Write(w, binary.LittleEndian, uint64(len(v.Data)))
	w.Write(name)
	w.Write(v.Data)
	return w.Bytes()
}

// Hash returns the measurement digest of the variable, ie. the value
// an EV_EFI_VARIABLE_* event would extend.
func (v UEFIVariable) Hash() []byte {
	h := tpm2.HashAlgorithmSHA256.NewHash()
	h.Write(v.Encode())
	return h.Sum(nil)
}

// SecureBootStateVariable returns the SecureBoot variable as measured
// by the firmware: payload 0x01 when Secure Boot is enabled, empty
// otherwise.
func SecureBootStateVariable(enabled bool) UEFIVariable {
	var data []byte
	if enabled {
		data = []byte{1}
	}
	return NewUEFIVariable(GlobalVariableGuid, "SecureBoot", data)
}

func utf16leBytes(s string) []byte {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	out, err := io.ReadAll(transform.NewReader(strings.NewReader(s), enc))
	if err != nil {
		// Transforming valid UTF-8 to UTF-16LE cannot fail.
		panic(err)
	}
	return out
}
