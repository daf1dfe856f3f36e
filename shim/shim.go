// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package shim decodes the private sections shim embeds in its PE
// image, in particular the SBAT revocation policies it mirrors into
// the SbatLevel variable.
package shim

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/canonical/pcrcompute/efivars"
)

// SectionName is shim's SBAT policy section.
const SectionName = ".sbatlevel"

// sbatVarOriginal is the SbatLevel payload shim measures on systems
// that predate the .sbatlevel section, and whenever Secure Boot is
// disabled.
const sbatVarOriginal = "sbat,1,2021030218\n"

// ErrMalformedSbatLevel is returned when a .sbatlevel section does
// not decode.
var ErrMalformedSbatLevel = errors.New("malformed .sbatlevel section")

// SbatPolicy selects which of the two policies in a .sbatlevel
// section to read.
type SbatPolicy int

const (
	// SbatPolicyPrevious is the policy shim applies (and measures) by
	// default.
	SbatPolicyPrevious SbatPolicy = iota
	// SbatPolicyLatest is the most recent policy the section carries.
	SbatPolicyLatest
)

// SbatLevelVariable decodes a raw .sbatlevel section and returns the
// SbatLevel variable shim would measure for the selected policy.
//
// The section starts with three LE u32 fields: a version word and the
// offsets of the previous and latest policy strings. Offsets are
// relative to the end of the version word; each policy is a
// NUL-terminated ASCII string.
func SbatLevelVariable(section []byte, policy SbatPolicy) (efivars.UEFIVariable, error) {
	payload, err := sbatPolicyPayload(section, policy)
	if err != nil {
		return efivars.UEFIVariable{}, err
	}
	return efivars.NewUEFIVariable(efivars.ShimLockGuid, "SbatLevel", payload), nil
}

// SbatVarOriginal returns the hard-coded original SbatLevel variable.
func SbatVarOriginal() efivars.UEFIVariable {
	return efivars.NewUEFIVariable(efivars.ShimLockGuid, "SbatLevel", []byte(sbatVarOriginal))
}

func sbatPolicyPayload(section []byte, policy SbatPolicy) ([]byte, error) {
	if len(section) <= 12 {
		return nil, fmt.Errorf("%w: %d bytes is too short for the header", ErrMalformedSbatLevel, len(section))
	}

	var offset uint32
	switch policy {
	case SbatPolicyPrevious:
		offset = binary.LittleEndian.Uint32(section[4:8])
	case SbatPolicyLatest:
		offset = binary.LittleEndian.Uint32(section[8:12])
	default:
		return nil, fmt.Errorf("unknown SBAT policy %d", policy)
	}

	start := int64(offset) + 4
	if start >= int64(len(section)) {
		return nil, fmt.Errorf("%w: policy offset %d points past the %d byte section", ErrMalformedSbatLevel, start, len(section))
	}

	end := start
	for end < int64(len(section)) && section[end] != 0 {
		end++
	}
	if end == int64(len(section)) {
		return nil, fmt.Errorf("%w: policy at offset %d is not NUL terminated", ErrMalformedSbatLevel, start)
	}
	return section[start:end], nil
}
