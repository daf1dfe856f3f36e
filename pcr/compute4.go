// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package pcr

import (
	"fmt"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/tcglog-parser"
)

// PCR4Events reconstructs the OS loader measurements: the firmware's
// boot-option action and separator, then the Authenticode digest of
// every application the boot chain loads. A signed vmlinuz is only
// measured on Secure Boot non-UKI paths, because shim measures a
// kernel after verifying it and an unverified kernel never gets that
// far.
func PCR4Events(kernelsDir, espDir string, uki, secureboot bool) ([]Event, error) {
	const index = tpm2.Handle(4)

	esp, err := OpenESP(espDir)
	if err != nil {
		return nil, err
	}

	events := []Event{
		{
			Name:   tcglog.EventTypeEFIAction.String(),
			PCR:    index,
			Hash:   sha256Digest([]byte(tcglog.EFICallingEFIApplicationEvent.String())),
			Groups: GroupNever,
		},
		{
			Name:   tcglog.EventTypeSeparator.String(),
			PCR:    index,
			Hash:   separatorDigest(),
			Groups: GroupNever,
		},
	}

	for _, path := range []string{esp.ShimPath(), esp.GrubPath()} {
		digest, err := imageAuthenticode(path, false)
		if err != nil {
			return nil, err
		}
		events = append(events, Event{
			Name:   tcglog.EventTypeEFIBootServicesApplication.String(),
			PCR:    index,
			Hash:   digest,
			Groups: GroupBootloader,
		})
	}

	if secureboot && !uki {
		vmlinuzPath, err := FindVmlinuz(kernelsDir)
		if err != nil {
			return nil, err
		}
		digest, err := imageAuthenticode(vmlinuzPath, true)
		if err != nil {
			return nil, err
		}
		events = append(events, Event{
			Name:   tcglog.EventTypeEFIBootServicesApplication.String(),
			PCR:    index,
			Hash:   digest,
			Groups: GroupLinux,
		})
	}

	return events, nil
}

// ComputePCR4 folds the OS loader events into the final PCR 4 value.
func ComputePCR4(kernelsDir, espDir string, uki, secureboot bool) (Pcr, error) {
	events, err := PCR4Events(kernelsDir, espDir, uki, secureboot)
	if err != nil {
		return Pcr{}, fmt.Errorf("cannot compute PCR 4: %w", err)
	}
	return Compile(events)
}

func imageAuthenticode(path string, vmlinuz bool) ([]byte, error) {
	img, err := openImage(path, vmlinuz)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return img.Authenticode()
}
