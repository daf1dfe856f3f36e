// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package pcr

import (
	"fmt"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/tcglog-parser"

	"github.com/canonical/pcrcompute/efivars"
)

// PCR14Events reconstructs shim's MOK mirror measurements. The mirror
// files already hold the EV_IPL event digests shim computed, so their
// contents are used as event hashes directly.
func PCR14Events(mokDir string) ([]Event, error) {
	const index = tpm2.Handle(14)

	hashes, err := efivars.ReadMokVariableFiles(mokDir)
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, hash := range hashes {
		events = append(events, Event{
			Name:   tcglog.EventTypeIPL.String(),
			PCR:    index,
			Hash:   hash,
			Groups: GroupMokVars,
		})
	}
	return events, nil
}

// ComputePCR14 folds the MOK mirror events into the final PCR 14
// value.
func ComputePCR14(mokDir string) (Pcr, error) {
	events, err := PCR14Events(mokDir)
	if err != nil {
		return Pcr{}, fmt.Errorf("cannot compute PCR 14: %w", err)
	}
	return Compile(events)
}
