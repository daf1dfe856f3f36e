// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package pcr

import (
	"errors"
	"fmt"

	"github.com/canonical/go-tpm2"
	log "github.com/sirupsen/logrus"

	"github.com/canonical/pcrcompute/peimage"
)

// ukiSections are the UKI sections the stub measures into PCR 11, in
// measurement order.
var ukiSections = []string{".linux", ".osrel", ".cmdline", ".initrd", ".uname", ".sbat"}

// PCR11Events reconstructs the UKI section measurements: for each
// measured section the stub extends the section name (with a trailing
// NUL) and then the raw section contents. UKIs without a .sbat
// section exist, so that one is skipped when missing; every other
// section is mandatory.
func PCR11Events(ukiPath string) ([]Event, error) {
	const index = tpm2.Handle(11)

	img, err := openImage(ukiPath, false)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	var events []Event
	for _, section := range ukiSections {
		content, err := img.Section(section)
		if err != nil {
			if errors.Is(err, peimage.ErrNoSection) && section == ".sbat" {
				log.Debugf("UKI %s has no %s section, skipping its measurement", ukiPath, section)
				continue
			}
			return nil, err
		}

		events = append(events,
			Event{
				Name:   section,
				PCR:    index,
				Hash:   sha256Digest(append([]byte(section), 0)),
				Groups: GroupUKI,
			},
			Event{
				Name:   section + "_CONTENT",
				PCR:    index,
				Hash:   sha256Digest(content),
				Groups: GroupUKI,
			})
	}

	return events, nil
}

// ComputePCR11 folds the UKI section events into the final PCR 11
// value.
func ComputePCR11(ukiPath string) (Pcr, error) {
	events, err := PCR11Events(ukiPath)
	if err != nil {
		return Pcr{}, fmt.Errorf("cannot compute PCR 11: %w", err)
	}
	return Compile(events)
}
