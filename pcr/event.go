// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package pcr

import (
	"encoding/binary"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/tcglog-parser"
)

// Group classifies an event by the boot artifacts its digest depends
// on. Events can belong to several groups; selecting one branch of a
// group forces consistent selections across every event sharing it.
type Group uint32

const (
	// GroupNever marks events whose digest never changes.
	GroupNever Group = 0
	// GroupLinux marks events depending on the vmlinuz image.
	GroupLinux Group = 1 << 1
	// GroupBootloader marks events depending on shim or GRUB.
	GroupBootloader Group = 1 << 2
	// GroupSecureBoot marks events depending on the Secure Boot
	// variables.
	GroupSecureBoot Group = 1 << 3
	// GroupMokVars marks events depending on the MOK variables.
	GroupMokVars Group = 1 << 4
	// GroupUKI marks events depending on a unified kernel image.
	GroupUKI Group = 1 << 5
	// GroupAlways marks events that always change.
	GroupAlways Group = ^Group(0)
)

// Has reports whether every group in other is also set in g.
func (g Group) Has(other Group) bool { return g&other == other }

// Event is the smallest measurable unit: a named digest extended into
// one PCR.
type Event struct {
	Name   string
	PCR    tpm2.Handle
	Hash   []byte
	Groups Group
}

// Part returns the reportable view of the event.
func (e Event) Part() Part {
	return Part{Name: e.Name, Hash: e.Hash}
}

// sha256Digest hashes an arbitrary payload with the measurement
// algorithm.
func sha256Digest(data []byte) []byte {
	h := tpm2.HashAlgorithmSHA256.NewHash()
	h.Write(data)
	return h.Sum(nil)
}

// separatorDigest is the digest of the EV_SEPARATOR payload this
// firmware logs: the four-byte normal separator value.
func separatorDigest() []byte {
	var payload [4]byte
	binary.LittleEndian.PutUint32(payload[:], tcglog.SeparatorEventNormalValue)
	return sha256Digest(payload[:])
}
