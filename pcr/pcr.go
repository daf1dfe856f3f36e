// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package pcr reconstructs the event streams a UEFI Secure Boot of a
// shim+GRUB or shim+UKI Linux system extends into PCRs 4, 7, 11 and
// 14, and folds them into the final register values.
package pcr

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/canonical/go-tpm2"
)

// Part is one contribution to a PCR value as reported to consumers:
// the event name and the digest that was extended.
type Part struct {
	Name string
	Hash []byte
}

// Pcr is a computed register: the final value and the ordered parts
// that produced it.
type Pcr struct {
	ID    uint64
	Value []byte
	Parts []Part
}

// Output groups several computed registers.
type Output struct {
	Pcrs []Pcr `json:"pcrs"`
}

type partJSON struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

type pcrJSON struct {
	ID    uint64 `json:"id"`
	Value string `json:"value"`
	Parts []Part `json:"parts"`
}

// MarshalJSON renders the hash as lowercase hex with no separators.
func (p Part) MarshalJSON() ([]byte, error) {
	return json.Marshal(partJSON{Name: p.Name, Hash: hex.EncodeToString(p.Hash)})
}

// UnmarshalJSON implements the inverse of MarshalJSON.
func (p *Part) UnmarshalJSON(data []byte) error {
	var raw partJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	hash, err := hex.DecodeString(raw.Hash)
	if err != nil {
		return fmt.Errorf("cannot decode part hash: %w", err)
	}
	p.Name = raw.Name
	p.Hash = hash
	return nil
}

// MarshalJSON renders the value as lowercase hex with no separators.
func (p Pcr) MarshalJSON() ([]byte, error) {
	return json.Marshal(pcrJSON{ID: p.ID, Value: hex.EncodeToString(p.Value), Parts: p.Parts})
}

// UnmarshalJSON implements the inverse of MarshalJSON.
func (p *Pcr) UnmarshalJSON(data []byte) error {
	var raw pcrJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := hex.DecodeString(raw.Value)
	if err != nil {
		return fmt.Errorf("cannot decode PCR value: %w", err)
	}
	p.ID = raw.ID
	p.Value = value
	p.Parts = raw.Parts
	return nil
}

// Compile folds an ordered event list into a PCR, starting from an
// all-zeroes register and extending each event digest in turn:
// value = SHA256(value || event.Hash).
func Compile(events []Event) (Pcr, error) {
	if len(events) == 0 {
		return Pcr{}, errors.New("cannot compile a PCR from an empty event list")
	}

	alg := tpm2.HashAlgorithmSHA256
	acc := make([]byte, alg.Size())
	parts := make([]Part, 0, len(events))
	for _, ev := range events {
		if ev.PCR != events[0].PCR {
			return Pcr{}, fmt.Errorf("event %q targets PCR %d, expected %d", ev.Name, ev.PCR, events[0].PCR)
		}
		h := alg.NewHash()
		h.Write(acc)
		h.Write(ev.Hash)
		acc = h.Sum(nil)

		parts = append(parts, Part{Name: ev.Name, Hash: ev.Hash})
	}

	return Pcr{ID: uint64(events[0].PCR), Value: acc, Parts: parts}, nil
}
