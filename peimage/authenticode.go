// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package peimage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/canonical/go-tpm2"
	efi "github.com/canonical/go-efilib"
	log "github.com/sirupsen/logrus"
)

// Authenticode returns the SHA-256 Authenticode digest of the image,
// computed the way the firmware measures an
// EV_EFI_BOOT_SERVICES_APPLICATION event: PE headers with the
// checksum and certificate-table fields excluded, sections in
// ascending raw-data order, trailing data included.
//
// For vmlinuz images the signer's own digest from the embedded
// signature is preferred when one is present, since that is the value
// shim verified and measured.
func (img *PEImage) Authenticode() ([]byte, error) {
	if img.vmlinuz {
		digest, err := img.signedContentDigest()
		if err != nil {
			return nil, err
		}
		if digest != nil {
			return digest, nil
		}
		log.Debugf("%s carries no signature, computing the Authenticode digest directly", img.path)
	}

	r := bytes.NewReader(img.raw)
	digest, err := efi.ComputePeImageDigest(tpm2.HashAlgorithmSHA256.GetHash(), r, r.Size())
	if err != nil {
		return nil, fmt.Errorf("cannot compute Authenticode digest of %s: %w", img.path, err)
	}
	return digest, nil
}

// signedContentDigest returns the content digest of the first
// signature, or nil when the image is unsigned.
func (img *PEImage) signedContentDigest() ([]byte, error) {
	sigs, err := img.Signatures()
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, nil
	}
	_, digest, err := sigs[0].ContentDigest()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", img.path, err)
	}
	return digest, nil
}

// peImageAdapter exposes an in-memory PEImage through an Open-style
// image interface. Authenticode does not go through it: the digest is
// computed from the raw buffer directly.
type peImageAdapter struct {
	img *PEImage
}

func (a peImageAdapter) String() string { return a.img.path }

func (a peImageAdapter) Open() (interface {
	io.ReaderAt
	io.Closer
	Size() int64
}, error) {
	return nopCloserReader{bytes.NewReader(a.img.raw)}, nil
}

type nopCloserReader struct {
	*bytes.Reader
}

func (nopCloserReader) Close() error { return nil }
