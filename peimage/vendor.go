// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package peimage

import (
	"encoding/binary"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/canonical/pcrcompute/efivars"
)

// vendorCertSection is where shim embeds its built-in trust anchors.
const vendorCertSection = ".vendor_cert"

// vendorCertAuth returns the authorized slice of the .vendor_cert
// section, or nil when the section is absent. The section starts with
// four LE u32 fields: auth_size, deauth_size, auth_offset,
// deauth_offset.
func (img *PEImage) vendorCertAuth() ([]byte, error) {
	raw, err := img.Section(vendorCertSection)
	if errors.Is(err, ErrNoSection) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(raw) < 16 {
		return nil, fmt.Errorf("%s: %s section is %d bytes, shorter than its header", img.path, vendorCertSection, len(raw))
	}
	authSize := binary.LittleEndian.Uint32(raw[0:4])
	authOffset := binary.LittleEndian.Uint32(raw[8:12])
	if int64(authOffset)+int64(authSize) > int64(len(raw)) {
		return nil, fmt.Errorf("%s: %s authorized slice [%d, %d) exceeds the %d byte section", img.path, vendorCertSection, authOffset, authOffset+authSize, len(raw))
	}
	return raw[authOffset : authOffset+authSize], nil
}

// VendorDB interprets the authorized .vendor_cert payload as an
// EFI_SIGNATURE_LIST chain, the way shim carries a whole vendor
// database, and returns its certificates. Empty when the section is
// absent or the payload is not a database.
func (img *PEImage) VendorDB() ([]efivars.X509Record, error) {
	auth, err := img.vendorCertAuth()
	if err != nil || auth == nil {
		return nil, err
	}
	records, err := efivars.ParseSignatureDatabase(auth)
	if err != nil {
		log.WithError(err).Debugf("%s: vendor payload is not a signature database", img.path)
		return nil, nil
	}
	return records, nil
}

// VendorCert interprets the authorized .vendor_cert payload as a
// single DER certificate, the other layout shim supports. Empty when
// the section is absent or the payload is not a certificate.
func (img *PEImage) VendorCert() ([]efivars.X509Record, error) {
	auth, err := img.vendorCertAuth()
	if err != nil || auth == nil {
		return nil, err
	}
	record, err := efivars.NewX509Record(auth)
	if err != nil {
		return nil, nil
	}
	return []efivars.X509Record{record}, nil
}

// FindCertInDB scans db for an entry vouching for this image: the
// first db certificate whose subject equals the subject or the issuer
// of any certificate in any of the image's signatures. The returned
// DER is the database entry's, not the image's.
func (img *PEImage) FindCertInDB(db []efivars.X509Record) ([]byte, bool, error) {
	sigs, err := img.Signatures()
	if err != nil {
		return nil, false, err
	}
	for _, sig := range sigs {
		for _, signer := range sig.Certificates() {
			for _, cert := range db {
				if cert.Subject == signer.Subject || cert.Subject == signer.Issuer {
					return cert.Raw, true, nil
				}
			}
		}
	}
	return nil, false, nil
}
