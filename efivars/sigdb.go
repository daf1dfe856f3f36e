// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package efivars

import (
	"bytes"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"strings"

	efi "github.com/canonical/go-efilib"
	log "github.com/sirupsen/logrus"
)

// ErrMalformedDatabase is returned when a blob does not decode as an
// EFI_SIGNATURE_LIST chain.
var ErrMalformedDatabase = errors.New("malformed signature database")

// X509Record is a certificate extracted from a signature database,
// with subject and issuer rendered in the canonical comparison format
// (see CanonicalName).
type X509Record struct {
	Subject string
	Issuer  string
	Raw     []byte // DER
}

// NewX509Record parses a single DER certificate into a record.
func NewX509Record(der []byte) (X509Record, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return X509Record{}, err
	}
	return X509Record{
		Subject: CanonicalName(cert.Subject),
		Issuer:  CanonicalName(cert.Issuer),
		Raw:     der,
	}, nil
}

// ParseSignatureDatabase decomposes an EFI_SIGNATURE_LIST chain and
// returns the X.509 certificates it carries. Non-X.509 lists are
// ignored. Individual entries that fail to parse as DER inside a
// well-formed list are logged and skipped; structural errors are
// fatal.
func ParseSignatureDatabase(blob []byte) ([]X509Record, error) {
	if len(blob) == 0 {
		return nil, nil
	}

	db, err := efi.ReadSignatureDatabase(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDatabase, err)
	}

	var records []X509Record
	for _, list := range db {
		if list.Type != efi.CertX509Guid {
			continue
		}
		for _, sig := range list.Signatures {
			record, err := NewX509Record(sig.Data)
			if err != nil {
				log.WithError(err).Warn("skipping undecodable certificate in signature database")
				continue
			}
			records = append(records, record)
		}
	}
	return records, nil
}

// Recognised distinguished-name attributes, in the keys the canonical
// rendering uses. Anything else is dropped from the rendered string.
var attributeKeys = []struct {
	oid asn1.ObjectIdentifier
	key string
}{
	{asn1.ObjectIdentifier{2, 5, 4, 6}, "C"},
	{asn1.ObjectIdentifier{2, 5, 4, 8}, "ST"},
	{asn1.ObjectIdentifier{2, 5, 4, 7}, "L"},
	{asn1.ObjectIdentifier{2, 5, 4, 10}, "O"},
	{asn1.ObjectIdentifier{2, 5, 4, 3}, "CN"},
	{asn1.ObjectIdentifier{2, 5, 4, 11}, "OU"},
}

// CanonicalName renders a distinguished name as "KEY=VALUE" pairs
// joined by ", ", keeping the attributes in their original DER order
// and escaping literal commas in values as "\,". This is the format
// both sides of every certificate comparison in this module use.
func CanonicalName(name pkix.Name) string {
	var parts []string
	for _, atv := range name.Names {
		key := ""
		for _, k := range attributeKeys {
			if atv.Type.Equal(k.oid) {
				key = k.key
				break
			}
		}
		if key == "" {
			continue
		}
		value, ok := atv.Value.(string)
		if !ok {
			continue
		}
		parts = append(parts, key+"="+strings.ReplaceAll(value, ",", `\,`))
	}
	return strings.Join(parts, ", ")
}
