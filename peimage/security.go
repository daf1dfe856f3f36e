// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package peimage

import (
	"crypto"
	"crypto/x509/pkix"
	"debug/pe"
	"encoding/asn1"
	"encoding/binary"
	"fmt"

	"github.com/smallstep/pkcs7"

	"github.com/canonical/pcrcompute/efivars"
)

// WIN_CERTIFICATE header values. Only PKCS#7 SignedData entries are
// of interest here.
const (
	winCertTypePKCSSignedData = 0x0002

	// Each WIN_CERTIFICATE starts with Length (u32), Revision (u16)
	// and CertificateType (u16); entries are 8-byte aligned.
	winCertHeaderSize = 8
)

// Signature is one PKCS#7 signature from a PE security directory.
type Signature struct {
	p7      *pkcs7.PKCS7
	content []byte
}

// Certificates returns every certificate carried by the signature,
// with subject and issuer in the canonical comparison format.
func (s *Signature) Certificates() []efivars.X509Record {
	var records []efivars.X509Record
	for _, cert := range s.p7.Certificates {
		records = append(records, efivars.X509Record{
			Subject: efivars.CanonicalName(cert.Subject),
			Issuer:  efivars.CanonicalName(cert.Issuer),
			Raw:     cert.Raw,
		})
	}
	return records
}

// spcAttributeTypeAndOptionalValue is the first element of
// SpcIndirectDataContent, the Authenticode signed content: an
// attribute describing what was hashed, followed by the digest.
type spcAttributeTypeAndOptionalValue struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue `asn1:"optional"`
}

type digestInfo struct {
	DigestAlgorithm pkix.AlgorithmIdentifier
	Digest          []byte
}

// ContentDigest returns the digest recorded in the signature's
// SpcIndirectDataContent, ie. the Authenticode hash the signer
// computed over the image.
func (s *Signature) ContentDigest() (crypto.Hash, []byte, error) {
	var data spcAttributeTypeAndOptionalValue
	rest, err := asn1.Unmarshal(s.content, &data)
	if err != nil {
		return 0, nil, fmt.Errorf("cannot decode SpcIndirectDataContent: %w", err)
	}
	var di digestInfo
	if _, err := asn1.Unmarshal(rest, &di); err != nil {
		return 0, nil, fmt.Errorf("cannot decode Authenticode DigestInfo: %w", err)
	}
	alg, err := digestAlgorithm(di.DigestAlgorithm)
	if err != nil {
		return 0, nil, err
	}
	return alg, di.Digest, nil
}

func digestAlgorithm(identifier pkix.AlgorithmIdentifier) (crypto.Hash, error) {
	oid := identifier.Algorithm
	switch {
	case oid.Equal(pkcs7.OIDDigestAlgorithmSHA1):
		return crypto.SHA1, nil
	case oid.Equal(pkcs7.OIDDigestAlgorithmSHA256):
		return crypto.SHA256, nil
	case oid.Equal(pkcs7.OIDDigestAlgorithmSHA384):
		return crypto.SHA384, nil
	case oid.Equal(pkcs7.OIDDigestAlgorithmSHA512):
		return crypto.SHA512, nil
	}
	return crypto.Hash(0), fmt.Errorf("unsupported Authenticode digest algorithm %v", oid)
}

// Signatures walks the security data directory and returns every
// PKCS#7 signature in it. PE images can be dual signed, so the
// directory is a chain of 8-byte aligned WIN_CERTIFICATE entries.
func (img *PEImage) Signatures() ([]*Signature, error) {
	offset, size, err := img.securityDirectory()
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}

	end := offset + int64(size)
	if end > int64(len(img.raw)) {
		return nil, fmt.Errorf("%s: security directory extends past the end of the image", img.path)
	}

	var sigs []*Signature
	for offset+winCertHeaderSize <= end {
		length := binary.LittleEndian.Uint32(img.raw[offset:])
		certType := binary.LittleEndian.Uint16(img.raw[offset+6:])

		if length < winCertHeaderSize || offset+int64(length) > end {
			return nil, fmt.Errorf("%s: malformed WIN_CERTIFICATE at offset %#x", img.path, offset)
		}

		if certType == winCertTypePKCSSignedData {
			content := img.raw[offset+winCertHeaderSize : offset+int64(length)]
			p7, err := pkcs7.Parse(content)
			if err != nil {
				return nil, fmt.Errorf("%s: cannot parse signature at offset %#x: %w", img.path, offset, err)
			}
			sigs = append(sigs, &Signature{p7: p7, content: p7.Content})
		}

		// Advance to the next 8-byte aligned entry.
		offset += (int64(length) + 7) &^ 7
	}
	return sigs, nil
}

// securityDirectory returns the file offset and size of the security
// data directory. The directory's VirtualAddress is a file offset,
// not an RVA.
func (img *PEImage) securityDirectory() (int64, uint32, error) {
	var dir pe.DataDirectory
	switch oh := img.file.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		dir = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_SECURITY]
	case *pe.OptionalHeader32:
		dir = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_SECURITY]
	default:
		return 0, 0, fmt.Errorf("%s: unsupported PE optional header", img.path)
	}
	return int64(dir.VirtualAddress), dir.Size, nil
}
