// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package efivars

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"math/big"
	"time"

	efi "github.com/canonical/go-efilib"
	"gopkg.in/check.v1"
)

type sigdbSuite struct{}

var _ = check.Suite(&sigdbSuite{})

// makeTestCert generates a self-signed certificate with the given
// subject and returns its DER encoding.
func makeTestCert(c *check.C, subject pkix.Name) []byte {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	c.Assert(err, check.IsNil)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      subject,
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	c.Assert(err, check.IsNil)
	return der
}

// buildSignatureList encodes one EFI_SIGNATURE_LIST with a single
// signature entry.
func buildSignatureList(listType efi.GUID, item []byte) []byte {
	sigSize := 16 + len(item) // SignatureOwner + data
	listSize := 28 + sigSize  // header + one signature, no list header

	out := make([]byte, 0, listSize)
	out = append(out, listType[:]...)
	out = binary.LittleEndian.AppendUint32(out, uint32(listSize))
	out = binary.LittleEndian.AppendUint32(out, 0) // SignatureHeaderSize
	out = binary.LittleEndian.AppendUint32(out, uint32(sigSize))
	out = append(out, make([]byte, 16)...) // SignatureOwner
	out = append(out, item...)
	return out
}

func (s *sigdbSuite) TestParseSingleCert(c *check.C) {
	der := makeTestCert(c, pkix.Name{CommonName: "Test Signing CA"})
	blob := buildSignatureList(efi.CertX509Guid, der)

	records, err := ParseSignatureDatabase(blob)
	c.Assert(err, check.IsNil)
	c.Assert(records, check.HasLen, 1)
	c.Check(records[0].Subject, check.Equals, "CN=Test Signing CA")
	c.Check(records[0].Issuer, check.Equals, "CN=Test Signing CA")
	c.Check(records[0].Raw, check.DeepEquals, der)
}

func (s *sigdbSuite) TestParseMultipleLists(c *check.C) {
	first := makeTestCert(c, pkix.Name{CommonName: "first"})
	second := makeTestCert(c, pkix.Name{CommonName: "second"})
	blob := append(buildSignatureList(efi.CertX509Guid, first),
		buildSignatureList(efi.CertX509Guid, second)...)

	records, err := ParseSignatureDatabase(blob)
	c.Assert(err, check.IsNil)
	c.Assert(records, check.HasLen, 2)
	c.Check(records[0].Subject, check.Equals, "CN=first")
	c.Check(records[1].Subject, check.Equals, "CN=second")
}

func (s *sigdbSuite) TestNonX509ListsIgnored(c *check.C) {
	// A SHA-256 hash list must not contribute records.
	blob := buildSignatureList(efi.CertSHA256Guid, make([]byte, 32))

	records, err := ParseSignatureDatabase(blob)
	c.Assert(err, check.IsNil)
	c.Check(records, check.HasLen, 0)
}

func (s *sigdbSuite) TestUndecodableCertSkipped(c *check.C) {
	good := makeTestCert(c, pkix.Name{CommonName: "good"})
	blob := append(buildSignatureList(efi.CertX509Guid, []byte("this is not DER")),
		buildSignatureList(efi.CertX509Guid, good)...)

	records, err := ParseSignatureDatabase(blob)
	c.Assert(err, check.IsNil)
	c.Assert(records, check.HasLen, 1)
	c.Check(records[0].Subject, check.Equals, "CN=good")
}

func (s *sigdbSuite) TestMalformedDatabase(c *check.C) {
	der := makeTestCert(c, pkix.Name{CommonName: "truncated"})
	blob := buildSignatureList(efi.CertX509Guid, der)

	_, err := ParseSignatureDatabase(blob[:len(blob)-10])
	c.Check(err, check.ErrorMatches, "malformed signature database: .*")
}

func (s *sigdbSuite) TestEmptyDatabase(c *check.C) {
	records, err := ParseSignatureDatabase(nil)
	c.Check(err, check.IsNil)
	c.Check(records, check.HasLen, 0)
}

func (s *sigdbSuite) TestCanonicalNameOrderingAndEscaping(c *check.C) {
	der := makeTestCert(c, pkix.Name{
		Country:      []string{"GB"},
		Organization: []string{"Acme, Inc"},
		CommonName:   "Acme Secure Boot Signing",
		SerialNumber: "42", // not a recognised attribute, dropped
	})
	cert, err := x509.ParseCertificate(der)
	c.Assert(err, check.IsNil)

	c.Check(CanonicalName(cert.Subject), check.Equals, `C=GB, O=Acme\, Inc, CN=Acme Secure Boot Signing`)
}

func (s *sigdbSuite) TestCanonicalNameAllRecognisedAttributes(c *check.C) {
	der := makeTestCert(c, pkix.Name{
		Country:            []string{"US"},
		Organization:       []string{"Example"},
		OrganizationalUnit: []string{"Boot"},
		Locality:           []string{"Raleigh"},
		Province:           []string{"NC"},
		CommonName:         "Example CA",
	})
	cert, err := x509.ParseCertificate(der)
	c.Assert(err, check.IsNil)

	// Attributes render in their DER order.
	c.Check(CanonicalName(cert.Subject), check.Equals,
		"C=US, ST=NC, L=Raleigh, O=Example, OU=Boot, CN=Example CA")
}
