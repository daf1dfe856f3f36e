// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package pcr

import (
	"github.com/canonical/pcrcompute/efivars"
	"github.com/canonical/pcrcompute/peimage"
)

// bootImage is the view of a PE boot artifact the generators consume.
type bootImage interface {
	Authenticode() ([]byte, error)
	Section(name string) ([]byte, error)
	FindCertInDB(db []efivars.X509Record) ([]byte, bool, error)
	VendorDB() ([]efivars.X509Record, error)
	VendorCert() ([]efivars.X509Record, error)
	Close() error
}

var openImage = func(path string, vmlinuz bool) (bootImage, error) {
	return peimage.Open(path, vmlinuz)
}
