// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package pcr

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/tcglog-parser"

	"github.com/canonical/pcrcompute/efivars"
	"github.com/canonical/pcrcompute/peimage"
	"github.com/canonical/pcrcompute/shim"
)

// ErrPolicyMismatch is returned when Secure Boot is enabled but
// shim's signing certificate cannot be vouched for by the supplied
// db: such an image will not boot under that policy.
var ErrPolicyMismatch = errors.New("Secure Boot policy mismatch")

// PCR7Events reconstructs the Secure Boot policy measurements: the
// SecureBoot state and the PK/KEK/db/dbx configuration, the
// separator, then one EV_EFI_VARIABLE_AUTHORITY event per
// verification decision shim and the firmware take on the way to the
// kernel.
func PCR7Events(efivarsDir, espDir string, securebootEnabled bool) ([]Event, error) {
	return pcr7Events(efivars.NewDirLoader(efivarsDir), espDir, securebootEnabled)
}

func pcr7Events(loader efivars.VarLoader, espDir string, enabled bool) ([]Event, error) {
	const index = tpm2.Handle(7)

	events := []Event{{
		Name:   tcglog.EventTypeEFIVariableDriverConfig.String(),
		PCR:    index,
		Hash:   efivars.SecureBootStateVariable(enabled).Hash(),
		Groups: GroupSecureBoot,
	}}

	for {
		v, ok, err := loader.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		events = append(events, Event{
			Name:   tcglog.EventTypeEFIVariableDriverConfig.String(),
			PCR:    index,
			Hash:   v.Hash(),
			Groups: GroupSecureBoot,
		})
	}

	events = append(events, Event{
		Name:   tcglog.EventTypeSeparator.String(),
		PCR:    index,
		Hash:   separatorDigest(),
		Groups: GroupNever,
	})

	esp, err := OpenESP(espDir)
	if err != nil {
		return nil, err
	}
	shimImg, err := openImage(esp.ShimPath(), false)
	if err != nil {
		return nil, err
	}
	defer shimImg.Close()

	rawDB, err := loader.RawDB()
	if err != nil {
		return nil, err
	}
	dbCerts, err := efivars.ParseSignatureDatabase(rawDB)
	if err != nil {
		return nil, err
	}

	if enabled {
		cert, found, err := shimImg.FindCertInDB(dbCerts)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: shim's signing certificate is not in db", ErrPolicyMismatch)
		}
		events = append(events, Event{
			Name:   tcglog.EventTypeEFIVariableAuthority.String(),
			PCR:    index,
			Hash:   efivars.NewUEFIVariable(efivars.SecurityDatabaseGuid, "db", cert).Hash(),
			Groups: GroupSecureBoot | GroupBootloader,
		})
	}

	sbatVar, err := sbatLevelVariable(shimImg, enabled)
	if err != nil {
		return nil, err
	}
	events = append(events, Event{
		Name:   tcglog.EventTypeEFIVariableAuthority.String(),
		PCR:    index,
		Hash:   sbatVar.Hash(),
		Groups: GroupSecureBoot | GroupBootloader,
	})

	if enabled {
		authorities, err := postShimAuthorityEvents(shimImg, dbCerts, []string{esp.GrubPath()})
		if err != nil {
			return nil, err
		}
		events = append(events, authorities...)
	}

	return events, nil
}

// sbatLevelVariable picks the SbatLevel payload shim would measure:
// the hard-coded original string when Secure Boot is disabled or shim
// carries no .sbatlevel section, otherwise the section's previous
// policy.
func sbatLevelVariable(shimImg bootImage, securebootEnabled bool) (efivars.UEFIVariable, error) {
	section, err := shimImg.Section(shim.SectionName)
	if errors.Is(err, peimage.ErrNoSection) {
		return shim.SbatVarOriginal(), nil
	}
	if err != nil {
		return efivars.UEFIVariable{}, err
	}
	if !securebootEnabled {
		return shim.SbatVarOriginal(), nil
	}
	return shim.SbatLevelVariable(section, shim.SbatPolicyPrevious)
}

// postShimAuthorityEvents emits the authority measurements for every
// binary shim verifies after itself, today just GRUB. For each binary
// the signer is looked up in db, in shim's vendor database and in
// shim's single vendor certificate; binaries commonly share
// certificates, so events are deduplicated by digest across the whole
// step.
func postShimAuthorityEvents(shimImg bootImage, dbCerts []efivars.X509Record, binaries []string) ([]Event, error) {
	const index = tpm2.Handle(7)

	vendorDB, err := shimImg.VendorDB()
	if err != nil {
		return nil, err
	}
	vendorCert, err := shimImg.VendorCert()
	if err != nil {
		return nil, err
	}

	var events []Event
	logged := make(map[string]bool)
	appendOnce := func(hash []byte, groups Group) {
		key := hex.EncodeToString(hash)
		if logged[key] {
			return
		}
		logged[key] = true
		events = append(events, Event{
			Name:   tcglog.EventTypeEFIVariableAuthority.String(),
			PCR:    index,
			Hash:   hash,
			Groups: groups,
		})
	}

	for _, path := range binaries {
		img, err := openImage(path, false)
		if err != nil {
			return nil, err
		}

		if cert, found, err := img.FindCertInDB(dbCerts); err != nil {
			img.Close()
			return nil, err
		} else if found {
			hash := efivars.NewUEFIVariable(efivars.SecurityDatabaseGuid, "db", cert).Hash()
			appendOnce(hash, GroupSecureBoot|GroupBootloader)
		}

		if cert, found, err := img.FindCertInDB(vendorDB); err != nil {
			img.Close()
			return nil, err
		} else if found {
			hash := efivars.NewUEFIVariable(efivars.SecurityDatabaseGuid, "vendor_db", cert).Hash()
			appendOnce(hash, GroupSecureBoot|GroupBootloader)
		}

		if cert, found, err := img.FindCertInDB(vendorCert); err != nil {
			img.Close()
			return nil, err
		} else if found {
			// Shim records a vendor certificate hit as a MokListRT
			// entry: the measured payload is the Shim-Lock owner GUID
			// followed by the certificate.
			data := append([]byte{}, efivars.ShimLockGuid[:]...)
			data = append(data, cert...)
			hash := efivars.NewUEFIVariable(efivars.ShimLockGuid, "MokListRT", data).Hash()
			appendOnce(hash, GroupSecureBoot|GroupBootloader|GroupMokVars)
		}

		img.Close()
	}

	return events, nil
}

// ComputePCR7 folds the Secure Boot policy events into the final
// PCR 7 value.
func ComputePCR7(efivarsDir, espDir string, securebootEnabled bool) (Pcr, error) {
	events, err := PCR7Events(efivarsDir, espDir, securebootEnabled)
	if err != nil {
		return Pcr{}, fmt.Errorf("cannot compute PCR 7: %w", err)
	}
	return Compile(events)
}
