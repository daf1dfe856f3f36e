// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package efivars

import "github.com/spf13/afero"

// appFs is the filesystem all loaders read from. Tests swap in a
// memory-backed implementation.
var appFs afero.Fs = afero.NewOsFs()
