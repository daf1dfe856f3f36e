// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package pcr

import (
	"path/filepath"

	"gopkg.in/check.v1"
)

type discoverySuite struct {
	fsMixin
}

var _ = check.Suite(&discoverySuite{})

func (s *discoverySuite) TestOpenESPFedora(c *check.C) {
	c.Assert(s.fs.WriteFile("/esp/EFI/fedora/shimx64.efi", []byte{}, 0644), check.IsNil)
	c.Assert(s.fs.WriteFile("/esp/EFI/fedora/grubx64.efi", []byte{}, 0644), check.IsNil)

	esp, err := OpenESP("/esp")
	c.Assert(err, check.IsNil)
	c.Check(esp.ShimPath(), check.Equals, "/esp/EFI/fedora/shimx64.efi")
	c.Check(esp.GrubPath(), check.Equals, "/esp/EFI/fedora/grubx64.efi")
}

func (s *discoverySuite) TestOpenESPVendorProbeOrder(c *check.C) {
	for _, vendor := range []string{"fedora", "redhat"} {
		c.Assert(s.fs.WriteFile("/esp/EFI/"+vendor+"/shimx64.efi", []byte{}, 0644), check.IsNil)
		c.Assert(s.fs.WriteFile("/esp/EFI/"+vendor+"/grubx64.efi", []byte{}, 0644), check.IsNil)
	}

	esp, err := OpenESP("/esp")
	c.Assert(err, check.IsNil)
	c.Check(esp.ShimPath(), check.Equals, "/esp/EFI/redhat/shimx64.efi")
}

func (s *discoverySuite) TestOpenESPUnknownTree(c *check.C) {
	c.Assert(s.fs.MkdirAll("/esp/EFI/ubuntu", 0755), check.IsNil)

	_, err := OpenESP("/esp")
	c.Check(err, check.ErrorMatches, "unknown ESP tree format under /esp: .*")
}

func (s *discoverySuite) TestOpenESPMissingBinary(c *check.C) {
	c.Assert(s.fs.WriteFile("/esp/EFI/fedora/shimx64.efi", []byte{}, 0644), check.IsNil)

	_, err := OpenESP("/esp")
	c.Check(err, check.ErrorMatches, "cannot find ESP binary: .*")
}

func (s *discoverySuite) TestOpenESPNotADirectory(c *check.C) {
	c.Assert(s.fs.WriteFile("/esp", []byte{}, 0644), check.IsNil)

	_, err := OpenESP("/esp")
	c.Check(err, check.ErrorMatches, "ESP path /esp is not a directory")
}

func (s *discoverySuite) TestRootFSDerivedPaths(c *check.C) {
	tree, err := OpenRootFS("/")
	c.Assert(err, check.IsNil)
	c.Check(tree.Kernels(), check.Equals, filepath.FromSlash("/usr/lib/modules"))
	c.Check(tree.ESP(), check.Equals, filepath.FromSlash("/usr/lib/bootupd/updates"))
}

func (s *discoverySuite) TestFindVmlinuzFirstMatch(c *check.C) {
	c.Assert(s.fs.WriteFile("/kernels/6.10.3-200.fc40.x86_64/vmlinuz", []byte{}, 0644), check.IsNil)
	c.Assert(s.fs.WriteFile("/kernels/6.9.0-100.fc40.x86_64/vmlinuz", []byte{}, 0644), check.IsNil)

	path, err := FindVmlinuz("/kernels")
	c.Assert(err, check.IsNil)
	// Candidates are ordered lexicographically; 6.10 sorts before
	// 6.9 as a string.
	c.Check(path, check.Equals, "/kernels/6.10.3-200.fc40.x86_64/vmlinuz")
}

func (s *discoverySuite) TestFindVmlinuzMissing(c *check.C) {
	c.Assert(s.fs.MkdirAll("/kernels/6.10.3-200.fc40.x86_64", 0755), check.IsNil)

	_, err := FindVmlinuz("/kernels")
	c.Check(err, check.ErrorMatches, "no vmlinuz found under /kernels: .*")
}
