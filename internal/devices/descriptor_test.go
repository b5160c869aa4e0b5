// -*- Mode: Go; indent-tabs-mode: t -*-

package devices_test

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/check.v1"

	"github.com/icarito/transwacom/internal/devices"
)

func Test(t *testing.T) { check.TestingT(t) }

type descriptorSuite struct{}

var _ = check.Suite(&descriptorSuite{})

func (s *descriptorSuite) TestWireRoundTrip(c *check.C) {
	d := devices.Descriptor{
		Class:        devices.ClassWacom,
		Path:         "/dev/input/event4",
		Name:         "Wacom Intuos Pro",
		Capabilities: []string{devices.CapPressure, devices.CapTilt},
		VendorID:     "56a",
		ProductID:    "357",
	}

	got := devices.FromWire(d.ToWire())
	c.Assert(got, check.DeepEquals, d)
}

func (s *descriptorSuite) TestHasCapability(c *check.C) {
	d := devices.Descriptor{Capabilities: []string{devices.CapPressure, devices.CapEraser}}
	c.Check(d.HasCapability(devices.CapPressure), check.Equals, true)
	c.Check(d.HasCapability(devices.CapTilt), check.Equals, false)
}

func (s *descriptorSuite) TestHasCapabilityOnEmptyDescriptor(c *check.C) {
	var d devices.Descriptor
	c.Check(d.HasCapability(devices.CapPressure), check.Equals, false)
}

type vendorDBSuite struct {
	dir string
}

var _ = check.Suite(&vendorDBSuite{})

func (s *vendorDBSuite) SetUpTest(c *check.C) {
	s.dir = c.MkDir()
}

func (s *vendorDBSuite) writeDB(c *check.C, contents string) string {
	path := filepath.Join(s.dir, "vendors.ini")
	c.Assert(os.WriteFile(path, []byte(contents), 0o644), check.IsNil)
	return path
}

func (s *vendorDBSuite) TestLookupKnownPair(c *check.C) {
	path := s.writeDB(c, "[56a:357]\nname = Wacom Intuos Pro M\n")
	db, err := devices.LoadVendorDB(path)
	c.Assert(err, check.IsNil)

	name, ok := db.Lookup("56a", "357")
	c.Assert(ok, check.Equals, true)
	c.Check(name, check.Equals, "Wacom Intuos Pro M")
}

func (s *vendorDBSuite) TestLookupUnknownPair(c *check.C) {
	path := s.writeDB(c, "[56a:357]\nname = Wacom Intuos Pro M\n")
	db, err := devices.LoadVendorDB(path)
	c.Assert(err, check.IsNil)

	_, ok := db.Lookup("1234", "5678")
	c.Check(ok, check.Equals, false)
}

func (s *vendorDBSuite) TestLoadMissingFileYieldsEmptyDB(c *check.C) {
	db, err := devices.LoadVendorDB(filepath.Join(s.dir, "missing.ini"))
	c.Assert(err, check.IsNil)

	_, ok := db.Lookup("56a", "357")
	c.Check(ok, check.Equals, false)
}

func (s *vendorDBSuite) TestLoadMalformedFileYieldsEmptyDB(c *check.C) {
	path := s.writeDB(c, "this is not valid ini [[[")
	db, err := devices.LoadVendorDB(path)
	c.Assert(err, check.IsNil)

	_, ok := db.Lookup("56a", "357")
	c.Check(ok, check.Equals, false)
}

func (s *vendorDBSuite) TestResolveFillsNameFromDB(c *check.C) {
	path := s.writeDB(c, "[56a:357]\nname = Wacom Intuos Pro M\n")
	db, err := devices.LoadVendorDB(path)
	c.Assert(err, check.IsNil)

	d := devices.Descriptor{VendorID: "56a", ProductID: "357"}
	resolved := db.Resolve(d)
	c.Check(resolved.Name, check.Equals, "Wacom Intuos Pro M")
}

func (s *vendorDBSuite) TestResolveLeavesExistingNameAlone(c *check.C) {
	path := s.writeDB(c, "[56a:357]\nname = Wacom Intuos Pro M\n")
	db, err := devices.LoadVendorDB(path)
	c.Assert(err, check.IsNil)

	d := devices.Descriptor{VendorID: "56a", ProductID: "357", Name: "Custom Name"}
	resolved := db.Resolve(d)
	c.Check(resolved.Name, check.Equals, "Custom Name")
}
