// -*- Mode: Go; indent-tabs-mode: t -*-

package identity_test

import (
	"testing"

	"gopkg.in/check.v1"

	"github.com/icarito/transwacom/internal/identity"
)

func Test(t *testing.T) { check.TestingT(t) }

type identitySuite struct{}

var _ = check.Suite(&identitySuite{})

func (identitySuite) TestFingerprintIsStableAndSixteenChars(c *check.C) {
	a := identity.Fingerprint("alpha", "seed-1")
	b := identity.Fingerprint("alpha", "seed-1")
	c.Assert(a, check.Equals, b)
	c.Check(len(a), check.Equals, 16)
}

func (identitySuite) TestFingerprintVariesWithSeedAndHostname(c *check.C) {
	a := identity.Fingerprint("alpha", "seed-1")
	b := identity.Fingerprint("alpha", "seed-2")
	d := identity.Fingerprint("beta", "seed-1")
	c.Check(a, check.Not(check.Equals), b)
	c.Check(a, check.Not(check.Equals), d)
}

func (identitySuite) TestLoadIsStableAcrossCalls(c *check.C) {
	dir := c.MkDir()
	first, err := identity.Load(dir)
	c.Assert(err, check.IsNil)
	second, err := identity.Load(dir)
	c.Assert(err, check.IsNil)

	c.Check(first.MachineID, check.Equals, second.MachineID)
	c.Check(len(first.MachineID), check.Equals, 16)
	c.Check(first.MachineName, check.Not(check.Equals), "")
}
