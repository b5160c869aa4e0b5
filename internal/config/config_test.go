// -*- Mode: Go; indent-tabs-mode: t -*-

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/check.v1"

	"github.com/icarito/transwacom/internal/config"
)

func Test(t *testing.T) { check.TestingT(t) }

type configSuite struct {
	dir string
}

var _ = check.Suite(&configSuite{})

func (s *configSuite) SetUpTest(c *check.C) {
	s.dir = c.MkDir()
}

func (s *configSuite) TestLoadMissingFileReturnsDefaults(c *check.C) {
	m, err := config.Load(s.dir, "myhost")
	c.Assert(err, check.IsNil)

	cfg := m.Config()
	c.Check(cfg.Consumer.Network.Port, check.Equals, 3333)
	c.Check(cfg.Consumer.Network.MDNSName, check.Equals, "myhost")
	c.Check(cfg.Host.RelativeMode, check.Equals, true)
	c.Check(cfg.Host.DisableLocal, check.Equals, true)
	c.Check(cfg.General.StartupMode, check.Equals, config.StartupUnified)
}

func (s *configSuite) TestSaveThenLoadRoundTrips(c *check.C) {
	m, err := config.Load(s.dir, "myhost")
	c.Assert(err, check.IsNil)

	err = m.Update(func(cfg *config.Configuration) {
		cfg.Consumer.Network.Port = 4000
		cfg.Host.TrustedConsumers["workstation"] = config.TrustedConsumerEntry{
			ConsumerID: "abcd1234abcd1234",
			AutoAccept: true,
		}
	})
	c.Assert(err, check.IsNil)

	reloaded, err := config.Load(s.dir, "myhost")
	c.Assert(err, check.IsNil)
	cfg := reloaded.Config()
	c.Check(cfg.Consumer.Network.Port, check.Equals, 4000)
	c.Check(cfg.Host.TrustedConsumers["workstation"].ConsumerID, check.Equals, "abcd1234abcd1234")
	// untouched fields still carry their defaults
	c.Check(cfg.Host.RelativeMode, check.Equals, true)
}

func (s *configSuite) TestPartialFileMergesOverDefaults(c *check.C) {
	partial := "consumer:\n  network:\n    port: 9000\n"
	err := os.WriteFile(filepath.Join(s.dir, "transwacom.yaml"), []byte(partial), 0o600)
	c.Assert(err, check.IsNil)

	m, err := config.Load(s.dir, "myhost")
	c.Assert(err, check.IsNil)
	cfg := m.Config()

	c.Check(cfg.Consumer.Network.Port, check.Equals, 9000)
	// keys absent from the partial file keep the defaults
	c.Check(cfg.Consumer.Devices.WacomEnabled, check.Equals, true)
	c.Check(cfg.Host.DisableLocal, check.Equals, true)
}

func (s *configSuite) TestExplicitFalseOverridesDefaultTrue(c *check.C) {
	partial := "host:\n  relative_mode: false\n"
	err := os.WriteFile(filepath.Join(s.dir, "transwacom.yaml"), []byte(partial), 0o600)
	c.Assert(err, check.IsNil)

	m, err := config.Load(s.dir, "myhost")
	c.Assert(err, check.IsNil)
	c.Check(m.Config().Host.RelativeMode, check.Equals, false)
}

func (s *configSuite) TestMalformedFileFallsBackToDefaults(c *check.C) {
	err := os.WriteFile(filepath.Join(s.dir, "transwacom.yaml"), []byte("not: [valid yaml"), 0o600)
	c.Assert(err, check.IsNil)

	m, err := config.Load(s.dir, "myhost")
	c.Assert(err, check.IsNil)
	c.Check(m.Config().Consumer.Network.Port, check.Equals, 3333)
}
