package main

import (
	"testing"

	"github.com/srg/tagctl/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type ScanCommandTestSuite struct {
	CommandTestSuite
}

func (s *ScanCommandTestSuite) SetupTest() {
	s.WithPeripheral().
		WithAdvertisement(BlueTagAddress, "iTAG            ", -60).
		WithAdvertisement("aa:bb:00:00:00:01", "iTAG            ", -66).
		WithAdvertisement(BlueTagAddress, "iTAG            ", -51).
		WithAdvertisement("aa:bb:00:00:00:02", "Other", -20)
	s.CommandTestSuite.SetupTest()
}

func (s *ScanCommandTestSuite) TestScanTable() {
	// GOAL: Verify scan prints one row per admitted tag with its best RSSI
	//
	// TEST SCENARIO: Blue seen at -60 then -51, one unknown iTAG, one foreign device -> two rows

	out, err := s.ExecuteCommand("scan", "--duration", "50ms")

	s.Require().NoError(err)
	testutils.NewTextAsserter(s.T(), testutils.WithTrimSpace()).
		AssertLines(out,
			"ADDRESS            NAME  BEST RSSI  LABEL",
			"ff:ff:33:31:8a:76  iTAG  -51 dBm    Blue",
			"aa:bb:00:00:00:01  iTAG  -66 dBm    -",
		)
}

func (s *ScanCommandTestSuite) TestScanJSON() {
	out, err := s.ExecuteCommand("scan", "--duration", "50ms", "--format", "json")

	s.Require().NoError(err)
	testutils.NewJSONAsserter(s.T()).Assert(out, `[
		{"address": "ff:ff:33:31:8a:76", "name": "iTAG            ", "rssi": -51, "label": "Blue"},
		{"address": "aa:bb:00:00:00:01", "name": "iTAG            ", "rssi": -66}
	]`)
}

func (s *ScanCommandTestSuite) TestScanKnownReportsOnce() {
	// GOAL: Verify --known reports configured tags once, at first sighting
	//
	// TEST SCENARIO: Blue is seen twice -> a single line with the first RSSI

	out, err := s.ExecuteCommand("scan", "--duration", "50ms", "--known")

	s.Require().NoError(err)
	testutils.NewTextAsserter(s.T(), testutils.WithTrimSpace()).
		AssertLines(out, "Found iTag: Blue (ff:ff:33:31:8a:76), RSSI: -60")
}

func (s *ScanCommandTestSuite) TestScanPrefixFromFlag() {
	out, err := s.ExecuteCommand("scan", "--duration", "50ms", "--prefix", "Oth")

	s.Require().NoError(err)
	s.Contains(out, "aa:bb:00:00:00:02  Other")
	s.NotContains(out, BlueTagAddress)
}

func (s *ScanCommandTestSuite) TestScanKnownFromConfig() {
	path := s.WriteConfig(`
tags:
  "aa:bb:00:00:00:01": Garage
`)

	out, err := s.ExecuteCommand("scan", "--duration", "50ms", "--known", "--config", path)

	s.Require().NoError(err)
	s.Contains(out, "Found iTag: Garage (aa:bb:00:00:00:01), RSSI: -66")
	s.Contains(out, "Found iTag: Blue (ff:ff:33:31:8a:76), RSSI: -60", "configured tags MUST extend the defaults")
}

func (s *ScanCommandTestSuite) TestLogLevelFromConfig() {
	// GOAL: Verify log_level from the config file drives the CLI logger
	//
	// TEST SCENARIO: no config -> stderr silent; log_level: info -> scan lifecycle logged to stderr

	_, err := s.ExecuteCommand("scan", "--duration", "20ms")
	s.Require().NoError(err)
	s.Empty(s.Stderr.String(), "logging MUST stay silent by default")

	path := s.WriteConfig("log_level: info\n")
	_, err = s.ExecuteCommand("scan", "--duration", "20ms", "--config", path)
	s.Require().NoError(err)
	s.Contains(s.Stderr.String(), "Starting BLE scan...")

	_, err = s.ExecuteCommand("scan", "--duration", "20ms", "--config", path, "--log-level", "error")
	s.Require().NoError(err)
	s.NotContains(s.Stderr.String(), "Starting BLE scan...", "--log-level MUST override the config")
}

func (s *ScanCommandTestSuite) TestScanInvalidFormat() {
	_, err := s.ExecuteCommand("scan", "--duration", "50ms", "--format", "xml")

	s.ErrorContains(err, "invalid output format")
}

func TestScanCommandTestSuite(t *testing.T) {
	suite.Run(t, new(ScanCommandTestSuite))
}
