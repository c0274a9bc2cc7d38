package main

import (
	"testing"
	"time"

	"github.com/srg/tagctl/internal/device"
	"github.com/srg/tagctl/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type TagCommandsTestSuite struct {
	CommandTestSuite
}

func (s *TagCommandsTestSuite) assertOutput(out string, lines ...string) {
	testutils.NewTextAsserter(s.T(), testutils.WithTrimSpace()).
		AssertLines(out, lines...)
}

func (s *TagCommandsTestSuite) TestBattery() {
	// GOAL: Verify the battery command prints the level of every read
	//
	// TEST SCENARIO: Battery holds [0x63], --count 2 -> "Battery: 99%" twice, then disconnect

	out, err := s.ExecuteCommand("battery", "Blue", "--count", "2", "--interval", "1ms")

	s.Require().NoError(err)
	s.assertOutput(out,
		`Connecting to Blue iTag ("ff:ff:33:31:8a:76")`,
		"Connected",
		"Battery: 99%",
		"Battery: 99%",
		"Disconnect",
		"iTag will start slow-beeping. Press button to ack.",
	)
}

func (s *TagCommandsTestSuite) TestBatteryByAddress() {
	out, err := s.ExecuteCommand("battery", "AA:BB:00:00:00:09", "--count", "1")

	s.Require().NoError(err)
	s.Contains(out, `Connecting to iTag ("aa:bb:00:00:00:09")`)
}

func (s *TagCommandsTestSuite) TestAlert() {
	out, err := s.ExecuteCommand("alert", "blue", "--duration", "10ms")

	s.Require().NoError(err)
	s.assertOutput(out,
		`Connecting to Blue iTag ("ff:ff:33:31:8a:76")`,
		"Connected",
		"Battery: 99%",
		"Start fast-beeping for 0.01sec",
		"Stop fast-beeping",
		"Disconnect",
		"iTag will start slow-beeping. Press button to ack.",
	)
	s.Equal([][]byte{{0x01}, {0x00}}, s.Radio.Link().Writes("2a06"))
}

func (s *TagCommandsTestSuite) TestButton() {
	go func() {
		for {
			if l := s.Radio.Link(); l != nil && l.Subscribed("ffe1") {
				l.Notify("ffe1", []byte{0x01})
				l.Notify("ffe1", []byte{0x01})
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	out, err := s.ExecuteCommand("button", "Blue", "--presses", "2", "--timeout", "2s")

	s.Require().NoError(err)
	s.assertOutput(out,
		`Connecting to Blue iTag ("ff:ff:33:31:8a:76")`,
		"Connected",
		"Listen for 2x iTag button presses",
		"Waiting for button press 1/2",
		"Button press 1/2 detected. Custom characteristic was notified with value: 0x01",
		"Waiting for button press 2/2",
		"Button press 2/2 detected. Custom characteristic was notified with value: 0x01",
		"Disconnect",
		"iTag will start slow-beeping. Press button to ack.",
	)
}

func (s *TagCommandsTestSuite) TestUnknownTag() {
	_, err := s.ExecuteCommand("battery", "Purple")

	s.ErrorIs(err, ErrUnknownTag)
	s.Equal(0, s.Radio.Connects(), "no connection MUST be attempted")
}

func (s *TagCommandsTestSuite) TestConnectTimeoutFromConfig() {
	// GOAL: Verify the configured connect timeout bounds the attempt and maps to a user message
	//
	// TEST SCENARIO: Tag answers after 1s, connect_timeout is 30ms -> ConnectionTimeout

	s.Radio = s.WithPeripheral().WithConnectDelay(time.Second).Build()
	path := s.WriteConfig(`
session:
  connect_timeout: 30ms
`)

	out, err := s.ExecuteCommand("battery", "Blue", "--config", path)

	s.ErrorIs(err, device.ErrConnectionTimeout)
	s.Contains(FormatUserError(err), "Connection timeout")
	s.assertOutput(out, `Connecting to Blue iTag ("ff:ff:33:31:8a:76")`)
}

func (s *TagCommandsTestSuite) TestMissingServiceReported() {
	s.PeripheralBuilder = nil
	s.Radio = s.WithPeripheral().
		WithService("180F").
		WithCharacteristic("2A19", "read", []byte{0x63}).
		Build()

	_, err := s.ExecuteCommand("button", "Blue", "--presses", "1")

	s.ErrorIs(err, device.ErrDiscoveryTimeout)
	s.Contains(FormatUserError(err), "Unexpected GATT layout")
}

func TestTagCommandsTestSuite(t *testing.T) {
	suite.Run(t, new(TagCommandsTestSuite))
}
