package testutils

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

// MockBLEPeripheralSuite provides a reusable test suite backed by a fake peripheral radio.
//
// Basic usage (automatic setup with the iTag profile):
//
//	type SimpleSuite struct {
//	    testutils.MockBLEPeripheralSuite
//	}
//
//	func TestSimpleSuite(t *testing.T) {
//	    suite.Run(t, new(SimpleSuite))
//	}
//
// Custom device profile usage:
//
//	func (s *BatterySuite) SetupTest() {
//	    s.WithPeripheral().
//	        WithService("180F").
//	        WithCharacteristic("2A19", "read", []byte{42})
//
//	    s.MockBLEPeripheralSuite.SetupTest() // Call parent last to apply configuration
//	}
type MockBLEPeripheralSuite struct {
	suite.Suite

	// Core test utilities
	Helper *TestHelper    // Test helper with logging and assertions
	Logger *logrus.Logger // Structured logger for test output

	TestTimeout time.Duration // Default timeout for operations

	// Fake peripheral configuration
	PeripheralBuilder *PeripheralDeviceBuilder // Builder for configuring the fake peripheral
	Radio             *FakeRadio               // Radio built for the current test
}

// SetupSuite initializes the test suite.
// Called once before all tests in the suite.
func (s *MockBLEPeripheralSuite) SetupSuite() {
	s.TestTimeout = 2 * time.Second
}

// SetupTest builds the fake radio before each test.
// Called before each test method.
func (s *MockBLEPeripheralSuite) SetupTest() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger

	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = CreateMockPeripheralDeviceFromJSON(ITagProfile)
	}
	s.Radio = s.PeripheralBuilder.Build()

	s.Logger.Debug("Test setup completed - ready for execution")
}

// TearDownTest resets the peripheral builder after each test.
// Called after each test method.
func (s *MockBLEPeripheralSuite) TearDownTest() {
	if s.T().Failed() && s.Helper != nil {
		s.T().Logf("logs:\n%s", s.Helper.Logs())
	}
	s.PeripheralBuilder = nil
	s.Radio = nil
}

// WithPeripheral returns the peripheral builder for fluent configuration.
// Use this method to configure custom device profiles in the test setup.
func (s *MockBLEPeripheralSuite) WithPeripheral() *PeripheralDeviceBuilder {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralDeviceBuilder()
	}
	return s.PeripheralBuilder
}
