package testutils

import (
	"bytes"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewTestHelper creates a test helper whose logger writes into an in-memory buffer
func NewTestHelper(t *testing.T) *TestHelper {
	h := &TestHelper{T: t}
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	logger.SetOutput(lockedWriter{h})
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	h.Logger = logger
	return h
}

// Logs returns everything logged so far
func (h *TestHelper) Logs() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.String()
}

type lockedWriter struct{ h *TestHelper }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.h.mu.Lock()
	defer w.h.mu.Unlock()
	return w.h.buf.Write(p)
}

func CreateMockPeripheralDevice() *PeripheralDeviceBuilder {
	return NewPeripheralDeviceBuilder()
}

func CreateMockPeripheralDeviceFromJSON(jsonStrFmt string, args ...interface{}) *PeripheralDeviceBuilder {
	return NewPeripheralDeviceBuilder().FromJSON(jsonStrFmt, args...)
}

// ITagProfile is the GATT table of the iTag keyfinder
const ITagProfile = `{
	"services": [
		{
			"uuid": "180F",
			"characteristics": [
				{ "uuid": "2A19", "properties": "read,notify", "value": [99] }
			]
		},
		{
			"uuid": "1802",
			"characteristics": [
				{ "uuid": "2A06", "properties": "write-without-response", "value": [0] }
			]
		},
		{
			"uuid": "FFE0",
			"characteristics": [
				{ "uuid": "FFE1", "properties": "read,notify", "value": [1] }
			]
		}
	]
}`
