//go:build darwin

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
	"github.com/srg/tagctl/internal/device"
)

// CoreBluetooth does not expose scan interval or window
func newPlatformDevice(_ device.ScanParams) (ble.Device, error) {
	return darwin.NewDevice()
}
