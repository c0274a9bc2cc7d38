//go:build linux

package goble

import (
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci/cmd"
	"github.com/srg/tagctl/internal/device"
)

func newPlatformDevice(params device.ScanParams) (ble.Device, error) {
	scanType := uint8(0x00)
	if params.Active {
		scanType = 0x01
	}
	return linux.NewDevice(ble.OptScanParams(cmd.LESetScanParameters{
		LEScanType:     scanType,
		LEScanInterval: scanUnits(params.Interval),
		LEScanWindow:   scanUnits(params.Window),
	}))
}

// scanUnits converts to HCI units of 0.625 ms, clamped to the controller range
func scanUnits(d time.Duration) uint16 {
	units := d / (625 * time.Microsecond)
	switch {
	case units < 0x0004:
		return 0x0004
	case units > 0x4000:
		return 0x4000
	default:
		return uint16(units)
	}
}
