//go:build !linux && !darwin

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
	"github.com/srg/tagctl/internal/device"
)

func newPlatformDevice(_ device.ScanParams) (ble.Device, error) {
	return nil, fmt.Errorf("bluetooth is not supported on %s: %w", runtime.GOOS, device.ErrUnsupported)
}
