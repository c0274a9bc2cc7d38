package goble

import (
	"fmt"
	"strings"

	"github.com/go-ble/ble"
	"github.com/srg/tagctl/internal/device"
)

// advertisement is the part of ble.Advertisement the scanner consumes
type advertisement interface {
	LocalName() string
	RSSI() int
	Addr() ble.Addr
}

// toAdvertisement converts a go-ble advertisement. It reports false when the
// address is not a MAC (CoreBluetooth hides peer addresses behind UUIDs).
func toAdvertisement(adv advertisement) (device.Advertisement, bool) {
	addr, err := device.ParseAddress(adv.Addr().String())
	if err != nil {
		return device.Advertisement{}, false
	}
	if isRandomAddr(adv.Addr()) {
		addr = addr.WithType(device.AddressRandom)
	}

	name := adv.LocalName()
	return device.Advertisement{
		Address: addr,
		Name:    name,
		HasName: name != "",
		RSSI:    adv.RSSI(),
	}, true
}

// isRandomAddr detects the HCI random-address wrapper without importing the linux stack
func isRandomAddr(a ble.Addr) bool {
	if r, ok := a.(interface{ Random() bool }); ok {
		return r.Random()
	}
	return strings.HasSuffix(fmt.Sprintf("%T", a), "RandomAddress")
}
