package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/tagctl/internal/device"
)

// ----------------------------
// Remote GATT objects
// ----------------------------

type remoteService struct {
	uuid device.UUID
	svc  *ble.Service
}

func (s *remoteService) UUID() device.UUID {
	return s.uuid
}

type remoteCharacteristic struct {
	uuid  device.UUID
	props device.Property
	char  *ble.Characteristic
}

func (c *remoteCharacteristic) UUID() device.UUID {
	return c.uuid
}

func (c *remoteCharacteristic) Properties() device.Property {
	return c.props
}

// toBLEUUID converts a normalized identifier into the go-ble representation
func toBLEUUID(u device.UUID) (ble.UUID, error) {
	return ble.Parse(string(u))
}

// fromBLEUUID normalizes a go-ble UUID; go-ble renders 128-bit values with dashes
func fromBLEUUID(u ble.UUID) device.UUID {
	return device.UUID(device.NormalizeUUID(u.String()))
}
