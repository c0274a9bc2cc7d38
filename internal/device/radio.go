package device

import (
	"context"
	"time"
)

// Property is a GATT characteristic property bit set
type Property uint8

const (
	PropBroadcast       Property = 0x01
	PropRead            Property = 0x02
	PropWriteNoResponse Property = 0x04
	PropWrite           Property = 0x08
	PropNotify          Property = 0x10
	PropIndicate        Property = 0x20
)

// Has reports whether all bits of p2 are set
func (p Property) Has(p2 Property) bool {
	return p&p2 == p2
}

// ScanParams configures one scan window
type ScanParams struct {
	Duration time.Duration
	Interval time.Duration
	Window   time.Duration
	Active   bool
}

// Advertisement is one received advertisement (a scan result).
// Name is the raw advertised name, untrimmed; HasName is false when no name was advertised.
type Advertisement struct {
	Address Address
	Name    string
	HasName bool
	RSSI    int
}

// Radio is the platform BLE stack as seen by the session core
type Radio interface {
	// Scan delivers advertisements to handler until ctx is done.
	Scan(ctx context.Context, params ScanParams, handler func(Advertisement)) error
	// Connect establishes a link; it must give up when ctx is done.
	Connect(ctx context.Context, addr Address) (Link, error)
}

// Link is one established connection
type Link interface {
	DiscoverService(ctx context.Context, uuid UUID) (RemoteService, error)
	DiscoverCharacteristic(ctx context.Context, svc RemoteService, uuid UUID) (RemoteCharacteristic, error)
	Read(ctx context.Context, c RemoteCharacteristic) ([]byte, error)
	Write(ctx context.Context, c RemoteCharacteristic, data []byte, withResponse bool) error
	Subscribe(ctx context.Context, c RemoteCharacteristic, handler func([]byte)) error
	Unsubscribe(c RemoteCharacteristic) error
	Disconnect() error
	// Disconnected is closed when the peer or the radio drops the link.
	Disconnected() <-chan struct{}
}

// RemoteService is a service located on the peer
type RemoteService interface {
	UUID() UUID
}

// RemoteCharacteristic is a characteristic located on the peer
type RemoteCharacteristic interface {
	UUID() UUID
	Properties() Property
}
