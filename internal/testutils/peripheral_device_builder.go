package testutils

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/srg/tagctl/internal/device"
)

// CharacteristicConfig represents a GATT characteristic configuration for faking
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g., "read,write,notify"
	Value      []byte `json:"value,omitempty"`
}

// ServiceConfig represents a GATT service configuration for faking
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// DeviceProfileConfig represents the complete peripheral profile
type DeviceProfileConfig struct {
	Services []ServiceConfig `json:"services"`
}

// PeripheralDeviceBuilder builds a fake radio serving one peripheral profile
type PeripheralDeviceBuilder struct {
	profile            DeviceProfileConfig
	scanAdvertisements []device.Advertisement

	connectDelay  time.Duration
	connectErr    error
	scanErr       error
	opDelay       time.Duration
	silentService bool
	readErrs      map[device.UUID]error
	writeErrs     map[device.UUID]error
}

// NewPeripheralDeviceBuilder creates a new peripheral device builder
func NewPeripheralDeviceBuilder() *PeripheralDeviceBuilder {
	return &PeripheralDeviceBuilder{
		profile: DeviceProfileConfig{
			Services: []ServiceConfig{},
		},
		readErrs:  map[device.UUID]error{},
		writeErrs: map[device.UUID]error{},
	}
}

// WithService adds a service to the device profile
func (b *PeripheralDeviceBuilder) WithService(uuid string) *PeripheralDeviceBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{
		UUID:            uuid,
		Characteristics: []CharacteristicConfig{},
	})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralDeviceBuilder) WithCharacteristic(uuid, properties string, value []byte) *PeripheralDeviceBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}

	last := len(b.profile.Services) - 1
	b.profile.Services[last].Characteristics = append(b.profile.Services[last].Characteristics, CharacteristicConfig{
		UUID:       uuid,
		Properties: properties,
		Value:      value,
	})
	return b
}

// FromJSON fills the device profile from JSON
func (b *PeripheralDeviceBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralDeviceBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var config DeviceProfileConfig
	if err := json.Unmarshal([]byte(jsonStr), &config); err != nil {
		panic(fmt.Sprintf("PeripheralDeviceBuilder.FromJSON: failed to unmarshal: %v", err))
	}

	b.profile = config
	return b
}

// WithAdvertisement adds an advertisement the fake radio reports while scanning.
// An empty name means no name was advertised.
func (b *PeripheralDeviceBuilder) WithAdvertisement(addr, name string, rssi int) *PeripheralDeviceBuilder {
	b.scanAdvertisements = append(b.scanAdvertisements, device.Advertisement{
		Address: device.MustParseAddress(addr),
		Name:    name,
		HasName: name != "",
		RSSI:    rssi,
	})
	return b
}

// WithScanAdvertisements adds prepared advertisements
func (b *PeripheralDeviceBuilder) WithScanAdvertisements(ads ...device.Advertisement) *PeripheralDeviceBuilder {
	b.scanAdvertisements = append(b.scanAdvertisements, ads...)
	return b
}

// WithScanError makes Scan fail immediately
func (b *PeripheralDeviceBuilder) WithScanError(err error) *PeripheralDeviceBuilder {
	b.scanErr = err
	return b
}

// WithConnectDelay delays link establishment; the attempt still honors ctx
func (b *PeripheralDeviceBuilder) WithConnectDelay(d time.Duration) *PeripheralDeviceBuilder {
	b.connectDelay = d
	return b
}

// WithConnectError makes the peer refuse connections
func (b *PeripheralDeviceBuilder) WithConnectError(err error) *PeripheralDeviceBuilder {
	b.connectErr = err
	return b
}

// WithOperationDelay delays every discovery, read and write
func (b *PeripheralDeviceBuilder) WithOperationDelay(d time.Duration) *PeripheralDeviceBuilder {
	b.opDelay = d
	return b
}

// WithUnresponsiveDiscovery makes service discovery never answer
func (b *PeripheralDeviceBuilder) WithUnresponsiveDiscovery() *PeripheralDeviceBuilder {
	b.silentService = true
	return b
}

// WithReadError makes reads of the characteristic fail with err
func (b *PeripheralDeviceBuilder) WithReadError(uuid string, err error) *PeripheralDeviceBuilder {
	b.readErrs[device.MustParseUUID(uuid)] = err
	return b
}

// WithWriteError makes writes of the characteristic fail with err
func (b *PeripheralDeviceBuilder) WithWriteError(uuid string, err error) *PeripheralDeviceBuilder {
	b.writeErrs[device.MustParseUUID(uuid)] = err
	return b
}

// parseCharacteristicProperties converts a property list such as "read,notify"
func parseCharacteristicProperties(props string) device.Property {
	if props == "" {
		return device.PropRead | device.PropWrite | device.PropNotify // default
	}

	var property device.Property
	for _, p := range strings.Split(props, ",") {
		switch strings.TrimSpace(strings.ToLower(p)) {
		case "broadcast":
			property |= device.PropBroadcast
		case "read":
			property |= device.PropRead
		case "write":
			property |= device.PropWrite
		case "write-without-response", "writenr":
			property |= device.PropWriteNoResponse
		case "notify":
			property |= device.PropNotify
		case "indicate":
			property |= device.PropIndicate
		default:
			panic(fmt.Sprintf("unknown characteristic property %q", p))
		}
	}
	return property
}

// Build creates a fake radio with the configured profile
func (b *PeripheralDeviceBuilder) Build() *FakeRadio {
	services := make(map[device.UUID]*fakeService, len(b.profile.Services))
	for _, svcConfig := range b.profile.Services {
		svc := &fakeService{
			uuid:  device.MustParseUUID(svcConfig.UUID),
			chars: map[device.UUID]*fakeCharacteristic{},
		}
		for _, charConfig := range svcConfig.Characteristics {
			u := device.MustParseUUID(charConfig.UUID)
			svc.chars[u] = &fakeCharacteristic{
				uuid:  u,
				props: parseCharacteristicProperties(charConfig.Properties),
				value: append([]byte(nil), charConfig.Value...),
			}
		}
		services[svc.uuid] = svc
	}

	return &FakeRadio{
		services:      services,
		ads:           append([]device.Advertisement(nil), b.scanAdvertisements...),
		connectDelay:  b.connectDelay,
		connectErr:    b.connectErr,
		scanErr:       b.scanErr,
		opDelay:       b.opDelay,
		silentService: b.silentService,
		readErrs:      b.readErrs,
		writeErrs:     b.writeErrs,
	}
}

// GetServices returns the configured services
func (b *PeripheralDeviceBuilder) GetServices() []ServiceConfig {
	return b.profile.Services
}
