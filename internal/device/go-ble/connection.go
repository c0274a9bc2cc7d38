package goble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/tagctl/internal/device"
	"github.com/srg/tagctl/internal/groutine"
)

// gattClient is the subset of ble.Client a link drives
type gattClient interface {
	DiscoverServices(filter []ble.UUID) ([]*ble.Service, error)
	DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error)
	DiscoverDescriptors(filter []ble.UUID, c *ble.Characteristic) ([]*ble.Descriptor, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
}

// ----------------------------
// BLE Connection
// ----------------------------

// bleLink is a live go-ble connection implementing device.Link
type bleLink struct {
	client gattClient
	logger *logrus.Entry

	disconnected chan struct{}
	closeOnce    sync.Once
	cancelOnce   sync.Once
	cancelErr    error
}

func newLink(client gattClient, logger *logrus.Entry) *bleLink {
	l := &bleLink{
		client:       client,
		logger:       logger,
		disconnected: make(chan struct{}),
	}

	// Monitor go-ble client Disconnected() channel where the platform provides one
	if dc, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		groutine.Go(context.Background(), "ble-link-monitor", func(ctx context.Context) {
			select {
			case <-dc.Disconnected():
				l.logger.Debug("Platform reported disconnection")
				l.markDisconnected()
			case <-l.disconnected:
			}
		})
	} else {
		l.logger.Debug("Client does not support Disconnected() channel")
	}
	return l
}

func (l *bleLink) markDisconnected() {
	l.closeOnce.Do(func() { close(l.disconnected) })
}

// Disconnected is closed once the link is gone, whoever dropped it
func (l *bleLink) Disconnected() <-chan struct{} {
	return l.disconnected
}

// Disconnect cancels the connection; repeated calls return the first result
func (l *bleLink) Disconnect() error {
	l.cancelOnce.Do(func() {
		l.cancelErr = NormalizeError(l.client.CancelConnection())
		l.markDisconnected()
	})
	return l.cancelErr
}

func (l *bleLink) DiscoverService(ctx context.Context, uuid device.UUID) (device.RemoteService, error) {
	bu, err := toBLEUUID(uuid)
	if err != nil {
		return nil, fmt.Errorf("invalid service UUID %q: %w", uuid, err)
	}

	svcs, err := call(ctx, func() ([]*ble.Service, error) {
		return l.client.DiscoverServices([]ble.UUID{bu})
	})
	if err != nil {
		return nil, err
	}

	// filters are advisory on some platforms
	for _, s := range svcs {
		if fromBLEUUID(s.UUID) == uuid {
			return &remoteService{uuid: uuid, svc: s}, nil
		}
	}
	return nil, &device.NotFoundError{Resource: "service", UUIDs: []device.UUID{uuid}}
}

func (l *bleLink) DiscoverCharacteristic(ctx context.Context, svc device.RemoteService, uuid device.UUID) (device.RemoteCharacteristic, error) {
	rs, ok := svc.(*remoteService)
	if !ok {
		return nil, fmt.Errorf("foreign service handle %T", svc)
	}
	bu, err := toBLEUUID(uuid)
	if err != nil {
		return nil, fmt.Errorf("invalid characteristic UUID %q: %w", uuid, err)
	}

	chars, err := call(ctx, func() ([]*ble.Characteristic, error) {
		return l.client.DiscoverCharacteristics([]ble.UUID{bu}, rs.svc)
	})
	if err != nil {
		return nil, err
	}

	var found *ble.Characteristic
	for _, c := range chars {
		if fromBLEUUID(c.UUID) == uuid {
			found = c
			break
		}
	}
	if found == nil {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []device.UUID{rs.uuid, uuid}}
	}

	// Subscribe needs the CCCD handle
	if found.Property&(ble.CharNotify|ble.CharIndicate) != 0 && found.CCCD == nil {
		if _, err := call(ctx, func() ([]*ble.Descriptor, error) {
			return l.client.DiscoverDescriptors(nil, found)
		}); err != nil {
			return nil, err
		}
	}

	return &remoteCharacteristic{
		uuid:  uuid,
		props: toProperties(found.Property),
		char:  found,
	}, nil
}

func (l *bleLink) Read(ctx context.Context, c device.RemoteCharacteristic) ([]byte, error) {
	rc, err := l.characteristic(c)
	if err != nil {
		return nil, err
	}
	return call(ctx, func() ([]byte, error) {
		return l.client.ReadCharacteristic(rc.char)
	})
}

func (l *bleLink) Write(ctx context.Context, c device.RemoteCharacteristic, data []byte, withResponse bool) error {
	rc, err := l.characteristic(c)
	if err != nil {
		return err
	}
	_, err = call(ctx, func() (struct{}, error) {
		return struct{}{}, l.client.WriteCharacteristic(rc.char, data, !withResponse)
	})
	return err
}

func (l *bleLink) Subscribe(ctx context.Context, c device.RemoteCharacteristic, handler func([]byte)) error {
	rc, err := l.characteristic(c)
	if err != nil {
		return err
	}
	ind := !rc.props.Has(device.PropNotify) && rc.props.Has(device.PropIndicate)
	_, err = call(ctx, func() (struct{}, error) {
		return struct{}{}, l.client.Subscribe(rc.char, ind, func(data []byte) {
			handler(data)
		})
	})
	return err
}

func (l *bleLink) Unsubscribe(c device.RemoteCharacteristic) error {
	rc, err := l.characteristic(c)
	if err != nil {
		return err
	}
	ind := !rc.props.Has(device.PropNotify) && rc.props.Has(device.PropIndicate)
	return NormalizeError(l.client.Unsubscribe(rc.char, ind))
}

func (l *bleLink) characteristic(c device.RemoteCharacteristic) (*remoteCharacteristic, error) {
	rc, ok := c.(*remoteCharacteristic)
	if !ok {
		return nil, fmt.Errorf("foreign characteristic handle %T", c)
	}
	return rc, nil
}

// call runs a blocking go-ble request, giving up when ctx is done.
// go-ble calls are not cancellable; an abandoned call finishes in the background.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{value: v, err: NormalizeError(err)}
	}()

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
