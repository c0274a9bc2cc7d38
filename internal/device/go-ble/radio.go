package goble

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/tagctl/internal/device"
)

// ----------------------------
// Device Factory
// ----------------------------

// DeviceFactory creates the platform ble.Device (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newPlatformDevice

// ----------------------------
// Radio
// ----------------------------

// scanDialer is the subset of ble.Device the radio drives
type scanDialer interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Dial(ctx context.Context, a ble.Addr) (ble.Client, error)
}

// Radio implements device.Radio on top of go-ble
type Radio struct {
	dev    scanDialer
	dial   func(ctx context.Context, a ble.Addr) (gattClient, error)
	logger *logrus.Logger
}

// NewRadio opens the platform device configured for params
func NewRadio(params device.ScanParams, logger *logrus.Logger) (*Radio, error) {
	dev, err := DeviceFactory(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	return newRadio(dev, logger), nil
}

func newRadio(dev scanDialer, logger *logrus.Logger) *Radio {
	if logger == nil {
		logger = logrus.New()
	}
	return &Radio{
		dev: dev,
		dial: func(ctx context.Context, a ble.Addr) (gattClient, error) {
			c, err := dev.Dial(ctx, a)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		logger: logger,
	}
}

// Scan delivers advertisements until ctx is done. Deadline and cancellation end
// the scan normally and are not reported as errors.
func (r *Radio) Scan(ctx context.Context, params device.ScanParams, handler func(device.Advertisement)) error {
	if params.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.Duration)
		defer cancel()
	}

	r.logger.WithFields(logrus.Fields{
		"duration": params.Duration,
		"active":   params.Active,
	}).Debug("Scanning...")

	err := r.dev.Scan(ctx, true, func(a ble.Advertisement) {
		adv, ok := toAdvertisement(a)
		if !ok {
			r.logger.WithField("addr", a.Addr().String()).Debug("Skipping advertisement without MAC address")
			return
		}
		handler(adv)
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return NormalizeError(err)
	}
	return nil
}

// Connect dials addr. go-ble gives up when ctx is done.
func (r *Radio) Connect(ctx context.Context, addr device.Address) (device.Link, error) {
	logger := r.logger.WithField("address", addr.String())
	logger.Debug("Dialing BLE device...")

	client, err := r.dial(ctx, ble.NewAddr(addr.String()))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.WithError(err).Debug("Dial failed")
		return nil, NormalizeError(err)
	}
	return newLink(client, logger), nil
}
