// Package tag implements the iTag use cases on top of device sessions:
// alerting, battery polling and button listening.
package tag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/tagctl/internal/device"
	"github.com/srg/tagctl/pkg/config"
)

// Alert levels understood by the Immediate Alert service. The iTag beeps the
// same way for every non-zero level.
const (
	AlertOff  byte = 0x00
	AlertMild byte = 0x01
	AlertHigh byte = 0x02
)

// ErrInvalidLevel is returned for battery values outside 0..100
var ErrInvalidLevel = errors.New("invalid battery level")

// EventKind identifies a progress event of a flow
type EventKind int

const (
	EventConnecting EventKind = iota
	EventConnected
	EventBattery
	EventAlertOn
	EventAlertOff
	EventWaitingForPress
	EventPress
	EventDisconnecting
)

// Event is reported by flows as they progress
type Event struct {
	Kind    EventKind
	Address device.Address
	Label   string
	Battery int  // EventBattery
	Press   int  // EventWaitingForPress, EventPress: 1-based
	Presses int  // EventWaitingForPress, EventPress
	Value   byte // EventPress: notified value
}

// Reporter receives flow progress; it may be nil
type Reporter func(Event)

// Tag drives a single iTag over its own session per flow
type Tag struct {
	radio   device.Radio
	addr    device.Address
	label   string
	session config.SessionConfig
	logger  *logrus.Logger

	// Settle is the pause after a battery read and before disconnecting
	Settle time.Duration
}

// New creates a tag driver
func New(radio device.Radio, addr device.Address, label string, cfg config.SessionConfig, logger *logrus.Logger) *Tag {
	if logger == nil {
		logger = logrus.New()
	}
	return &Tag{
		radio:   radio,
		addr:    addr,
		label:   label,
		session: cfg,
		logger:  logger,
		Settle:  500 * time.Millisecond,
	}
}

func (t *Tag) emit(report Reporter, ev Event) {
	if report == nil {
		return
	}
	ev.Address = t.addr
	ev.Label = t.label
	report(ev)
}

// run connects, runs fn on the ready session and always disconnects
func (t *Tag) run(ctx context.Context, report Reporter, fn func(*device.Session) error) error {
	t.emit(report, Event{Kind: EventConnecting})
	return device.Open(ctx, t.radio, t.addr, t.session.ConnectTimeout, func(s *device.Session) error {
		t.emit(report, Event{Kind: EventConnected})
		if err := fn(s); err != nil {
			return err
		}
		t.emit(report, Event{Kind: EventDisconnecting})
		return nil
	}, device.WithLogger(t.logger), device.WithNotificationBuffer(t.session.NotificationBuffer))
}

func (t *Tag) resolve(ctx context.Context, s *device.Session, svc, char device.UUID) (*device.Characteristic, error) {
	return s.Resolve(ctx, svc, char, t.session.DiscoveryTimeout)
}

// BatteryLevel decodes a Battery Level value (percent 0..100)
func BatteryLevel(v []byte) (int, error) {
	if len(v) == 0 {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidLevel)
	}
	if v[0] > 100 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLevel, v[0])
	}
	return int(v[0]), nil
}

// ReadBattery reads the battery percentage over an open session
func ReadBattery(ctx context.Context, h *device.Characteristic, timeout time.Duration) (int, error) {
	ctx, cancel := bounded(ctx, timeout)
	defer cancel()

	v, err := h.Read(ctx)
	if err != nil {
		return 0, err
	}
	return BatteryLevel(v)
}

// Alert writes an alert level to the Immediate Alert characteristic
func Alert(ctx context.Context, h *device.Characteristic, level byte, timeout time.Duration) error {
	ctx, cancel := bounded(ctx, timeout)
	defer cancel()

	return h.Write(ctx, []byte{level})
}

// bounded applies timeout to ctx; zero means no bound
func bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
