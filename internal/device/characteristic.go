package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/tagctl/internal/tracer"
)

// WriteMode is how a write reaches the peer
type WriteMode int

const (
	WriteWithResponse WriteMode = iota
	WriteWithoutResponse
)

func (m WriteMode) String() string {
	if m == WriteWithoutResponse {
		return "without-response"
	}
	return "with-response"
}

// Characteristic is a resolved characteristic handle, valid while its session is Ready.
// Operations on one session are not queued: a second concurrent call fails with ErrBusy.
type Characteristic struct {
	session *Session
	service UUID
	remote  RemoteCharacteristic

	subscribed atomic.Bool
	stale      atomic.Bool
	dropped    atomic.Uint64

	qmu    sync.RWMutex
	queue  chan []byte
	closed bool
}

func newCharacteristic(s *Session, svc UUID, rc RemoteCharacteristic) *Characteristic {
	return &Characteristic{
		session: s,
		service: svc,
		remote:  rc,
		queue:   make(chan []byte, s.queueSize),
	}
}

// UUID returns the characteristic identifier
func (c *Characteristic) UUID() UUID {
	return c.remote.UUID()
}

// Service returns the identifier of the enclosing service
func (c *Characteristic) Service() UUID {
	return c.service
}

// Properties returns the characteristic property bits reported by the peer
func (c *Characteristic) Properties() Property {
	return c.remote.Properties()
}

// Dropped returns how many notifications were discarded because the queue was full
func (c *Characteristic) Dropped() uint64 {
	return c.dropped.Load()
}

// WriteMode reports which write procedure Write will use
func (c *Characteristic) WriteMode() (WriteMode, error) {
	props := c.Properties()
	switch {
	case props.Has(PropWrite):
		return WriteWithResponse, nil
	case props.Has(PropWriteNoResponse):
		return WriteWithoutResponse, nil
	default:
		return 0, fmt.Errorf("characteristic %s is not writable: %w", c.UUID(), ErrUnsupported)
	}
}

func (c *Characteristic) log() *logrus.Entry {
	return c.session.log().WithFields(logrus.Fields{
		"service":        c.service,
		"characteristic": c.UUID(),
	})
}

func (c *Characteristic) span(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := tracer.StartSpan(ctx, name,
		tracer.StringAttr("session", c.session.ID()),
		tracer.StringAttr("service", c.service.String()),
		tracer.StringAttr("characteristic", c.UUID().String()))
	return ctx, func(err error) { tracer.Finish(span, err) }
}

// Read returns the current raw value
func (c *Characteristic) Read(ctx context.Context) (data []byte, err error) {
	s := c.session
	link, err := s.begin("read", c)
	if err != nil {
		return nil, err
	}
	defer s.end()

	ctx, finish := c.span(ctx, "characteristic.read")
	defer func() { finish(err) }()

	data, err = await(ctx, s.done, func(ctx context.Context) ([]byte, error) {
		return link.Read(ctx, c.remote)
	})
	if err != nil {
		err = s.classify("read", KindOperationTimeout, err)
		c.log().WithError(err).Warn("Read failed")
		return nil, err
	}

	c.log().WithField("value", fmt.Sprintf("%x", data)).Debug("Read")
	return data, nil
}

// ReadTimeout is Read bounded by timeout
func (c *Characteristic) ReadTimeout(timeout time.Duration) ([]byte, error) {
	ctx, cancel := withOptionalTimeout(context.Background(), timeout)
	defer cancel()
	return c.Read(ctx)
}

// Write sends data using the mode reported by WriteMode
func (c *Characteristic) Write(ctx context.Context, data []byte) (err error) {
	s := c.session
	link, err := s.begin("write", c)
	if err != nil {
		return err
	}
	defer s.end()

	mode, err := c.WriteMode()
	if err != nil {
		return err
	}

	ctx, finish := c.span(ctx, "characteristic.write")
	defer func() { finish(err) }()

	_, err = await(ctx, s.done, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, link.Write(ctx, c.remote, data, mode == WriteWithResponse)
	})
	if err != nil {
		err = s.classify("write", KindOperationTimeout, err)
		c.log().WithError(err).Warn("Write failed")
		return err
	}

	c.log().WithFields(logrus.Fields{
		"value": fmt.Sprintf("%x", data),
		"mode":  mode,
	}).Debug("Written")
	return nil
}

// Subscribe enables notifications; subsequent payloads are queued for AwaitNotification.
// Subscribing twice is a no-op.
func (c *Characteristic) Subscribe(ctx context.Context) error {
	s := c.session
	link, err := s.begin("subscribe", c)
	if err != nil {
		return err
	}
	defer s.end()

	return c.subscribe(ctx, link)
}

func (c *Characteristic) subscribe(ctx context.Context, link Link) (err error) {
	if c.subscribed.Load() {
		return nil
	}
	props := c.Properties()
	if !props.Has(PropNotify) && !props.Has(PropIndicate) {
		return fmt.Errorf("characteristic %s does not notify: %w", c.UUID(), ErrUnsupported)
	}

	ctx, finish := c.span(ctx, "characteristic.subscribe")
	defer func() { finish(err) }()

	s := c.session
	_, err = await(ctx, s.done, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, link.Subscribe(ctx, c.remote, c.push)
	})
	if err != nil {
		err = s.classify("subscribe", KindOperationTimeout, err)
		c.log().WithError(err).Warn("Subscribe failed")
		return err
	}

	c.subscribed.Store(true)
	c.log().Debug("Subscribed")
	return nil
}

// AwaitNotification returns the next notification payload, subscribing first if needed.
// Each call consumes exactly one payload, in arrival order. A zero timeout waits until
// ctx is done. On timeout the session stays Ready.
func (c *Characteristic) AwaitNotification(ctx context.Context, timeout time.Duration) (data []byte, err error) {
	s := c.session
	link, err := s.begin("await", c)
	if err != nil {
		return nil, err
	}
	defer s.end()

	if err := c.subscribe(ctx, link); err != nil {
		return nil, err
	}

	ctx, finish := c.span(ctx, "characteristic.await")
	defer func() { finish(err) }()

	waitCtx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()

	select {
	case v, ok := <-c.queue:
		if !ok {
			return nil, s.classify("await", KindOperationTimeout, errSessionClosed)
		}
		return v, nil
	case <-waitCtx.Done():
		err := waitCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, newError(KindOperationTimeout, "await", err)
		}
		return nil, fmt.Errorf("await: %w", err)
	case <-s.done:
		return nil, s.classify("await", KindOperationTimeout, errSessionClosed)
	}
}

// push is the radio's notification callback. The queue never discards what it
// already holds; when it is full the incoming payload is dropped.
func (c *Characteristic) push(data []byte) {
	c.qmu.RLock()
	defer c.qmu.RUnlock()
	if c.closed {
		return
	}

	v := append([]byte(nil), data...)
	select {
	case c.queue <- v:
	default:
		n := c.dropped.Add(1)
		c.log().WithFields(logrus.Fields{
			"value":   fmt.Sprintf("%x", v),
			"dropped": n,
		}).Warn("Notification queue full, dropping incoming value")
	}
}

// invalidate closes the queue; when the link is still alive notifications are disabled first
func (c *Characteristic) invalidate(link Link, linkAlive bool) {
	c.stale.Store(true)

	if linkAlive && c.subscribed.Load() {
		if err := link.Unsubscribe(c.remote); err != nil {
			c.log().WithError(err).Warn("Unsubscribe failed")
		}
	}

	c.qmu.Lock()
	defer c.qmu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}
