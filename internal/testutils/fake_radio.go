package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/srg/tagctl/internal/device"
)

// ----------------------------
// Fake Radio
// ----------------------------

// FakeRadio is an in-memory device.Radio serving one peripheral profile.
// Every Connect produces a new FakeLink sharing the profile's characteristic values.
type FakeRadio struct {
	mu       sync.Mutex
	services map[device.UUID]*fakeService
	ads      []device.Advertisement
	links    []*FakeLink
	connects int
	scans    int

	connectDelay  time.Duration
	connectErr    error
	scanErr       error
	opDelay       time.Duration
	silentService bool
	readErrs      map[device.UUID]error
	writeErrs     map[device.UUID]error
}

type fakeService struct {
	uuid  device.UUID
	chars map[device.UUID]*fakeCharacteristic
}

func (s *fakeService) UUID() device.UUID { return s.uuid }

type fakeCharacteristic struct {
	uuid  device.UUID
	props device.Property

	mu    sync.Mutex
	value []byte
}

func (c *fakeCharacteristic) UUID() device.UUID           { return c.uuid }
func (c *fakeCharacteristic) Properties() device.Property { return c.props }

// Scan reports the configured advertisements, then idles until the scan window ends
func (r *FakeRadio) Scan(ctx context.Context, params device.ScanParams, handler func(device.Advertisement)) error {
	r.mu.Lock()
	r.scans++
	ads := append([]device.Advertisement(nil), r.ads...)
	scanErr := r.scanErr
	r.mu.Unlock()

	if scanErr != nil {
		return scanErr
	}

	for _, a := range ads {
		if ctx.Err() != nil {
			return nil
		}
		handler(a)
	}

	if params.Duration > 0 {
		t := time.NewTimer(params.Duration)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
		return nil
	}
	<-ctx.Done()
	return nil
}

// Connect establishes a fake link after the configured delay
func (r *FakeRadio) Connect(ctx context.Context, addr device.Address) (device.Link, error) {
	r.mu.Lock()
	r.connects++
	delay, connectErr := r.connectDelay, r.connectErr
	r.mu.Unlock()

	if err := sleep(ctx, delay); err != nil {
		return nil, err
	}
	if connectErr != nil {
		return nil, connectErr
	}

	l := &FakeLink{
		radio:        r,
		addr:         addr,
		handlers:     map[device.UUID]func([]byte){},
		writes:       map[device.UUID][][]byte{},
		disconnected: make(chan struct{}),
	}
	r.mu.Lock()
	r.links = append(r.links, l)
	r.mu.Unlock()
	return l, nil
}

// Link returns the most recent link, or nil
func (r *FakeRadio) Link() *FakeLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.links) == 0 {
		return nil
	}
	return r.links[len(r.links)-1]
}

// Connects returns how many connection attempts were made
func (r *FakeRadio) Connects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects
}

// Scans returns how many scans were started
func (r *FakeRadio) Scans() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scans
}

// Value returns the current value of a characteristic in any service
func (r *FakeRadio) Value(uuid string) []byte {
	c := r.find(device.MustParseUUID(uuid))
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.value...)
}

// SetValue replaces the value of a characteristic in any service
func (r *FakeRadio) SetValue(uuid string, value []byte) {
	c := r.find(device.MustParseUUID(uuid))
	if c == nil {
		panic(fmt.Sprintf("SetValue: characteristic %s not in profile", uuid))
	}
	c.mu.Lock()
	c.value = append([]byte(nil), value...)
	c.mu.Unlock()
}

func (r *FakeRadio) find(u device.UUID) *fakeCharacteristic {
	for _, s := range r.services {
		if c, ok := s.chars[u]; ok {
			return c
		}
	}
	return nil
}

// ----------------------------
// Fake Link
// ----------------------------

// FakeLink is one fake connection. Tests drive notifications and link loss through it.
type FakeLink struct {
	radio *FakeRadio
	addr  device.Address

	mu           sync.Mutex
	handlers     map[device.UUID]func([]byte)
	writes       map[device.UUID][][]byte
	disconnects  int
	lost         bool
	disconnected chan struct{}
	closeOnce    sync.Once
}

func (l *FakeLink) check(ctx context.Context) error {
	if err := sleep(ctx, l.radio.opDelay); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lost || l.disconnects > 0 {
		return &device.Error{Kind: device.KindLinkFault, Err: fmt.Errorf("device not connected")}
	}
	return nil
}

func (l *FakeLink) DiscoverService(ctx context.Context, uuid device.UUID) (device.RemoteService, error) {
	if l.radio.silentService {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := l.check(ctx); err != nil {
		return nil, err
	}
	svc, ok := l.radio.services[uuid]
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []device.UUID{uuid}}
	}
	return svc, nil
}

func (l *FakeLink) DiscoverCharacteristic(ctx context.Context, svc device.RemoteService, uuid device.UUID) (device.RemoteCharacteristic, error) {
	if err := l.check(ctx); err != nil {
		return nil, err
	}
	fs := l.radio.services[svc.UUID()]
	c, ok := fs.chars[uuid]
	if !ok {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []device.UUID{svc.UUID(), uuid}}
	}
	return c, nil
}

func (l *FakeLink) Read(ctx context.Context, rc device.RemoteCharacteristic) ([]byte, error) {
	if err := l.check(ctx); err != nil {
		return nil, err
	}
	if err := l.radio.readErrs[rc.UUID()]; err != nil {
		return nil, err
	}
	c := rc.(*fakeCharacteristic)
	if !c.props.Has(device.PropRead) {
		return nil, fmt.Errorf("ATT error 0x02: read not permitted")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.value...), nil
}

func (l *FakeLink) Write(ctx context.Context, rc device.RemoteCharacteristic, data []byte, withResponse bool) error {
	if err := l.check(ctx); err != nil {
		return err
	}
	if err := l.radio.writeErrs[rc.UUID()]; err != nil {
		return err
	}
	c := rc.(*fakeCharacteristic)
	c.mu.Lock()
	c.value = append([]byte(nil), data...)
	c.mu.Unlock()

	l.mu.Lock()
	l.writes[c.uuid] = append(l.writes[c.uuid], append([]byte(nil), data...))
	l.mu.Unlock()
	return nil
}

func (l *FakeLink) Subscribe(ctx context.Context, rc device.RemoteCharacteristic, handler func([]byte)) error {
	if err := l.check(ctx); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[rc.UUID()] = handler
	return nil
}

func (l *FakeLink) Unsubscribe(rc device.RemoteCharacteristic) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handlers, rc.UUID())
	return nil
}

func (l *FakeLink) Disconnect() error {
	l.mu.Lock()
	l.disconnects++
	l.mu.Unlock()
	l.closeOnce.Do(func() { close(l.disconnected) })
	return nil
}

func (l *FakeLink) Disconnected() <-chan struct{} {
	return l.disconnected
}

// Notify delivers a notification payload synchronously.
// It reports false when nobody is subscribed to the characteristic.
func (l *FakeLink) Notify(uuid string, data []byte) bool {
	l.mu.Lock()
	h, ok := l.handlers[device.MustParseUUID(uuid)]
	l.mu.Unlock()
	if !ok {
		return false
	}
	h(data)
	return true
}

// Drop simulates the peer or the radio losing the link
func (l *FakeLink) Drop() {
	l.mu.Lock()
	l.lost = true
	l.mu.Unlock()
	l.closeOnce.Do(func() { close(l.disconnected) })
}

// Subscribed reports whether a notification handler is installed
func (l *FakeLink) Subscribed(uuid string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.handlers[device.MustParseUUID(uuid)]
	return ok
}

// Writes returns the payloads written to a characteristic, in order
func (l *FakeLink) Writes(uuid string) [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.writes[device.MustParseUUID(uuid)]...)
}

// Disconnects returns how many times Disconnect was called
func (l *FakeLink) Disconnects() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disconnects
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
