package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/srg/tagctl/internal/groutine"
	"github.com/srg/tagctl/internal/tracer"
)

// DefaultNotificationBuffer is the per-characteristic notification queue capacity
const DefaultNotificationBuffer = 64

var (
	errLinkLost      = errors.New("link lost")
	errSessionClosed = errors.New("session closed")
)

// ----------------------------
// Session Options
// ----------------------------

// SessionOption configures a Session
type SessionOption func(*Session)

// WithLogger sets the logger used for lifecycle and operation logs
func WithLogger(logger *logrus.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotificationBuffer sets the notification queue capacity of every handle
// resolved by the session. Non-positive values are ignored.
func WithNotificationBuffer(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// ----------------------------
// Session
// ----------------------------

// Session is a single-use connection to one peripheral.
// A Session is never reconnected: once Disconnected, create a new one.
type Session struct {
	id        ulid.ULID
	addr      Address
	radio     Radio
	logger    *logrus.Logger
	queueSize int

	mu          sync.Mutex
	state       State
	link        Link
	cause       error
	closeErr    error
	stopMonitor context.CancelFunc
	monitorDone <-chan struct{}

	handles   *hashmap.Map[string, *Characteristic]
	busy      atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession creates an Idle session for addr
func NewSession(radio Radio, addr Address, opts ...SessionOption) *Session {
	s := &Session{
		id:        ulid.Make(),
		addr:      addr,
		radio:     radio,
		logger:    logrus.New(),
		queueSize: DefaultNotificationBuffer,
		state:     StateIdle,
		handles:   hashmap.New[string, *Characteristic](),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects a new session, runs fn and always closes the session afterwards,
// including when fn fails or panics. The first error encountered is returned.
func Open(ctx context.Context, radio Radio, addr Address, timeout time.Duration, fn func(*Session) error, opts ...SessionOption) (err error) {
	s := NewSession(radio, addr, opts...)
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()

	if err := s.Connect(ctx, timeout); err != nil {
		return err
	}
	return fn(s)
}

// ID returns the session identifier attached to logs and spans
func (s *Session) ID() string {
	return s.id.String()
}

// Address returns the peer address
func (s *Session) Address() Address {
	return s.addr
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session reaches Disconnected
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the reason the session disconnected, or nil for a user Close
// or a session that is still live.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

func (s *Session) log() *logrus.Entry {
	return s.logger.WithFields(logrus.Fields{
		"session": s.id.String(),
		"address": s.addr.String(),
	})
}

// Connect establishes the link. It is valid only from Idle.
// With a positive timeout, the attempt is abandoned after it elapses.
func (s *Session) Connect(ctx context.Context, timeout time.Duration) (err error) {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		s.log().WithField("state", state).Warn("Connect called on a used session")
		return ErrSessionUsed
	}
	s.state = StateConnecting
	s.mu.Unlock()

	ctx, span := tracer.StartSpan(ctx, "session.connect",
		tracer.StringAttr("session", s.ID()),
		tracer.StringAttr("address", s.addr.String()))
	defer func() { tracer.Finish(span, err) }()

	s.log().WithField("timeout", timeout).Info("Connecting...")

	connCtx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()

	// Close during Connecting abandons the attempt
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-connCtx.Done():
		}
	}()

	link, err := s.radio.Connect(connCtx, s.addr)
	if err != nil {
		err = s.classifyConnect(connCtx, err)
		s.log().WithError(err).Warn("Connect failed")
		s.teardown(err)
		return err
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		_ = link.Disconnect()
		s.log().Debug("Session closed while connecting; releasing link")
		return newError(KindStaleHandle, "connect", errSessionClosed)
	}
	s.link = link
	s.state = StateConnected
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	s.stopMonitor = stopMonitor
	s.monitorDone = groutine.Go(monitorCtx, "session-monitor-"+s.ID(), func(ctx context.Context) {
		select {
		case <-link.Disconnected():
			if ctx.Err() != nil {
				return
			}
			s.log().Warn("Link dropped by peer or radio")
			s.fail(newError(KindLinkFault, "", errLinkLost))
		case <-ctx.Done():
		}
	})
	s.mu.Unlock()

	s.log().Info("Connected")
	return nil
}

func (s *Session) classifyConnect(connCtx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrBluetoothOff):
		return fmt.Errorf("connect: %w", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(connCtx.Err(), context.DeadlineExceeded):
		return newError(KindConnectionTimeout, "connect", context.DeadlineExceeded)
	case errors.Is(err, context.Canceled), connCtx.Err() != nil:
		return fmt.Errorf("connect: %w", context.Canceled)
	default:
		return newError(KindPeerRejected, "connect", err)
	}
}

// Resolve locates the characteristic char inside service svc and returns its handle.
// Service lookup and characteristic lookup are each bounded by timeout.
// Resolving an already resolved pair returns the cached handle.
func (s *Session) Resolve(ctx context.Context, svc, char UUID, timeout time.Duration) (h *Characteristic, err error) {
	key := handleKey(svc, char)

	s.mu.Lock()
	if s.state == StateReady {
		if cached, ok := s.handles.Get(key); ok {
			s.mu.Unlock()
			return cached, nil
		}
	}
	if s.state != StateConnected && s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return nil, newError(KindStaleHandle, "resolve", fmt.Errorf("session is %s", state))
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	defer s.busy.Store(false)
	prev := s.state
	s.state = StateResolving
	link := s.link
	s.mu.Unlock()

	ctx, span := tracer.StartSpan(ctx, "session.resolve",
		tracer.StringAttr("session", s.ID()),
		tracer.StringAttr("service", svc.String()),
		tracer.StringAttr("characteristic", char.String()))
	defer func() { tracer.Finish(span, err) }()

	logger := s.log().WithFields(logrus.Fields{
		"service":        svc,
		"characteristic": char,
	})
	logger.Debug("Resolving characteristic...")

	h, err = s.resolve(ctx, link, svc, char, timeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateResolving {
		// torn down while resolving
		if err == nil {
			err = newError(KindStaleHandle, "resolve", errSessionClosed)
		}
		logger.WithError(err).Warn("Resolve failed")
		return nil, err
	}
	if err != nil {
		s.state = prev
		logger.WithError(err).Warn("Resolve failed")
		return nil, err
	}
	s.handles.Set(key, h)
	s.state = StateReady
	logger.WithField("properties", h.Properties()).Info("Characteristic resolved")
	return h, nil
}

func (s *Session) resolve(ctx context.Context, link Link, svc, char UUID, timeout time.Duration) (*Characteristic, error) {
	svcCtx, cancel := withOptionalTimeout(ctx, timeout)
	rs, err := await(svcCtx, s.done, func(ctx context.Context) (RemoteService, error) {
		return link.DiscoverService(ctx, svc)
	})
	cancel()
	if err != nil {
		return nil, s.classify("resolve", KindDiscoveryTimeout, err)
	}

	charCtx, cancel := withOptionalTimeout(ctx, timeout)
	rc, err := await(charCtx, s.done, func(ctx context.Context) (RemoteCharacteristic, error) {
		return link.DiscoverCharacteristic(ctx, rs, char)
	})
	cancel()
	if err != nil {
		return nil, s.classify("resolve", KindDiscoveryTimeout, err)
	}

	return newCharacteristic(s, svc, rc), nil
}

// Close releases the session. It is idempotent and valid from any state:
// notifications are unsubscribed, handle queues closed and the link
// disconnected exactly once.
func (s *Session) Close() error {
	s.teardown(nil)

	s.mu.Lock()
	monitorDone := s.monitorDone
	err := s.closeErr
	s.mu.Unlock()
	if monitorDone != nil {
		<-monitorDone
	}
	return err
}

// fail forces the session to Disconnected because of a fault
func (s *Session) fail(cause error) {
	s.teardown(cause)
}

func (s *Session) teardown(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		prev := s.state
		s.state = StateDisconnected
		s.cause = cause
		link := s.link
		stopMonitor := s.stopMonitor
		s.mu.Unlock()

		if stopMonitor != nil {
			stopMonitor()
		}

		linkAlive := link != nil && !IsKind(cause, KindLinkFault)
		s.handles.Range(func(_ string, h *Characteristic) bool {
			h.invalidate(link, linkAlive)
			return true
		})

		var closeErr error
		if link != nil {
			if err := link.Disconnect(); err != nil {
				s.log().WithError(err).Warn("Disconnect failed")
				closeErr = err
			}
		}

		s.mu.Lock()
		s.closeErr = closeErr
		s.mu.Unlock()
		close(s.done)

		entry := s.log().WithField("from", prev)
		if cause != nil {
			entry.WithError(cause).Warn("Session disconnected")
		} else {
			entry.Info("Session closed")
		}
	})
}

// begin claims the session for one characteristic operation
func (s *Session) begin(op string, h *Characteristic) (Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady || h.stale.Load() {
		if s.busy.Load() && s.state == StateResolving {
			return nil, ErrBusy
		}
		return nil, s.staleError(op)
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return s.link, nil
}

func (s *Session) end() {
	s.busy.Store(false)
}

// staleError reports use of a handle outside Ready; caller holds s.mu
func (s *Session) staleError(op string) error {
	if IsKind(s.cause, KindLinkFault) {
		return newError(KindStaleHandle, op, fmt.Errorf("session is %s: %w", s.state, errLinkLost))
	}
	return newError(KindStaleHandle, op, fmt.Errorf("session is %s", s.state))
}

// classify maps a radio failure to the error taxonomy. Link loss tears the
// session down before the error is returned.
func (s *Session) classify(op string, timeoutKind ErrorKind, err error) error {
	var se *Error
	if errors.As(err, &se) {
		if se.Kind == KindLinkFault {
			e := newError(KindLinkFault, op, se.Err)
			s.fail(e)
			return e
		}
		if se.Op == "" {
			return newError(se.Kind, op, se.Err)
		}
		return err
	}

	var nf *NotFoundError
	switch {
	case errors.As(err, &nf):
		return newError(KindDiscoveryTimeout, op, err)
	case errors.Is(err, errSessionClosed):
		s.mu.Lock()
		defer s.mu.Unlock()
		if IsKind(s.cause, KindLinkFault) {
			return newError(KindLinkFault, op, errLinkLost)
		}
		return newError(KindStaleHandle, op, errSessionClosed)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(timeoutKind, op, context.DeadlineExceeded)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, ErrBluetoothOff):
		e := newError(KindLinkFault, op, err)
		s.fail(e)
		return e
	default:
		return newError(KindPeerRejected, op, err)
	}
}

// ----------------------------
// Helpers
// ----------------------------

func handleKey(svc, char UUID) string {
	return string(svc) + "/" + string(char)
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

type result[T any] struct {
	value T
	err   error
}

// await runs fn in a goroutine and waits for its result, ctx or session teardown,
// whichever comes first
func await[T any](ctx context.Context, done <-chan struct{}, fn func(context.Context) (T, error)) (T, error) {
	ch := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		ch <- result[T]{value: v, err: err}
	}()

	var zero T
	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-done:
		return zero, errSessionClosed
	}
}
