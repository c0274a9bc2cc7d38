package device_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/srg/tagctl/internal/device"
	"github.com/srg/tagctl/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type CharacteristicTestSuite struct {
	testutils.MockBLEPeripheralSuite

	session *device.Session
}

func (s *CharacteristicTestSuite) connect(opts ...device.SessionOption) {
	opts = append([]device.SessionOption{device.WithLogger(s.Logger)}, opts...)
	s.session = device.NewSession(s.Radio, tagAddr, opts...)
	s.Require().NoError(s.session.Connect(context.Background(), s.TestTimeout), "connect MUST succeed")
}

func (s *CharacteristicTestSuite) resolve(svc, char device.UUID) *device.Characteristic {
	if s.session == nil {
		s.connect()
	}
	h, err := s.session.Resolve(context.Background(), svc, char, s.TestTimeout)
	s.Require().NoError(err, "resolve MUST succeed")
	return h
}

func (s *CharacteristicTestSuite) TearDownTest() {
	if s.session != nil {
		_ = s.session.Close()
		s.session = nil
	}
	s.MockBLEPeripheralSuite.TearDownTest()
}

func (s *CharacteristicTestSuite) TestReadBatteryLevel() {
	// GOAL: Verify Read returns the raw value bytes
	//
	// TEST SCENARIO: Battery level holds [0x63] -> Read returns [0x63] (99%)

	h := s.resolve(device.BatteryService, device.BatteryLevel)

	v, err := h.Read(context.Background())

	s.Require().NoError(err)
	s.Equal([]byte{0x63}, v)
	s.Equal(device.StateReady, s.session.State())
}

func (s *CharacteristicTestSuite) TestReadAfterCloseIsStale() {
	h := s.resolve(device.BatteryService, device.BatteryLevel)
	s.Require().NoError(s.session.Close())

	_, err := h.Read(context.Background())
	s.ErrorIs(err, device.ErrStaleHandle)

	err = h.Write(context.Background(), []byte{1})
	s.ErrorIs(err, device.ErrStaleHandle, "write on a non-writable handle of a closed session MUST report a stale handle")
	_, err = h.AwaitNotification(context.Background(), time.Second)
	s.ErrorIs(err, device.ErrStaleHandle)
}

func (s *CharacteristicTestSuite) TestWriteAfterCloseIsStale() {
	// GOAL: Verify a closed session wins over capability checks
	//
	// TEST SCENARIO: Resolve writable alert level, close -> Write reports StaleHandle, nothing reaches the link

	h := s.resolve(device.ImmediateAlertService, device.AlertLevel)
	link := s.Radio.Link()
	s.Require().NoError(s.session.Close())

	err := h.Write(context.Background(), []byte{0x01})

	s.ErrorIs(err, device.ErrStaleHandle)
	s.Empty(link.Writes("2a06"), "no payload MUST reach a closed link")
}

func (s *CharacteristicTestSuite) TestReadRejectedByPeer() {
	s.Radio = s.WithPeripheral().WithReadError("2a19", errors.New("ATT error 0x05: insufficient authentication")).Build()
	h := s.resolve(device.BatteryService, device.BatteryLevel)

	_, err := h.Read(context.Background())

	s.ErrorIs(err, device.ErrPeerRejected)
	s.ErrorContains(err, "insufficient authentication")
	s.Equal(device.StateReady, s.session.State(), "peer rejection MUST NOT end the session")
}

func (s *CharacteristicTestSuite) TestReadTimeout() {
	// GOAL: Verify a slow peer produces OperationTimeout and leaves the session usable
	//
	// TEST SCENARIO: Peer answers after 300ms, ReadTimeout 30ms -> OperationTimeout, state Ready

	s.Radio = s.WithPeripheral().WithOperationDelay(300 * time.Millisecond).Build()
	h := s.resolve(device.BatteryService, device.BatteryLevel)

	start := time.Now()
	_, err := h.ReadTimeout(30 * time.Millisecond)

	s.ErrorIs(err, device.ErrOperationTimeout)
	s.Less(time.Since(start), 250*time.Millisecond)
	s.Equal(device.StateReady, s.session.State())
}

func (s *CharacteristicTestSuite) TestLinkLossDuringRead() {
	// GOAL: Verify a link drop fails the in-flight read with LinkFault and tears the session down
	//
	// TEST SCENARIO: Read blocks 300ms, link drops at 20ms -> LinkFault, Disconnected, handles stale

	s.Radio = s.WithPeripheral().WithOperationDelay(300 * time.Millisecond).Build()
	h := s.resolve(device.BatteryService, device.BatteryLevel)

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Radio.Link().Drop()
	}()
	_, err := h.Read(context.Background())

	s.ErrorIs(err, device.ErrLinkFault)
	s.Equal(device.StateDisconnected, s.session.State())
	s.ErrorIs(s.session.Err(), device.ErrLinkFault)

	_, err = h.Read(context.Background())
	s.ErrorIs(err, device.ErrStaleHandle, "handles MUST be stale after link loss")
}

func (s *CharacteristicTestSuite) TestIdleLinkLoss() {
	h := s.resolve(device.TagService, device.TagButton)

	s.Radio.Link().Drop()

	s.Eventually(func() bool {
		return s.session.State() == device.StateDisconnected
	}, time.Second, 5*time.Millisecond, "monitor MUST force Disconnected")
	_, err := h.AwaitNotification(context.Background(), time.Second)
	s.ErrorIs(err, device.ErrStaleHandle)
	s.ErrorIs(s.session.Err(), device.ErrLinkFault)
}

func (s *CharacteristicTestSuite) TestWriteAlertLevel() {
	// GOAL: Verify write mode selection follows characteristic properties
	//
	// TEST SCENARIO: Alert level is write-without-response -> writes 0x01 then 0x00 without response

	h := s.resolve(device.ImmediateAlertService, device.AlertLevel)

	mode, err := h.WriteMode()
	s.Require().NoError(err)
	s.Equal(device.WriteWithoutResponse, mode)

	s.Require().NoError(h.Write(context.Background(), []byte{0x01}))
	s.Require().NoError(h.Write(context.Background(), []byte{0x00}))

	s.Equal([][]byte{{0x01}, {0x00}}, s.Radio.Link().Writes("2a06"))
}

func (s *CharacteristicTestSuite) TestWriteReadOnlyUnsupported() {
	h := s.resolve(device.BatteryService, device.BatteryLevel)

	err := h.Write(context.Background(), []byte{0x10})

	s.ErrorIs(err, device.ErrUnsupported)
	s.Empty(s.Radio.Link().Writes("2a19"))
}

func (s *CharacteristicTestSuite) TestNotificationsInOrder() {
	// GOAL: Verify each await returns exactly one notification in arrival order
	//
	// TEST SCENARIO: Button pressed 5 times -> 5 awaits return payloads 1..5

	h := s.resolve(device.TagService, device.TagButton)
	s.Require().NoError(h.Subscribe(context.Background()))
	s.Require().NoError(h.Subscribe(context.Background()), "Subscribe MUST be idempotent")

	for i := byte(1); i <= 5; i++ {
		s.Require().True(s.Radio.Link().Notify("ffe1", []byte{i}))
	}

	for i := byte(1); i <= 5; i++ {
		v, err := h.AwaitNotification(context.Background(), time.Second)
		s.Require().NoError(err)
		s.Equal([]byte{i}, v, "notification %d MUST arrive in order", i)
	}
	s.Zero(h.Dropped())
}

func (s *CharacteristicTestSuite) TestAwaitSubscribesOnFirstUse() {
	h := s.resolve(device.TagService, device.TagButton)

	go func() {
		s.Eventually(func() bool { return s.Radio.Link().Subscribed("ffe1") }, time.Second, time.Millisecond)
		s.Radio.Link().Notify("ffe1", []byte{0x01})
	}()
	v, err := h.AwaitNotification(context.Background(), time.Second)

	s.Require().NoError(err)
	s.Equal([]byte{0x01}, v)
}

func (s *CharacteristicTestSuite) TestAwaitTimeout() {
	h := s.resolve(device.TagService, device.TagButton)

	_, err := h.AwaitNotification(context.Background(), 30*time.Millisecond)

	s.ErrorIs(err, device.ErrOperationTimeout)
	s.Equal(device.StateReady, s.session.State(), "await timeout MUST leave the session Ready")
}

func (s *CharacteristicTestSuite) TestAwaitUnsupported() {
	h := s.resolve(device.ImmediateAlertService, device.AlertLevel)

	_, err := h.AwaitNotification(context.Background(), 30*time.Millisecond)

	s.ErrorIs(err, device.ErrUnsupported)
}

func (s *CharacteristicTestSuite) TestQueueOverflowKeepsOldest() {
	// GOAL: Verify a full queue drops the incoming value, never what it already holds
	//
	// TEST SCENARIO: Buffer 2, three notifications -> awaits return 1, 2; Dropped()==1

	s.connect(device.WithNotificationBuffer(2))
	h := s.resolve(device.TagService, device.TagButton)
	s.Require().NoError(h.Subscribe(context.Background()))

	for i := byte(1); i <= 3; i++ {
		s.Radio.Link().Notify("ffe1", []byte{i})
	}

	s.Equal(uint64(1), h.Dropped())
	for i := byte(1); i <= 2; i++ {
		v, err := h.AwaitNotification(context.Background(), time.Second)
		s.Require().NoError(err)
		s.Equal([]byte{i}, v)
	}
	_, err := h.AwaitNotification(context.Background(), 20*time.Millisecond)
	s.ErrorIs(err, device.ErrOperationTimeout, "dropped value MUST NOT be delivered")
}

func (s *CharacteristicTestSuite) TestConcurrentOperationsRejected() {
	// GOAL: Verify a second operation on a busy session is rejected instead of queued
	//
	// TEST SCENARIO: Two reads race against a 100ms peer -> one succeeds, one gets ErrBusy

	s.Radio = s.WithPeripheral().WithOperationDelay(100 * time.Millisecond).Build()
	h := s.resolve(device.BatteryService, device.BatteryLevel)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = h.Read(context.Background())
		}()
	}
	close(start)
	wg.Wait()

	busy, ok := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, device.ErrBusy):
			busy++
		}
	}
	s.Equal(1, ok, "one read MUST succeed")
	s.Equal(1, busy, "the other read MUST be rejected with ErrBusy")

	_, err := h.Read(context.Background())
	s.NoError(err, "session MUST accept operations once idle")
}

func (s *CharacteristicTestSuite) TestCloseUnsubscribes() {
	h := s.resolve(device.TagService, device.TagButton)
	s.Require().NoError(h.Subscribe(context.Background()))
	link := s.Radio.Link()
	s.True(link.Subscribed("ffe1"))

	s.Require().NoError(s.session.Close())

	s.False(link.Subscribed("ffe1"), "Close MUST disable notifications")
	s.Equal(1, link.Disconnects())
}

func TestCharacteristicTestSuite(t *testing.T) {
	suite.Run(t, new(CharacteristicTestSuite))
}
