package scanner

import (
	"context"
	"iter"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/tagctl/internal/device"
	"github.com/srg/tagctl/internal/groutine"
)

// DefaultStreamBuffer is the advertisement channel capacity of a Stream
const DefaultStreamBuffer = 128

// Params configures one scan window
type Params = device.ScanParams

// Scanner starts scan windows on a radio
type Scanner struct {
	radio  device.Radio
	logger *logrus.Logger
}

// NewScanner creates a scanner over radio
func NewScanner(radio device.Radio, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{radio: radio, logger: logger}
}

// Stream is one scan window. It ends after the window's duration, when its
// context is cancelled or when Stop is called, and cannot be restarted.
//
// Advertisements that arrive while C is full are dropped once the window has
// elapsed. A scan without a duration blocks the radio until C is drained or
// Stop is called.
type Stream struct {
	// C delivers advertisements in arrival order and is closed when the scan ends
	C <-chan device.Advertisement

	cancel context.CancelFunc
	done   <-chan struct{}

	mu  sync.Mutex
	err error
}

// Start begins a scan window
func (s *Scanner) Start(ctx context.Context, params Params) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan device.Advertisement, DefaultStreamBuffer)
	st := &Stream{C: ch, cancel: cancel}

	s.logger.WithFields(logrus.Fields{
		"duration": params.Duration,
		"interval": params.Interval,
		"window":   params.Window,
		"active":   params.Active,
	}).Info("Starting BLE scan...")

	st.done = groutine.Go(ctx, "ble-scan", func(ctx context.Context) {
		defer close(ch)
		defer cancel()

		window := ctx
		if params.Duration > 0 {
			var cancelWindow context.CancelFunc
			window, cancelWindow = context.WithTimeout(ctx, params.Duration)
			defer cancelWindow()
		}

		err := s.radio.Scan(ctx, params, func(adv device.Advertisement) {
			select {
			case ch <- adv:
			case <-window.Done():
			}
		})
		if err != nil {
			s.logger.WithError(err).Warn("BLE scan failed")
			st.mu.Lock()
			st.err = err
			st.mu.Unlock()
			return
		}
		s.logger.Info("BLE scan completed")
	})
	return st
}

// All iterates over the stream; breaking out of the loop stops the scan
func (st *Stream) All() iter.Seq[device.Advertisement] {
	return func(yield func(device.Advertisement) bool) {
		for adv := range st.C {
			if !yield(adv) {
				st.Stop()
				return
			}
		}
	}
}

// Done is closed once the radio has returned and C is closed to senders
func (st *Stream) Done() <-chan struct{} {
	return st.done
}

// Stop ends the scan early and waits for the radio to let go
func (st *Stream) Stop() {
	st.cancel()
	for range st.C {
	}
	<-st.done
}

// Err reports the radio failure that ended the scan, if any.
// The end of the window and cancellation are not errors.
func (st *Stream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Collect folds a whole scan window into table. onChange, if not nil, is called
// for every advertisement that inserted or updated an entry.
func Collect(ctx context.Context, s *Scanner, params Params, table *Table, onChange func(Entry, Change)) error {
	st := s.Start(ctx, params)
	for adv := range st.All() {
		e, ch := table.Observe(adv)
		if onChange != nil && (ch == Inserted || ch == Updated) {
			onChange(e, ch)
		}
	}
	<-st.Done()

	s.logger.WithField("device_count", table.Len()).Debug("Scan results folded")
	return st.Err()
}
