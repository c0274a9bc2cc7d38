package main

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter displays a countdown line while a scan window is open.
//
// Usage:
//
//	p := NewCountdownProgressPrinter(w, "Scanning for iTags", 5*time.Second)
//	p.Start()
//	defer p.Stop()
//
// A ProgressPrinter is single-use. Start may be called at most once; Stop is
// safe to call more than once.
type ProgressPrinter struct {
	w         io.Writer
	prefix    string
	found     atomic.Int64
	startTime time.Time
	duration  time.Duration
	ticker    atomic.Pointer[time.Ticker]
	stopChan  chan struct{}
	done      chan struct{}
	started   atomic.Bool
}

// NewCountdownProgressPrinter creates a progress printer that counts down from duration.
// A zero duration counts up instead.
func NewCountdownProgressPrinter(w io.Writer, prefix string, duration time.Duration) *ProgressPrinter {
	return &ProgressPrinter{w: w, prefix: prefix, duration: duration}
}

// progressWriter returns stderr when it is a terminal, otherwise nil
func progressWriter() io.Writer {
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return os.Stderr
	}
	return nil
}

// Start begins displaying progress updates in a background goroutine.
// Panics if called more than once on the same ProgressPrinter instance.
func (p *ProgressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ProgressPrinter.Start called more than once")
	}

	p.done = make(chan struct{})
	p.stopChan = make(chan struct{})
	p.startTime = time.Now()
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)

	fmt.Fprintf(p.w, "\r%s...   ", p.prefix)

	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				p.print()
			}
		}
	}()
}

// Found bumps the number of tags shown on the progress line
func (p *ProgressPrinter) Found() {
	p.found.Add(1)
}

func (p *ProgressPrinter) print() {
	elapsed := time.Since(p.startTime)

	var seconds int
	if p.duration <= 0 {
		seconds = int(elapsed.Seconds())
	} else if remaining := p.duration - elapsed; remaining > 0 {
		// Round to the nearest second, e.g. 3.7s -> 4s
		seconds = int(remaining.Seconds() + 0.5)
	}
	fmt.Fprintf(p.w, "\r%s (%ds, %d found)   ", p.prefix, seconds, p.found.Load())
}

// Stop stops the progress display and clears the line
func (p *ProgressPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return
	}

	ticker.Stop()
	close(p.stopChan)
	<-p.done

	fmt.Fprint(p.w, clearLineSequence)
}
