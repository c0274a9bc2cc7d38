package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/tagctl/internal/device"
	"github.com/srg/tagctl/tag"
)

// Command-level errors
var (
	// ErrUnknownTag indicates the argument is neither an address nor a configured label
	ErrUnknownTag = errors.New("unknown tag")
)

// FormatUserError turns a failure into a one-line message for the terminal.
// Unrecognised errors are printed as they are.
func FormatUserError(err error) string {
	var (
		notFound *device.NotFoundError
		devErr   *device.Error
	)

	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off; enable it and try again"
	case errors.Is(err, device.ErrConnectionTimeout):
		return "Connection timeout: the tag did not answer (is it powered on and in range?)"
	case errors.As(err, &notFound):
		return fmt.Sprintf("Unexpected GATT layout: %v", notFound)
	case errors.Is(err, device.ErrDiscoveryTimeout):
		return "Timeout discovering services/characteristics"
	case errors.Is(err, device.ErrLinkFault):
		return "Connection lost"
	case errors.Is(err, device.ErrOperationTimeout):
		return "The tag did not respond in time"
	case errors.Is(err, device.ErrPeerRejected) && errors.As(err, &devErr) && devErr.Err != nil:
		return fmt.Sprintf("The tag rejected the request: %v", devErr.Err)
	case errors.Is(err, device.ErrPeerRejected):
		return "The tag rejected the request"
	case errors.Is(err, tag.ErrInvalidLevel):
		return fmt.Sprintf("Unexpected battery value: %v", err)
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out"
	}
	return err.Error()
}
