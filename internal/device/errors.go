package device

import (
	"errors"
	"fmt"
)

// NotFoundError represents a GATT resource absent from the peer's table
type NotFoundError struct {
	Resource string // "service" or "characteristic"
	UUIDs    []UUID // [service] or [service, characteristic]
}

func (e *NotFoundError) Error() string {
	switch len(e.UUIDs) {
	case 0:
		return fmt.Sprintf("%s not found", e.Resource)
	case 1:
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	default:
		return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
	}
}

// ErrorKind classifies session failures so callers can tell "timed out" from
// "peer rejected" from "not found" without string matching
type ErrorKind string

const (
	KindConnectionTimeout ErrorKind = "connection_timeout"
	KindDiscoveryTimeout  ErrorKind = "discovery_timeout"
	KindStaleHandle       ErrorKind = "stale_handle"
	KindLinkFault         ErrorKind = "link_fault"
	KindOperationTimeout  ErrorKind = "operation_timeout"
	KindPeerRejected      ErrorKind = "peer_rejected"
)

// Error is a classified session error
type Error struct {
	Kind ErrorKind
	Op   string // connect, resolve, read, write, subscribe, await
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to compare Error values by Kind
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinel errors, compared by kind
var (
	ErrConnectionTimeout = &Error{Kind: KindConnectionTimeout}
	ErrDiscoveryTimeout  = &Error{Kind: KindDiscoveryTimeout}
	ErrStaleHandle       = &Error{Kind: KindStaleHandle}
	ErrLinkFault         = &Error{Kind: KindLinkFault}
	ErrOperationTimeout  = &Error{Kind: KindOperationTimeout}
	ErrPeerRejected      = &Error{Kind: KindPeerRejected}
)

// Usage errors
var (
	ErrBusy         = errors.New("another operation is in progress on this session")
	ErrSessionUsed  = errors.New("session already used; create a new session to reconnect")
	ErrUnsupported  = errors.New("unsupported")
	ErrBluetoothOff = errors.New("bluetooth is turned off")
)

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
