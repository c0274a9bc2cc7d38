package device

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressType is the link-layer address type tag
type AddressType uint8

const (
	AddressPublic AddressType = iota
	AddressRandom
)

func (t AddressType) String() string {
	switch t {
	case AddressPublic:
		return "public"
	case AddressRandom:
		return "random"
	default:
		return fmt.Sprintf("AddressType(%d)", uint8(t))
	}
}

// ParseAddressType parses "public" or "random" (case-insensitive)
func ParseAddressType(s string) (AddressType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public", "":
		return AddressPublic, nil
	case "random":
		return AddressRandom, nil
	default:
		return 0, fmt.Errorf("invalid address type %q: must be public or random", s)
	}
}

// Address is a 6-byte link-layer address plus its type.
// It is a comparable value and can be used as a map key.
type Address struct {
	MAC  [6]byte
	Type AddressType
}

// ParseAddress parses six colon-separated hex octets, e.g. "ff:ff:33:31:8a:76".
// The returned address is PUBLIC; use WithType for random addresses.
func ParseAddress(s string) (Address, error) {
	var a Address
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != len(a.MAC) {
		return Address{}, fmt.Errorf("invalid address %q: expected 6 colon-separated octets", s)
	}
	for i, p := range parts {
		if len(p) != 2 {
			return Address{}, fmt.Errorf("invalid address %q: octet %d must be two hex digits", s, i)
		}
		b, err := hex.DecodeString(p)
		if err != nil {
			return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
		}
		a.MAC[i] = b[0]
	}
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// WithType returns a copy of the address with the given type
func (a Address) WithType(t AddressType) Address {
	a.Type = t
	return a
}

// String renders lowercase colon-separated octets (the type is not included)
func (a Address) String() string {
	var sb strings.Builder
	for i, b := range a.MAC {
		if i > 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(hex.EncodeToString([]byte{b}))
	}
	return sb.String()
}

// IsZero reports whether the address is the zero value
func (a Address) IsZero() bool {
	return a == Address{}
}
