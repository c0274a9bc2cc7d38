package device

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// sigBaseSuffix is the tail of the Bluetooth SIG base UUID 0000xxxx-0000-1000-8000-00805f9b34fb
const sigBaseSuffix = "00001000800000805f9b34fb"

// UUID is a normalized GATT identifier: 4 lowercase hex digits for 16-bit SIG values,
// 8 for 32-bit values, 32 for vendor 128-bit values. Values in the SIG base range
// collapse to their 16-bit form so that "180F" and "0000180f-0000-1000-8000-00805f9b34fb"
// compare equal.
type UUID string

// GATT identifiers used by the tag
var (
	BatteryService        = UUID16(0x180F)
	BatteryLevel          = UUID16(0x2A19)
	ImmediateAlertService = UUID16(0x1802)
	AlertLevel            = UUID16(0x2A06)
	TagService            = UUID16(0xFFE0)
	TagButton             = UUID16(0xFFE1)
)

// UUID16 returns the identifier for a 16-bit SIG-assigned value
func UUID16(v uint16) UUID {
	return UUID(fmt.Sprintf("%04x", v))
}

// NormalizeUUID converts a UUID string to its normalized form (lowercase, no dashes,
// no 0x prefix, SIG base UUIDs shortened to 16 bits). Returns "" for malformed input.
func NormalizeUUID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "0x")
	s = strings.ReplaceAll(s, "-", "")

	switch len(s) {
	case 4, 8:
		if _, err := hex.DecodeString(s); err != nil {
			return ""
		}
		return s
	case 32:
	default:
		return ""
	}

	parsed, err := uuid.Parse(s)
	if err != nil {
		return ""
	}
	full := strings.ReplaceAll(parsed.String(), "-", "")
	if strings.HasPrefix(full, "0000") && strings.HasSuffix(full, sigBaseSuffix) {
		return full[4:8]
	}
	return full
}

// ParseUUID validates and normalizes a UUID string
func ParseUUID(s string) (UUID, error) {
	n := NormalizeUUID(s)
	if n == "" {
		return "", fmt.Errorf("invalid UUID %q", s)
	}
	return UUID(n), nil
}

// MustParseUUID is like ParseUUID but panics on error
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Is16Bit reports whether the identifier is a 16-bit SIG value
func (u UUID) Is16Bit() bool {
	return len(u) == 4
}

func (u UUID) String() string {
	return string(u)
}
