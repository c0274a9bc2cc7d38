package tag

import (
	"sort"
	"strings"

	"github.com/srg/tagctl/internal/device"
)

// Labels maps known tag addresses to their labels
type Labels map[device.Address]string

// Label returns the label of addr, or "" when the tag is unknown
func (l Labels) Label(addr device.Address) string {
	return l[addr]
}

// Resolve accepts either a label (case-insensitive) or an address
func (l Labels) Resolve(s string) (device.Address, string, bool) {
	if addr, err := device.ParseAddress(s); err == nil {
		return addr, l[addr], true
	}
	for addr, label := range l {
		if strings.EqualFold(label, s) {
			return addr, label, true
		}
	}
	return device.Address{}, "", false
}

// Names returns the labels in alphabetical order
func (l Labels) Names() []string {
	names := make([]string, 0, len(l))
	for _, label := range l {
		names = append(names, label)
	}
	sort.Strings(names)
	return names
}
